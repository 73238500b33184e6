package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateBag OutboxAggregateType = "bag"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBag,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventBagHandlerAssigned         OutboxEventType = "bag_handler_assigned"
	EventBagDeliveryConfirmed       OutboxEventType = "bag_delivery_confirmed"
	EventBagAddressUpdated          OutboxEventType = "bag_address_updated"
	EventBagPaymentSubmitted        OutboxEventType = "bag_payment_submitted"
	EventBagPaymentApproved         OutboxEventType = "bag_payment_approved"
	EventBagPaymentRejected         OutboxEventType = "bag_payment_rejected"
	EventBagPaid                    OutboxEventType = "bag_paid"
	EventBagLabelGenerated          OutboxEventType = "bag_label_generated"
	EventBagShippingPaymentRequired OutboxEventType = "bag_shipping_payment_required"
	EventBagTrackingSynced          OutboxEventType = "bag_tracking_synced"
	EventBagChargeRecorded          OutboxEventType = "bag_charge_recorded"
	EventBagStatusAdvanced          OutboxEventType = "bag_status_advanced"
	EventBagStatusReverted          OutboxEventType = "bag_status_reverted"
	EventBagChargeDue               OutboxEventType = "bag_charge_due"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBagHandlerAssigned,
	EventBagDeliveryConfirmed,
	EventBagAddressUpdated,
	EventBagPaymentSubmitted,
	EventBagPaymentApproved,
	EventBagPaymentRejected,
	EventBagPaid,
	EventBagLabelGenerated,
	EventBagShippingPaymentRequired,
	EventBagTrackingSynced,
	EventBagChargeRecorded,
	EventBagStatusAdvanced,
	EventBagStatusReverted,
	EventBagChargeDue,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxEventTypes returns every known event type.
func OutboxEventTypes() []OutboxEventType {
	return append([]OutboxEventType(nil), validOutboxEventTypes...)
}

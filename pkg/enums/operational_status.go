package enums

import "fmt"

// OperationalStatus tracks where a bag sits in the fulfillment pipeline.
type OperationalStatus string

const (
	OperationalAwaitingPayment         OperationalStatus = "awaiting_payment"
	OperationalAwaitingReturn          OperationalStatus = "awaiting_return"
	OperationalPaid                    OperationalStatus = "paid"
	OperationalPrepareShipment         OperationalStatus = "prepare_shipment"
	OperationalLabelGenerated          OperationalStatus = "label_generated"
	OperationalPosted                  OperationalStatus = "posted"
	OperationalInTransit               OperationalStatus = "in_transit"
	OperationalAwaitingPickup          OperationalStatus = "awaiting_pickup"
	OperationalDelivered               OperationalStatus = "delivered"
	OperationalPickedUp                OperationalStatus = "picked_up"
	OperationalMissingData             OperationalStatus = "missing_data"
	OperationalAwaitingShippingPayment OperationalStatus = "awaiting_shipping_payment"
)

var validOperationalStatuses = []OperationalStatus{
	OperationalAwaitingPayment,
	OperationalAwaitingReturn,
	OperationalPaid,
	OperationalPrepareShipment,
	OperationalLabelGenerated,
	OperationalPosted,
	OperationalInTransit,
	OperationalAwaitingPickup,
	OperationalDelivered,
	OperationalPickedUp,
	OperationalMissingData,
	OperationalAwaitingShippingPayment,
}

// String implements fmt.Stringer.
func (o OperationalStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OperationalStatus.
func (o OperationalStatus) IsValid() bool {
	for _, candidate := range validOperationalStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOperationalStatus converts raw input into a OperationalStatus.
func ParseOperationalStatus(value string) (OperationalStatus, error) {
	for _, candidate := range validOperationalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operational status %q", value)
}

// IsPrePayment reports whether the status precedes payment confirmation.
func (o OperationalStatus) IsPrePayment() bool {
	return o == OperationalAwaitingPayment || o == OperationalAwaitingReturn
}

// IsTerminal reports whether no further forward transition exists.
func (o OperationalStatus) IsTerminal() bool {
	return o == OperationalDelivered || o == OperationalPickedUp
}

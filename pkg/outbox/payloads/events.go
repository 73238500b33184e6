package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
)

// BagHandlerAssignedEvent is emitted when a seller takes or drops a bag.
type BagHandlerAssignedEvent struct {
	BagID     uuid.UUID  `json:"bag_id"`
	HandlerID *uuid.UUID `json:"handler_id"`
}

// BagDeliveryConfirmedEvent carries the locked delivery terms.
type BagDeliveryConfirmedEvent struct {
	BagID          uuid.UUID            `json:"bag_id"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	ShippingAmount decimal.Decimal      `json:"shipping_amount"`
	Total          decimal.Decimal      `json:"total"`
	ServiceName    string               `json:"service_name,omitempty"`
}

// BagAddressUpdatedEvent reports a new address snapshot and whatever it still
// lacks for a carrier label.
type BagAddressUpdatedEvent struct {
	BagID             uuid.UUID               `json:"bag_id"`
	MissingFields     []string                `json:"missing_fields,omitempty"`
	OperationalStatus enums.OperationalStatus `json:"operational_status"`
}

type BagPaymentSubmittedEvent struct {
	BagID         uuid.UUID           `json:"bag_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ProofURL      string              `json:"proof_url"`
}

// BagPaymentReviewedEvent backs both bag_payment_approved and bag_payment_rejected.
type BagPaymentReviewedEvent struct {
	BagID        uuid.UUID                 `json:"bag_id"`
	ReviewStatus enums.PaymentReviewStatus `json:"review_status"`
	Reason       string                    `json:"reason,omitempty"`
	ReviewedBy   *uuid.UUID                `json:"reviewed_by,omitempty"`
}

type BagPaidEvent struct {
	BagID         uuid.UUID           `json:"bag_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaidAt        time.Time           `json:"paid_at"`
	Total         decimal.Decimal     `json:"total"`
	Source        string              `json:"source"`
}

type BagLabelGeneratedEvent struct {
	BagID        uuid.UUID `json:"bag_id"`
	ShipmentID   string    `json:"shipment_id"`
	LabelURL     string    `json:"label_url"`
	TrackingCode string    `json:"tracking_code,omitempty"`
}

// BagShippingPaymentRequiredEvent asks someone to top up the carrier wallet.
type BagShippingPaymentRequiredEvent struct {
	BagID      uuid.UUID `json:"bag_id"`
	ShipmentID string    `json:"shipment_id"`
	WalletURL  string    `json:"wallet_url"`
}

type BagTrackingSyncedEvent struct {
	BagID        uuid.UUID `json:"bag_id"`
	ShipmentID   string    `json:"shipment_id"`
	TrackingCode string    `json:"tracking_code"`
}

type BagChargeRecordedEvent struct {
	BagID          uuid.UUID           `json:"bag_id"`
	Channel        enums.ChargeChannel `json:"channel"`
	ChargeAttempts int                 `json:"charge_attempts"`
	StatusChanged  bool                `json:"status_changed"`
}

// BagStatusChangedEvent backs bag_status_advanced and bag_status_reverted.
type BagStatusChangedEvent struct {
	BagID  uuid.UUID               `json:"bag_id"`
	From   enums.OperationalStatus `json:"from"`
	To     enums.OperationalStatus `json:"to"`
	Reason string                  `json:"reason,omitempty"`
}

// BagChargeDueEvent is raised by the reminder job for bags nobody has charged recently.
type BagChargeDueEvent struct {
	BagID          uuid.UUID               `json:"bag_id"`
	LiveEventID    uuid.UUID               `json:"live_event_id"`
	BagNumber      int                     `json:"bag_number"`
	Status         enums.OperationalStatus `json:"operational_status"`
	ChargeAttempts int                     `json:"charge_attempts"`
	LastChargeAt   *time.Time              `json:"last_charge_at,omitempty"`
	HandlerID      *uuid.UUID              `json:"handler_id,omitempty"`
}

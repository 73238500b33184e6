package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Bag is the per-customer collection of items claimed during one live event.
type Bag struct {
	ID                  uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	LiveEventID         uuid.UUID                 `gorm:"column:live_event_id;type:uuid;not null"`
	BagNumber           int                       `gorm:"column:bag_number;not null"`
	PublicToken         string                    `gorm:"column:public_token;not null"`
	CustomerID          uuid.UUID                 `gorm:"column:customer_id;type:uuid;not null"`
	HandlerID           *uuid.UUID                `gorm:"column:handler_id;type:uuid"`
	LinkedOrderID       *uuid.UUID                `gorm:"column:linked_order_id;type:uuid"`
	Status              enums.BagStatus           `gorm:"column:status;type:text;not null;default:'open'"`
	OperationalStatus   enums.OperationalStatus   `gorm:"column:operational_status;type:text;not null;default:'awaiting_payment'"`
	DeliveryMethod      *enums.DeliveryMethod     `gorm:"column:delivery_method;type:text"`
	Subtotal            decimal.Decimal           `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountTotal       decimal.Decimal           `gorm:"column:discount_total;type:numeric(12,2);not null"`
	ShippingAmount      decimal.Decimal           `gorm:"column:shipping_amount;type:numeric(12,2);not null"`
	Total               decimal.Decimal           `gorm:"column:total;type:numeric(12,2);not null"`
	ShippingServiceName *string                   `gorm:"column:shipping_service_name"`
	ShippingAddress     *types.ShippingAddress    `gorm:"column:shipping_address;type:jsonb"`
	ShipmentID          *string                   `gorm:"column:shipment_id"`
	LabelURL            *string                   `gorm:"column:label_url"`
	TrackingCode        *string                   `gorm:"column:tracking_code"`
	LabelPrintedAt      *time.Time                `gorm:"column:label_printed_at"`
	PaymentMethod       *enums.PaymentMethod      `gorm:"column:payment_method;type:text"`
	PaidAt              *time.Time                `gorm:"column:paid_at"`
	PaymentProofURL     *string                   `gorm:"column:payment_proof_url"`
	PaymentNotes        *string                   `gorm:"column:payment_notes"`
	PaymentReviewStatus enums.PaymentReviewStatus `gorm:"column:payment_review_status;type:text;not null;default:'none'"`
	RejectionReason     *string                   `gorm:"column:rejection_reason"`
	ValidatedAt         *time.Time                `gorm:"column:validated_at"`
	ValidatedBy         *uuid.UUID                `gorm:"column:validated_by;type:uuid"`
	ChargeAttempts      int                       `gorm:"column:charge_attempts;not null;default:0"`
	LastChargeAt        *time.Time                `gorm:"column:last_charge_at"`
	ChargeChannel       *enums.ChargeChannel      `gorm:"column:charge_channel;type:text"`
	Version             int64                     `gorm:"column:version;not null;default:1"`
	Items               []BagItem                 `gorm:"foreignKey:BagID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// RecomputeTotal enforces total = subtotal - discount + shipping.
func (b *Bag) RecomputeTotal() {
	b.Total = b.Subtotal.Sub(b.DiscountTotal).Add(b.ShippingAmount).Round(2)
}

// Method returns the confirmed delivery method or the empty value.
func (b *Bag) Method() enums.DeliveryMethod {
	if b == nil || b.DeliveryMethod == nil {
		return ""
	}
	return *b.DeliveryMethod
}

// HasLabel reports whether a label has already been purchased and printed.
func (b *Bag) HasLabel() bool {
	return b != nil && b.LabelURL != nil && *b.LabelURL != ""
}

func (b *Bag) ShipmentRef() string {
	if b == nil || b.ShipmentID == nil {
		return ""
	}
	return *b.ShipmentID
}

func (b *Bag) Tracking() string {
	if b == nil || b.TrackingCode == nil {
		return ""
	}
	return *b.TrackingCode
}

func (b *Bag) Label() string {
	if b == nil || b.LabelURL == nil {
		return ""
	}
	return *b.LabelURL
}

package bags

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/internal/charges"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Actor is the operator behind a call. The zero value is the system.
type Actor struct {
	UserID  uuid.UUID
	Role    enums.MemberRole
	IsAdmin bool
}

func (a Actor) isSystem() bool {
	return a.UserID == uuid.Nil
}

func (a Actor) ref() *outbox.ActorRef {
	if a.isSystem() {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

func (a Actor) id() *uuid.UUID {
	if a.isSystem() {
		return nil
	}
	id := a.UserID
	return &id
}

// ConfirmDeliveryInput locks the delivery terms of a bag.
type ConfirmDeliveryInput struct {
	Method      enums.DeliveryMethod
	Shipping    decimal.Decimal
	ServiceName string
	Address     *types.ShippingAddress
}

type SubmitPaymentInput struct {
	Method   enums.PaymentMethod
	ProofURL string
	Notes    string
}

type RecordChargeInput struct {
	Channel              enums.ChargeChannel
	MoveToAwaitingReturn bool
}

type RevertInput struct {
	Target enums.OperationalStatus
	Reason string
}

// ListFilters narrows the bag list. Nil pointers mean no filter.
type ListFilters struct {
	LiveEventID       *uuid.UUID
	OperationalStatus *enums.OperationalStatus
	HandlerID         *uuid.UUID
	UrgentOnly        bool
	NeedsCharge       bool
}

// BagSummary is one row of the bag list.
type BagSummary struct {
	ID                  uuid.UUID                 `json:"id"`
	LiveEventID         uuid.UUID                 `json:"live_event_id"`
	BagNumber           int                       `json:"bag_number"`
	CustomerID          uuid.UUID                 `json:"customer_id"`
	HandlerID           *uuid.UUID                `json:"handler_id,omitempty"`
	Status              enums.BagStatus           `json:"status"`
	OperationalStatus   enums.OperationalStatus   `json:"operational_status"`
	DeliveryMethod      *enums.DeliveryMethod     `json:"delivery_method,omitempty"`
	PaymentReviewStatus enums.PaymentReviewStatus `json:"payment_review_status"`
	Total               decimal.Decimal           `json:"total"`
	ChargeAttempts      int                       `json:"charge_attempts"`
	LastChargeAt        *time.Time                `json:"last_charge_at,omitempty"`
	TrackingCode        *string                   `json:"tracking_code,omitempty"`
	Urgency             charges.Urgency           `json:"urgency"`
	NeedsCharge         bool                      `json:"needs_charge"`
	CreatedAt           time.Time                 `json:"created_at"`
}

// BagView is the API shape of a bag.
type BagView struct {
	ID                  uuid.UUID                 `json:"id"`
	LiveEventID         uuid.UUID                 `json:"live_event_id"`
	BagNumber           int                       `json:"bag_number"`
	PublicToken         string                    `json:"public_token"`
	CustomerID          uuid.UUID                 `json:"customer_id"`
	HandlerID           *uuid.UUID                `json:"handler_id,omitempty"`
	LinkedOrderID       *uuid.UUID                `json:"linked_order_id,omitempty"`
	Status              enums.BagStatus           `json:"status"`
	OperationalStatus   enums.OperationalStatus   `json:"operational_status"`
	DeliveryMethod      *enums.DeliveryMethod     `json:"delivery_method,omitempty"`
	Subtotal            decimal.Decimal           `json:"subtotal"`
	DiscountTotal       decimal.Decimal           `json:"discount_total"`
	ShippingAmount      decimal.Decimal           `json:"shipping_amount"`
	Total               decimal.Decimal           `json:"total"`
	ShippingServiceName *string                   `json:"shipping_service_name,omitempty"`
	ShippingAddress     *types.ShippingAddress    `json:"shipping_address,omitempty"`
	ShipmentID          *string                   `json:"shipment_id,omitempty"`
	LabelURL            *string                   `json:"label_url,omitempty"`
	TrackingCode        *string                   `json:"tracking_code,omitempty"`
	LabelPrintedAt      *time.Time                `json:"label_printed_at,omitempty"`
	PaymentMethod       *enums.PaymentMethod      `json:"payment_method,omitempty"`
	PaidAt              *time.Time                `json:"paid_at,omitempty"`
	PaymentProofURL     *string                   `json:"payment_proof_url,omitempty"`
	PaymentNotes        *string                   `json:"payment_notes,omitempty"`
	PaymentReviewStatus enums.PaymentReviewStatus `json:"payment_review_status"`
	RejectionReason     *string                   `json:"rejection_reason,omitempty"`
	ValidatedAt         *time.Time                `json:"validated_at,omitempty"`
	ValidatedBy         *uuid.UUID                `json:"validated_by,omitempty"`
	ChargeAttempts      int                       `json:"charge_attempts"`
	LastChargeAt        *time.Time                `json:"last_charge_at,omitempty"`
	ChargeChannel       *enums.ChargeChannel      `json:"charge_channel,omitempty"`
	CreatedAt           time.Time                 `json:"created_at"`
	UpdatedAt           time.Time                 `json:"updated_at"`
}

type ItemView struct {
	ID        uuid.UUID           `json:"id"`
	ProductID uuid.UUID           `json:"product_id"`
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	UnitPrice decimal.Decimal     `json:"unit_price"`
	Status    enums.BagItemStatus `json:"status"`
	WeightKg  *float64            `json:"weight_kg,omitempty"`
	LengthCm  *float64            `json:"length_cm,omitempty"`
	WidthCm   *float64            `json:"width_cm,omitempty"`
	HeightCm  *float64            `json:"height_cm,omitempty"`
}

// BagDetail is the single-bag view with everything an operator decides on.
type BagDetail struct {
	Bag                BagView                   `json:"bag"`
	Items              []ItemView                `json:"items"`
	Urgency            charges.Urgency           `json:"urgency"`
	NeedsCharge        bool                      `json:"needs_charge"`
	DeliveryConfigured bool                      `json:"delivery_configured"`
	NextStates         []enums.OperationalStatus `json:"next_states"`
	PreviousStates     []enums.OperationalStatus `json:"previous_states"`
}

// HistoryEntry is one row of the status audit trail.
type HistoryEntry struct {
	ID            uuid.UUID               `json:"id"`
	OldStatus     enums.OperationalStatus `json:"old_status"`
	NewStatus     enums.OperationalStatus `json:"new_status"`
	PaymentMethod *enums.PaymentMethod    `json:"payment_method,omitempty"`
	Notes         *string                 `json:"notes,omitempty"`
	ChangedBy     *uuid.UUID              `json:"changed_by,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// ViewOf maps a bag row to its API shape.
func ViewOf(bag *models.Bag) BagView {
	return BagView{
		ID:                  bag.ID,
		LiveEventID:         bag.LiveEventID,
		BagNumber:           bag.BagNumber,
		PublicToken:         bag.PublicToken,
		CustomerID:          bag.CustomerID,
		HandlerID:           bag.HandlerID,
		LinkedOrderID:       bag.LinkedOrderID,
		Status:              bag.Status,
		OperationalStatus:   bag.OperationalStatus,
		DeliveryMethod:      bag.DeliveryMethod,
		Subtotal:            bag.Subtotal,
		DiscountTotal:       bag.DiscountTotal,
		ShippingAmount:      bag.ShippingAmount,
		Total:               bag.Total,
		ShippingServiceName: bag.ShippingServiceName,
		ShippingAddress:     bag.ShippingAddress,
		ShipmentID:          bag.ShipmentID,
		LabelURL:            bag.LabelURL,
		TrackingCode:        bag.TrackingCode,
		LabelPrintedAt:      bag.LabelPrintedAt,
		PaymentMethod:       bag.PaymentMethod,
		PaidAt:              bag.PaidAt,
		PaymentProofURL:     bag.PaymentProofURL,
		PaymentNotes:        bag.PaymentNotes,
		PaymentReviewStatus: bag.PaymentReviewStatus,
		RejectionReason:     bag.RejectionReason,
		ValidatedAt:         bag.ValidatedAt,
		ValidatedBy:         bag.ValidatedBy,
		ChargeAttempts:      bag.ChargeAttempts,
		LastChargeAt:        bag.LastChargeAt,
		ChargeChannel:       bag.ChargeChannel,
		CreatedAt:           bag.CreatedAt,
		UpdatedAt:           bag.UpdatedAt,
	}
}

func itemViews(items []models.BagItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Status:    item.Status,
			WeightKg:  item.WeightKg,
			LengthCm:  item.LengthCm,
			WidthCm:   item.WidthCm,
			HeightCm:  item.HeightCm,
		})
	}
	return out
}

func historyEntries(rows []models.BagStatusHistory) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryEntry{
			ID:            row.ID,
			OldStatus:     row.OldStatus,
			NewStatus:     row.NewStatus,
			PaymentMethod: row.PaymentMethod,
			Notes:         row.Notes,
			ChangedBy:     row.ChangedBy,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out
}

func summarize(bag *models.Bag, now time.Time) BagSummary {
	return BagSummary{
		ID:                  bag.ID,
		LiveEventID:         bag.LiveEventID,
		BagNumber:           bag.BagNumber,
		CustomerID:          bag.CustomerID,
		HandlerID:           bag.HandlerID,
		Status:              bag.Status,
		OperationalStatus:   bag.OperationalStatus,
		DeliveryMethod:      bag.DeliveryMethod,
		PaymentReviewStatus: bag.PaymentReviewStatus,
		Total:               bag.Total,
		ChargeAttempts:      bag.ChargeAttempts,
		LastChargeAt:        bag.LastChargeAt,
		TrackingCode:        bag.TrackingCode,
		Urgency:             charges.Assess(bag, now),
		NeedsCharge:         charges.NeedsCharge(bag, now),
		CreatedAt:           bag.CreatedAt,
	}
}

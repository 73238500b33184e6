package paymentreview

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/mercadopago"
)

const referencePrefix = "live_cart:"

const (
	OutcomeAlreadyPaid = "already_paid"
	OutcomeNotApproved = "not_approved"
	OutcomeApproved    = "approved"
)

// GatewayPayment is the gateway-neutral view of a payment lookup.
type GatewayPayment struct {
	ID                string
	Status            string
	ExternalReference string
	Amount            decimal.Decimal
	ApprovedAt        *time.Time
}

func (p GatewayPayment) IsApproved() bool {
	return p.Status == mercadopago.StatusApproved
}

// Gateway looks up a payment by its gateway id.
type Gateway interface {
	LookupPayment(ctx context.Context, paymentID string) (GatewayPayment, error)
}

type mercadoPagoLookup interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// MercadoPagoGateway adapts the Mercado Pago client to Gateway.
type MercadoPagoGateway struct {
	client mercadoPagoLookup
}

func NewMercadoPagoGateway(client mercadoPagoLookup) *MercadoPagoGateway {
	return &MercadoPagoGateway{client: client}
}

func (g *MercadoPagoGateway) LookupPayment(ctx context.Context, paymentID string) (GatewayPayment, error) {
	payment, err := g.client.GetPayment(ctx, paymentID)
	if err != nil {
		return GatewayPayment{}, err
	}
	return GatewayPayment{
		ID:                paymentID,
		Status:            payment.Status,
		ExternalReference: payment.ExternalReference,
		Amount:            decimal.NewFromFloat(payment.TransactionAmount).Round(2),
		ApprovedAt:        payment.DateApproved,
	}, nil
}

// MatchesReference accepts "live_cart:<bagID>" or the bare bag id.
func MatchesReference(reference string, bagID uuid.UUID) bool {
	ref := strings.TrimSpace(reference)
	ref = strings.TrimPrefix(ref, referencePrefix)
	parsed, err := uuid.Parse(ref)
	if err != nil {
		return false
	}
	return parsed == bagID
}

// RevalidateResult reports what a gateway revalidation did.
type RevalidateResult struct {
	Outcome       string `json:"outcome"`
	GatewayStatus string `json:"gateway_status,omitempty"`
	PaymentID     string `json:"payment_id"`
}

// Revalidate reconciles the bag with the gateway's view of paymentID. Only an
// approved payment with a matching reference mutates the bag.
func (r *Reviewer) Revalidate(ctx context.Context, gateway Gateway, bag *models.Bag, paymentID string, now time.Time) (RevalidateResult, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return RevalidateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	result := RevalidateResult{PaymentID: paymentID}
	if bag.Status == enums.BagStatusPaid {
		result.Outcome = OutcomeAlreadyPaid
		return result, nil
	}
	if gateway == nil {
		return RevalidateResult{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}

	payment, err := gateway.LookupPayment(ctx, paymentID)
	if err != nil {
		return RevalidateResult{}, err
	}
	result.GatewayStatus = payment.Status
	if !payment.IsApproved() {
		result.Outcome = OutcomeNotApproved
		return result, nil
	}
	if !MatchesReference(payment.ExternalReference, bag.ID) {
		return RevalidateResult{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference does not match bag").
			WithDetails(map[string]any{"external_reference": payment.ExternalReference})
	}

	paidAt := now
	if payment.ApprovedAt != nil {
		paidAt = *payment.ApprovedAt
	}
	if err := r.ConfirmGateway(bag, enums.PaymentMethodGateway, paidAt); err != nil {
		return RevalidateResult{}, err
	}
	result.Outcome = OutcomeApproved
	return result, nil
}

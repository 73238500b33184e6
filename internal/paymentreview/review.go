package paymentreview

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/internal/lifecycle"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

type deliveryGate interface {
	Check(method enums.DeliveryMethod, shipping decimal.Decimal) error
}

// SubmitInput carries a seller's manual payment claim.
type SubmitInput struct {
	Method   enums.PaymentMethod
	ProofURL string
	Notes    string
}

// Reviewer applies the manual payment review rules to a loaded bag. It only
// mutates the struct; persisting the result is the caller's job.
type Reviewer struct {
	gate deliveryGate
}

func NewReviewer(gate deliveryGate) *Reviewer {
	return &Reviewer{gate: gate}
}

// Submit records a manual payment claim and moves the review to pending.
// The bag's payment status is left untouched until an admin approves.
func (r *Reviewer) Submit(bag *models.Bag, input SubmitInput, now time.Time) error {
	proof := strings.TrimSpace(input.ProofURL)
	if proof == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment proof url is required")
	}
	if !input.Method.IsManual() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "payment method %q is not a manual method", input.Method)
	}
	if bag.Status == enums.BagStatusPaid || bag.Status == enums.BagStatusCancelled {
		return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot submit payment for a %s bag", bag.Status)
	}
	switch bag.PaymentReviewStatus {
	case enums.PaymentReviewNone, enums.PaymentReviewRejected, "":
	default:
		return reviewStateError("submit", bag.PaymentReviewStatus)
	}
	if err := r.gate.Check(bag.Method(), bag.ShippingAmount); err != nil {
		return err
	}

	method := input.Method
	paidAt := now
	bag.PaymentReviewStatus = enums.PaymentReviewPending
	bag.PaymentMethod = &method
	bag.PaidAt = &paidAt
	bag.PaymentProofURL = &proof
	bag.PaymentNotes = optional(input.Notes)
	bag.RejectionReason = nil
	return nil
}

// Approve confirms a pending manual payment. Admins only.
func (r *Reviewer) Approve(bag *models.Bag, approver uuid.UUID, isAdmin bool, now time.Time) error {
	if !isAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can approve payments")
	}
	if bag.PaymentReviewStatus != enums.PaymentReviewPending {
		return reviewStateError("approve", bag.PaymentReviewStatus)
	}
	if err := r.gate.Check(bag.Method(), bag.ShippingAmount); err != nil {
		return err
	}
	if err := lifecycle.Validate(bag.OperationalStatus, enums.OperationalPaid, bag.Method()); err != nil {
		return err
	}

	validatedAt := now
	validatedBy := approver
	bag.PaymentReviewStatus = enums.PaymentReviewApproved
	bag.ValidatedAt = &validatedAt
	bag.ValidatedBy = &validatedBy
	markPaid(bag)
	return nil
}

// Reject sends a pending claim back to the seller. The proof stays for audit.
func (r *Reviewer) Reject(bag *models.Bag, reason string, approver uuid.UUID, isAdmin bool, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	if !isAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins can reject payments")
	}
	if bag.PaymentReviewStatus != enums.PaymentReviewPending {
		return reviewStateError("reject", bag.PaymentReviewStatus)
	}

	validatedAt := now
	validatedBy := approver
	bag.PaymentReviewStatus = enums.PaymentReviewRejected
	bag.RejectionReason = &reason
	bag.ValidatedAt = &validatedAt
	bag.ValidatedBy = &validatedBy
	if bag.OperationalStatus.IsPrePayment() {
		bag.OperationalStatus = enums.OperationalAwaitingReturn
	}
	return nil
}

// ConfirmGateway marks a bag paid from an automatic payment source.
func (r *Reviewer) ConfirmGateway(bag *models.Bag, method enums.PaymentMethod, paidAt time.Time) error {
	if method.IsManual() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "payment method %q requires manual review", method)
	}
	if !method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", method)
	}
	if bag.Status == enums.BagStatusPaid {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "bag is already paid")
	}
	if bag.Status == enums.BagStatusCancelled {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "bag is cancelled")
	}
	if err := r.gate.Check(bag.Method(), bag.ShippingAmount); err != nil {
		return err
	}
	if err := lifecycle.Validate(bag.OperationalStatus, enums.OperationalPaid, bag.Method()); err != nil {
		return err
	}

	at := paidAt
	bag.PaymentMethod = &method
	bag.PaidAt = &at
	bag.PaymentReviewStatus = enums.PaymentReviewApproved
	markPaid(bag)
	return nil
}

func markPaid(bag *models.Bag) {
	bag.Status = enums.BagStatusPaid
	bag.OperationalStatus = enums.OperationalPaid
	for i := range bag.Items {
		if bag.Items[i].Status == enums.BagItemReserved {
			bag.Items[i].Status = enums.BagItemConfirmed
		}
	}
}

func reviewStateError(action string, current enums.PaymentReviewStatus) error {
	return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot %s payment while review is %s", action, current).
		WithDetails(map[string]any{"payment_review_status": current})
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

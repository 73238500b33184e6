package bags

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/internal/paymentreview"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

const (
	paidSourceGateway    = "gateway_confirm"
	paidSourceReview     = "manual_review"
	paidSourceRevalidate = "gateway_revalidate"
)

// ConfirmPayment marks a bag paid from an automatic source. Manual methods
// must go through SubmitManualPayment and review.
func (s *Service) ConfirmPayment(ctx context.Context, bagID uuid.UUID, method enums.PaymentMethod, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "confirm_payment", bagID, actor, func(_ Repository, bag *models.Bag, now time.Time) (*mutation, error) {
		if err := s.reviewer.ConfirmGateway(bag, method, now); err != nil {
			return nil, err
		}
		return paidMutation(bag, actor, paidSourceGateway), nil
	})
}

// SubmitManualPayment records the seller's proof and queues it for review.
func (s *Service) SubmitManualPayment(ctx context.Context, bagID uuid.UUID, input SubmitPaymentInput, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "submit_manual_payment", bagID, actor, func(_ Repository, bag *models.Bag, now time.Time) (*mutation, error) {
		err := s.reviewer.Submit(bag, paymentreview.SubmitInput{
			Method:   input.Method,
			ProofURL: input.ProofURL,
			Notes:    input.Notes,
		}, now)
		if err != nil {
			return nil, err
		}
		return &mutation{
			updates: map[string]any{
				"payment_review_status": bag.PaymentReviewStatus,
				"payment_method":        bag.PaymentMethod,
				"paid_at":               bag.PaidAt,
				"payment_proof_url":     bag.PaymentProofURL,
				"payment_notes":         bag.PaymentNotes,
				"rejection_reason":      bag.RejectionReason,
			},
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagPaymentSubmitted, bag.ID, actor.ref(), payloads.BagPaymentSubmittedEvent{
					BagID:         bag.ID,
					PaymentMethod: *bag.PaymentMethod,
					ProofURL:      *bag.PaymentProofURL,
				}),
			},
		}, nil
	})
}

// ApprovePayment confirms a pending manual claim and marks the bag paid.
func (s *Service) ApprovePayment(ctx context.Context, bagID uuid.UUID, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "approve_payment", bagID, actor, func(_ Repository, bag *models.Bag, now time.Time) (*mutation, error) {
		if err := s.reviewer.Approve(bag, actor.UserID, actor.IsAdmin, now); err != nil {
			return nil, err
		}
		if bag.PaidAt == nil {
			paidAt := now
			bag.PaidAt = &paidAt
		}

		m := paidMutation(bag, actor, paidSourceReview)
		m.updates["validated_at"] = bag.ValidatedAt
		m.updates["validated_by"] = bag.ValidatedBy
		m.notes = "payment approved"
		m.events = append([]outbox.DomainEvent{
			outbox.BagEvent(enums.EventBagPaymentApproved, bag.ID, actor.ref(), payloads.BagPaymentReviewedEvent{
				BagID:        bag.ID,
				ReviewStatus: bag.PaymentReviewStatus,
				ReviewedBy:   bag.ValidatedBy,
			}),
		}, m.events...)
		return m, nil
	})
}

// RejectPayment sends a pending claim back. A pre-payment bag moves to
// awaiting_return so the seller chases the customer again.
func (s *Service) RejectPayment(ctx context.Context, bagID uuid.UUID, reason string, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "reject_payment", bagID, actor, func(_ Repository, bag *models.Bag, now time.Time) (*mutation, error) {
		if err := s.reviewer.Reject(bag, reason, actor.UserID, actor.IsAdmin, now); err != nil {
			return nil, err
		}
		return &mutation{
			updates: map[string]any{
				"payment_review_status": bag.PaymentReviewStatus,
				"rejection_reason":      bag.RejectionReason,
				"validated_at":          bag.ValidatedAt,
				"validated_by":          bag.ValidatedBy,
				"operational_status":    bag.OperationalStatus,
			},
			notes: "payment rejected: " + *bag.RejectionReason,
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagPaymentRejected, bag.ID, actor.ref(), payloads.BagPaymentReviewedEvent{
					BagID:        bag.ID,
					ReviewStatus: bag.PaymentReviewStatus,
					Reason:       *bag.RejectionReason,
					ReviewedBy:   bag.ValidatedBy,
				}),
			},
		}, nil
	})
}

// RevalidatePayment asks the gateway about paymentID and marks the bag paid
// when it is approved for this bag. The lookup happens outside the
// transaction; the write is still conditional on the statuses read before it.
func (s *Service) RevalidatePayment(ctx context.Context, bagID uuid.UUID, paymentID string, actor Actor) (result paymentreview.RevalidateResult, err error) {
	ctx = s.logg.WithBagID(ctx, bagID.String())
	var (
		bag  *models.Bag
		from enums.OperationalStatus
	)
	defer func() {
		s.finish(ctx, "revalidate_payment", from, bag, err)
	}()

	bag, err = loadBag(ctx, s.repo, bagID)
	if err != nil {
		return paymentreview.RevalidateResult{}, err
	}
	guard := guardOf(bag)
	from = guard.OperationalStatus

	result, err = s.reviewer.Revalidate(ctx, s.gateway, bag, paymentID, s.now().UTC())
	if err != nil {
		return paymentreview.RevalidateResult{}, err
	}
	if result.Outcome != paymentreview.OutcomeApproved {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_id":     result.PaymentID,
			"outcome":        result.Outcome,
			"gateway_status": result.GatewayStatus,
		}), "bags.payment_revalidated")
		return result, nil
	}

	if err = s.write(ctx, bag, guard, actor, paidMutation(bag, actor, paidSourceRevalidate)); err != nil {
		return paymentreview.RevalidateResult{}, err
	}
	return result, nil
}

// paidMutation is the shared write of every path that lands in paid.
func paidMutation(bag *models.Bag, actor Actor, source string) *mutation {
	event := payloads.BagPaidEvent{
		BagID:  bag.ID,
		Total:  bag.Total,
		Source: source,
	}
	if bag.PaymentMethod != nil {
		event.PaymentMethod = *bag.PaymentMethod
	}
	if bag.PaidAt != nil {
		event.PaidAt = *bag.PaidAt
	}
	return &mutation{
		updates: map[string]any{
			"status":                bag.Status,
			"operational_status":    bag.OperationalStatus,
			"payment_method":        bag.PaymentMethod,
			"paid_at":               bag.PaidAt,
			"payment_review_status": bag.PaymentReviewStatus,
		},
		confirmItems: true,
		notes:        "paid via " + source,
		events: []outbox.DomainEvent{
			outbox.BagEvent(enums.EventBagPaid, bag.ID, actor.ref(), event),
		},
	}
}

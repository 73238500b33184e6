package bags

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/internal/lifecycle"
	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

// Non-admins may not walk an approved bag back into these.
var approvedRevertLocked = map[enums.OperationalStatus]bool{
	enums.OperationalPaid:            true,
	enums.OperationalPrepareShipment: true,
	enums.OperationalLabelGenerated:  true,
}

// AdvanceStatus moves the bag one step along its delivery pipeline.
func (s *Service) AdvanceStatus(ctx context.Context, bagID uuid.UUID, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "advance_status", bagID, actor, func(_ Repository, bag *models.Bag, _ time.Time) (*mutation, error) {
		if bag.PaymentReviewStatus == enums.PaymentReviewPending {
			return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "payment is pending review").
				WithDetails(map[string]any{"payment_review_status": bag.PaymentReviewStatus})
		}

		current := bag.OperationalStatus
		next, ok := lifecycle.NextState(current, bag.Method())
		if !ok {
			return nil, noNextState(bag)
		}
		switch next {
		case enums.OperationalDelivered:
			if bag.Method() == enums.DeliveryCarrier && !shipping.IsValidTrackingCode(bag.Tracking()) {
				return nil, pkgerrors.Newf(pkgerrors.CodePreconditionFailed,
					"tracking code %q is not valid; expected %s", bag.Tracking(), shipping.TrackingFormats).
					WithDetails(map[string]any{
						"reason":         "invalid_tracking_code",
						"tracking_code":  bag.Tracking(),
						"accepted_forms": shipping.TrackingFormats,
					})
			}
		case enums.OperationalPosted:
			if !bag.HasLabel() {
				return nil, pkgerrors.New(pkgerrors.CodePreconditionFailed, "a label is required before posting").
					WithDetails(map[string]any{"reason": "label_required"})
			}
		}

		bag.OperationalStatus = next
		return &mutation{
			updates: map[string]any{"operational_status": next},
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagStatusAdvanced, bag.ID, actor.ref(), payloads.BagStatusChangedEvent{
					BagID: bag.ID,
					From:  current,
					To:    next,
				}),
			},
		}, nil
	})
}

// RevertStatus steps the bag back to one of its previous states.
func (s *Service) RevertStatus(ctx context.Context, bagID uuid.UUID, input RevertInput, actor Actor) (*models.Bag, error) {
	reason := strings.TrimSpace(input.Reason)
	if !input.Target.IsValid() {
		err := pkgerrors.Newf(pkgerrors.CodeValidation, "invalid target status %q", input.Target)
		s.observe("revert_status", err)
		return nil, err
	}

	return s.mutate(ctx, "revert_status", bagID, actor, func(_ Repository, bag *models.Bag, _ time.Time) (*mutation, error) {
		current := bag.OperationalStatus
		target := input.Target
		if !lifecycle.CanRevert(current, target, bag.Method()) {
			return nil, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot revert %s to %s", current, target).
				WithDetails(map[string]any{
					"reason":         "invalid_revert",
					"current_status": current,
					"target_status":  target,
					"allowed":        lifecycle.PreviousStates(current, bag.Method()),
				})
		}
		if !actor.IsAdmin && bag.PaymentReviewStatus == enums.PaymentReviewApproved && approvedRevertLocked[target] {
			return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "only admins can revert an approved payment back to %s", target)
		}
		if actor.IsAdmin && reason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "revert reason is required")
		}
		if current == enums.OperationalPaid && target.IsPrePayment() && reason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a reason is required to revert a paid bag")
		}

		bag.OperationalStatus = target
		updates := map[string]any{"operational_status": target}
		if target.IsPrePayment() {
			bag.Status = enums.BagStatusAwaitingPayment
			updates["status"] = bag.Status
		}

		notes := "revert"
		if reason != "" {
			notes = "revert: " + reason
		}
		return &mutation{
			updates: updates,
			notes:   notes,
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagStatusReverted, bag.ID, actor.ref(), payloads.BagStatusChangedEvent{
					BagID:  bag.ID,
					From:   current,
					To:     target,
					Reason: reason,
				}),
			},
		}, nil
	})
}

func noNextState(bag *models.Bag) error {
	current := bag.OperationalStatus
	method := bag.Method()

	reason, message := "no_single_next_state", "no single next state from "+string(current)
	switch {
	case current.IsPrePayment():
		reason, message = "payment_required", "confirm or approve the payment to move a bag into paid"
	case current.IsTerminal():
		reason, message = "terminal", "bag is already "+string(current)
	case method == "":
		reason, message = "delivery_method_missing", "confirm the delivery method first"
	case method == enums.DeliveryCarrier && isLabelStage(current):
		reason, message = "label_required", "carrier bags leave "+string(current)+" by generating a label"
	}

	methodLabel := string(method)
	if methodLabel == "" {
		methodLabel = "unset"
	}
	return pkgerrors.New(pkgerrors.CodePreconditionFailed, message).
		WithDetails(map[string]any{
			"reason":          reason,
			"current_status":  current,
			"delivery_method": methodLabel,
		})
}

func isLabelStage(status enums.OperationalStatus) bool {
	switch status {
	case enums.OperationalPrepareShipment, enums.OperationalMissingData, enums.OperationalAwaitingShippingPayment:
		return true
	}
	return false
}

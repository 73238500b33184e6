package charges

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

// ChargeInterval is how long an unpaid bag may go without a reminder.
const ChargeInterval = 24 * time.Hour

const (
	paidStallThreshold      = 12 * time.Hour
	labelStallThreshold     = 24 * time.Hour
	inTransitStallThreshold = 8 * time.Hour
)

const (
	ReasonNeverCharged = "never charged +24h"
	ReasonChargeAgain  = "charge again +24h"
	ReasonNoReply      = "no reply +24h"
	ReasonPaidStalled  = "paid +12h without progress"
	ReasonLabelStalled = "label +24h not posted"
	ReasonEnRoute      = "en route +8h"
)

// Urgency flags a bag that needs operator attention.
type Urgency struct {
	IsUrgent     bool   `json:"is_urgent"`
	Reason       string `json:"reason,omitempty"`
	HoursOverdue int    `json:"hours_overdue"`
}

// NeedsCharge reports whether an unpaid bag is due for a payment reminder.
func NeedsCharge(bag *models.Bag, now time.Time) bool {
	if bag == nil || !isUnpaid(bag) {
		return false
	}
	if bag.LastChargeAt == nil {
		return now.Sub(bag.CreatedAt) > ChargeInterval
	}
	return now.Sub(*bag.LastChargeAt) > ChargeInterval
}

// Assess returns the first matching urgency rule for the bag's operational status.
func Assess(bag *models.Bag, now time.Time) Urgency {
	if bag == nil {
		return Urgency{}
	}

	switch bag.OperationalStatus {
	case enums.OperationalAwaitingPayment:
		if bag.LastChargeAt == nil {
			if since := now.Sub(bag.CreatedAt); since > ChargeInterval {
				return urgent(ReasonNeverCharged, since-ChargeInterval)
			}
			return Urgency{}
		}
		if since := now.Sub(*bag.LastChargeAt); since > ChargeInterval {
			return urgent(ReasonChargeAgain, since-ChargeInterval)
		}
	case enums.OperationalAwaitingReturn:
		if bag.LastChargeAt != nil {
			if since := now.Sub(*bag.LastChargeAt); since > ChargeInterval {
				return urgent(ReasonNoReply, since-ChargeInterval)
			}
		}
	case enums.OperationalPaid:
		if since := sincePaid(bag, now); since > paidStallThreshold {
			return urgent(ReasonPaidStalled, since-paidStallThreshold)
		}
	case enums.OperationalLabelGenerated:
		since := sincePaid(bag, now)
		if bag.LabelPrintedAt != nil {
			since = now.Sub(*bag.LabelPrintedAt)
		}
		if since > labelStallThreshold {
			return urgent(ReasonLabelStalled, since-labelStallThreshold)
		}
	case enums.OperationalInTransit:
		if since := sincePaid(bag, now); since > inTransitStallThreshold {
			return urgent(ReasonEnRoute, since-inTransitStallThreshold)
		}
	}
	return Urgency{}
}

// ChargePlan is the set of writes for one recorded reminder.
type ChargePlan struct {
	Log            models.BagChargeLog
	PreviousStatus enums.OperationalStatus
	NextStatus     enums.OperationalStatus
	Attempts       int
	ChargedAt      time.Time
	Channel        enums.ChargeChannel
}

func (p ChargePlan) StatusChanged() bool {
	return p.PreviousStatus != p.NextStatus
}

// Apply copies the planned dunning fields onto the bag.
func (p ChargePlan) Apply(bag *models.Bag) {
	chargedAt := p.ChargedAt
	channel := p.Channel
	bag.LastChargeAt = &chargedAt
	bag.ChargeAttempts = p.Attempts
	bag.ChargeChannel = &channel
	bag.OperationalStatus = p.NextStatus
}

// Plan builds the charge log and bag updates for a reminder sent on channel.
func Plan(bag *models.Bag, channel enums.ChargeChannel, actor *uuid.UUID, moveToAwaitingReturn bool, now time.Time) (ChargePlan, error) {
	if bag == nil {
		return ChargePlan{}, pkgerrors.New(pkgerrors.CodeNotFound, "bag not found")
	}
	if !channel.IsValid() {
		return ChargePlan{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid charge channel %q", channel)
	}
	if bag.Status == enums.BagStatusPaid || bag.Status == enums.BagStatusCancelled {
		return ChargePlan{}, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot charge a %s bag", bag.Status).
			WithDetails(map[string]any{"status": bag.Status})
	}
	if !bag.OperationalStatus.IsPrePayment() {
		return ChargePlan{}, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot charge a bag in %s", bag.OperationalStatus).
			WithDetails(map[string]any{"operational_status": bag.OperationalStatus})
	}

	next := bag.OperationalStatus
	if moveToAwaitingReturn && next == enums.OperationalAwaitingPayment {
		next = enums.OperationalAwaitingReturn
	}

	return ChargePlan{
		Log: models.BagChargeLog{
			ID:        uuid.New(),
			BagID:     bag.ID,
			Channel:   channel,
			ChargedBy: actor,
			CreatedAt: now,
		},
		PreviousStatus: bag.OperationalStatus,
		NextStatus:     next,
		Attempts:       bag.ChargeAttempts + 1,
		ChargedAt:      now,
		Channel:        channel,
	}, nil
}

func isUnpaid(bag *models.Bag) bool {
	return bag.Status.IsUnpaid() && bag.OperationalStatus.IsPrePayment()
}

func sincePaid(bag *models.Bag, now time.Time) time.Duration {
	if bag.PaidAt == nil {
		return 0
	}
	return now.Sub(*bag.PaidAt)
}

func urgent(reason string, overdue time.Duration) Urgency {
	return Urgency{IsUrgent: true, Reason: reason, HoursOverdue: int(math.Floor(overdue.Hours()))}
}

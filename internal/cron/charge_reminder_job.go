package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
)

const defaultReminderBatch = 200

type chargeDueSource interface {
	ChargeDue(ctx context.Context, now time.Time, limit int) ([]models.Bag, error)
	EmitChargeDue(ctx context.Context, bag models.Bag) error
}

type chargeDueClaimer interface {
	ClaimChargeDue(ctx context.Context, bagID uuid.UUID, windowStart time.Time) (bool, error)
	ReleaseChargeDue(ctx context.Context, bagID uuid.UUID, windowStart time.Time) error
}

type ChargeReminderJobParams struct {
	Logger *logger.Logger
	Bags   chargeDueSource
	Claims chargeDueClaimer
	Batch  int
}

// ChargeReminderJob emits bag_charge_due for unpaid bags nobody has charged
// within the interval. Each bag is announced once per charge window: the claim
// is keyed by the last charge, so recording a new charge opens a new window.
type ChargeReminderJob struct {
	logg   *logger.Logger
	bags   chargeDueSource
	claims chargeDueClaimer
	batch  int
	now    func() time.Time
}

func NewChargeReminderJob(params ChargeReminderJobParams) (*ChargeReminderJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bags == nil {
		return nil, fmt.Errorf("bag source required")
	}
	if params.Claims == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultReminderBatch
	}
	return &ChargeReminderJob{
		logg:   params.Logger,
		bags:   params.Bags,
		claims: params.Claims,
		batch:  batch,
		now:    time.Now,
	}, nil
}

func (j *ChargeReminderJob) Name() string { return "charge-reminder" }

func (j *ChargeReminderJob) Run(ctx context.Context) (int, error) {
	due, err := j.bags.ChargeDue(ctx, j.now(), j.batch)
	if err != nil {
		return 0, fmt.Errorf("list charge due: %w", err)
	}

	var (
		emitted int
		skipped int
		errs    error
	)
	for _, bag := range due {
		window := windowStart(bag)
		claimed, err := j.claims.ClaimChargeDue(ctx, bag.ID, window)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("claim %s: %w", bag.ID, err))
			continue
		}
		if !claimed {
			skipped++
			continue
		}
		if err := j.bags.EmitChargeDue(ctx, bag); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("emit %s: %w", bag.ID, err))
			if relErr := j.claims.ReleaseChargeDue(ctx, bag.ID, window); relErr != nil {
				j.logg.Error(j.logg.WithBagID(ctx, bag.ID.String()), "cron.charge_due_release_failed", relErr)
			}
			continue
		}
		emitted++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":     len(due),
		"emitted": emitted,
		"skipped": skipped,
	}), "cron.charge_reminder")
	return emitted, errs
}

// windowStart is the last charge, or creation for a bag never charged.
func windowStart(bag models.Bag) time.Time {
	if bag.LastChargeAt != nil {
		return *bag.LastChargeAt
	}
	return bag.CreatedAt
}

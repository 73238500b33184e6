package bags

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/internal/charges"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

// ChargeDue lists unpaid bags nobody has reminded within the charge interval.
func (s *Service) ChargeDue(ctx context.Context, now time.Time, limit int) ([]models.Bag, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListChargeDue(ctx, now.UTC().Add(-charges.ChargeInterval), limit)
	if err != nil {
		return nil, dbError(err, "list charge due")
	}
	return rows, nil
}

// EmitChargeDue queues a bag_charge_due event. It never touches the bag row.
func (s *Service) EmitChargeDue(ctx context.Context, bag models.Bag) error {
	event := outbox.BagEvent(enums.EventBagChargeDue, bag.ID, nil, payloads.BagChargeDueEvent{
		BagID:          bag.ID,
		LiveEventID:    bag.LiveEventID,
		BagNumber:      bag.BagNumber,
		Status:         bag.OperationalStatus,
		ChargeAttempts: bag.ChargeAttempts,
		LastChargeAt:   bag.LastChargeAt,
		HandlerID:      bag.HandlerID,
	})
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit charge due")
	}
	return nil
}

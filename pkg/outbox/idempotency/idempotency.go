package idempotency

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/redis"
)

const chargeDueScope = "charge_due"

// Manager claims one-shot keys with Redis SETNX and a TTL.
// Charge reminders use `lb:idempotency:charge_due:<bag_id>:<window_unix>`, so a
// bag gets one bag_charge_due per charge window no matter how many cron
// cycles see it overdue.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// ClaimChargeDue reports whether the caller is the first to see the bag overdue
// in the window starting at windowStart (last charge, or creation when never
// charged).
func (m *Manager) ClaimChargeDue(ctx context.Context, bagID uuid.UUID, windowStart time.Time) (bool, error) {
	key, err := m.chargeDueKey(bagID, windowStart)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, "1", m.ttl)
}

// ReleaseChargeDue drops a claim whose event could not be written.
func (m *Manager) ReleaseChargeDue(ctx context.Context, bagID uuid.UUID, windowStart time.Time) error {
	key, err := m.chargeDueKey(bagID, windowStart)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) chargeDueKey(bagID uuid.UUID, windowStart time.Time) (string, error) {
	if bagID == uuid.Nil {
		return "", errors.New("bag id is required")
	}
	if windowStart.IsZero() {
		return "", errors.New("charge window start is required")
	}
	window := strconv.FormatInt(windowStart.UTC().Unix(), 10)
	return m.store.IdempotencyKey(chargeDueScope+":"+bagID.String(), window), nil
}

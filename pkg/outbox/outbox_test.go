package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
)

const outboxEventsDDL = `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME NOT NULL,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`

const outboxDLQDDL = `
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL,
  created_at DATETIME NOT NULL
)`

func newOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(outboxEventsDDL).Error)
	require.NoError(t, db.Exec(outboxDLQDDL).Error)
	return db
}

type bagPayload struct {
	BagID uuid.UUID `json:"bag_id"`
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	bagID := uuid.New()
	actor := &ActorRef{UserID: uuid.New(), Role: "admin"}
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, BagEvent(enums.EventBagPaid, bagID, actor, bagPayload{BagID: bagID}))
	})
	require.NoError(t, err)

	rows, err := repo.ListForAggregate(context.Background(), bagID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventBagPaid, rows[0].EventType)
	assert.Equal(t, enums.AggregateBag, rows[0].AggregateType)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, rows[0].ID.String(), env.EventID)
	assert.Equal(t, actor.UserID, env.Actor.UserID)
	assert.JSONEq(t, fmt.Sprintf(`{"bag_id":%q}`, bagID), string(env.Data))
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	bagID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, BagEvent(enums.EventBagStatusAdvanced, bagID, nil, bagPayload{BagID: bagID})); err != nil {
			return err
		}
		return errors.New("conditional update lost")
	})
	require.Error(t, err)

	rows, err := repo.ListForAggregate(context.Background(), bagID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	assert.Error(t, svc.Emit(context.Background(), nil, BagEvent(enums.EventBagPaid, uuid.New(), nil, nil)))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	bagID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, BagEvent(enums.EventBagChargeRecorded, bagID, nil, bagPayload{BagID: bagID}))
		}))
	}

	var first, second, third models.OutboxEvent
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		first, second, third = rows[0], rows[1], rows[2]

		require.NoError(t, repo.MarkPublishedTx(tx, first.ID))
		require.NoError(t, repo.MarkFailedTx(tx, second.ID, errors.New("pubsub unavailable")))
		return repo.MarkTerminalTx(tx, third.ID, errors.New("bad payload"), 3)
	}))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)
		assert.Equal(t, 1, rows[0].AttemptCount)
		require.NotNil(t, rows[0].LastError)
		assert.Equal(t, "pubsub unavailable", *rows[0].LastError)
		return nil
	}))

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestDLQInsertIsIdempotentPerEvent(t *testing.T) {
	db := newOutboxDB(t)
	dlq := NewDLQRepository(db)
	eventID := uuid.New()
	long := strings.Repeat("x", maxDLQErrorLen+50)

	entry := models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventBagPaid,
		AggregateType: enums.AggregateBag,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &long,
		FailedAt:      time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return dlq.InsertTx(tx, entry) }))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return dlq.InsertTx(tx, entry) }))

	found, err := dlq.Get(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)

	rows, err := dlq.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	missing, err := dlq.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDLQListFiltersByReasonAndBag(t *testing.T) {
	db := newOutboxDB(t)
	dlq := NewDLQRepository(db)
	bagA, bagB := uuid.New(), uuid.New()
	now := time.Now().UTC()

	for i, row := range []struct {
		bag    uuid.UUID
		reason enums.OutboxDLQErrorReason
	}{
		{bagA, enums.OutboxDLQReasonMaxAttempts},
		{bagA, enums.OutboxDLQReasonNonRetryable},
		{bagB, enums.OutboxDLQReasonMaxAttempts},
	} {
		entry := models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventBagChargeRecorded,
			AggregateType: enums.AggregateBag,
			AggregateID:   row.bag,
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   row.reason,
			FailedAt:      now.Add(time.Duration(i) * time.Minute),
			CreatedAt:     now,
		}
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error { return dlq.InsertTx(tx, entry) }))
	}

	rows, err := dlq.List(context.Background(), DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, bagB, rows[0].AggregateID, "newest first")

	rows, err = dlq.List(context.Background(), DLQFilter{BagID: bagA})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = dlq.List(context.Background(), DLQFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQRequeueResetsOutboxRow(t *testing.T) {
	db := newOutboxDB(t)
	repo := NewRepository(db)
	dlq := NewDLQRepository(db)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBagLabelGenerated,
		AggregateType: enums.AggregateBag,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Insert(tx, event); err != nil {
			return err
		}
		if err := repo.MarkTerminalTx(tx, event.ID, errors.New("bad payload"), 5); err != nil {
			return err
		}
		msg := "bad payload"
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
			FailedAt:      time.Now().UTC(),
			CreatedAt:     time.Now().UTC(),
		})
	}))

	require.NoError(t, dlq.Requeue(context.Background(), event.ID))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 5)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Zero(t, rows[0].AttemptCount)
		assert.Nil(t, rows[0].LastError)
		return nil
	}))
	gone, err := dlq.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, dlq.Requeue(context.Background(), event.ID), ErrNotDeadLettered)
}

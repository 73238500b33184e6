package bags

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

// GenerateLabel buys the carrier label. A wallet shortfall is a result with
// Wait set, not an error.
func (s *Service) GenerateLabel(ctx context.Context, bagID uuid.UUID, actor Actor) (shipping.LabelResult, error) {
	if s.labels == nil {
		err := pkgerrors.New(pkgerrors.CodeDependency, "shipping labels not configured")
		s.observe("generate_label", err)
		return shipping.LabelResult{}, err
	}
	result, err := s.labels.GenerateLabel(ctx, bagID, actor.id())
	s.observe("generate_label", err)
	return result, err
}

// SyncTracking re-reads the tracking code of a bag whose label is bought.
func (s *Service) SyncTracking(ctx context.Context, bagID uuid.UUID) (shipping.TrackingSyncResult, error) {
	if s.labels == nil {
		err := pkgerrors.New(pkgerrors.CodeDependency, "shipping labels not configured")
		s.observe("sync_tracking", err)
		return shipping.TrackingSyncResult{}, err
	}
	result, err := s.labels.SyncTracking(ctx, bagID)
	s.observe("sync_tracking", err)
	return result, err
}

// labelStore persists each step of the label flow through the same
// conditional write path as every other bag operation. Its writes are pinned
// on shipment_id rather than version: the first cart saved wins, and once a
// label is paid for it is recorded even if the bag was touched meanwhile.
type labelStore struct {
	svc *Service
}

var _ shipping.Store = (*labelStore)(nil)

func (l *labelStore) GetBag(ctx context.Context, bagID uuid.UUID) (*models.Bag, error) {
	return loadBag(ctx, l.svc.repo, bagID)
}

func (l *labelStore) MarkStatus(ctx context.Context, bag *models.Bag, to enums.OperationalStatus, actorID *uuid.UUID, notes string) error {
	guard := shipmentGuard(bag, bag.ShipmentRef())
	actor := actorFromID(actorID)

	var event outbox.DomainEvent
	if to == enums.OperationalAwaitingShippingPayment {
		event = outbox.BagEvent(enums.EventBagShippingPaymentRequired, bag.ID, actor.ref(), payloads.BagShippingPaymentRequiredEvent{
			BagID:      bag.ID,
			ShipmentID: bag.ShipmentRef(),
			WalletURL:  l.svc.walletURL,
		})
	} else {
		event = outbox.BagEvent(enums.EventBagStatusAdvanced, bag.ID, actor.ref(), payloads.BagStatusChangedEvent{
			BagID:  bag.ID,
			From:   guard.OperationalStatus,
			To:     to,
			Reason: notes,
		})
	}

	bag.OperationalStatus = to
	err := l.svc.write(ctx, bag, guard, actor, &mutation{
		updates: map[string]any{"operational_status": to},
		notes:   notes,
		events:  []outbox.DomainEvent{event},
	})
	if err != nil {
		bag.OperationalStatus = guard.OperationalStatus
		return err
	}
	l.svc.metrics.ObserveTransition(string(to))
	return nil
}

// SaveShipmentID records a new cart only while the bag has none. A caller that
// loses the race gets Conflict before it reaches checkout.
func (l *labelStore) SaveShipmentID(ctx context.Context, bag *models.Bag, shipmentID string) error {
	guard := shipmentGuard(bag, "")
	id := shipmentID
	bag.ShipmentID = &id
	err := l.svc.write(ctx, bag, guard, Actor{}, &mutation{
		updates: map[string]any{"shipment_id": bag.ShipmentID},
	})
	if err != nil {
		bag.ShipmentID = nil
		if isConflict(err) {
			l.svc.logg.Warn(l.svc.logg.WithField(ctx, "shipment_id", shipmentID), "bags.cart_discarded")
		}
	}
	return err
}

func (l *labelStore) SaveLabel(ctx context.Context, bag *models.Bag, update shipping.LabelUpdate, actorID *uuid.UUID) error {
	guard := shipmentGuard(bag, update.ShipmentID)
	actor := actorFromID(actorID)

	shipmentID, labelURL, printedAt := update.ShipmentID, update.LabelURL, update.PrintedAt
	bag.ShipmentID = &shipmentID
	bag.LabelURL = &labelURL
	bag.TrackingCode = optional(update.TrackingCode)
	bag.LabelPrintedAt = &printedAt
	bag.OperationalStatus = enums.OperationalLabelGenerated

	err := l.svc.write(ctx, bag, guard, actor, &mutation{
		updates: map[string]any{
			"shipment_id":        bag.ShipmentID,
			"label_url":          bag.LabelURL,
			"tracking_code":      bag.TrackingCode,
			"label_printed_at":   bag.LabelPrintedAt,
			"operational_status": bag.OperationalStatus,
		},
		notes: "label generated",
		events: []outbox.DomainEvent{
			outbox.BagEvent(enums.EventBagLabelGenerated, bag.ID, actor.ref(), payloads.BagLabelGeneratedEvent{
				BagID:        bag.ID,
				ShipmentID:   shipmentID,
				LabelURL:     labelURL,
				TrackingCode: update.TrackingCode,
			}),
		},
	})
	if err != nil {
		return err
	}
	if guard.OperationalStatus != bag.OperationalStatus {
		l.svc.metrics.ObserveTransition(string(bag.OperationalStatus))
	}
	return nil
}

func (l *labelStore) SaveTracking(ctx context.Context, bag *models.Bag, trackingCode string) error {
	guard := shipmentGuard(bag, bag.ShipmentRef())
	code := trackingCode
	bag.TrackingCode = &code
	return l.svc.write(ctx, bag, guard, Actor{}, &mutation{
		updates: map[string]any{"tracking_code": bag.TrackingCode},
		events: []outbox.DomainEvent{
			outbox.BagEvent(enums.EventBagTrackingSynced, bag.ID, nil, payloads.BagTrackingSyncedEvent{
				BagID:        bag.ID,
				ShipmentID:   bag.ShipmentRef(),
				TrackingCode: code,
			}),
		},
	})
}

func (l *labelStore) MirrorLinkedOrder(ctx context.Context, bag *models.Bag) error {
	if bag.LinkedOrderID == nil {
		return nil
	}
	return l.svc.repo.MirrorLinkedOrder(ctx, *bag.LinkedOrderID, bag)
}

func isConflict(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodeConflict
}

func actorFromID(id *uuid.UUID) Actor {
	if id == nil {
		return Actor{}
	}
	return Actor{UserID: *id}
}

package bags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/internal/charges"
	"github.com/angelmondragon/livebag-backend/internal/delivery"
	"github.com/angelmondragon/livebag-backend/internal/paymentreview"
	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/metrics"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/outbox/payloads"
)

type quoter interface {
	Quote(ctx context.Context, req delivery.QuoteRequest) ([]delivery.Quote, error)
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Gate       delivery.Gate
	Gateway    paymentreview.Gateway
	Quotes     quoter
	Carrier    shipping.Carrier
	Labels     shipping.LabelConfig
	Metrics    *metrics.FulfillmentMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

// Service orchestrates every bag mutation. Each one reads the bag, applies the
// domain rules and writes back under the version it read, together with the
// history row and outbox event, in a single transaction.
type Service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	gate      delivery.Gate
	reviewer  *paymentreview.Reviewer
	gateway   paymentreview.Gateway
	quotes    quoter
	labels    *shipping.Service
	walletURL string
	metrics   *metrics.FulfillmentMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		repo:      params.Repository,
		tx:        params.Tx,
		outbox:    params.Outbox,
		gate:      params.Gate,
		reviewer:  paymentreview.NewReviewer(params.Gate),
		gateway:   params.Gateway,
		quotes:    params.Quotes,
		walletURL: params.Labels.WalletURL,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}

	if params.Carrier != nil {
		labels, err := shipping.NewService(shipping.ServiceParams{
			Carrier: params.Carrier,
			Store:   &labelStore{svc: s},
			Config:  params.Labels,
			Logger:  params.Logger,
			Metrics: params.Metrics,
			Now:     now,
		})
		if err != nil {
			return nil, err
		}
		s.labels = labels
	}
	return s, nil
}

// mutation is the write set one operation produces for a bag.
type mutation struct {
	updates      map[string]any
	confirmItems bool
	charge       *models.BagChargeLog
	notes        string
	events       []outbox.DomainEvent
}

type mutateFunc func(repo Repository, bag *models.Bag, now time.Time) (*mutation, error)

// mutate runs fn against a freshly read bag and persists what it returns.
// A nil mutation is a no-op.
func (s *Service) mutate(ctx context.Context, operation string, bagID uuid.UUID, actor Actor, fn mutateFunc) (*models.Bag, error) {
	ctx = s.logg.WithBagID(ctx, bagID.String())
	var (
		out  *models.Bag
		from enums.OperationalStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		bag, err := loadBag(ctx, repo, bagID)
		if err != nil {
			return err
		}
		guard := guardOf(bag)
		from = guard.OperationalStatus

		m, err := fn(repo, bag, s.now().UTC())
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, repo, bag, guard, actor, m); err != nil {
			return err
		}
		out = bag
		return nil
	})
	s.finish(ctx, operation, from, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// write persists a mutation computed outside mutate, for flows that make an
// external call between the read and the write.
func (s *Service) write(ctx context.Context, bag *models.Bag, guard Guard, actor Actor, m *mutation) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.persist(ctx, tx, s.repo.WithTx(tx), bag, guard, actor, m)
	})
}

func (s *Service) persist(ctx context.Context, tx *gorm.DB, repo Repository, bag *models.Bag, guard Guard, actor Actor, m *mutation) error {
	if m == nil {
		return nil
	}
	now := s.now().UTC()
	if len(m.updates) > 0 {
		m.updates["updated_at"] = now
		if err := repo.UpdateBag(ctx, bag.ID, guard, m.updates); err != nil {
			return dbError(err, "update bag")
		}
		bag.UpdatedAt = now
		bag.Version++
	}
	if m.confirmItems {
		if err := repo.ConfirmReservedItems(ctx, bag.ID); err != nil {
			return dbError(err, "confirm bag items")
		}
	}
	if m.charge != nil {
		if err := repo.InsertChargeLog(ctx, m.charge); err != nil {
			return dbError(err, "insert charge log")
		}
	}
	if guard.OperationalStatus != bag.OperationalStatus {
		entry := &models.BagStatusHistory{
			ID:            uuid.New(),
			BagID:         bag.ID,
			OldStatus:     guard.OperationalStatus,
			NewStatus:     bag.OperationalStatus,
			PaymentMethod: bag.PaymentMethod,
			Notes:         optional(m.notes),
			ChangedBy:     actor.id(),
			CreatedAt:     now,
		}
		if err := repo.InsertHistory(ctx, entry); err != nil {
			return dbError(err, "insert status history")
		}
	}
	for _, event := range m.events {
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit outbox event")
		}
	}
	return nil
}

func (s *Service) finish(ctx context.Context, operation string, from enums.OperationalStatus, bag *models.Bag, err error) {
	s.observe(operation, err)
	if err != nil {
		if typed := pkgerrors.As(err); typed == nil || pkgerrors.MetadataFor(typed.Code()).HTTPStatus >= 500 {
			s.logg.Error(ctx, "bags."+operation+"_failed", err)
		}
		return
	}
	if bag != nil && from != "" && bag.OperationalStatus != from {
		s.metrics.ObserveTransition(string(bag.OperationalStatus))
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"from": from,
			"to":   bag.OperationalStatus,
		}), "bags.status_changed")
	}
}

func (s *Service) observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			result = string(typed.Code())
		}
	}
	s.metrics.ObserveOperation(operation, result)
}

// AssignHandler sets or clears the seller working a bag.
func (s *Service) AssignHandler(ctx context.Context, bagID uuid.UUID, handlerID *uuid.UUID, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "assign_handler", bagID, actor, func(repo Repository, bag *models.Bag, _ time.Time) (*mutation, error) {
		if bag.OperationalStatus.IsTerminal() || bag.Status == enums.BagStatusCancelled {
			return nil, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot assign a handler to a %s bag", finishedLabel(bag)).
				WithDetails(map[string]any{"operational_status": bag.OperationalStatus, "status": bag.Status})
		}
		if handlerID != nil {
			seller, err := repo.FindSeller(ctx, *handlerID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeValidation, "handler not found")
				}
				return nil, dbError(err, "load handler")
			}
			if !seller.Active {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "handler is inactive")
			}
		}

		bag.HandlerID = handlerID
		return &mutation{
			updates: map[string]any{"handler_id": handlerID},
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagHandlerAssigned, bag.ID, actor.ref(), payloads.BagHandlerAssignedEvent{
					BagID:     bag.ID,
					HandlerID: handlerID,
				}),
			},
		}, nil
	})
}

// ConfirmDelivery locks method, shipping amount and, optionally, the address
// snapshot. The snapshot is then copied onto the customer record best effort.
func (s *Service) ConfirmDelivery(ctx context.Context, bagID uuid.UUID, input ConfirmDeliveryInput, actor Actor) (*models.Bag, error) {
	if !input.Method.IsValid() {
		err := pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery method %q", input.Method)
		s.observe("confirm_delivery", err)
		return nil, err
	}
	if input.Shipping.IsNegative() {
		err := pkgerrors.New(pkgerrors.CodeValidation, "shipping amount cannot be negative")
		s.observe("confirm_delivery", err)
		return nil, err
	}

	bag, err := s.mutate(ctx, "confirm_delivery", bagID, actor, func(_ Repository, bag *models.Bag, _ time.Time) (*mutation, error) {
		if bag.Status == enums.BagStatusPaid || bag.Status == enums.BagStatusCancelled {
			return nil, pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "delivery terms are locked once the bag is %s", bag.Status).
				WithDetails(map[string]any{"status": bag.Status})
		}
		shippingAmount := input.Shipping.Round(2)
		if err := s.gate.Check(input.Method, shippingAmount); err != nil {
			return nil, err
		}

		method := input.Method
		bag.DeliveryMethod = &method
		bag.ShippingAmount = shippingAmount
		bag.ShippingServiceName = optional(input.ServiceName)
		bag.RecomputeTotal()

		updates := map[string]any{
			"delivery_method":       method,
			"shipping_amount":       bag.ShippingAmount,
			"total":                 bag.Total,
			"shipping_service_name": bag.ShippingServiceName,
		}
		if input.Address != nil {
			addr := input.Address.Normalized()
			bag.ShippingAddress = &addr
			updates["shipping_address"] = bag.ShippingAddress
		}

		return &mutation{
			updates: updates,
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagDeliveryConfirmed, bag.ID, actor.ref(), payloads.BagDeliveryConfirmedEvent{
					BagID:          bag.ID,
					DeliveryMethod: method,
					ShippingAmount: bag.ShippingAmount,
					Total:          bag.Total,
					ServiceName:    input.ServiceName,
				}),
			},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if input.Address != nil {
		s.syncCustomerAddress(ctx, bag)
	}
	return bag, nil
}

func (s *Service) syncCustomerAddress(ctx context.Context, bag *models.Bag) {
	if err := s.repo.UpdateCustomerAddress(ctx, bag.CustomerID, bag.ShippingAddress); err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"bag_id":      bag.ID.String(),
			"customer_id": bag.CustomerID.String(),
		})
		s.logg.Error(ctx, "bags.customer_address_sync_failed", err)
	}
}

// RecordCharge logs a payment reminder and optionally parks the bag in
// awaiting_return until the customer answers.
func (s *Service) RecordCharge(ctx context.Context, bagID uuid.UUID, input RecordChargeInput, actor Actor) (*models.Bag, error) {
	return s.mutate(ctx, "record_charge", bagID, actor, func(_ Repository, bag *models.Bag, now time.Time) (*mutation, error) {
		plan, err := charges.Plan(bag, input.Channel, actor.id(), input.MoveToAwaitingReturn, now)
		if err != nil {
			return nil, err
		}
		plan.Apply(bag)

		return &mutation{
			updates: map[string]any{
				"last_charge_at":     bag.LastChargeAt,
				"charge_attempts":    bag.ChargeAttempts,
				"charge_channel":     bag.ChargeChannel,
				"operational_status": bag.OperationalStatus,
			},
			charge: &plan.Log,
			notes:  "charged via " + string(plan.Channel),
			events: []outbox.DomainEvent{
				outbox.BagEvent(enums.EventBagChargeRecorded, bag.ID, actor.ref(), payloads.BagChargeRecordedEvent{
					BagID:          bag.ID,
					Channel:        plan.Channel,
					ChargeAttempts: plan.Attempts,
					StatusChanged:  plan.StatusChanged(),
				}),
			},
		}, nil
	})
}

func loadBag(ctx context.Context, repo Repository, bagID uuid.UUID) (*models.Bag, error) {
	if bagID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bag id required")
	}
	bag, err := repo.FindBag(ctx, bagID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bag not found")
		}
		return nil, dbError(err, "load bag")
	}
	return bag, nil
}

func dbError(err error, step string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, step)
}

func finishedLabel(bag *models.Bag) string {
	if bag.Status == enums.BagStatusCancelled {
		return string(bag.Status)
	}
	return string(bag.OperationalStatus)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

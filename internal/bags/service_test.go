package bags

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/metrics"
)

// racingRepo flips the bag's status right before the guarded write, the way a
// concurrent request would.
type racingRepo struct {
	Repository
	db *gorm.DB
}

func (r *racingRepo) WithTx(tx *gorm.DB) Repository {
	return &racingRepo{Repository: r.Repository.WithTx(tx), db: tx}
}

func (r *racingRepo) UpdateBag(ctx context.Context, id uuid.UUID, guard Guard, updates map[string]any) error {
	if err := r.db.Exec("UPDATE bags SET operational_status = ? WHERE id = ?", enums.OperationalAwaitingReturn, id).Error; err != nil {
		return err
	}
	return r.Repository.UpdateBag(ctx, id, guard, updates)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestConfirmDeliveryLocksTermsAndSyncsCustomer(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, nil)
	ctx := context.Background()

	_, err := f.svc.ConfirmDelivery(ctx, bag.ID, ConfirmDeliveryInput{Method: enums.DeliveryCarrier, Shipping: decimal.Zero}, seller)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))

	updated, err := f.svc.ConfirmDelivery(ctx, bag.ID, ConfirmDeliveryInput{
		Method:      enums.DeliveryCarrier,
		Shipping:    decimal.RequireFromString("25.90"),
		ServiceName: "SEDEX",
		Address:     fullAddress(),
	}, seller)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("125.90").Equal(updated.Total))

	stored := f.reload(t, bag.ID)
	assert.Equal(t, enums.DeliveryCarrier, stored.Method())
	assert.True(t, stored.Total.Equal(stored.Subtotal.Sub(stored.DiscountTotal).Add(stored.ShippingAmount)))
	require.NotNil(t, stored.ShippingAddress)
	assert.Equal(t, "SP", stored.ShippingAddress.State)
	assert.Equal(t, []enums.OutboxEventType{enums.EventBagDeliveryConfirmed}, f.eventTypes(t, bag.ID))

	var customer models.Customer
	require.NoError(t, f.db.Where("id = ?", bag.CustomerID).First(&customer).Error)
	require.NotNil(t, customer.PostalCode)
	assert.Equal(t, "01310100", *customer.PostalCode)
}

func TestConfirmDeliveryRefusedOncePaid(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, func(b *models.Bag) {
		b.Status = enums.BagStatusPaid
		b.OperationalStatus = enums.OperationalPaid
	})

	_, err := f.svc.ConfirmDelivery(context.Background(), bag.ID, ConfirmDeliveryInput{Method: enums.DeliveryPickup}, seller)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
	assert.Empty(t, f.eventTypes(t, bag.ID))
}

func TestConfirmDeliveryValidatesInput(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, nil)

	_, err := f.svc.ConfirmDelivery(context.Background(), bag.ID, ConfirmDeliveryInput{Method: "drone"}, seller)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ConfirmDelivery(context.Background(), bag.ID, ConfirmDeliveryInput{
		Method:   enums.DeliveryCarrier,
		Shipping: decimal.RequireFromString("-1"),
	}, seller)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAssignHandler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, nil)
	active := f.seedSeller(t, true)
	inactive := f.seedSeller(t, false)

	_, err := f.svc.AssignHandler(ctx, bag.ID, &inactive, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	missing := uuid.New()
	_, err = f.svc.AssignHandler(ctx, bag.ID, &missing, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	updated, err := f.svc.AssignHandler(ctx, bag.ID, &active, admin)
	require.NoError(t, err)
	require.NotNil(t, updated.HandlerID)
	assert.Equal(t, active, *f.reload(t, bag.ID).HandlerID)

	_, err = f.svc.AssignHandler(ctx, bag.ID, nil, admin)
	require.NoError(t, err)
	assert.Nil(t, f.reload(t, bag.ID).HandlerID)
	assert.Len(t, f.eventTypes(t, bag.ID), 2)
}

func TestAssignHandlerRejectsTerminalBag(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, func(b *models.Bag) {
		b.Status = enums.BagStatusPaid
		b.OperationalStatus = enums.OperationalPickedUp
	})
	handler := f.seedSeller(t, true)

	_, err := f.svc.AssignHandler(context.Background(), bag.ID, &handler, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
}

func TestRecordChargeMovesToAwaitingReturn(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, nil)

	updated, err := f.svc.RecordCharge(context.Background(), bag.ID, RecordChargeInput{
		Channel:              enums.ChargeChannelMessaging,
		MoveToAwaitingReturn: true,
	}, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalAwaitingReturn, updated.OperationalStatus)

	stored := f.reload(t, bag.ID)
	assert.Equal(t, 1, stored.ChargeAttempts)
	require.NotNil(t, stored.LastChargeAt)
	assert.True(t, stored.LastChargeAt.Equal(testNow))

	var logs []models.BagChargeLog
	require.NoError(t, f.db.Where("bag_id = ?", bag.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, enums.ChargeChannelMessaging, logs[0].Channel)

	history := f.history(t, bag.ID)
	require.Len(t, history, 1)
	assert.Equal(t, enums.OperationalAwaitingReturn, history[0].NewStatus)
	require.NotNil(t, history[0].ChangedBy)
	assert.Equal(t, seller.UserID, *history[0].ChangedBy)
	assert.Equal(t, []enums.OutboxEventType{enums.EventBagChargeRecorded}, f.eventTypes(t, bag.ID))
}

func TestRecordChargeRejectsPaidBag(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, func(b *models.Bag) {
		b.Status = enums.BagStatusPaid
		b.OperationalStatus = enums.OperationalPaid
	})

	_, err := f.svc.RecordCharge(context.Background(), bag.ID, RecordChargeInput{Channel: enums.ChargeChannelDirect}, seller)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
}

func TestConcurrentChangeIsConflict(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) {
		p.Repository = &racingRepo{Repository: p.Repository}
	})
	bag := f.seedBag(t, nil)

	_, err := f.svc.RecordCharge(context.Background(), bag.ID, RecordChargeInput{Channel: enums.ChargeChannelDirect}, seller)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	stored := f.reload(t, bag.ID)
	assert.Equal(t, enums.OperationalAwaitingPayment, stored.OperationalStatus)
	assert.Zero(t, stored.ChargeAttempts)
	assert.Empty(t, f.eventTypes(t, bag.ID))
	assert.Empty(t, f.history(t, bag.ID))
}

func TestUnknownBagIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AdvanceStatus(context.Background(), uuid.New(), admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.GetBag(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOperationsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, func(p *ServiceParams) {
		p.Metrics = metrics.NewFulfillmentMetrics(reg)
	})
	bag := f.seedBag(t, nil)

	_, err := f.svc.RecordCharge(context.Background(), bag.ID, RecordChargeInput{Channel: enums.ChargeChannelDirect}, seller)
	require.NoError(t, err)
	_, err = f.svc.ApprovePayment(context.Background(), bag.ID, admin)
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	results := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "livebag_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, label := range m.GetLabel() {
				key += label.GetValue() + "/"
			}
			results[key] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), results["record_charge/ok/"])
	assert.Equal(t, float64(1), results["approve_payment/PRECONDITION_FAILED/"])
}

func TestDBErrorsKeepTypedErrors(t *testing.T) {
	typed := pkgerrors.New(pkgerrors.CodeConflict, "x")
	assert.Same(t, typed, pkgerrors.As(dbError(typed, "step")))
	assert.True(t, pkgerrors.IsCode(dbError(errors.New("boom"), "step"), pkgerrors.CodeDependency))
}

package bags

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
)

func paidBag(method enums.DeliveryMethod, status enums.OperationalStatus) func(*models.Bag) {
	return func(b *models.Bag) {
		if method != "" {
			b.DeliveryMethod = methodPtr(method)
		}
		switch method {
		case enums.DeliveryCourier:
			b.ShippingAmount = courierFee
		case enums.DeliveryCarrier:
			b.ShippingAmount = decimal.RequireFromString("31.40")
		}
		b.Status = enums.BagStatusPaid
		b.OperationalStatus = status
		b.PaymentReviewStatus = enums.PaymentReviewApproved
	}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	reason, _ := details["reason"].(string)
	return reason
}

func TestAdvancePickupPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, paidBag(enums.DeliveryPickup, enums.OperationalPaid))

	updated, err := f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalAwaitingPickup, updated.OperationalStatus)

	updated, err = f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalPickedUp, updated.OperationalStatus)

	_, err = f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
	assert.Equal(t, "terminal", reasonOf(t, err))

	assert.Len(t, f.history(t, bag.ID), 2)
	assert.Equal(t, []enums.OutboxEventType{
		enums.EventBagStatusAdvanced,
		enums.EventBagStatusAdvanced,
	}, f.eventTypes(t, bag.ID))
}

func TestAdvanceCourierDoesNotNeedTracking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, paidBag(enums.DeliveryCourier, enums.OperationalPaid))

	_, err := f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	updated, err := f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalDelivered, updated.OperationalStatus)
}

func TestAdvanceRefusals(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(*models.Bag)
		reason string
	}{
		{
			name:   "unpaid",
			setup:  nil,
			reason: "payment_required",
		},
		{
			name:   "no delivery method",
			setup:  paidBag("", enums.OperationalPaid),
			reason: "delivery_method_missing",
		},
		{
			name:   "carrier waits for a label",
			setup:  paidBag(enums.DeliveryCarrier, enums.OperationalPrepareShipment),
			reason: "label_required",
		},
		{
			name:   "carrier side state",
			setup:  paidBag(enums.DeliveryCarrier, enums.OperationalAwaitingShippingPayment),
			reason: "label_required",
		},
		{
			name:   "posting without a label",
			setup:  paidBag(enums.DeliveryCarrier, enums.OperationalLabelGenerated),
			reason: "label_required",
		},
		{
			name: "delivering with an aggregator order id",
			setup: func(b *models.Bag) {
				paidBag(enums.DeliveryCarrier, enums.OperationalPosted)(b)
				b.LabelURL = strPtr("https://labels.example.com/1.pdf")
				b.TrackingCode = strPtr("ORD-20260910-1")
			},
			reason: "invalid_tracking_code",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			bag := f.seedBag(t, tc.setup)
			before := f.reload(t, bag.ID).OperationalStatus

			_, err := f.svc.AdvanceStatus(context.Background(), bag.ID, seller)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
			assert.Equal(t, tc.reason, reasonOf(t, err))
			assert.Equal(t, before, f.reload(t, bag.ID).OperationalStatus)
			assert.Empty(t, f.eventTypes(t, bag.ID))
		})
	}
}

func TestAdvanceCarrierToDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, func(b *models.Bag) {
		paidBag(enums.DeliveryCarrier, enums.OperationalLabelGenerated)(b)
		b.LabelURL = strPtr("https://labels.example.com/2.pdf")
		b.TrackingCode = strPtr("AA123456789BR")
	})

	updated, err := f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalPosted, updated.OperationalStatus)

	updated, err = f.svc.AdvanceStatus(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, enums.OperationalDelivered, updated.OperationalStatus)
}

func TestAdvanceBlockedWhileReviewPending(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, func(b *models.Bag) {
		paidBag(enums.DeliveryPickup, enums.OperationalPaid)(b)
		b.PaymentReviewStatus = enums.PaymentReviewPending
	})

	_, err := f.svc.AdvanceStatus(context.Background(), bag.ID, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
}

func TestRevertStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, paidBag(enums.DeliveryPickup, enums.OperationalAwaitingPickup))
		_, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: "shipped"}, admin)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("target outside the previous states", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, paidBag(enums.DeliveryPickup, enums.OperationalPickedUp))
		_, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalPaid, Reason: "typo"}, admin)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
		details := pkgerrors.As(err).Details().(map[string]any)
		assert.Equal(t, "invalid_revert", details["reason"])
		assert.Equal(t, []enums.OperationalStatus{enums.OperationalAwaitingPickup}, details["allowed"])
	})

	t.Run("approved payment is admin only", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, paidBag(enums.DeliveryPickup, enums.OperationalAwaitingPickup))
		_, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalPaid}, seller)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("admin must give a reason", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, paidBag(enums.DeliveryPickup, enums.OperationalAwaitingPickup))
		_, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalPaid, Reason: " "}, admin)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

		updated, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalPaid, Reason: "customer came back"}, admin)
		require.NoError(t, err)
		assert.Equal(t, enums.OperationalPaid, updated.OperationalStatus)
		history := f.history(t, bag.ID)
		require.Len(t, history, 1)
		assert.Equal(t, "revert: customer came back", *history[0].Notes)
		assert.Equal(t, []enums.OutboxEventType{enums.EventBagStatusReverted}, f.eventTypes(t, bag.ID))
	})

	t.Run("seller reverts a bag without approved review", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, func(b *models.Bag) {
			paidBag(enums.DeliveryCourier, enums.OperationalInTransit)(b)
			b.PaymentReviewStatus = enums.PaymentReviewNone
		})
		updated, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalPaid}, seller)
		require.NoError(t, err)
		assert.Equal(t, enums.OperationalPaid, updated.OperationalStatus)
		assert.Equal(t, "revert", *f.history(t, bag.ID)[0].Notes)
	})

	t.Run("leaving paid needs a reason and reopens payment", func(t *testing.T) {
		f := newFixture(t)
		bag := f.seedBag(t, func(b *models.Bag) {
			paidBag(enums.DeliveryPickup, enums.OperationalPaid)(b)
			b.PaymentReviewStatus = enums.PaymentReviewNone
		})
		_, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{Target: enums.OperationalAwaitingPayment}, seller)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

		updated, err := f.svc.RevertStatus(ctx, bag.ID, RevertInput{
			Target: enums.OperationalAwaitingPayment,
			Reason: "chargeback",
		}, seller)
		require.NoError(t, err)
		assert.Equal(t, enums.BagStatusAwaitingPayment, updated.Status)

		stored := f.reload(t, bag.ID)
		assert.Equal(t, enums.OperationalAwaitingPayment, stored.OperationalStatus)
		assert.Equal(t, enums.BagStatusAwaitingPayment, stored.Status)
	})
}

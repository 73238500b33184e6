package shipping

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/angelmondragon/livebag-backend/internal/shipping/mocks"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

const senderDocument = "98765432100"

var labelNow = time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	bag         *models.Bag
	statuses    []enums.OperationalStatus
	shipmentIDs []string
	label       *LabelUpdate
	tracking    string
	mirrored    int
	mirrorErr   error
}

func (f *fakeStore) GetBag(ctx context.Context, bagID uuid.UUID) (*models.Bag, error) {
	if f.bag == nil || f.bag.ID != bagID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bag not found")
	}
	return f.bag, nil
}

func (f *fakeStore) MarkStatus(ctx context.Context, bag *models.Bag, to enums.OperationalStatus, actor *uuid.UUID, notes string) error {
	f.statuses = append(f.statuses, to)
	bag.OperationalStatus = to
	return nil
}

func (f *fakeStore) SaveShipmentID(ctx context.Context, bag *models.Bag, shipmentID string) error {
	f.shipmentIDs = append(f.shipmentIDs, shipmentID)
	bag.ShipmentID = &shipmentID
	return nil
}

func (f *fakeStore) SaveLabel(ctx context.Context, bag *models.Bag, update LabelUpdate, actor *uuid.UUID) error {
	f.label = &update
	bag.LabelURL = &update.LabelURL
	bag.OperationalStatus = enums.OperationalLabelGenerated
	return nil
}

func (f *fakeStore) SaveTracking(ctx context.Context, bag *models.Bag, trackingCode string) error {
	f.tracking = trackingCode
	bag.TrackingCode = &trackingCode
	return nil
}

func (f *fakeStore) MirrorLinkedOrder(ctx context.Context, bag *models.Bag) error {
	f.mirrored++
	return f.mirrorErr
}

type countingMetrics struct {
	outcomes []string
}

func (c *countingMetrics) ObserveLabel(outcome string) {
	c.outcomes = append(c.outcomes, outcome)
}

func fakeAddress() *types.ShippingAddress {
	addr := gofakeit.Address()
	return &types.ShippingAddress{
		Name:         gofakeit.Name(),
		Phone:        gofakeit.Numerify("629########"),
		PostalCode:   gofakeit.Numerify("75######"),
		Street:       addr.Street,
		Number:       gofakeit.Numerify("###"),
		Neighborhood: gofakeit.Word(),
		City:         addr.City,
		State:        gofakeit.StateAbr(),
		Document:     "123.456.789-09",
	}
}

func paidCarrierBag() *models.Bag {
	method := enums.DeliveryCarrier
	linked := uuid.New()
	return &models.Bag{
		ID:                  uuid.New(),
		BagNumber:           gofakeit.Number(1, 400),
		Status:              enums.BagStatusPaid,
		OperationalStatus:   enums.OperationalPrepareShipment,
		DeliveryMethod:      &method,
		PaymentReviewStatus: enums.PaymentReviewApproved,
		ShippingAmount:      decimal.RequireFromString("23.90"),
		Total:               decimal.RequireFromString("173.80"),
		ShippingAddress:     fakeAddress(),
		LinkedOrderID:       &linked,
		Items: []models.BagItem{
			{ID: uuid.New(), Name: gofakeit.ProductName(), Quantity: 2, UnitPrice: decimal.RequireFromString("74.95"), Status: enums.BagItemConfirmed},
		},
	}
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *mocks.MockCarrier, *countingMetrics) {
	t.Helper()
	ctrl := gomock.NewController(t)
	carrier := mocks.NewMockCarrier(ctrl)
	metrics := &countingMetrics{}

	svc, err := NewService(ServiceParams{
		Carrier: carrier,
		Store:   store,
		Config: LabelConfig{
			ServiceID: 1,
			Platform:  "livebag",
			WalletURL: "https://melhorenvio.com.br/painel/carteira",
			Sender:    melhorenvio.Party{Name: "Loja", Document: senderDocument, PostalCode: "75110760"},
		},
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Metrics: metrics,
		Now:     func() time.Time { return labelNow },
	})
	require.NoError(t, err)
	return svc, carrier, metrics
}

func TestGenerateLabelHappyPath(t *testing.T) {
	bag := paidCarrierBag()
	store := &fakeStore{bag: bag}
	svc, carrier, metrics := newTestService(t, store)

	gomock.InOrder(
		carrier.EXPECT().AddToCart(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req melhorenvio.CartRequest) (string, error) {
			assert.Equal(t, 1, req.Service)
			assert.Equal(t, "12345678909", req.To.Document)
			assert.Len(t, req.Volumes, 1)
			assert.Equal(t, 173.8, req.Options.InsuranceValue)
			require.Len(t, req.Options.Tags, 1)
			assert.Contains(t, req.Options.Tags[0].Tag, "sacola-")
			return "shp-1", nil
		}),
		carrier.EXPECT().Checkout(gomock.Any(), "shp-1").Return(nil),
		carrier.EXPECT().Generate(gomock.Any(), "shp-1").Return(nil),
		carrier.EXPECT().Print(gomock.Any(), "shp-1").Return("https://melhorenvio.com.br/imprimir/abc", nil),
		carrier.EXPECT().Tracking(gomock.Any(), "shp-1").Return(map[string]any{
			"shp-1": map[string]any{"tracking": "QB123456789BR"},
		}, nil),
	)

	res, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusLabelGenerated, res.Status)
	assert.Equal(t, "QB123456789BR", res.TrackingCode)
	assert.Equal(t, []string{"shp-1"}, store.shipmentIDs)
	require.NotNil(t, store.label)
	assert.Equal(t, labelNow, store.label.PrintedAt)
	assert.Equal(t, 1, store.mirrored)
	assert.Equal(t, []string{StatusLabelGenerated}, metrics.outcomes)
}

func TestGenerateLabelAlreadyGenerated(t *testing.T) {
	bag := paidCarrierBag()
	url, shipment := "https://label", "shp-9"
	bag.LabelURL = &url
	bag.ShipmentID = &shipment
	svc, _, _ := newTestService(t, &fakeStore{bag: bag})

	res, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.AlreadyGenerated)
	assert.Equal(t, "shp-9", res.ShipmentID)
}

func TestGenerateLabelResumesFromShipmentID(t *testing.T) {
	bag := paidCarrierBag()
	shipment := "shp-resume"
	bag.ShipmentID = &shipment
	bag.OperationalStatus = enums.OperationalAwaitingShippingPayment
	store := &fakeStore{bag: bag}
	svc, carrier, _ := newTestService(t, store)

	carrier.EXPECT().Checkout(gomock.Any(), shipment).Return(nil)
	carrier.EXPECT().Generate(gomock.Any(), shipment).Return(nil)
	carrier.EXPECT().Print(gomock.Any(), shipment).Return("", nil)
	carrier.EXPECT().Tracking(gomock.Any(), shipment).Return(nil, errors.New("timeout"))
	carrier.EXPECT().OrderDetail(gomock.Any(), shipment).Return(map[string]any{"tracking": "ORD-77", "protocol": "ORD-77"}, nil)

	res, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, store.shipmentIDs)
	assert.Equal(t, "https://melhorenvio.com.br/imprimir/shp-resume", res.LabelURL)
	assert.Empty(t, res.TrackingCode)
}

func TestGenerateLabelInsufficientBalance(t *testing.T) {
	bag := paidCarrierBag()
	store := &fakeStore{bag: bag}
	svc, carrier, _ := newTestService(t, store)

	carrier.EXPECT().AddToCart(gomock.Any(), gomock.Any()).Return("shp-2", nil)
	carrier.EXPECT().Checkout(gomock.Any(), "shp-2").
		Return(pkgerrors.External(melhorenvio.StepCheckout, 422, `{"error":"Saldo insuficiente"}`, nil))

	res, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingShippingPayment, res.Status)
	require.NotNil(t, res.Wait)
	assert.Equal(t, ActionRechargeWallet, res.Wait.Action)
	assert.Equal(t, "shp-2", res.Wait.ShipmentID)
	assert.Equal(t, []enums.OperationalStatus{enums.OperationalAwaitingShippingPayment}, store.statuses)
	assert.Equal(t, []string{"shp-2"}, store.shipmentIDs)
}

func TestGenerateLabelCheckoutFailure(t *testing.T) {
	bag := paidCarrierBag()
	svc, carrier, metrics := newTestService(t, &fakeStore{bag: bag})

	carrier.EXPECT().AddToCart(gomock.Any(), gomock.Any()).Return("shp-3", nil)
	carrier.EXPECT().Checkout(gomock.Any(), "shp-3").
		Return(pkgerrors.External(melhorenvio.StepCheckout, 500, "internal", nil))

	_, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExternalService))
	assert.Equal(t, []string{"error"}, metrics.outcomes)
}

func TestGenerateLabelMissingData(t *testing.T) {
	bag := paidCarrierBag()
	bag.ShippingAddress.Document = "123"
	bag.ShippingAddress.Street = ""
	store := &fakeStore{bag: bag}
	svc, _, _ := newTestService(t, store)

	_, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, []string{"street", "document"}, details["missing_fields"])
	assert.Equal(t, []enums.OperationalStatus{enums.OperationalMissingData}, store.statuses)
}

func TestGenerateLabelPreconditions(t *testing.T) {
	cases := map[string]func(b *models.Bag){
		"not carrier": func(b *models.Bag) {
			m := enums.DeliveryCourier
			b.DeliveryMethod = &m
		},
		"unpaid":         func(b *models.Bag) { b.Status = enums.BagStatusAwaitingPayment },
		"wrong status":   func(b *models.Bag) { b.OperationalStatus = enums.OperationalPosted },
		"pending review": func(b *models.Bag) { b.PaymentReviewStatus = enums.PaymentReviewPending },
		"same document":  func(b *models.Bag) { b.ShippingAddress.Document = senderDocument },
		"no items":       func(b *models.Bag) { b.Items[0].Status = enums.BagItemCancelled },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			bag := paidCarrierBag()
			mutate(bag)
			svc, _, _ := newTestService(t, &fakeStore{bag: bag})

			_, err := svc.GenerateLabel(context.Background(), bag.ID, nil)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
		})
	}
}

func TestSyncTracking(t *testing.T) {
	t.Run("already synced", func(t *testing.T) {
		bag := paidCarrierBag()
		shipment, code := "shp-4", "QB123456789BR"
		bag.ShipmentID, bag.TrackingCode = &shipment, &code
		svc, _, _ := newTestService(t, &fakeStore{bag: bag})

		res, err := svc.SyncTracking(context.Background(), bag.ID)
		require.NoError(t, err)
		assert.Equal(t, TrackingAlreadySynced, res.Status)
	})

	t.Run("synced from order detail", func(t *testing.T) {
		bag := paidCarrierBag()
		shipment, stale := "shp-5", "ORD-5"
		bag.ShipmentID, bag.TrackingCode = &shipment, &stale
		store := &fakeStore{bag: bag}
		svc, carrier, _ := newTestService(t, store)

		carrier.EXPECT().Tracking(gomock.Any(), shipment).Return(map[string]any{}, nil)
		carrier.EXPECT().OrderDetail(gomock.Any(), shipment).Return(map[string]any{"shipment": map[string]any{"tracking_number": "1122334455"}}, nil)

		res, err := svc.SyncTracking(context.Background(), bag.ID)
		require.NoError(t, err)
		assert.Equal(t, TrackingSynced, res.Status)
		assert.Equal(t, "1122334455", store.tracking)
		assert.Equal(t, 1, store.mirrored)
	})

	t.Run("pending", func(t *testing.T) {
		bag := paidCarrierBag()
		shipment := "shp-6"
		bag.ShipmentID = &shipment
		svc, carrier, _ := newTestService(t, &fakeStore{bag: bag})

		carrier.EXPECT().Tracking(gomock.Any(), shipment).Return(map[string]any{}, nil)
		carrier.EXPECT().OrderDetail(gomock.Any(), shipment).Return(map[string]any{}, nil)

		res, err := svc.SyncTracking(context.Background(), bag.ID)
		require.NoError(t, err)
		assert.Equal(t, TrackingPending, res.Status)
		assert.Empty(t, res.TrackingCode)
	})

	t.Run("no shipment", func(t *testing.T) {
		bag := paidCarrierBag()
		svc, _, _ := newTestService(t, &fakeStore{bag: bag})

		_, err := svc.SyncTracking(context.Background(), bag.ID)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePreconditionFailed))
	})
}

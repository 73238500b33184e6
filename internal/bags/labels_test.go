package bags

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/internal/shipping/mocks"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
)

const walletURL = "https://melhorenvio.com.br/painel/carteira"

func newLabelFixture(t *testing.T) (*fixture, *mocks.MockCarrier) {
	t.Helper()
	carrier := mocks.NewMockCarrier(gomock.NewController(t))
	f := newFixture(t, func(p *ServiceParams) {
		p.Carrier = carrier
		p.Labels = shipping.LabelConfig{
			ServiceID: 1,
			WalletURL: walletURL,
			Sender:    melhorenvio.Party{Name: "Loja", Document: "98765432100"},
		}
	})
	return f, carrier
}

func readyForLabel(b *models.Bag) {
	paidBag(enums.DeliveryCarrier, enums.OperationalPrepareShipment)(b)
	b.ShippingAddress = fullAddress()
}

func TestGenerateLabelWaitsForWalletThenResumes(t *testing.T) {
	f, carrier := newLabelFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, readyForLabel)

	carrier.EXPECT().AddToCart(gomock.Any(), gomock.Any()).Return("shp-10", nil).Times(1)
	carrier.EXPECT().Checkout(gomock.Any(), "shp-10").
		Return(pkgerrors.External(melhorenvio.StepCheckout, 422, `{"message":"Saldo insuficiente na carteira"}`, nil))

	res, err := f.svc.GenerateLabel(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, shipping.StatusAwaitingShippingPayment, res.Status)
	require.NotNil(t, res.Wait)
	assert.Equal(t, walletURL, res.Wait.WalletURL)

	stored := f.reload(t, bag.ID)
	assert.Equal(t, enums.OperationalAwaitingShippingPayment, stored.OperationalStatus)
	assert.Equal(t, "shp-10", stored.ShipmentRef())
	assert.False(t, stored.HasLabel())

	rows, err := f.outbox.ListForAggregate(ctx, bag.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventBagShippingPaymentRequired, rows[0].EventType)
	assert.Contains(t, string(rows[0].Payload), walletURL)

	carrier.EXPECT().Checkout(gomock.Any(), "shp-10").Return(nil)
	carrier.EXPECT().Generate(gomock.Any(), "shp-10").Return(nil)
	carrier.EXPECT().Print(gomock.Any(), "shp-10").Return("https://labels.example.com/shp-10.pdf", nil)
	carrier.EXPECT().Tracking(gomock.Any(), "shp-10").
		Return(map[string]any{"shp-10": map[string]any{"tracking": "QB123456789BR"}}, nil)

	res, err = f.svc.GenerateLabel(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, shipping.StatusLabelGenerated, res.Status)
	assert.Equal(t, "QB123456789BR", res.TrackingCode)

	stored = f.reload(t, bag.ID)
	assert.Equal(t, enums.OperationalLabelGenerated, stored.OperationalStatus)
	assert.Equal(t, "https://labels.example.com/shp-10.pdf", stored.Label())
	assert.Equal(t, "QB123456789BR", stored.Tracking())
	require.NotNil(t, stored.LabelPrintedAt)
	assert.Equal(t, []enums.OutboxEventType{
		enums.EventBagShippingPaymentRequired,
		enums.EventBagLabelGenerated,
	}, f.eventTypes(t, bag.ID))

	again, err := f.svc.GenerateLabel(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.True(t, again.AlreadyGenerated)
}

func TestGenerateLabelMirrorsLinkedOrder(t *testing.T) {
	f, carrier := newLabelFixture(t)
	ctx := context.Background()
	order := models.LinkedOrder{ID: uuid.New()}
	require.NoError(t, f.db.Create(&order).Error)
	bag := f.seedBag(t, func(b *models.Bag) {
		readyForLabel(b)
		b.LinkedOrderID = &order.ID
	})

	carrier.EXPECT().AddToCart(gomock.Any(), gomock.Any()).Return("shp-11", nil)
	carrier.EXPECT().Checkout(gomock.Any(), "shp-11").Return(nil)
	carrier.EXPECT().Generate(gomock.Any(), "shp-11").Return(nil)
	carrier.EXPECT().Print(gomock.Any(), "shp-11").Return("", nil)
	carrier.EXPECT().Tracking(gomock.Any(), "shp-11").Return(map[string]any{}, nil)
	carrier.EXPECT().OrderDetail(gomock.Any(), "shp-11").Return(map[string]any{"tracking": "12345678901234"}, nil)

	res, err := f.svc.GenerateLabel(ctx, bag.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, "12345678901234", res.TrackingCode)

	var mirrored models.LinkedOrder
	require.NoError(t, f.db.Where("id = ?", order.ID).First(&mirrored).Error)
	require.NotNil(t, mirrored.ShipmentID)
	assert.Equal(t, "shp-11", *mirrored.ShipmentID)
	require.NotNil(t, mirrored.LabelURL)
	assert.Equal(t, "https://melhorenvio.com.br/imprimir/shp-11", *mirrored.LabelURL)
	assert.Equal(t, "12345678901234", *mirrored.TrackingCode)
}

func TestGenerateLabelMarksMissingData(t *testing.T) {
	f, _ := newLabelFixture(t)
	bag := f.seedBag(t, func(b *models.Bag) {
		readyForLabel(b)
		b.ShippingAddress.Number = ""
	})

	_, err := f.svc.GenerateLabel(context.Background(), bag.ID, seller)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.OperationalMissingData, f.reload(t, bag.ID).OperationalStatus)
}

func TestSyncTrackingFillsLateCode(t *testing.T) {
	f, carrier := newLabelFixture(t)
	ctx := context.Background()
	bag := f.seedBag(t, func(b *models.Bag) {
		paidBag(enums.DeliveryCarrier, enums.OperationalLabelGenerated)(b)
		b.ShipmentID = strPtr("shp-12")
		b.LabelURL = strPtr("https://labels.example.com/shp-12.pdf")
	})

	carrier.EXPECT().Tracking(gomock.Any(), "shp-12").Return(map[string]any{"tracking": "AB987654321BR"}, nil)

	res, err := f.svc.SyncTracking(ctx, bag.ID)
	require.NoError(t, err)
	assert.Equal(t, shipping.TrackingSynced, res.Status)
	assert.Equal(t, "AB987654321BR", f.reload(t, bag.ID).Tracking())
	assert.Equal(t, []enums.OutboxEventType{enums.EventBagTrackingSynced}, f.eventTypes(t, bag.ID))
}

func TestLabelsWithoutCarrier(t *testing.T) {
	f := newFixture(t)
	bag := f.seedBag(t, readyForLabel)

	_, err := f.svc.GenerateLabel(context.Background(), bag.ID, seller)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	_, err = f.svc.SyncTracking(context.Background(), bag.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

package bags

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/internal/delivery"
	"github.com/angelmondragon/livebag-backend/pkg/db"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

var testNow = time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

var courierFee = decimal.RequireFromString("10.00")

var schema = []string{
	`CREATE TABLE customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT,
  document TEXT,
  postal_code TEXT,
  address TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE sellers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
)`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  shipment_id TEXT,
  label_url TEXT,
  tracking_code TEXT,
  updated_at DATETIME
)`,
	`CREATE TABLE bags (
  id TEXT PRIMARY KEY,
  live_event_id TEXT NOT NULL,
  bag_number INTEGER NOT NULL,
  public_token TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  handler_id TEXT,
  linked_order_id TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  operational_status TEXT NOT NULL DEFAULT 'awaiting_payment',
  delivery_method TEXT,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discount_total NUMERIC NOT NULL DEFAULT 0,
  shipping_amount NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  shipping_service_name TEXT,
  shipping_address TEXT,
  shipment_id TEXT,
  label_url TEXT,
  tracking_code TEXT,
  label_printed_at DATETIME,
  payment_method TEXT,
  paid_at DATETIME,
  payment_proof_url TEXT,
  payment_notes TEXT,
  payment_review_status TEXT NOT NULL DEFAULT 'none',
  rejection_reason TEXT,
  validated_at DATETIME,
  validated_by TEXT,
  charge_attempts INTEGER NOT NULL DEFAULT 0,
  last_charge_at DATETIME,
  charge_channel TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL,
  updated_at DATETIME NOT NULL
)`,
	`CREATE TABLE bag_items (
  id TEXT PRIMARY KEY,
  bag_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'reserved',
  weight_kg REAL,
  length_cm REAL,
  width_cm REAL,
  height_cm REAL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE bag_status_history (
  id TEXT PRIMARY KEY,
  bag_id TEXT NOT NULL,
  old_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  payment_method TEXT,
  notes TEXT,
  changed_by TEXT,
  created_at DATETIME NOT NULL
)`,
	`CREATE TABLE bag_charge_logs (
  id TEXT PRIMARY KEY,
  bag_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  charged_by TEXT,
  created_at DATETIME NOT NULL
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME NOT NULL,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
}

func newBagsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	for _, ddl := range schema {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	return conn
}

type fixture struct {
	db     *gorm.DB
	repo   Repository
	outbox *outbox.Repository
	svc    *Service
}

func newFixture(t *testing.T, tweak ...func(*ServiceParams)) *fixture {
	t.Helper()
	conn := newBagsDB(t)
	outboxRepo := outbox.NewRepository(conn)
	logg := logger.New(logger.Options{ServiceName: "bags-test", Output: io.Discard})

	params := ServiceParams{
		Repository: NewRepository(conn),
		Tx:         db.Wrap(conn),
		Outbox:     outbox.NewService(outboxRepo, logg),
		Gate:       delivery.NewGate(courierFee),
		Logger:     logg,
		Now:        func() time.Time { return testNow },
	}
	for _, fn := range tweak {
		fn(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return &fixture{db: conn, repo: params.Repository, outbox: outboxRepo, svc: svc}
}

func (f *fixture) seedCustomer(t *testing.T) uuid.UUID {
	t.Helper()
	customer := models.Customer{ID: uuid.New(), Name: gofakeit.Name()}
	require.NoError(t, f.db.Create(&customer).Error)
	return customer.ID
}

func (f *fixture) seedSeller(t *testing.T, active bool) uuid.UUID {
	t.Helper()
	seller := models.Seller{ID: uuid.New(), Name: gofakeit.Name(), Active: true}
	require.NoError(t, f.db.Create(&seller).Error)
	if !active {
		require.NoError(t, f.db.Model(&models.Seller{}).Where("id = ?", seller.ID).Update("active", false).Error)
	}
	return seller.ID
}

// seedBag stores an unpaid bag with two reserved items and lets fn adjust it
// before insert.
func (f *fixture) seedBag(t *testing.T, fn func(*models.Bag)) *models.Bag {
	t.Helper()
	bagID := uuid.New()
	bag := &models.Bag{
		ID:                  bagID,
		LiveEventID:         uuid.New(),
		BagNumber:           gofakeit.Number(1, 9999),
		PublicToken:         uuid.NewString(),
		CustomerID:          f.seedCustomer(t),
		Status:              enums.BagStatusOpen,
		OperationalStatus:   enums.OperationalAwaitingPayment,
		Subtotal:            decimal.RequireFromString("120.00"),
		DiscountTotal:       decimal.RequireFromString("20.00"),
		ShippingAmount:      decimal.Zero,
		PaymentReviewStatus: enums.PaymentReviewNone,
		Items: []models.BagItem{
			newItem(bagID, enums.BagItemReserved),
			newItem(bagID, enums.BagItemReserved),
		},
		CreatedAt: testNow.Add(-2 * time.Hour),
		UpdatedAt: testNow.Add(-2 * time.Hour),
	}
	if fn != nil {
		fn(bag)
	}
	bag.RecomputeTotal()
	require.NoError(t, f.db.Create(bag).Error)
	return bag
}

func newItem(bagID uuid.UUID, status enums.BagItemStatus) models.BagItem {
	weight := 0.4
	return models.BagItem{
		ID:        uuid.New(),
		BagID:     bagID,
		ProductID: uuid.New(),
		Name:      gofakeit.ProductName(),
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("60.00"),
		Status:    status,
		WeightKg:  &weight,
		CreatedAt: testNow.Add(-3 * time.Hour),
	}
}

func (f *fixture) reload(t *testing.T, bagID uuid.UUID) *models.Bag {
	t.Helper()
	bag, err := f.repo.FindBag(context.Background(), bagID)
	require.NoError(t, err)
	return bag
}

func (f *fixture) eventTypes(t *testing.T, bagID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := f.outbox.ListForAggregate(context.Background(), bagID)
	require.NoError(t, err)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func (f *fixture) history(t *testing.T, bagID uuid.UUID) []models.BagStatusHistory {
	t.Helper()
	rows, err := f.repo.ListHistory(context.Background(), bagID)
	require.NoError(t, err)
	return rows
}

func fullAddress() *types.ShippingAddress {
	return &types.ShippingAddress{
		Name:         gofakeit.Name(),
		Phone:        "(11) 98765-4321",
		Email:        gofakeit.Email(),
		Document:     "123.456.789-09",
		PostalCode:   "01310-100",
		Street:       gofakeit.Street(),
		Number:       "1000",
		Neighborhood: "Bela Vista",
		City:         "São Paulo",
		State:        "sp",
	}
}

func methodPtr(m enums.DeliveryMethod) *enums.DeliveryMethod { return &m }

func strPtr(s string) *string { return &s }

var (
	admin  = Actor{UserID: uuid.New(), Role: enums.MemberRoleAdmin, IsAdmin: true}
	seller = Actor{UserID: uuid.New(), Role: enums.MemberRoleSeller}
)

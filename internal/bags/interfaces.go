package bags

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	"github.com/angelmondragon/livebag-backend/pkg/outbox"
	"github.com/angelmondragon/livebag-backend/pkg/pagination"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Guard is what a write expects the row to still hold. The status pair is
// always checked. Version pins every column as read; Shipment pins only
// shipment_id, with "" meaning still unset.
type Guard struct {
	OperationalStatus enums.OperationalStatus
	Status            enums.BagStatus
	Version           int64
	Shipment          *string
}

// guardOf pins the whole row, for read-modify-write operations.
func guardOf(bag *models.Bag) Guard {
	return Guard{OperationalStatus: bag.OperationalStatus, Status: bag.Status, Version: bag.Version}
}

// shipmentGuard pins the status pair and the shipment id only, so a label
// bought across slow aggregator calls is not lost to an unrelated write such
// as a handler change.
func shipmentGuard(bag *models.Bag, shipmentID string) Guard {
	return Guard{OperationalStatus: bag.OperationalStatus, Status: bag.Status, Shipment: &shipmentID}
}

// Repository defines persistence for bags and their audit tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBag(ctx context.Context, id uuid.UUID) (*models.Bag, error)
	UpdateBag(ctx context.Context, id uuid.UUID, guard Guard, updates map[string]any) error
	ConfirmReservedItems(ctx context.Context, bagID uuid.UUID) error
	InsertHistory(ctx context.Context, entry *models.BagStatusHistory) error
	ListHistory(ctx context.Context, bagID uuid.UUID) ([]models.BagStatusHistory, error)
	InsertChargeLog(ctx context.Context, entry *models.BagChargeLog) error
	FindSeller(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	UpdateCustomerAddress(ctx context.Context, customerID uuid.UUID, addr *types.ShippingAddress) error
	MirrorLinkedOrder(ctx context.Context, orderID uuid.UUID, bag *models.Bag) error
	ListBags(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int, now time.Time) ([]models.Bag, error)
	ListChargeDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Bag, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

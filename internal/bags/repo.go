package bags

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/livebag-backend/internal/charges"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/pagination"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

var (
	unpaidStatuses     = []enums.BagStatus{enums.BagStatusOpen, enums.BagStatusAwaitingPayment}
	prePaymentStatuses = []enums.OperationalStatus{enums.OperationalAwaitingPayment, enums.OperationalAwaitingReturn}
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bags repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBag(ctx context.Context, id uuid.UUID) (*models.Bag, error) {
	var bag models.Bag
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&bag).Error
	if err != nil {
		return nil, err
	}
	return &bag, nil
}

// UpdateBag writes updates only while the row still matches guard, and bumps
// version. Zero rows affected means another writer got there first.
func (r *repository) UpdateBag(ctx context.Context, id uuid.UUID, guard Guard, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	updates["version"] = gorm.Expr("version + 1")

	query := r.db.WithContext(ctx).
		Model(&models.Bag{}).
		Where("id = ? AND operational_status = ? AND status = ?", id, guard.OperationalStatus, guard.Status)
	if guard.Version > 0 {
		query = query.Where("version = ?", guard.Version)
	}
	switch {
	case guard.Shipment == nil:
	case *guard.Shipment == "":
		query = query.Where("shipment_id IS NULL")
	default:
		query = query.Where("shipment_id = ?", *guard.Shipment)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return concurrentUpdate()
	}
	return nil
}

func (r *repository) ConfirmReservedItems(ctx context.Context, bagID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BagItem{}).
		Where("bag_id = ? AND status = ?", bagID, enums.BagItemReserved).
		Updates(map[string]any{
			"status":     enums.BagItemConfirmed,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) InsertHistory(ctx context.Context, entry *models.BagStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, bagID uuid.UUID) ([]models.BagStatusHistory, error) {
	var rows []models.BagStatusHistory
	err := r.db.WithContext(ctx).
		Where("bag_id = ?", bagID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) InsertChargeLog(ctx context.Context, entry *models.BagChargeLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindSeller(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *repository) UpdateCustomerAddress(ctx context.Context, customerID uuid.UUID, addr *types.ShippingAddress) error {
	if addr == nil {
		return nil
	}
	updates := map[string]any{
		"address":    addr,
		"updated_at": time.Now().UTC(),
	}
	if postal := types.Digits(addr.PostalCode); postal != "" {
		updates["postal_code"] = postal
	}
	if phone := types.Digits(addr.Phone); phone != "" {
		updates["phone"] = phone
	}
	if document := types.Digits(addr.Document); document != "" {
		updates["document"] = document
	}
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) MirrorLinkedOrder(ctx context.Context, orderID uuid.UUID, bag *models.Bag) error {
	return r.db.WithContext(ctx).
		Model(&models.LinkedOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"shipment_id":   bag.ShipmentID,
			"label_url":     bag.LabelURL,
			"tracking_code": bag.TrackingCode,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ListBags pages newest first. UrgentOnly is time dependent and left to the
// caller; NeedsCharge is pushed down as SQL.
func (r *repository) ListBags(ctx context.Context, filters ListFilters, cursor *pagination.Cursor, limit int, now time.Time) ([]models.Bag, error) {
	query := r.db.WithContext(ctx).Model(&models.Bag{})
	if filters.LiveEventID != nil {
		query = query.Where("live_event_id = ?", *filters.LiveEventID)
	}
	if filters.OperationalStatus != nil {
		query = query.Where("operational_status = ?", *filters.OperationalStatus)
	}
	if filters.HandlerID != nil {
		query = query.Where("handler_id = ?", *filters.HandlerID)
	}
	if filters.NeedsCharge {
		query = whereChargeDue(query, now.Add(-charges.ChargeInterval))
	}

	var rows []models.Bag
	if err := pagination.Apply(query, "", cursor, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListChargeDue returns unpaid bags whose last reminder, or creation when never
// reminded, is older than cutoff. Oldest first so a backlog drains in order.
func (r *repository) ListChargeDue(ctx context.Context, cutoff time.Time, limit int) ([]models.Bag, error) {
	var rows []models.Bag
	err := whereChargeDue(r.db.WithContext(ctx).Model(&models.Bag{}), cutoff).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func whereChargeDue(query *gorm.DB, cutoff time.Time) *gorm.DB {
	return query.
		Where("status IN ?", unpaidStatuses).
		Where("operational_status IN ?", prePaymentStatuses).
		Where("COALESCE(last_charge_at, created_at) < ?", cutoff)
}

func concurrentUpdate() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "bag changed concurrently; reload and retry")
}

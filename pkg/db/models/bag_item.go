package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
)

// BagItem is a single claimed product line inside a bag. Dimensions are
// optional and fall back to package defaults when absent.
type BagItem struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BagID     uuid.UUID           `gorm:"column:bag_id;type:uuid;not null"`
	ProductID uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Name      string              `gorm:"column:name;not null"`
	Quantity  int                 `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal     `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status    enums.BagItemStatus `gorm:"column:status;type:text;not null;default:'reserved'"`
	WeightKg  *float64            `gorm:"column:weight_kg"`
	LengthCm  *float64            `gorm:"column:length_cm"`
	WidthCm   *float64            `gorm:"column:width_cm"`
	HeightCm  *float64            `gorm:"column:height_cm"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

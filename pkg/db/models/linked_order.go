package models

import (
	"time"

	"github.com/google/uuid"
)

// LinkedOrder is the downstream order row that mirrors a bag's shipment data.
type LinkedOrder struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShipmentID   *string   `gorm:"column:shipment_id"`
	LabelURL     *string   `gorm:"column:label_url"`
	TrackingCode *string   `gorm:"column:tracking_code"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LinkedOrder) TableName() string { return "orders" }

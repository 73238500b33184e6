package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Customer is the buyer profile. Only the address fields are written by this
// service, as a best-effort copy of the latest confirmed snapshot.
type Customer struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Name       string                 `gorm:"column:name;not null"`
	Phone      *string                `gorm:"column:phone"`
	Document   *string                `gorm:"column:document"`
	PostalCode *string                `gorm:"column:postal_code"`
	Address    *types.ShippingAddress `gorm:"column:address;type:jsonb"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
)

// BagChargeLog records each payment reminder sent for a bag.
type BagChargeLog struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BagID     uuid.UUID           `gorm:"column:bag_id;type:uuid;not null"`
	Channel   enums.ChargeChannel `gorm:"column:channel;type:text;not null"`
	ChargedBy *uuid.UUID          `gorm:"column:charged_by;type:uuid"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}

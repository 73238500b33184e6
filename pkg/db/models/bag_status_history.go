package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/pkg/enums"
)

// BagStatusHistory is the append-only audit trail of operational transitions.
type BagStatusHistory struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BagID         uuid.UUID               `gorm:"column:bag_id;type:uuid;not null"`
	OldStatus     enums.OperationalStatus `gorm:"column:old_status;type:text;not null"`
	NewStatus     enums.OperationalStatus `gorm:"column:new_status;type:text;not null"`
	PaymentMethod *enums.PaymentMethod    `gorm:"column:payment_method;type:text"`
	Notes         *string                 `gorm:"column:notes"`
	ChangedBy     *uuid.UUID              `gorm:"column:changed_by;type:uuid"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (BagStatusHistory) TableName() string { return "bag_status_history" }

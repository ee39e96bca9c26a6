package models

import (
	"time"

	"gorm.io/datatypes"
)

// StateRecord keeps the state document in a database row when a SQL
// storage driver is configured. There is only ever one row.
type StateRecord struct {
	ID        uint           `gorm:"primaryKey"`
	Interface string         `gorm:"uniqueIndex;size:32;not null"`
	Document  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

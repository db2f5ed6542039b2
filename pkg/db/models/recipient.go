package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Recipient is a lookup entity used to attribute distributions.
type Recipient struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Notes     *string   `gorm:"column:notes"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Recipient) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

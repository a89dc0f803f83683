package models

import (
	"time"

	"tradewarden/internal/uuid"

	"gorm.io/gorm"
)

// Base carries the id and lifecycle columns shared by most tables.
// Snapshots and usage records are append-only and do not embed it.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate assigns a UUIDv7 when the caller did not pre-assign one.
// Trade persistence pre-assigns ids so they can be handed to the oversight
// service before the row exists.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"tradewarden/internal/uuid"

	"gorm.io/gorm"
)

// PortfolioSnapshot is a point-in-time record of an agent's portfolio.
// Snapshots are append-only immutable time-series data: no Base embed,
// no soft deletes.
type PortfolioSnapshot struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	AgentID        string    `gorm:"type:uuid;not null;index" json:"agent_id"`
	RecordedAt     time.Time `gorm:"not null" json:"recorded_at"`
	TotalValue     int64     `gorm:"type:bigint;not null" json:"total_value"`
	CashBalance    int64     `gorm:"type:bigint;not null" json:"cash_balance"`
	PositionsValue int64     `gorm:"type:bigint;not null" json:"positions_value"`
	PositionCount  int       `gorm:"not null" json:"position_count"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PortfolioSnapshot) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}

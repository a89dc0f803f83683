package models

import "time"

// QuotaPeriod is the recurrence of a spending quota.
type QuotaPeriod string

const (
	QuotaPeriodMonthly QuotaPeriod = "monthly"
)

// OveragePolicy controls what happens when usage would exceed the limit.
type OveragePolicy string

const (
	OveragePolicyBlock OveragePolicy = "block"
	OveragePolicyAllow OveragePolicy = "allow"
)

// Quota is a recurring spending limit tracked by the usage ledger.
type Quota struct {
	Base
	EntityID      string        `gorm:"type:uuid;not null;index" json:"entity_id"`
	Limit         int64         `gorm:"type:bigint;not null;column:limit_amount" json:"limit"`
	Period        QuotaPeriod   `gorm:"not null" json:"period"`
	OveragePolicy OveragePolicy `gorm:"not null" json:"overage_policy"`
	Finalized     bool          `gorm:"not null;default:false" json:"finalized"`
}

// TableName pins the table to "quotas"; gorm's naming strategy treats
// "quota" as uncountable and would otherwise use the singular form,
// disagreeing with migrations/000001_init.up.sql.
func (Quota) TableName() string { return "quotas" }

// UsageRecord is a single usage event against a quota.
type UsageRecord struct {
	Base
	QuotaID    string    `gorm:"type:uuid;not null;index" json:"quota_id"`
	AgentID    string    `gorm:"type:uuid;not null" json:"agent_id"`
	Amount     int64     `gorm:"type:bigint;not null" json:"amount"`
	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
	Metadata   string    `json:"metadata,omitempty"`
}

// Package quota implements the usage-ledger contract the trading core
// consumes for budget metering. The default implementation is backed by
// the application database; the interface keeps the core independent of
// where the ledger actually lives.
package quota

import (
	"encoding/json"
	"errors"
	"time"

	apperrors "tradewarden/internal/errors"
	"tradewarden/internal/models"

	"gorm.io/gorm"
)

// Ledger is the usage-ledger contract. Amounts are int64 cents.
type Ledger interface {
	// CreateQuota allocates a quota for an entity and returns its id.
	CreateQuota(entityID string, limit int64, period models.QuotaPeriod, policy models.OveragePolicy) (string, error)

	// GetUsage returns total usage recorded against the quota within the
	// period containing `at`.
	GetUsage(quotaID string, at time.Time) (int64, error)

	// RecordUsage appends a usage event to the quota.
	RecordUsage(quotaID, agentID string, amount int64, metadata map[string]any) error

	// FinalizeQuota closes the quota and returns its lifetime usage.
	FinalizeQuota(quotaID string) (int64, error)

	// DeleteQuota removes a quota; used as a compensating rollback when
	// agent persistence fails after allocation.
	DeleteQuota(quotaID string) error
}

// gormLedger is the database-backed Ledger.
type gormLedger struct {
	db *gorm.DB
}

// NewLedger creates a database-backed usage ledger.
func NewLedger(db *gorm.DB) Ledger {
	return &gormLedger{db: db}
}

func (l *gormLedger) CreateQuota(entityID string, limit int64, period models.QuotaPeriod, policy models.OveragePolicy) (string, error) {
	q := &models.Quota{
		EntityID:      entityID,
		Limit:         limit,
		Period:        period,
		OveragePolicy: policy,
	}
	if err := l.db.Create(q).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrExternalService, err)
	}
	return q.ID, nil
}

// periodWindow returns the calendar window containing `at` for the quota's
// period. Only monthly quotas exist today.
func periodWindow(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

func (l *gormLedger) GetUsage(quotaID string, at time.Time) (int64, error) {
	var q models.Quota
	if err := l.db.First(&q, "id = ?", quotaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.WithMessage(apperrors.ErrExternalService, "Quota not found in usage ledger")
		}
		return 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	start, end := periodWindow(at)
	var usage int64
	err := l.db.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("quota_id = ? AND recorded_at BETWEEN ? AND ?", quotaID, start, end).
		Scan(&usage).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}
	return usage, nil
}

func (l *gormLedger) RecordUsage(quotaID, agentID string, amount int64, metadata map[string]any) error {
	var metaJSON string
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err == nil {
			metaJSON = string(data)
		}
	}

	rec := &models.UsageRecord{
		QuotaID:    quotaID,
		AgentID:    agentID,
		Amount:     amount,
		RecordedAt: time.Now(),
		Metadata:   metaJSON,
	}
	if err := l.db.Create(rec).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrExternalService, err)
	}
	return nil
}

func (l *gormLedger) FinalizeQuota(quotaID string) (int64, error) {
	var q models.Quota
	if err := l.db.First(&q, "id = ?", quotaID).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	var total int64
	err := l.db.Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("quota_id = ?", quotaID).
		Scan(&total).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}

	if err := l.db.Model(&q).Update("finalized", true).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrExternalService, err)
	}
	return total, nil
}

func (l *gormLedger) DeleteQuota(quotaID string) error {
	if err := l.db.Delete(&models.Quota{}, "id = ?", quotaID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrExternalService, err)
	}
	return nil
}

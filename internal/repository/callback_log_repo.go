package repository

import (
	"context"

	"gorm.io/gorm"

	"storepay/internal/models"
)

// CallbackLogRepository stores the audit trail of inbound gateway callbacks.
type CallbackLogRepository struct {
	db *gorm.DB
}

func NewCallbackLogRepository(db *gorm.DB) *CallbackLogRepository {
	return &CallbackLogRepository{db: db}
}

// Create appends a callback log row.
func (r *CallbackLogRepository) Create(ctx context.Context, entry *models.PaymentCallbackLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindRecent returns the latest callback log rows, optionally for one gateway.
func (r *CallbackLogRepository) FindRecent(ctx context.Context, gateway string, limit int) ([]models.PaymentCallbackLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.PaymentCallbackLog
	db := r.db.WithContext(ctx)
	if gateway != "" {
		db = db.Where("gateway = ?", gateway)
	}
	err := db.Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CountByOutcome returns how many callbacks of a gateway ended with outcome.
func (r *CallbackLogRepository) CountByOutcome(ctx context.Context, gateway string, outcome models.CallbackOutcome) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PaymentCallbackLog{}).
		Where("gateway = ? AND outcome = ?", gateway, outcome).
		Count(&count).Error
	return count, err
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// ExecutionLogRepository handles the append-only audit trail for copier
// activity.
type ExecutionLogRepository struct {
	db *gorm.DB
}

func NewExecutionLogRepository() *ExecutionLogRepository {
	return &ExecutionLogRepository{db: database.DB}
}

func (r *ExecutionLogRepository) WithDB(db *gorm.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db}
}

// Create appends a new audit entry. Logs are never updated or deleted by
// application code.
func (r *ExecutionLogRepository) Create(ctx context.Context, entry *model.ExecutionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByCopier returns the most recent N log entries for a copier, newest
// first.
func (r *ExecutionLogRepository) FindByCopier(ctx context.Context, copierID string, limit int) ([]model.ExecutionLog, error) {
	var entries []model.ExecutionLog
	err := r.db.WithContext(ctx).
		Where("copier_id = ?", copierID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

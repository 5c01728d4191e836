package repository

import (
	"context"
	"errors"

	"poscore/internal/model"

	"gorm.io/gorm"
)

type SyncLogRepository interface {
	Create(ctx context.Context, entry *model.SyncLog) error
	LastSuccessfulPull(ctx context.Context) (*model.SyncLog, error)
	List(ctx context.Context, limit int) ([]model.SyncLog, error)
}

type syncLogRepository struct {
	db *gorm.DB
}

func NewSyncLogRepository(db *gorm.DB) SyncLogRepository {
	return &syncLogRepository{db: db}
}

func (r *syncLogRepository) Create(ctx context.Context, entry *model.SyncLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// LastSuccessfulPull returns the most recent successful pull, or nil if the
// terminal has never synced.
func (r *syncLogRepository) LastSuccessfulPull(ctx context.Context) (*model.SyncLog, error) {
	var entry model.SyncLog
	err := GetDB(ctx, r.db).
		Where("type = ? AND status = ?", model.SyncTypePull, model.SyncStatusSuccess).
		Order("end_time DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *syncLogRepository) List(ctx context.Context, limit int) ([]model.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.SyncLog
	err := GetDB(ctx, r.db).Order("end_time DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

package repository

import (
	"context"

	"poscore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfigRepository interface {
	Get(ctx context.Context, key string) (string, error)
	GetOrDefault(ctx context.Context, key, fallback string) string
	Set(ctx context.Context, key, value string) error
}

type configRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) Get(ctx context.Context, key string) (string, error) {
	var cfg model.Configuration
	if err := GetDB(ctx, r.db).First(&cfg, "key = ?", key).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (r *configRepository) GetOrDefault(ctx context.Context, key, fallback string) string {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

func (r *configRepository) Set(ctx context.Context, key, value string) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&model.Configuration{Key: key, Value: value}).Error
}

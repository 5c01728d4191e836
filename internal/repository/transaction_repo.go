package repository

import (
	"context"
	"time"

	"poscore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *model.Transaction) error
	Save(ctx context.Context, tx *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindByNumber(ctx context.Context, number string) (*model.Transaction, error)
	FindUnsynced(ctx context.Context) ([]model.Transaction, error)
	ListByStatus(ctx context.Context, status string) ([]model.Transaction, error)
	MarkSynced(ctx context.Context, ids []uuid.UUID, syncedAt time.Time) error
	CountForTerminalSince(ctx context.Context, terminalID string, since time.Time) (int64, error)
	ReplaceItems(ctx context.Context, txID uuid.UUID, items []model.TransactionItem) error
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	return GetDB(ctx, r.db).Create(tx).Error
}

func (r *transactionRepository) Save(ctx context.Context, tx *model.Transaction) error {
	return GetDB(ctx, r.db).Save(tx).Error
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var tx model.Transaction
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		First(&tx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) FindByNumber(ctx context.Context, number string) (*model.Transaction, error) {
	var tx model.Transaction
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("transaction_number = ?", number).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// FindUnsynced returns completed, not-yet-synced transactions in chronological
// order so the server receives them in the order they happened.
func (r *transactionRepository) FindUnsynced(ctx context.Context) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("status = ? AND is_synced = ?", model.TxStatusCompleted, false).
		Order("transaction_date ASC").
		Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) ListByStatus(ctx context.Context, status string) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_number ASC") }).
		Where("status = ?", status).
		Order("transaction_date DESC").
		Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) MarkSynced(ctx context.Context, ids []uuid.UUID, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Model(&model.Transaction{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"is_synced": true, "synced_at": syncedAt}).Error
}

func (r *transactionRepository) CountForTerminalSince(ctx context.Context, terminalID string, since time.Time) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Transaction{}).
		Where("terminal_id = ? AND created_at >= ?", terminalID, since).
		Count(&count).Error
	return count, err
}

func (r *transactionRepository) ReplaceItems(ctx context.Context, txID uuid.UUID, items []model.TransactionItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("transaction_id = ?", txID).Delete(&model.TransactionItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

package repository

import (
	"context"

	"poscore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error)
	Upsert(ctx context.Context, product *model.Product) error
	UpsertUnit(ctx context.Context, unit *model.ProductUnit) error
	UpsertPrice(ctx context.Context, price *model.ProductPrice) error
	FindUnit(ctx context.Context, id uuid.UUID) (*model.ProductUnit, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).
		Preload("Units").
		Preload("Prices").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	err := GetDB(ctx, r.db).
		Preload("Units").
		Preload("Prices").
		Where("sku = ?", sku).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, page, limit int, search string) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Product{}).Where("is_active = ?", true)
	if search != "" {
		db = db.Where("name LIKE ? OR sku LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Preload("Units").Preload("Prices").
		Order("sku ASC").Offset(offset).Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Upsert inserts or overwrites by stable identifier. Used by sync pulls where
// the remote record is authoritative.
func (r *productRepository) Upsert(ctx context.Context, product *model.Product) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(product).Error
}

func (r *productRepository) UpsertUnit(ctx context.Context, unit *model.ProductUnit) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(unit).Error
}

func (r *productRepository) UpsertPrice(ctx context.Context, price *model.ProductPrice) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(price).Error
}

func (r *productRepository) FindUnit(ctx context.Context, id uuid.UUID) (*model.ProductUnit, error) {
	var unit model.ProductUnit
	if err := GetDB(ctx, r.db).First(&unit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}

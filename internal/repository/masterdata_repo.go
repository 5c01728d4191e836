package repository

import (
	"context"

	"poscore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MasterDataRepository covers the simple reference entities the sync engine
// pulls from the server: customers, employees and bank accounts.
type MasterDataRepository interface {
	UpsertCustomer(ctx context.Context, customer *model.Customer) error
	UpsertEmployee(ctx context.Context, employee *model.Employee) error
	UpsertBankAccount(ctx context.Context, account *model.BankAccount) error
	FindCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error)
	ListCustomers(ctx context.Context, page, limit int, search string) ([]model.Customer, int64, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
	ListBankAccounts(ctx context.Context) ([]model.BankAccount, error)
}

type masterDataRepository struct {
	db *gorm.DB
}

func NewMasterDataRepository(db *gorm.DB) MasterDataRepository {
	return &masterDataRepository{db: db}
}

func upsertByID(db *gorm.DB, record interface{}) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

func (r *masterDataRepository) UpsertCustomer(ctx context.Context, customer *model.Customer) error {
	return upsertByID(GetDB(ctx, r.db), customer)
}

func (r *masterDataRepository) UpsertEmployee(ctx context.Context, employee *model.Employee) error {
	return upsertByID(GetDB(ctx, r.db), employee)
}

func (r *masterDataRepository) UpsertBankAccount(ctx context.Context, account *model.BankAccount) error {
	return upsertByID(GetDB(ctx, r.db), account)
}

func (r *masterDataRepository) FindCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *masterDataRepository) FindEmployee(ctx context.Context, id uuid.UUID) (*model.Employee, error) {
	var employee model.Employee
	if err := GetDB(ctx, r.db).First(&employee, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}

func (r *masterDataRepository) ListCustomers(ctx context.Context, page, limit int, search string) ([]model.Customer, int64, error) {
	var customers []model.Customer
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Customer{}).Where("is_active = ?", true)
	if search != "" {
		db = db.Where("name LIKE ? OR code LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("code ASC").Offset(offset).Limit(limit).Find(&customers).Error; err != nil {
		return nil, 0, err
	}

	return customers, total, nil
}

func (r *masterDataRepository) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	var employees []model.Employee
	err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("code ASC").Find(&employees).Error
	return employees, err
}

func (r *masterDataRepository) ListBankAccounts(ctx context.Context) ([]model.BankAccount, error) {
	var accounts []model.BankAccount
	err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("code ASC").Find(&accounts).Error
	return accounts, err
}

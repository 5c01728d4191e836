package database

import (
	"fmt"
	"strings"

	"poscore/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewConnection opens a GORM connection for the configured driver. Driver
// "sqlite" keeps the whole data layer in a local file, which is how a
// single-terminal deployment runs; "postgres" is for a shared back-office
// database.
func NewConnection(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{TranslateError: true})
}

// Migrate creates or updates all tables. Exposed separately so test fixtures
// can run it against their own in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Configuration{},
		&model.Branch{},
		&model.Category{},
		&model.Department{},
		&model.Warehouse{},
		&model.BankAccount{},
		&model.Customer{},
		&model.Employee{},
		&model.Product{},
		&model.ProductUnit{},
		&model.ProductPrice{},
		&model.Transaction{},
		&model.TransactionItem{},
		&model.SyncLog{},
	)
}

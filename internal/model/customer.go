package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is an account-receivable record. PriceLevel selects which
// ProductPrice tier applies when this customer is on the bill.
type Customer struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string           `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name        string           `gorm:"type:varchar(255);not null" json:"name"`
	Phone       string           `gorm:"type:varchar(50)" json:"phone"`
	Email       string           `gorm:"type:varchar(255)" json:"email"`
	Address     string           `gorm:"type:text" json:"address"`
	Branch      string           `gorm:"type:varchar(50)" json:"branch"`
	PriceLevel  int              `gorm:"not null;default:1" json:"price_level"`
	CreditLimit *decimal.Decimal `gorm:"type:decimal(18,2)" json:"credit_limit"`
	IsActive    bool             `gorm:"not null;default:true" json:"is_active"`
	SyncedAt    *time.Time       `json:"synced_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

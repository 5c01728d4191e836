package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reference-only master data imported from the legacy workbook. No computed
// invariants beyond code uniqueness; used for display and wire-format lookups.

type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Branch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Department struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code         string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Level        int       `gorm:"not null;default:1" json:"level"`
	CategoryCode string    `gorm:"type:varchar(50)" json:"category_code"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (d *Department) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

type Warehouse struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	BranchCode string    `gorm:"type:varchar(50)" json:"branch_code"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (w *Warehouse) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

type BankAccount struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name          string     `gorm:"type:varchar(255);not null" json:"name"`
	BranchCode    string     `gorm:"type:varchar(50)" json:"branch_code"`
	BankName      string     `gorm:"type:varchar(255)" json:"bank_name"`
	Currency      string     `gorm:"type:varchar(10)" json:"currency"`
	AccountNumber string     `gorm:"type:varchar(50)" json:"account_number"`
	AccountName   string     `gorm:"type:varchar(255)" json:"account_name"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	SyncedAt      *time.Time `json:"synced_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b *BankAccount) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

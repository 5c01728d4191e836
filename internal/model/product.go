package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the sellable SKU master record. Products are created once per
// unique SKU during workbook import, overwritten by sync pulls (remote is
// authoritative) and never hard-deleted — only deactivated.
type Product struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SKU        string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name       string         `gorm:"type:varchar(255);not null" json:"name"`
	NameEn     string         `gorm:"type:varchar(255)" json:"name_en"`
	NameLo     string         `gorm:"type:varchar(255)" json:"name_lo"`
	Category   string         `gorm:"type:varchar(50);index" json:"category"`
	Department string         `gorm:"type:varchar(50)" json:"department"`
	IsActive   bool           `gorm:"not null;default:true" json:"is_active"`
	Units      []ProductUnit  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"units,omitempty"`
	Prices     []ProductPrice `gorm:"foreignKey:ProductID" json:"prices,omitempty"`
	SyncedAt   *time.Time     `json:"synced_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductUnit is a sellable unit of a product (piece, box, carton...).
// ConversionRate is the quantity of base units this unit represents.
// Exactly one unit per product carries IsBaseUnit: the first unit imported
// from the GOODSMASTER sheet wins the flag.
type ProductUnit struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	UnitCode       string          `gorm:"type:varchar(100);not null" json:"unit_code"`
	UnitName       string          `gorm:"type:varchar(100);not null" json:"unit_name"`
	UnitNameEn     string          `gorm:"type:varchar(100)" json:"unit_name_en"`
	UnitNameLo     string          `gorm:"type:varchar(100)" json:"unit_name_lo"`
	ConversionRate decimal.Decimal `gorm:"type:decimal(10,4);not null;default:1" json:"conversion_rate"`
	Barcode        string          `gorm:"type:varchar(100);index" json:"barcode"`
	IsBaseUnit     bool            `gorm:"not null;default:false" json:"is_base_unit"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (u *ProductUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ProductPrice is one price tier for a product/unit pair. PriceLevel matches
// Customer.PriceLevel at sale time; level 1 is the walk-in price.
type ProductPrice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	UnitID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"unit_id"`
	Unit          *ProductUnit    `gorm:"foreignKey:UnitID" json:"unit,omitempty"`
	PriceLevel    int             `gorm:"not null;default:1" json:"price_level"`
	Price         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	EffectiveDate time.Time       `json:"effective_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *ProductPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

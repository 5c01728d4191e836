package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus enum constants
const (
	TxStatusParked    = "PARKED"
	TxStatusCompleted = "COMPLETED"
	TxStatusCancelled = "CANCELLED"
)

// VatType enum constants
const (
	VatInclusive = "INCLUSIVE"
	VatExclusive = "EXCLUSIVE"
)

// PaymentMethod enum constants
const (
	PaymentCash     = "CASH"
	PaymentTransfer = "TRANSFER"
	PaymentCredit   = "CREDIT"
)

// Transaction is one sales bill. PARKED bills are editable and excluded from
// sync; COMPLETED bills are eligible for push; once IsSynced the record is
// immutable. CANCELLED is terminal and reachable only from PARKED.
type Transaction struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionNumber string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"transaction_number"`
	TerminalID        string            `gorm:"type:varchar(50);not null" json:"terminal_id"`
	ShiftID           *uuid.UUID        `gorm:"type:uuid" json:"shift_id"`
	CustomerID        *uuid.UUID        `gorm:"type:uuid;index" json:"customer_id"`
	Customer          *Customer         `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	SalesEmployeeID   *uuid.UUID        `gorm:"type:uuid" json:"sales_employee_id"`
	ServiceEmployeeID *uuid.UUID        `gorm:"type:uuid" json:"service_employee_id"`
	TransactionDate   time.Time         `gorm:"not null;index" json:"transaction_date"`
	Subtotal          decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	VatAmount         decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"vat_amount"`
	VatType           string            `gorm:"type:varchar(20);not null;default:'INCLUSIVE'" json:"vat_type"`
	VatRate           decimal.Decimal   `gorm:"type:decimal(5,2);not null;default:7" json:"vat_rate"`
	Discount          decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0" json:"discount"`
	GrandTotal        decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"grand_total"`
	PaymentMethod     string            `gorm:"type:varchar(20);not null;default:'CASH'" json:"payment_method"`
	Status            string            `gorm:"type:varchar(20);not null;index" json:"status"`
	IsSynced          bool              `gorm:"not null;default:false;index" json:"is_synced"`
	SyncedAt          *time.Time        `json:"synced_at"`
	Items             []TransactionItem `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TransactionItem is one bill line. Product name, SKU and unit name are
// denormalized at sale time so history survives later master-data changes.
// LineNumber is 1-based and defines print order.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	ProductSKU    string          `gorm:"type:varchar(100);not null" json:"product_sku"`
	ProductName   string          `gorm:"type:varchar(255);not null" json:"product_name"`
	UnitID        uuid.UUID       `gorm:"type:uuid;not null" json:"unit_id"`
	UnitName      string          `gorm:"type:varchar(100);not null" json:"unit_name"`
	Quantity      decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"line_total"`
	Discount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"discount"`
	LineNumber    int             `gorm:"not null" json:"line_number"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *TransactionItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmployeeType enum constants
const (
	EmployeeTypeSales   = "SALES"
	EmployeeTypeService = "SERVICE"
)

// Employee is a staff record referenced by transactions (who sold, who served).
type Employee struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code       string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	Type       string     `gorm:"type:varchar(20);not null;default:'SALES'" json:"type"` // SALES, SERVICE
	BranchCode string     `gorm:"type:varchar(50)" json:"branch_code"`
	IsActive   bool       `gorm:"not null;default:true" json:"is_active"`
	SyncedAt   *time.Time `json:"synced_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncType enum constants
const (
	SyncTypePull = "PULL"
	SyncTypePush = "PUSH"
)

// SyncStatus enum constants
const (
	SyncStatusSuccess = "SUCCESS"
	SyncStatusFailed  = "FAILED"
)

// SyncLog records the outcome of every pull/push attempt, success or not.
type SyncLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Type            string    `gorm:"type:varchar(10);not null;index" json:"type"`   // PULL, PUSH
	Status          string    `gorm:"type:varchar(10);not null;index" json:"status"` // SUCCESS, FAILED
	RecordsAffected int       `gorm:"not null;default:0" json:"records_affected"`
	ErrorMessage    string    `gorm:"type:text" json:"error_message"`
	StartTime       time.Time `gorm:"not null" json:"start_time"`
	EndTime         time.Time `gorm:"not null;index" json:"end_time"`
	CreatedAt       time.Time `json:"created_at"`
}

func (l *SyncLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

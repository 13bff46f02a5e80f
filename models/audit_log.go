package models

import "time"

// AuditLog is an append-only record of one completed workflow action.
type AuditLog struct {
	ID           uint      `gorm:"primaryKey"`
	CreatedAt    time.Time `gorm:"index"`
	SubmissionID string    `gorm:"size:36;index;not null"`
	ActorID      uint      `gorm:"index;not null"`
	Action       string    `gorm:"size:64;not null"`
	StatusBefore string    `gorm:"size:32"`
	StatusAfter  string    `gorm:"size:32"`
	Note         string    `gorm:"type:text"`
}

func (AuditLog) TableName() string { return "audit_log" }

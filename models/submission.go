package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookSubmission is a book-award incentive request. Status is only ever
// changed by the workflow engine.
type BookSubmission struct {
	ID             string `gorm:"primaryKey;size:36"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Title          string               `gorm:"size:512;not null"`
	OwnerID        uint                 `gorm:"index;not null"`
	Status         string               `gorm:"size:32;index;not null"`
	ApprovedAmount *int64               // rupiah; set on APPROVED_CHIEF
	PaymentDate    *time.Time           `gorm:"type:date"`
	RejectionNote  *string              `gorm:"type:text"`
	RejectedBy     *uint                `gorm:"index"`
	Documents      []SubmissionDocument `gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:",omitempty"`
}

// BeforeCreate assigns the opaque id.
func (s *BookSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

package models

import (
	"time"
)

// SubmissionDocument is one supporting-document link of a book submission.
// Kind is unique per submission; setting it again replaces the link.
type SubmissionDocument struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	SubmissionID string `gorm:"size:36;not null;uniqueIndex:idx_submission_doc_kind"`
	Kind         string `gorm:"size:64;not null;uniqueIndex:idx_submission_doc_kind"`
	Link         string `gorm:"size:1024"`
}

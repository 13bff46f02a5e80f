package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lppm/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads submissions and performs the edits that do not change status.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create starts a DRAFT submission owned by owner.
func (s *Store) Create(ctx context.Context, owner uint, title string) (*models.BookSubmission, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "is required"}
	}
	if len(title) > 512 {
		return nil, &ValidationError{Field: "title", Message: "must be at most 512 characters"}
	}
	sub := models.BookSubmission{Title: title, OwnerID: owner, Status: string(Draft)}
	if err := s.db.WithContext(ctx).Create(&sub).Error; err != nil {
		return nil, storage("create submission", err)
	}
	return &sub, nil
}

// Get loads a submission with its documents.
func (s *Store) Get(ctx context.Context, id string) (*models.BookSubmission, error) {
	var sub models.BookSubmission
	err := s.db.WithContext(ctx).Preload("Documents").First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, storage("load submission", err)
	}
	return &sub, nil
}

// ListQuery narrows List. A zero OwnerID lists every owner.
type ListQuery struct {
	OwnerID uint
	Status  Status
	Limit   int
	Offset  int
}

// List returns matching submissions, newest first, and the total count.
func (s *Store) List(ctx context.Context, q ListQuery) ([]models.BookSubmission, int64, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Message: "unknown status " + string(q.Status)}
	}
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 200
	}
	base := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&models.BookSubmission{})
		if q.OwnerID != 0 {
			tx = tx.Where("owner_id = ?", q.OwnerID)
		}
		if q.Status != "" {
			tx = tx.Where("status = ?", string(q.Status))
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, storage("count submissions", err)
	}
	var items []models.BookSubmission
	if err := base().Order("created_at desc").Order("id").Limit(q.Limit).Offset(q.Offset).Find(&items).Error; err != nil {
		return nil, 0, storage("list submissions", err)
	}
	return items, total, nil
}

// AuditTrail returns the audit entries of a submission, oldest first.
func (s *Store) AuditTrail(ctx context.Context, id string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := s.db.WithContext(ctx).Where("submission_id = ?", id).Order("created_at asc").Order("id asc").Find(&entries).Error; err != nil {
		return nil, storage("load audit trail", err)
	}
	return entries, nil
}

// SetDocument sets the link of one supporting document. Only the owner may
// do so, and only while the submission is editable.
func (s *Store) SetDocument(ctx context.Context, id string, actor uint, kind, link string) (*models.SubmissionDocument, error) {
	if !KnownDocumentKind(kind) {
		return nil, &ValidationError{Field: "kind", Message: "must be one of " + strings.Join(DocumentKinds, ", ")}
	}
	var doc models.SubmissionDocument
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub models.BookSubmission
		err := tx.Select("id", "owner_id", "status").First(&sub, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return storage("load submission", err)
		}
		if sub.OwnerID != actor {
			return unauthorized("only the owner may edit documents of %s", id)
		}
		if !Editable(Status(sub.Status)) {
			return &TransitionError{Action: "EDIT_DOCUMENTS", From: Status(sub.Status)}
		}
		now := time.Now()
		doc = models.SubmissionDocument{
			CreatedAt:    now,
			UpdatedAt:    now,
			SubmissionID: id,
			Kind:         kind,
			Link:         strings.TrimSpace(link),
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"link", "updated_at"}),
		}).Create(&doc).Error
		if err != nil {
			return storage("save document", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

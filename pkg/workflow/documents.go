package workflow

import (
	"context"
	"strings"

	"lppm/models"

	"gorm.io/gorm"
)

// DocumentKinds lists the supporting documents a book submission carries.
var DocumentKinds = []string{
	"naskah_buku",
	"sampul",
	"isbn",
	"surat_pernyataan",
	"bukti_penerbitan",
}

// KnownDocumentKind reports whether kind is one of DocumentKinds.
func KnownDocumentKind(kind string) bool {
	for _, k := range DocumentKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DocumentChecker decides whether a submission has enough supporting
// documents to be submitted.
type DocumentChecker interface {
	// MissingDocuments returns nil when the submission is complete, otherwise
	// the kinds still lacking a link.
	MissingDocuments(ctx context.Context, submissionID string) (*IncompleteDocumentsError, error)
}

// GormDocumentChecker counts non-empty links in submission_documents.
type GormDocumentChecker struct {
	db      *gorm.DB
	minimum int
}

// NewDocumentChecker returns a checker requiring at least minimum non-empty
// links among DocumentKinds.
func NewDocumentChecker(db *gorm.DB, minimum int) *GormDocumentChecker {
	if minimum <= 0 || minimum > len(DocumentKinds) {
		minimum = len(DocumentKinds)
	}
	return &GormDocumentChecker{db: db, minimum: minimum}
}

func (c *GormDocumentChecker) MissingDocuments(ctx context.Context, submissionID string) (*IncompleteDocumentsError, error) {
	var docs []models.SubmissionDocument
	if err := c.db.WithContext(ctx).Where("submission_id = ?", submissionID).Find(&docs).Error; err != nil {
		return nil, storage("load documents", err)
	}
	linked := map[string]bool{}
	for _, d := range docs {
		if strings.TrimSpace(d.Link) != "" {
			linked[d.Kind] = true
		}
	}
	have := 0
	var missing []string
	for _, k := range DocumentKinds {
		if linked[k] {
			have++
		} else {
			missing = append(missing, k)
		}
	}
	if have >= c.minimum {
		return nil, nil
	}
	return &IncompleteDocumentsError{Have: have, Need: c.minimum, Missing: missing}, nil
}

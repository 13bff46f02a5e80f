package notify

import (
	"context"
	"strings"
	"time"

	"lppm/models"

	"gorm.io/gorm"
)

// Filter narrows an inbox listing. Zero values mean "no filter"; the order is
// newest first unless Ascending is set.
type Filter struct {
	Query     string
	Read      *bool
	Category  string
	Ascending bool
	Limit     int
	Offset    int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Store reads and updates a user's notifications.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) inbox(ctx context.Context, viewer uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", viewer)
}

// List returns one page of viewer's notifications and the number matching f.
func (s *Store) List(ctx context.Context, viewer uint, f Filter) ([]models.Notification, int64, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	base := func() *gorm.DB {
		tx := s.inbox(ctx, viewer)
		if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
			like := "%" + likeEscaper.Replace(q) + "%"
			tx = tx.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(message) LIKE ? ESCAPE '\')`, like, like)
		}
		if f.Read != nil {
			tx = tx.Where("is_read = ?", *f.Read)
		}
		if f.Category != "" {
			tx = tx.Where("type = ?", f.Category)
		}
		return tx
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	dir := "desc"
	if f.Ascending {
		dir = "asc"
	}
	var rows []models.Notification
	err := base().Order("created_at " + dir).Order("id " + dir).Limit(f.Limit).Offset(f.Offset).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) UnreadCount(ctx context.Context, viewer uint) (int64, error) {
	var n int64
	err := s.inbox(ctx, viewer).Where("is_read = ?", false).Count(&n).Error
	return n, err
}

// MarkRead marks one notification read. Ids that do not exist or belong to
// someone else are ignored, so callers cannot probe other inboxes.
func (s *Store) MarkRead(ctx context.Context, id, viewer uint) error {
	return s.inbox(ctx, viewer).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]any{"is_read": true, "updated_at": time.Now()}).Error
}

// MarkAllRead marks every unread notification of viewer read and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, viewer uint) (int64, error) {
	res := s.inbox(ctx, viewer).
		Where("is_read = ?", false).
		Updates(map[string]any{"is_read": true, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// PurgeRead deletes read notifications of every user created before cutoff.
// With dryRun it only counts them.
func (s *Store) PurgeRead(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	tx := s.db.WithContext(ctx).Model(&models.Notification{}).Where("is_read = ? AND created_at < ?", true, cutoff)
	if dryRun {
		var n int64
		err := tx.Count(&n).Error
		return n, err
	}
	res := tx.Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

package notify

import (
	"context"

	"lppm/models"

	"go.uber.org/zap"
)

// Page is what the inbox endpoint renders.
type Page struct {
	Items  []models.Notification `json:"items"`
	Total  int64                 `json:"total"`
	Unread int64                 `json:"unread"`
}

// Service puts the materializer in front of the store.
type Service struct {
	store *Store
	mat   *Materializer
	log   *zap.Logger
}

func NewService(store *Store, mat *Materializer, log *zap.Logger) *Service {
	return &Service{store: store, mat: mat, log: log}
}

func (s *Service) Store() *Store { return s.store }

// View materializes viewer's pending-work notices and returns one page of the
// inbox. It never fails: any error is logged and yields an empty page, and an
// anonymous viewer always gets one.
func (s *Service) View(ctx context.Context, viewer uint, f Filter) Page {
	empty := Page{Items: []models.Notification{}}
	if viewer == 0 {
		return empty
	}
	if err := s.mat.Materialize(ctx, viewer); err != nil {
		s.log.Warn("materialize notifications", zap.Uint("viewer_id", viewer), zap.Error(err))
	}
	items, total, err := s.store.List(ctx, viewer, f)
	if err != nil {
		s.log.Error("list notifications", zap.Uint("viewer_id", viewer), zap.Error(err))
		return empty
	}
	unread, err := s.store.UnreadCount(ctx, viewer)
	if err != nil {
		s.log.Warn("count unread notifications", zap.Uint("viewer_id", viewer), zap.Error(err))
	}
	if items == nil {
		items = []models.Notification{}
	}
	return Page{Items: items, Total: total, Unread: unread}
}

// UnreadCount is best effort like View, without materializing.
func (s *Service) UnreadCount(ctx context.Context, viewer uint) int64 {
	if viewer == 0 {
		return 0
	}
	n, err := s.store.UnreadCount(ctx, viewer)
	if err != nil {
		s.log.Warn("count unread notifications", zap.Uint("viewer_id", viewer), zap.Error(err))
		return 0
	}
	return n
}

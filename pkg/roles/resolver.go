package roles

import (
	"context"
	"fmt"
	"sort"

	"lppm/models"

	"gorm.io/gorm"
)

// Resolver answers role questions about users.
type Resolver interface {
	// Roles returns the role set of userID. Unknown users have an empty set.
	Roles(ctx context.Context, userID uint) (Set, error)
	// UsersWithRole returns the ids of every user holding r, ascending.
	UsersWithRole(ctx context.Context, r Role) ([]uint, error)
}

// GormResolver reads m_hak_akses.
type GormResolver struct {
	db *gorm.DB
}

func NewGormResolver(db *gorm.DB) *GormResolver {
	return &GormResolver{db: db}
}

func (g *GormResolver) Roles(ctx context.Context, userID uint) (Set, error) {
	var rows []models.HakAkses
	if err := g.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load akses for user %d: %w", userID, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return Parse(rows[0].Akses), nil
}

// UsersWithRole scans every access record. The akses column is a free-form
// list, so matching happens after parsing rather than in SQL.
func (g *GormResolver) UsersWithRole(ctx context.Context, r Role) ([]uint, error) {
	var rows []models.HakAkses
	if err := g.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load akses records: %w", err)
	}
	ids := []uint{}
	for _, row := range rows {
		if Parse(row.Akses).Has(r) {
			ids = append(ids, row.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

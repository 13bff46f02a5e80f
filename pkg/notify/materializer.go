// Package notify maintains the in-app notification inbox.
//
// Transition side effects write point-to-point notices as they happen. On
// top of that, Materializer reconciles a viewer's inbox against current
// submission state each time the inbox is opened, inserting any "pending
// work" notice the viewer should have but does not.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lppm/models"
	"lppm/pkg/metrics"
	"lppm/pkg/roles"
	"lppm/pkg/workflow"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WelcomeTitle identifies the one-time welcome notice. It carries no dedup
// key; its title is what makes it unique per user.
const WelcomeTitle = "Selamat Datang di Portal LPPM"

var insertIfAbsent = clause.OnConflict{
	Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedup_key"}},
	DoNothing: true,
}

// rule derives one class of notices from submission state.
type rule struct {
	name  string
	holds func(roles.Set) bool
	scope func(tx *gorm.DB, viewer uint) *gorm.DB
	build func(r *pass, sub *models.BookSubmission) (models.Notification, error)
}

func holding(r roles.Role) func(roles.Set) bool {
	return func(s roles.Set) bool { return s.Has(r) }
}

// anyone applies owner rules to every viewer; the owner_id filter in the
// scope already restricts them to the viewer's own submissions.
func anyone(roles.Set) bool { return true }

var rules = []rule{
	{
		name:  "new_submission",
		holds: holding(roles.Staff),
		scope: func(tx *gorm.DB, _ uint) *gorm.DB {
			return tx.Where("status = ? AND rejection_note IS NULL", string(workflow.Submitted))
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			return workflow.SubmittedNotice(p.viewer, sub), nil
		},
	},
	{
		name:  "revision",
		holds: holding(roles.Staff),
		scope: func(tx *gorm.DB, _ uint) *gorm.DB {
			return tx.Where("status = ? AND rejection_note IS NOT NULL", string(workflow.Submitted))
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			return workflow.RevisionNotice(p.viewer, sub), nil
		},
	},
	{
		name:  "awaiting_approval",
		holds: holding(roles.Ketua),
		scope: func(tx *gorm.DB, _ uint) *gorm.DB {
			return tx.Where("status = ?", string(workflow.VerifiedStaff))
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			return workflow.VerifiedNotice(p.viewer, sub), nil
		},
	},
	{
		name:  "payout_due",
		holds: holding(roles.Keuangan),
		scope: func(tx *gorm.DB, _ uint) *gorm.DB {
			return tx.Where("status = ? AND approved_amount > 0", string(workflow.ApprovedChief))
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			return workflow.PayoutDueNotice(p.viewer, sub), nil
		},
	},
	{
		name:  "rejection",
		holds: anyone,
		scope: func(tx *gorm.DB, viewer uint) *gorm.DB {
			return tx.Where("status = ? AND owner_id = ?", string(workflow.Rejected), viewer)
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			top, err := p.topTier(sub.RejectedBy)
			if err != nil {
				return models.Notification{}, err
			}
			return workflow.RejectedNotice(p.viewer, sub, top), nil
		},
	},
	{
		name:  "payment_success",
		holds: anyone,
		scope: func(tx *gorm.DB, viewer uint) *gorm.DB {
			return tx.Where("status = ? AND owner_id = ?", string(workflow.Paid), viewer)
		},
		build: func(p *pass, sub *models.BookSubmission) (models.Notification, error) {
			return workflow.PaidNotice(p.viewer, sub), nil
		},
	},
}

// Materializer inserts missing pending-work notices. It reads submissions and
// only ever inserts notifications.
type Materializer struct {
	db    *gorm.DB
	roles roles.Resolver
	log   *zap.Logger
	now   func() time.Time
}

func NewMaterializer(db *gorm.DB, resolver roles.Resolver, log *zap.Logger) *Materializer {
	return &Materializer{db: db, roles: resolver, log: log, now: time.Now}
}

// pass is the state of one Materialize call.
type pass struct {
	ctx    context.Context
	m      *Materializer
	viewer uint
	tiers  map[uint]bool
}

func (p *pass) topTier(rejector *uint) (bool, error) {
	if rejector == nil {
		return false, nil
	}
	if top, ok := p.tiers[*rejector]; ok {
		return top, nil
	}
	set, err := p.m.roles.Roles(p.ctx, *rejector)
	if err != nil {
		return false, fmt.Errorf("resolve rejector %d: %w", *rejector, err)
	}
	p.tiers[*rejector] = set.IsTopTier()
	return p.tiers[*rejector], nil
}

// Materialize runs every rule that applies to viewer's roles and the welcome
// check. Rules fail independently; the returned error joins all failures.
// Running it twice in a row inserts nothing the second time.
func (m *Materializer) Materialize(ctx context.Context, viewer uint) error {
	if viewer == 0 {
		return nil
	}
	held, err := roles.Cached(ctx, m.roles, viewer)
	if err != nil {
		return fmt.Errorf("resolve roles of viewer %d: %w", viewer, err)
	}
	p := &pass{ctx: ctx, m: m, viewer: viewer, tiers: map[uint]bool{}}

	var errs []error
	for _, r := range rules {
		if !r.holds(held) {
			continue
		}
		n, err := m.run(p, r)
		if err != nil {
			metrics.MaterializeError(r.name)
			m.log.Warn("notification rule failed",
				zap.Uint("viewer_id", viewer),
				zap.String("rule", r.name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("rule %s: %w", r.name, err))
			continue
		}
		metrics.Materialized(r.name, n)
	}
	if err := m.welcome(ctx, viewer); err != nil {
		metrics.MaterializeError("welcome")
		m.log.Warn("welcome notice failed", zap.Uint("viewer_id", viewer), zap.Error(err))
		errs = append(errs, fmt.Errorf("welcome: %w", err))
	}
	return errors.Join(errs...)
}

func (m *Materializer) run(p *pass, r rule) (int64, error) {
	var subs []models.BookSubmission
	q := r.scope(m.db.WithContext(p.ctx).Model(&models.BookSubmission{}), p.viewer)
	if err := q.Order("created_at").Find(&subs).Error; err != nil {
		return 0, err
	}
	if len(subs) == 0 {
		return 0, nil
	}
	now := m.now()
	notes := make([]models.Notification, 0, len(subs))
	for i := range subs {
		n, err := r.build(p, &subs[i])
		if err != nil {
			return 0, err
		}
		n.CreatedAt, n.UpdatedAt = now, now
		notes = append(notes, n)
	}
	res := m.db.WithContext(p.ctx).Clauses(insertIfAbsent).CreateInBatches(&notes, 100)
	return res.RowsAffected, res.Error
}

// welcome inserts the welcome notice once per user. The user row is locked
// so two concurrent first visits cannot both insert it.
func (m *Materializer) welcome(ctx context.Context, viewer uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users []models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", viewer).Limit(1).Find(&users).Error; err != nil {
			return err
		}
		if len(users) == 0 {
			return nil
		}
		var count int64
		if err := tx.Model(&models.Notification{}).Where("user_id = ? AND title = ?", viewer, WelcomeTitle).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		var profiles []models.Profile
		if err := tx.Where("user_id = ?", viewer).Limit(1).Find(&profiles).Error; err != nil {
			return err
		}
		var prof *models.Profile
		if len(profiles) > 0 {
			prof = &profiles[0]
		}
		now := m.now()
		n := models.Notification{
			CreatedAt: now,
			UpdatedAt: now,
			UserID:    viewer,
			Title:     WelcomeTitle,
			Message:   welcomeMessage(prof),
			Type:      workflow.CategorySystem,
		}
		return tx.Create(&n).Error
	})
}

func welcomeMessage(p *models.Profile) string {
	if missing := p.MissingFields(); len(missing) > 0 {
		return fmt.Sprintf("Silakan lengkapi profil Anda (%s) sebelum mengajukan insentif buku.", strings.Join(missing, ", "))
	}
	return "Profil Anda sudah lengkap. Anda dapat langsung mengajukan insentif buku melalui portal ini."
}

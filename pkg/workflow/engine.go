package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lppm/models"
	"lppm/pkg/metrics"
	"lppm/pkg/roles"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxNoteLength = 2000

// refreshOnConflict re-raises a point-to-point notice that already exists for
// the same event, such as a second rejection after a resubmission.
var refreshOnConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedup_key"}},
	DoUpdates: clause.AssignmentColumns([]string{"title", "message", "type", "is_read", "updated_at"}),
}

// Engine applies status transitions. Each transition updates the submission,
// appends an audit entry and writes its notifications in one transaction.
type Engine struct {
	db    *gorm.DB
	roles roles.Resolver
	docs  DocumentChecker
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(db *gorm.DB, resolver roles.Resolver, docs DocumentChecker, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{db: db, roles: resolver, docs: docs, log: log, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// change is one guarded status update.
type change struct {
	action Action
	actor  uint
	fields map[string]any
	note   string
	// notices builds the notifications from the updated row.
	notices func(sub *models.BookSubmission) []models.Notification
}

// Submit moves a DRAFT submission of actor to SUBMITTED and notifies every
// reviewing staff member.
func (e *Engine) Submit(ctx context.Context, id string, actor uint) (*models.BookSubmission, error) {
	sub, err := e.submitPrecheck(ctx, ActionSubmit, id, actor)
	if err != nil {
		return nil, e.fail(ActionSubmit, id, actor, err)
	}
	staff, err := e.roles.UsersWithRole(ctx, roles.Staff)
	if err != nil {
		return nil, e.fail(ActionSubmit, id, actor, storage("resolve reviewing staff", err))
	}
	return e.apply(ctx, sub.ID, change{
		action: ActionSubmit,
		actor:  actor,
		notices: func(s *models.BookSubmission) []models.Notification {
			return fanOut(staff, s, SubmittedNotice)
		},
	})
}

// Resubmit sends a rejected submission back to SUBMITTED. The rejection note
// is kept so reviewers see it as a revision.
func (e *Engine) Resubmit(ctx context.Context, id string, actor uint) (*models.BookSubmission, error) {
	sub, err := e.submitPrecheck(ctx, ActionResubmit, id, actor)
	if err != nil {
		return nil, e.fail(ActionResubmit, id, actor, err)
	}
	staff, err := e.roles.UsersWithRole(ctx, roles.Staff)
	if err != nil {
		return nil, e.fail(ActionResubmit, id, actor, storage("resolve reviewing staff", err))
	}
	return e.apply(ctx, sub.ID, change{
		action: ActionResubmit,
		actor:  actor,
		notices: func(s *models.BookSubmission) []models.Notification {
			return fanOut(staff, s, RevisionNotice)
		},
	})
}

// submitPrecheck enforces ownership, status and document completeness for
// the owner-driven actions.
func (e *Engine) submitPrecheck(ctx context.Context, a Action, id string, actor uint) (*models.BookSubmission, error) {
	sub, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.OwnerID != actor {
		return nil, unauthorized("only the owner may %s submission %s", strings.ToLower(string(a)), id)
	}
	if !Allowed(a, Status(sub.Status)) {
		return nil, &TransitionError{Action: a, From: Status(sub.Status)}
	}
	missing, err := e.docs.MissingDocuments(ctx, id)
	if err != nil {
		return nil, storage("check documents", err)
	}
	if missing != nil {
		return nil, missing
	}
	return sub, nil
}

// Verify marks a SUBMITTED submission as checked by reviewing staff and
// notifies the approving authority.
func (e *Engine) Verify(ctx context.Context, id string, actor uint) (*models.BookSubmission, error) {
	if err := e.require(ctx, actor, roles.Staff); err != nil {
		return nil, e.fail(ActionVerify, id, actor, err)
	}
	chiefs, err := e.roles.UsersWithRole(ctx, roles.Ketua)
	if err != nil {
		return nil, e.fail(ActionVerify, id, actor, storage("resolve approving authority", err))
	}
	return e.apply(ctx, id, change{
		action: ActionVerify,
		actor:  actor,
		notices: func(s *models.BookSubmission) []models.Notification {
			return fanOut(chiefs, s, VerifiedNotice)
		},
	})
}

// Approve sets the approved amount and notifies finance.
func (e *Engine) Approve(ctx context.Context, id string, actor uint, amount int64) (*models.BookSubmission, error) {
	if err := e.require(ctx, actor, roles.Ketua); err != nil {
		return nil, e.fail(ActionApprove, id, actor, err)
	}
	if amount < 0 {
		return nil, e.fail(ActionApprove, id, actor, &ValidationError{Field: "amount", Message: "must not be negative"})
	}
	finance, err := e.roles.UsersWithRole(ctx, roles.Keuangan)
	if err != nil {
		return nil, e.fail(ActionApprove, id, actor, storage("resolve finance", err))
	}
	return e.apply(ctx, id, change{
		action: ActionApprove,
		actor:  actor,
		fields: map[string]any{"approved_amount": amount},
		note:   "Disetujui sebesar Rp " + Rupiah(amount),
		notices: func(s *models.BookSubmission) []models.Notification {
			return fanOut(finance, s, PayoutDueNotice)
		},
	})
}

// Reject records the note and rejector and notifies the owner. The message
// depends on whether the rejector holds the top-tier role.
func (e *Engine) Reject(ctx context.Context, id string, actor uint, note string) (*models.BookSubmission, error) {
	held, err := roles.Cached(ctx, e.roles, actor)
	if err != nil {
		return nil, e.fail(ActionReject, id, actor, storage("resolve roles", err))
	}
	if !held.HasAny(roles.Staff, roles.Ketua) {
		return nil, e.fail(ActionReject, id, actor, unauthorized("user %d may not reject submissions", actor))
	}
	note = strings.TrimSpace(note)
	switch {
	case note == "":
		return nil, e.fail(ActionReject, id, actor, &ValidationError{Field: "note", Message: "is required"})
	case len(note) > maxNoteLength:
		return nil, e.fail(ActionReject, id, actor, &ValidationError{Field: "note", Message: fmt.Sprintf("must be at most %d characters", maxNoteLength)})
	}
	topTier := held.IsTopTier()
	return e.apply(ctx, id, change{
		action: ActionReject,
		actor:  actor,
		fields: map[string]any{"rejection_note": note, "rejected_by": actor},
		note:   note,
		notices: func(s *models.BookSubmission) []models.Notification {
			return []models.Notification{RejectedNotice(s.OwnerID, s, topTier)}
		},
	})
}

// Disburse records the payment date and notifies the owner. paymentDate is
// YYYY-MM-DD and may not lie in the future.
func (e *Engine) Disburse(ctx context.Context, id string, actor uint, paymentDate string) (*models.BookSubmission, error) {
	if err := e.require(ctx, actor, roles.Keuangan); err != nil {
		return nil, e.fail(ActionDisburse, id, actor, err)
	}
	paid, err := time.Parse("2006-01-02", strings.TrimSpace(paymentDate))
	if err != nil {
		return nil, e.fail(ActionDisburse, id, actor, &ValidationError{Field: "payment_date", Message: "must be a date in YYYY-MM-DD format"})
	}
	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if paid.After(today) {
		return nil, e.fail(ActionDisburse, id, actor, &ValidationError{Field: "payment_date", Message: "must not be in the future"})
	}
	return e.apply(ctx, id, change{
		action: ActionDisburse,
		actor:  actor,
		fields: map[string]any{"payment_date": paid},
		note:   "Dicairkan pada " + paid.Format("2006-01-02"),
		notices: func(s *models.BookSubmission) []models.Notification {
			return []models.Notification{PaidNotice(s.OwnerID, s)}
		},
	})
}

func (e *Engine) require(ctx context.Context, actor uint, r roles.Role) error {
	held, err := roles.Cached(ctx, e.roles, actor)
	if err != nil {
		return storage("resolve roles", err)
	}
	if !held.Has(r) {
		return unauthorized("user %d lacks role %s", actor, r)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (*models.BookSubmission, error) {
	var sub models.BookSubmission
	err := e.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, storage("load submission", err)
	}
	return &sub, nil
}

// apply runs c as a compare-and-swap on the submission's current status.
// A concurrent transition that got there first makes RowsAffected zero and
// this call fails with a TransitionError; nothing is written.
func (e *Engine) apply(ctx context.Context, id string, c change) (*models.BookSubmission, error) {
	target, _ := Target(c.action)
	var sub models.BookSubmission
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.BookSubmission
		err := tx.Select("id", "status").First(&cur, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return storage("load submission", err)
		}
		from := Status(cur.Status)
		if !Allowed(c.action, from) {
			return &TransitionError{Action: c.action, From: from}
		}

		now := e.now()
		fields := map[string]any{"status": string(target), "updated_at": now}
		for k, v := range c.fields {
			fields[k] = v
		}
		res := tx.Model(&models.BookSubmission{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(fields)
		if res.Error != nil {
			return storage("update submission", res.Error)
		}
		if res.RowsAffected == 0 {
			return &TransitionError{Action: c.action, From: from}
		}
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return storage("reload submission", err)
		}

		entry := models.AuditLog{
			CreatedAt:    now,
			SubmissionID: id,
			ActorID:      c.actor,
			Action:       string(c.action),
			StatusBefore: string(from),
			StatusAfter:  string(target),
			Note:         c.note,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return storage("append audit log", err)
		}

		if c.notices == nil {
			return nil
		}
		notes := c.notices(&sub)
		if len(notes) == 0 {
			return nil
		}
		for i := range notes {
			notes[i].CreatedAt = now
			notes[i].UpdatedAt = now
		}
		if err := tx.Clauses(refreshOnConflict).Create(&notes).Error; err != nil {
			return storage("enqueue notifications", err)
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(c.action, id, c.actor, err)
	}
	metrics.Transition(string(c.action), "ok")
	e.log.Info("submission transitioned",
		zap.String("submission_id", id),
		zap.Uint("actor_id", c.actor),
		zap.String("action", string(c.action)),
		zap.String("status", sub.Status),
	)
	return &sub, nil
}

// fail logs and counts a failed transition and returns err unchanged.
func (e *Engine) fail(a Action, id string, actor uint, err error) error {
	class := Class(err)
	metrics.Transition(string(a), class)
	fields := []zap.Field{
		zap.String("submission_id", id),
		zap.Uint("actor_id", actor),
		zap.String("action", string(a)),
		zap.Error(err),
	}
	if class == "storage" {
		e.log.Error("submission transition failed", fields...)
	} else {
		e.log.Warn("submission transition refused", fields...)
	}
	return err
}

func fanOut(to []uint, sub *models.BookSubmission, build func(uint, *models.BookSubmission) models.Notification) []models.Notification {
	out := make([]models.Notification, 0, len(to))
	for _, id := range to {
		out = append(out, build(id, sub))
	}
	return out
}

package notify

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"lppm/models"
	"lppm/pkg/roles"
	"lppm/pkg/testdb"
	"lppm/pkg/workflow"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	mat     *Materializer
	store   *Store
	svc     *Service
	owner   uint
	other   uint
	staff   uint
	ketua   uint
	finance uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	f := &fixture{db: db, store: NewStore(db)}
	f.owner = testdb.Grant(t, db, "dosen", "Dosen")
	f.other = testdb.Grant(t, db, "dosen2", "Dosen")
	f.staff = testdb.Grant(t, db, "staff", "Staff LPPM")
	f.ketua = testdb.Grant(t, db, "ketua", "Ketua LPPM")
	f.finance = testdb.Grant(t, db, "keu", "Keuangan")
	f.mat = NewMaterializer(db, roles.NewGormResolver(db), zap.NewNop())
	f.mat.now = func() time.Time { return fixedNow }
	f.svc = NewService(f.store, f.mat, zap.NewNop())
	return f
}

// seed inserts a submission of owner in the given state.
func (f *fixture) seed(t *testing.T, title string, status workflow.Status, edit func(*models.BookSubmission)) *models.BookSubmission {
	t.Helper()
	sub := models.BookSubmission{Title: title, OwnerID: f.owner, Status: string(status)}
	if edit != nil {
		edit(&sub)
	}
	if err := f.db.Create(&sub).Error; err != nil {
		t.Fatalf("seed %s: %v", title, err)
	}
	return &sub
}

func ptr[T any](v T) *T { return &v }

// keys lists the dedup keys in user's inbox, sorted.
func (f *fixture) keys(t *testing.T, user uint) []string {
	t.Helper()
	var rows []models.Notification
	if err := f.db.Where("user_id = ? AND dedup_key IS NOT NULL", user).Find(&rows).Error; err != nil {
		t.Fatalf("inbox: %v", err)
	}
	out := []string{}
	for _, n := range rows {
		out = append(out, *n.DedupKey)
	}
	sort.Strings(out)
	return out
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.Notification{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func sorted(s ...string) []string {
	sort.Strings(s)
	return s
}

func TestMaterializeByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fresh := f.seed(t, "Buku Baru", workflow.Submitted, nil)
	revised := f.seed(t, "Buku Revisi", workflow.Submitted, func(s *models.BookSubmission) {
		s.RejectionNote = ptr("perbaiki daftar pustaka")
		s.RejectedBy = ptr(f.staff)
	})
	verified := f.seed(t, "Buku Terverifikasi", workflow.VerifiedStaff, nil)
	due := f.seed(t, "Buku Disetujui", workflow.ApprovedChief, func(s *models.BookSubmission) { s.ApprovedAmount = ptr(int64(5000000)) })
	f.seed(t, "Buku Nol", workflow.ApprovedChief, func(s *models.BookSubmission) { s.ApprovedAmount = ptr(int64(0)) })
	paid := f.seed(t, "Buku Dibayar", workflow.Paid, func(s *models.BookSubmission) {
		s.ApprovedAmount = ptr(int64(2500000))
		s.PaymentDate = ptr(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	})
	rejected := f.seed(t, "Buku Ditolak", workflow.Rejected, func(s *models.BookSubmission) {
		s.RejectionNote = ptr("tidak memenuhi syarat")
		s.RejectedBy = ptr(f.ketua)
	})
	f.seed(t, "Draf", workflow.Draft, nil)

	for _, u := range []uint{f.owner, f.other, f.staff, f.ketua, f.finance} {
		if err := f.mat.Materialize(ctx, u); err != nil {
			t.Fatalf("materialize %d: %v", u, err)
		}
	}

	cases := []struct {
		name string
		user uint
		want []string
	}{
		{"staff", f.staff, sorted(workflow.DedupKey(workflow.PrefixSubmission, fresh.ID), workflow.DedupKey(workflow.PrefixRevision, revised.ID))},
		{"ketua", f.ketua, []string{workflow.DedupKey(workflow.PrefixVerified, verified.ID)}},
		{"finance", f.finance, []string{workflow.DedupKey(workflow.PrefixPaymentChief, due.ID)}},
		{"owner", f.owner, sorted(workflow.DedupKey(workflow.PrefixReject, rejected.ID), workflow.DedupKey(workflow.PrefixPaymentSuccess, paid.ID))},
		{"other lecturer", f.other, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.keys(t, tc.user); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("keys = %v, want %v", got, tc.want)
			}
		})
	}

	var payout models.Notification
	f.db.Where("user_id = ? AND dedup_key = ?", f.finance, workflow.DedupKey(workflow.PrefixPaymentChief, due.ID)).First(&payout)
	if !strings.Contains(payout.Message, "Rp 5.000.000") {
		t.Fatalf("payout message = %q", payout.Message)
	}
	var paidNote models.Notification
	f.db.Where("user_id = ? AND dedup_key = ?", f.owner, workflow.DedupKey(workflow.PrefixPaymentSuccess, paid.ID)).First(&paidNote)
	if !strings.Contains(paidNote.Message, "10-01-2025") {
		t.Fatalf("paid message = %q", paidNote.Message)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "Satu", workflow.Submitted, nil)
	f.seed(t, "Dua", workflow.Submitted, nil)

	if err := f.mat.Materialize(ctx, f.staff); err != nil {
		t.Fatalf("first: %v", err)
	}
	first := f.count(t)
	if err := f.mat.Materialize(ctx, f.staff); err != nil {
		t.Fatalf("second: %v", err)
	}
	if got := f.count(t); got != first {
		t.Fatalf("second pass inserted %d rows", got-first)
	}
	// two keyed notices plus the welcome
	if first != 3 {
		t.Fatalf("count = %d, want 3", first)
	}
}

func TestMaterializeKeepsReadState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "Satu", workflow.Submitted, nil)
	if err := f.mat.Materialize(ctx, f.staff); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.MarkAllRead(ctx, f.staff); err != nil {
		t.Fatal(err)
	}
	if err := f.mat.Materialize(ctx, f.staff); err != nil {
		t.Fatal(err)
	}
	n, err := f.store.UnreadCount(ctx, f.staff)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("unread = %d after re-materializing read notices", n)
	}
}

func TestRejectionTemplateFollowsRejectorTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	byKetua := f.seed(t, "A", workflow.Rejected, func(s *models.BookSubmission) {
		s.RejectionNote = ptr("ditolak")
		s.RejectedBy = ptr(f.ketua)
	})
	byStaff := f.seed(t, "B", workflow.Rejected, func(s *models.BookSubmission) {
		s.RejectionNote = ptr("lengkapi ISBN")
		s.RejectedBy = ptr(f.staff)
	})
	if err := f.mat.Materialize(ctx, f.owner); err != nil {
		t.Fatal(err)
	}
	title := func(sub *models.BookSubmission) string {
		var n models.Notification
		if err := f.db.Where("user_id = ? AND dedup_key = ?", f.owner, workflow.DedupKey(workflow.PrefixReject, sub.ID)).First(&n).Error; err != nil {
			t.Fatalf("notice for %s: %v", sub.Title, err)
		}
		return n.Title
	}
	if got := title(byKetua); got != "Pengajuan Ditolak" {
		t.Errorf("ketua rejection title = %q", got)
	}
	if got := title(byStaff); got != "Revisi Diperlukan" {
		t.Errorf("staff rejection title = %q", got)
	}
}

func TestMaterializeNeverTouchesSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "A", workflow.Submitted, nil)
	f.seed(t, "B", workflow.ApprovedChief, func(s *models.BookSubmission) { s.ApprovedAmount = ptr(int64(100)) })
	f.seed(t, "C", workflow.Rejected, func(s *models.BookSubmission) { s.RejectionNote = ptr("x"); s.RejectedBy = ptr(f.ketua) })

	snapshot := func() []models.BookSubmission {
		var subs []models.BookSubmission
		if err := f.db.Order("id").Find(&subs).Error; err != nil {
			t.Fatal(err)
		}
		return subs
	}
	before := snapshot()
	for _, u := range []uint{f.owner, f.staff, f.ketua, f.finance} {
		if err := f.mat.Materialize(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if after := snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("submissions changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestWelcomeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := f.mat.Materialize(ctx, f.other); err != nil {
			t.Fatal(err)
		}
	}
	var rows []models.Notification
	f.db.Where("user_id = ? AND title = ?", f.other, WelcomeTitle).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("welcome notices = %d, want 1", len(rows))
	}
	if rows[0].DedupKey != nil || rows[0].Type != workflow.CategorySystem {
		t.Fatalf("welcome = %+v", rows[0])
	}
	if !strings.Contains(rows[0].Message, "lengkapi profil") {
		t.Fatalf("message for empty profile = %q", rows[0].Message)
	}
}

func TestWelcomeForCompleteProfile(t *testing.T) {
	f := newFixture(t)
	prof := models.Profile{UserID: f.owner, Name: "Dr. Sari", NIDN: "0012345678", Email: "sari@univ.ac.id", Phone: "0812", Faculty: "FEB", Program: "Akuntansi"}
	if err := f.db.Create(&prof).Error; err != nil {
		t.Fatal(err)
	}
	if err := f.mat.Materialize(context.Background(), f.owner); err != nil {
		t.Fatal(err)
	}
	var n models.Notification
	if err := f.db.Where("user_id = ? AND title = ?", f.owner, WelcomeTitle).First(&n).Error; err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(n.Message, "sudah lengkap") {
		t.Fatalf("message = %q", n.Message)
	}
}

func (f *fixture) insert(t *testing.T, user uint, title, msg, category string, read bool, at time.Time) models.Notification {
	t.Helper()
	n := models.Notification{CreatedAt: at, UpdatedAt: at, UserID: user, Title: title, Message: msg, Type: category, IsRead: read}
	if err := f.db.Create(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func titles(rows []models.Notification) []string {
	out := []string{}
	for _, n := range rows {
		out = append(out, n.Title)
	}
	return out
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.owner
	f.insert(t, u, "Pengajuan Ditolak", "Catatan: ISBN salah", workflow.CategoryRejection, false, fixedNow.Add(-3*time.Hour))
	f.insert(t, u, "Dana Cair", "Dana 100% cair", workflow.CategoryPayment, true, fixedNow.Add(-2*time.Hour))
	f.insert(t, u, "Info", "isbn baru tersedia", workflow.CategorySystem, false, fixedNow.Add(-1*time.Hour))
	f.insert(t, f.other, "Milik orang lain", "isbn", workflow.CategorySystem, false, fixedNow)

	cases := []struct {
		name      string
		filter    Filter
		want      []string
		wantTotal int64
	}{
		{"all newest first", Filter{}, []string{"Info", "Dana Cair", "Pengajuan Ditolak"}, 3},
		{"ascending", Filter{Ascending: true}, []string{"Pengajuan Ditolak", "Dana Cair", "Info"}, 3},
		{"query is case insensitive over title and message", Filter{Query: "ISBN"}, []string{"Info", "Pengajuan Ditolak"}, 2},
		{"query percent is literal", Filter{Query: "100%"}, []string{"Dana Cair"}, 1},
		{"unread", Filter{Read: ptr(false)}, []string{"Info", "Pengajuan Ditolak"}, 2},
		{"read", Filter{Read: ptr(true)}, []string{"Dana Cair"}, 1},
		{"category", Filter{Category: workflow.CategoryRejection}, []string{"Pengajuan Ditolak"}, 1},
		{"page", Filter{Limit: 1, Offset: 1}, []string{"Dana Cair"}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, total, err := f.store.List(ctx, u, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			if got := titles(rows); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("titles = %v, want %v", got, tc.want)
			}
			if total != tc.wantTotal {
				t.Fatalf("total = %d, want %d", total, tc.wantTotal)
			}
		})
	}
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.insert(t, f.owner, "A", "a", workflow.CategorySystem, false, fixedNow)
	f.insert(t, f.owner, "B", "b", workflow.CategorySystem, false, fixedNow)
	theirs := f.insert(t, f.other, "C", "c", workflow.CategorySystem, false, fixedNow)

	if err := f.store.MarkRead(ctx, theirs.ID, f.owner); err != nil {
		t.Fatalf("foreign mark read: %v", err)
	}
	if err := f.store.MarkRead(ctx, 99999, f.owner); err != nil {
		t.Fatalf("missing mark read: %v", err)
	}
	var reloaded models.Notification
	f.db.First(&reloaded, theirs.ID)
	if reloaded.IsRead {
		t.Fatal("marked another user's notification read")
	}

	if err := f.store.MarkRead(ctx, mine.ID, f.owner); err != nil {
		t.Fatal(err)
	}
	if err := f.store.MarkRead(ctx, mine.ID, f.owner); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if n, _ := f.store.UnreadCount(ctx, f.owner); n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}
	changed, err := f.store.MarkAllRead(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Fatalf("mark all changed %d, want 1", changed)
	}
	if n, _ := f.store.UnreadCount(ctx, f.other); n != 1 {
		t.Fatalf("other user's unread = %d, want 1", n)
	}
}

func TestPurgeRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := fixedNow.AddDate(0, 0, -100)
	f.insert(t, f.owner, "old read", "x", workflow.CategorySystem, true, old)
	f.insert(t, f.owner, "old unread", "x", workflow.CategorySystem, false, old)
	f.insert(t, f.owner, "new read", "x", workflow.CategorySystem, true, fixedNow)
	cutoff := fixedNow.AddDate(0, 0, -90)

	n, err := f.store.PurgeRead(ctx, cutoff, true)
	if err != nil || n != 1 {
		t.Fatalf("dry run = %d, %v", n, err)
	}
	if f.count(t) != 3 {
		t.Fatal("dry run deleted rows")
	}
	n, err = f.store.PurgeRead(ctx, cutoff, false)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if f.count(t) != 2 {
		t.Fatalf("count after purge = %d, want 2", f.count(t))
	}
}

func TestViewAnonymous(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", workflow.Submitted, nil)
	page := f.svc.View(context.Background(), 0, Filter{})
	if len(page.Items) != 0 || page.Total != 0 {
		t.Fatalf("anonymous page = %+v", page)
	}
	if f.count(t) != 0 {
		t.Fatal("anonymous view inserted notifications")
	}
}

func TestViewMaterializesThenLists(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "A", workflow.Submitted, nil)
	page := f.svc.View(context.Background(), f.staff, Filter{})
	if page.Total != 2 || page.Unread != 2 {
		t.Fatalf("page total=%d unread=%d, want 2 and 2", page.Total, page.Unread)
	}
}

type brokenResolver struct{}

func (brokenResolver) Roles(context.Context, uint) (roles.Set, error) {
	return 0, errors.New("directory unavailable")
}

func (brokenResolver) UsersWithRole(context.Context, roles.Role) ([]uint, error) {
	return nil, errors.New("directory unavailable")
}

func TestViewSurvivesMaterializerFailure(t *testing.T) {
	f := newFixture(t)
	f.insert(t, f.staff, "Lama", "sudah ada", workflow.CategorySystem, false, fixedNow)
	svc := NewService(f.store, NewMaterializer(f.db, brokenResolver{}, zap.NewNop()), zap.NewNop())
	page := svc.View(context.Background(), f.staff, Filter{})
	if got := titles(page.Items); !reflect.DeepEqual(got, []string{"Lama"}) {
		t.Fatalf("items = %v", got)
	}
}

func TestViewSurvivesStorageFailure(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.Close()
	page := f.svc.View(context.Background(), f.staff, Filter{})
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("page = %+v, want empty", page)
	}
	if n := f.svc.UnreadCount(context.Background(), f.staff); n != 0 {
		t.Fatalf("unread = %d", n)
	}
}

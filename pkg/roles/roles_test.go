package roles

import (
	"context"
	"reflect"
	"testing"

	"lppm/pkg/testdb"
)

func TestParse(t *testing.T) {
	cases := []struct {
		akses string
		want  Set
	}{
		{"", 0},
		{"Dosen", Of(Dosen)},
		{" dosen , STAFF ", Of(Dosen, Staff)},
		{"Ketua  LPPM", Of(Ketua)},
		{"Staff Keuangan,Dosen", Of(Keuangan, Dosen)},
		{"bendahara,,unknown", Of(Keuangan)},
		{"staf,staff", Of(Staff)},
	}
	for _, c := range cases {
		if got := Parse(c.akses); got != c.want {
			t.Errorf("Parse(%q) = %v, want %v", c.akses, got, c.want)
		}
	}
}

func TestSetRanking(t *testing.T) {
	s := Of(Dosen, Staff)
	if s.IsTopTier() {
		t.Fatalf("staff set reported top tier")
	}
	if got := s.Highest(); got != Staff {
		t.Fatalf("Highest = %v, want Staff", got)
	}
	s = s.With(Ketua)
	if !s.IsTopTier() {
		t.Fatalf("set with Ketua not top tier")
	}
	if !s.HasAny(Keuangan, Ketua) || s.HasAny(Keuangan) {
		t.Fatalf("HasAny mismatch for %v", s)
	}
	if got := Set(0).Highest(); got != 0 {
		t.Fatalf("empty Highest = %v", got)
	}
	if got, want := s.String(), "Dosen,Staff,Ketua"; got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

func TestGormResolver(t *testing.T) {
	db := testdb.Open(t)
	a := testdb.Grant(t, db, "a", "Dosen")
	b := testdb.Grant(t, db, "b", "Staff,Dosen")
	c := testdb.Grant(t, db, "c", "staff lppm")
	testdb.Grant(t, db, "d", "Ketua")

	r := NewGormResolver(db)
	ctx := context.Background()

	got, err := r.Roles(ctx, b)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if got != Of(Staff, Dosen) {
		t.Fatalf("Roles(b) = %v", got)
	}
	none, err := r.Roles(ctx, 9999)
	if err != nil || !none.Empty() {
		t.Fatalf("Roles(unknown) = %v, %v", none, err)
	}

	ids, err := r.UsersWithRole(ctx, Staff)
	if err != nil {
		t.Fatalf("UsersWithRole: %v", err)
	}
	if !reflect.DeepEqual(ids, []uint{b, c}) {
		t.Fatalf("staff ids = %v, want %v", ids, []uint{b, c})
	}
	ids, _ = r.UsersWithRole(ctx, Dosen)
	if !reflect.DeepEqual(ids, []uint{a, b}) {
		t.Fatalf("dosen ids = %v", ids)
	}
}

type countingResolver struct {
	calls int
	set   Set
}

func (c *countingResolver) Roles(context.Context, uint) (Set, error) {
	c.calls++
	return c.set, nil
}

func (c *countingResolver) UsersWithRole(context.Context, Role) ([]uint, error) { return nil, nil }

func TestCachedUsesRequestRoles(t *testing.T) {
	r := &countingResolver{set: Of(Dosen)}
	ctx := NewContext(context.Background(), 7, Of(Ketua))

	got, err := Cached(ctx, r, 7)
	if err != nil || got != Of(Ketua) || r.calls != 0 {
		t.Fatalf("Cached(7) = %v, %v after %d lookups", got, err, r.calls)
	}
	// another user's roles are never taken from the request
	got, err = Cached(ctx, r, 8)
	if err != nil || got != Of(Dosen) || r.calls != 1 {
		t.Fatalf("Cached(8) = %v, %v after %d lookups", got, err, r.calls)
	}
	if _, ok := FromContext(context.Background(), 7); ok {
		t.Fatal("empty context carried roles")
	}
}

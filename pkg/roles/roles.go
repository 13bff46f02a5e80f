// Package roles turns the comma-separated akses field of an access record
// into a ranked role set.
package roles

import "strings"

// Role is a ranked role. Higher values rank higher; Ketua is the top tier.
type Role uint8

const (
	Dosen    Role = iota + 1 // owner of submissions
	Keuangan                 // finance / disbursement
	Staff                    // reviewing staff
	Ketua                    // approving authority
)

var names = map[Role]string{
	Dosen:    "Dosen",
	Keuangan: "Keuangan",
	Staff:    "Staff",
	Ketua:    "Ketua",
}

// aliases maps normalized akses tokens to roles. Tokens are lower-cased and
// have inner whitespace collapsed before lookup.
var aliases = map[string]Role{
	"dosen":          Dosen,
	"owner":          Dosen,
	"keuangan":       Keuangan,
	"staff keuangan": Keuangan,
	"bendahara":      Keuangan,
	"finance":        Keuangan,
	"staff":          Staff,
	"staf":           Staff,
	"staff lppm":     Staff,
	"reviewer":       Staff,
	"ketua":          Ketua,
	"ketua lppm":     Ketua,
}

func (r Role) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "Unknown"
}

// Lookup resolves a single akses token.
func Lookup(token string) (Role, bool) {
	r, ok := aliases[normalize(token)]
	return r, ok
}

func normalize(token string) string {
	return strings.ToLower(strings.Join(strings.Fields(token), " "))
}

// Set is a set of roles held by one user.
type Set uint16

// Parse reads a comma-separated akses string. Unknown tokens are ignored.
func Parse(akses string) Set {
	var s Set
	for _, tok := range strings.Split(akses, ",") {
		if r, ok := Lookup(tok); ok {
			s = s.With(r)
		}
	}
	return s
}

// Of builds a set from roles.
func Of(rs ...Role) Set {
	var s Set
	for _, r := range rs {
		s = s.With(r)
	}
	return s
}

func (s Set) With(r Role) Set { return s | 1<<r }

func (s Set) Has(r Role) bool { return s&(1<<r) != 0 }

// HasAny reports whether s holds at least one of rs.
func (s Set) HasAny(rs ...Role) bool {
	for _, r := range rs {
		if s.Has(r) {
			return true
		}
	}
	return false
}

func (s Set) Empty() bool { return s == 0 }

// Highest returns the top-ranked role in s, or 0 if s is empty.
func (s Set) Highest() Role {
	for r := Ketua; r >= Dosen; r-- {
		if s.Has(r) {
			return r
		}
	}
	return 0
}

// IsTopTier reports whether s includes the approving authority.
func (s Set) IsTopTier() bool { return s.Highest() == Ketua }

// Strings returns role names ordered by rank, lowest first.
func (s Set) Strings() []string {
	out := []string{}
	for r := Dosen; r <= Ketua; r++ {
		if s.Has(r) {
			out = append(out, r.String())
		}
	}
	return out
}

// String renders s in akses format.
func (s Set) String() string { return strings.Join(s.Strings(), ",") }

package models

import (
	"strings"
	"time"
)

// Profile represents a lecturer's profile (one-to-one with User)
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
	UserID    uint       `gorm:"uniqueIndex;not null"` // one-to-one relation
	Name      string     `gorm:"size:255;not null"`
	NIDN      string     `gorm:"column:nidn;size:32"`
	Email     string     `gorm:"size:255"`
	Phone     string     `gorm:"size:64"`
	Faculty   string     `gorm:"size:255"`
	Program   string     `gorm:"size:255"` // study program
}

// MissingFields lists the profile fields that must be filled before the
// profile counts as complete. A nil profile misses all of them.
func (p *Profile) MissingFields() []string {
	if p == nil {
		return []string{"name", "nidn", "email", "phone", "faculty", "program"}
	}
	fields := []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"nidn", p.NIDN},
		{"email", p.Email},
		{"phone", p.Phone},
		{"faculty", p.Faculty},
		{"program", p.Program},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Complete reports whether every required profile field is non-empty.
func (p *Profile) Complete() bool {
	return len(p.MissingFields()) == 0
}

package models

import "time"

// HakAkses is the per-user access record. Akses holds a comma-separated list
// of role names ("Dosen,Staff"); parse it with roles.Parse, never by hand.
type HakAkses struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint   `gorm:"uniqueIndex;not null"`
	Akses     string `gorm:"size:255;not null"`
}

func (HakAkses) TableName() string { return "m_hak_akses" }

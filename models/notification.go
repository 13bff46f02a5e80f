package models

import "time"

// Notification is one in-app notice for a recipient. A nil DedupKey means
// the row is never deduplicated by key.
type Notification struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
	UserID    uint    `gorm:"not null;index;uniqueIndex:idx_notifications_user_dedup,priority:1"`
	Title     string  `gorm:"size:255;not null"`
	Message   string  `gorm:"type:text;not null"`
	Type      string  `gorm:"size:32;index;not null"`
	IsRead    bool    `gorm:"not null"`
	DedupKey  *string `gorm:"size:128;uniqueIndex:idx_notifications_user_dedup,priority:2"`
}

package models

import "time"

// Session is one login. Its ID travels in the JWT and scopes the
// undo/redo history of goal commands.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64"` // uuid
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"index;not null"`
	CreatedAt time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

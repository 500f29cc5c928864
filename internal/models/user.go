package models

import "time"

// User is a bank customer. TotalBalanceMinutes is the aggregate of all
// non-deleted accounts and is only written by the ledger store.
type User struct {
	ID                  uint   `gorm:"primaryKey"`
	Username            string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash        string `gorm:"size:255;not null"`
	DisplayName         string `gorm:"size:64"`
	TotalBalanceMinutes int64  `gorm:"not null;default:0"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	FailedLoginAttempts int        `gorm:"default:0"`
	LockedUntil         *time.Time `gorm:"index"`
	LastLoginAt         *time.Time
	LastLoginIP         string `gorm:"size:64"`
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	GoalAllocate = "allocate"
	GoalWithdraw = "withdraw"
)

// TimeGoal is a named sub-ledger of time set aside by a user.
type TimeGoal struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       uint   `gorm:"index;not null"`
	Title        string `gorm:"size:128;not null"`
	SavedMinutes int64  `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SavedHours is the display value rounded to 2 decimal places.
func (g TimeGoal) SavedHours() decimal.Decimal {
	return decimal.NewFromInt(g.SavedMinutes).Div(decimal.NewFromInt(60)).Round(2)
}

type GoalTransaction struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	GoalID    uint      `gorm:"index;not null"`
	Minutes   int64     `gorm:"not null"`
	Type      string    `gorm:"size:16;not null"`
	Timestamp time.Time `gorm:"index;not null"`
}

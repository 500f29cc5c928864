package models

import (
	"time"

	"github.com/tishajain880/Chronobank/internal/timevalue"
)

const (
	AccountSavings    = "Savings"
	AccountInvestment = "Investment"
	AccountLoan       = "Loan"
)

const (
	StatusActive    = "active"
	StatusOverdrawn = "overdrawn"
	StatusFrozen    = "frozen"
)

// Account holds a time balance stored as "H:MM" text.
type Account struct {
	ID               uint            `gorm:"primaryKey"`
	UserID           uint            `gorm:"index;not null"`
	AccountNumber    string          `gorm:"size:16;uniqueIndex;not null"`
	AccountType      string          `gorm:"size:16;not null"`
	Balance          timevalue.Value `gorm:"type:varchar(32);not null"`
	InterestRate     int             `gorm:"not null;default:0"`
	TransactionLimit int64           `gorm:"not null;default:0"` // hours
	AccountStatus    string          `gorm:"size:16;not null;default:active"`
	LoanBlocked      bool            `gorm:"not null;default:false"`
	IsDeleted        bool            `gorm:"index;not null;default:false"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsValidAccountType is the whitelist used by the account factory.
func IsValidAccountType(t string) bool {
	switch t {
	case AccountSavings, AccountInvestment, AccountLoan:
		return true
	}
	return false
}

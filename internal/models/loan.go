package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanApproved = "Approved"
	LoanRejected = "Rejected"
	LoanRepaid   = "Repaid"
)

const (
	RepaymentPending = "pending"
	RepaymentPaid    = "paid"
)

// Loan principal is whole hours.
type Loan struct {
	LoanID       uint      `gorm:"primaryKey;column:loan_id"`
	UserID       uint      `gorm:"index;not null"`
	AccountID    uint      `gorm:"index;not null"`
	LoanAmount   int64     `gorm:"not null"`
	Status       string    `gorm:"size:16;index;not null"`
	Strategy     string    `gorm:"size:16;not null"`
	AppliedAt    time.Time `gorm:"not null"`
	RepaymentDue time.Time
}

// Repayment is one scheduled or settled payment. Amount is the base
// amount in hours before interest.
type Repayment struct {
	RepaymentID       uint            `gorm:"primaryKey;column:repayment_id"`
	LoanID            uint            `gorm:"index;not null"`
	UserID            uint            `gorm:"index;not null"`
	InstallmentNumber int             `gorm:"not null"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	Status            string          `gorm:"size:16;index;not null"`
	DueDate           time.Time
	PaidAt            *time.Time
	Strategy          string `gorm:"size:16;not null"`
}

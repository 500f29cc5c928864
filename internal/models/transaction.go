package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

const TxnTransfer = "transfer"

// Transaction is a settled peer-to-peer transfer. TimeAmount is the
// settled amount moved between the accounts, Tax and Bonus its parts
// added on top of the requested base.
type Transaction struct {
	ID                    uint            `gorm:"primaryKey"`
	SenderID              uint            `gorm:"index;not null"`
	ReceiverID            uint            `gorm:"index;not null"`
	SenderAccountNumber   string          `gorm:"size:16;not null"`
	ReceiverAccountNumber string          `gorm:"size:16;not null"`
	TimeAmount            timevalue.Value `gorm:"type:varchar(32);not null"`
	Tax                   timevalue.Value `gorm:"type:varchar(32);not null"`
	Bonus                 timevalue.Value `gorm:"type:varchar(32);not null"`
	TransactionType       string          `gorm:"size:16;not null"`
	Timestamp             time.Time       `gorm:"index;not null"`
	TxnHash               string          `gorm:"size:64;index"`
	BlockIndex            int             `gorm:"index"`
}

// MoneyTimeTransaction logs the legacy money-to-time adapter.
type MoneyTimeTransaction struct {
	ID              uint            `gorm:"primaryKey"`
	UserID          uint            `gorm:"index;not null"`
	AccountType     string          `gorm:"size:16;not null"`
	TransactionType string          `gorm:"size:16;not null"` // deposit / withdraw
	MoneyAmount     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	TimeEquivalent  timevalue.Value `gorm:"type:varchar(32);not null"`
	Timestamp       time.Time       `gorm:"not null"`
}

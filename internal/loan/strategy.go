// Package loan applies for time loans and repays them with a fixed or
// installment strategy.
package loan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// Strategy selects how a loan is repaid.
type Strategy string

const (
	Fixed       Strategy = "fixed"
	Installment Strategy = "installment"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case Fixed, Installment:
		return st, nil
	}
	return "", fmt.Errorf("repayment strategy %q: %w", s, ledger.ErrInvalidState)
}

// Receipt describes one settled repayment.
type Receipt struct {
	LoanID            uint            `json:"loan_id"`
	Strategy          Strategy        `json:"strategy"`
	InstallmentNumber int             `json:"installment_number"`
	Interest          timevalue.Value `json:"interest"`
	Total             timevalue.Value `json:"total"`
	LoanStatus        string          `json:"loan_status"`
	Remaining         int64           `json:"remaining_installments"`
}

// FixedInterest is the tiered rate on the principal: 2% up to 200h, 3% up
// to 400h, 5% above, floored to whole minutes.
func FixedInterest(principal timevalue.Value) timevalue.Value {
	switch {
	case principal.Minutes() <= 200*60:
		return principal.FloorPercent(2)
	case principal.Minutes() <= 400*60:
		return principal.FloorPercent(3)
	}
	return principal.FloorPercent(5)
}

// InstallmentInterest is the tiered interest of the whole loan in hours:
// 4% up to 200h, 6% up to 400h, 10% above.
func InstallmentInterest(loanHours int64) decimal.Decimal {
	h := decimal.NewFromInt(loanHours)
	rate := decimal.RequireFromString("0.10")
	switch {
	case loanHours <= 200:
		rate = decimal.RequireFromString("0.04")
	case loanHours <= 400:
		rate = decimal.RequireFromString("0.06")
	}
	return h.Mul(rate)
}

// installmentDue is the base amount plus an even share of the interest,
// floored to whole minutes.
func installmentDue(loanHours int64, base decimal.Decimal, count int64) (interest, total timevalue.Value) {
	share := InstallmentInterest(loanHours).Div(decimal.NewFromInt(count))
	total = timevalue.FromHours(base.Add(share))
	baseTime := timevalue.FromHours(base)
	interest, _ = total.Sub(baseTime)
	return interest, total
}

// Repay settles the next amount due on loan inside tx.
func (s Strategy) Repay(tx *ledger.Tx, loan *models.Loan, now time.Time) (*Receipt, error) {
	switch s {
	case Fixed:
		return repayFixed(tx, loan, now)
	case Installment:
		return repayInstallment(tx, loan, now)
	}
	return nil, fmt.Errorf("repayment strategy %q: %w", s, ledger.ErrInvalidState)
}

// Context forwards to the strategy chosen at construction.
type Context struct {
	strategy Strategy
}

func NewContext(s Strategy) Context { return Context{strategy: s} }

func (c Context) Execute(tx *ledger.Tx, loan *models.Loan, now time.Time) (*Receipt, error) {
	return c.strategy.Repay(tx, loan, now)
}

func ensureAffordable(tx *ledger.Tx, userID uint, total timevalue.Value) error {
	u, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	if u.TotalBalanceMinutes < total.Minutes() {
		return fmt.Errorf("balance %s, due %s: %w", timevalue.FromMinutes(u.TotalBalanceMinutes), total, ledger.ErrInsufficientFunds)
	}
	return nil
}

func settle(tx *ledger.Tx, userID uint, total timevalue.Value) error {
	if err := tx.AdjustUserAggregate(userID, -total.Minutes()); err != nil {
		return err
	}
	return tx.SweepDeduct(userID, total.Minutes())
}

func setLoanStatus(tx *ledger.Tx, loan *models.Loan, status string) error {
	if err := tx.DB().Model(&models.Loan{}).Where("loan_id = ?", loan.LoanID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update loan %d: %w", loan.LoanID, err)
	}
	loan.Status = status
	return nil
}

func repayFixed(tx *ledger.Tx, loan *models.Loan, now time.Time) (*Receipt, error) {
	principal := timevalue.FromMinutes(loan.LoanAmount * 60)
	interest := FixedInterest(principal)
	total := principal.Add(interest)
	if err := ensureAffordable(tx, loan.UserID, total); err != nil {
		return nil, err
	}

	paid := decimal.NewFromInt(total.Minutes()).Div(decimal.NewFromInt(60))
	var row models.Repayment
	err := tx.DB().Where("loan_id = ? AND user_id = ? AND status = ?", loan.LoanID, loan.UserID, models.RepaymentPending).
		Order("installment_number ASC").First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = models.Repayment{
			LoanID:            loan.LoanID,
			UserID:            loan.UserID,
			InstallmentNumber: 1,
			Amount:            paid,
			Status:            models.RepaymentPaid,
			DueDate:           now,
			PaidAt:            &now,
			Strategy:          string(Fixed),
		}
		if err := tx.DB().Create(&row).Error; err != nil {
			return nil, fmt.Errorf("insert repayment: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load repayment: %w", err)
	default:
		if err := tx.DB().Model(&row).Updates(map[string]any{
			"status":  models.RepaymentPaid,
			"amount":  paid,
			"paid_at": now,
		}).Error; err != nil {
			return nil, fmt.Errorf("update repayment: %w", err)
		}
	}

	if err := settle(tx, loan.UserID, total); err != nil {
		return nil, err
	}
	if err := setLoanStatus(tx, loan, models.LoanRepaid); err != nil {
		return nil, err
	}
	return &Receipt{
		LoanID:            loan.LoanID,
		Strategy:          Fixed,
		InstallmentNumber: row.InstallmentNumber,
		Interest:          interest,
		Total:             total,
		LoanStatus:        loan.Status,
	}, nil
}

func nextInstallment(tx *ledger.Tx, loan *models.Loan) (*models.Repayment, int64, error) {
	var row models.Repayment
	err := tx.DB().Where("loan_id = ? AND user_id = ? AND status = ?", loan.LoanID, loan.UserID, models.RepaymentPending).
		Order("installment_number ASC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, fmt.Errorf("loan %d has no pending installment: %w", loan.LoanID, ledger.ErrInvalidState)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load installment: %w", err)
	}
	var count int64
	if err := tx.DB().Model(&models.Repayment{}).Where("loan_id = ? AND user_id = ?", loan.LoanID, loan.UserID).
		Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("count installments: %w", err)
	}
	return &row, count, nil
}

func repayInstallment(tx *ledger.Tx, loan *models.Loan, now time.Time) (*Receipt, error) {
	row, count, err := nextInstallment(tx, loan)
	if err != nil {
		return nil, err
	}
	interest, total := installmentDue(loan.LoanAmount, row.Amount, count)
	if err := ensureAffordable(tx, loan.UserID, total); err != nil {
		return nil, err
	}
	if err := tx.DB().Model(row).Updates(map[string]any{
		"status":  models.RepaymentPaid,
		"paid_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("update installment %d: %w", row.InstallmentNumber, err)
	}
	if err := settle(tx, loan.UserID, total); err != nil {
		return nil, err
	}

	var remaining int64
	if err := tx.DB().Model(&models.Repayment{}).Where("loan_id = ? AND status <> ?", loan.LoanID, models.RepaymentPaid).
		Count(&remaining).Error; err != nil {
		return nil, fmt.Errorf("count remaining installments: %w", err)
	}
	if remaining == 0 {
		if err := setLoanStatus(tx, loan, models.LoanRepaid); err != nil {
			return nil, err
		}
	}
	return &Receipt{
		LoanID:            loan.LoanID,
		Strategy:          Installment,
		InstallmentNumber: row.InstallmentNumber,
		Interest:          interest,
		Total:             total,
		LoanStatus:        loan.Status,
		Remaining:         remaining,
	}, nil
}

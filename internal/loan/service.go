package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

type Service struct {
	store *ledger.Store
	cfg   config.LoanConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store *ledger.Store, cfg config.LoanConfig, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   log.With().Str("component", "loan").Logger(),
		now:   time.Now,
	}
}

// Apply requests a loan against one of the user's Savings accounts.
// Requests above the block limit flag the account and fail with
// ErrLoanBlocked; requests above the approval limit are recorded as
// Rejected. Approved loans are credited immediately and get a schedule.
func (s *Service) Apply(ctx context.Context, userID uint, accountNumber string, hours int64, strategy string) (*models.Loan, error) {
	st, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	if hours <= 0 {
		return nil, fmt.Errorf("loan of %d hours: %w", hours, ledger.ErrBadAmount)
	}

	var loan *models.Loan
	blocked := false
	err = s.store.WithUsers(ctx, []uint{userID}, func(tx *ledger.Tx) error {
		acc, err := tx.GetAccount(userID, accountNumber)
		if err != nil {
			return err
		}
		if acc.AccountType != models.AccountSavings {
			return fmt.Errorf("savings account %s: %w", accountNumber, ledger.ErrNotFound)
		}
		if acc.LoanBlocked {
			return fmt.Errorf("account %s: %w", accountNumber, ledger.ErrLoanBlocked)
		}
		var open int64
		if err := tx.DB().Model(&models.Loan{}).Where("user_id = ? AND status = ?", userID, models.LoanApproved).
			Count(&open).Error; err != nil {
			return fmt.Errorf("check open loans: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("user %d already has an approved loan: %w", userID, ledger.ErrInvalidState)
		}

		if hours > s.cfg.BlockLimitHours {
			blocked = true
			return tx.DB().Model(&models.Account{}).Where("id = ?", acc.ID).Update("loan_blocked", true).Error
		}

		now := s.now()
		loan = &models.Loan{
			UserID:     userID,
			AccountID:  acc.ID,
			LoanAmount: hours,
			Status:     models.LoanApproved,
			Strategy:   string(st),
			AppliedAt:  now,
		}
		if hours > s.cfg.ApproveLimitHours {
			loan.Status = models.LoanRejected
			return tx.DB().Create(loan).Error
		}
		loan.RepaymentDue = now.AddDate(0, 0, s.cfg.RepaymentDueDays)
		if err := tx.DB().Create(loan).Error; err != nil {
			return fmt.Errorf("create loan: %w", err)
		}

		amount := timevalue.FromMinutes(hours * 60)
		if err := tx.CreditAccount(acc.ID, amount); err != nil {
			return err
		}
		if err := tx.AdjustUserAggregate(userID, amount.Minutes()); err != nil {
			return err
		}
		return s.schedule(tx, loan, st, now)
	})
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Int64("hours", hours).Msg("loan application failed")
		return nil, err
	}
	if blocked {
		s.log.Warn().Uint("user_id", userID).Str("account_number", accountNumber).Int64("hours", hours).
			Msg("suspicious loan request, account blocked")
		return nil, fmt.Errorf("loan of %d hours exceeds %d: %w", hours, s.cfg.BlockLimitHours, ledger.ErrLoanBlocked)
	}
	s.log.Info().Uint("user_id", userID).Uint("loan_id", loan.LoanID).Int64("hours", hours).
		Str("status", loan.Status).Msg("loan applied")
	return loan, nil
}

func (s *Service) schedule(tx *ledger.Tx, loan *models.Loan, st Strategy, now time.Time) error {
	var rows []models.Repayment
	switch st {
	case Installment:
		n := s.cfg.Installments
		each := decimal.NewFromInt(loan.LoanAmount).Div(decimal.NewFromInt(int64(n)))
		for i := 1; i <= n; i++ {
			rows = append(rows, models.Repayment{
				LoanID:            loan.LoanID,
				UserID:            loan.UserID,
				InstallmentNumber: i,
				Amount:            each,
				Status:            models.RepaymentPending,
				DueDate:           now.AddDate(0, 0, i*s.cfg.InstallmentIntervalDays),
				Strategy:          string(st),
			})
		}
	case Fixed:
		rows = append(rows, models.Repayment{
			LoanID:            loan.LoanID,
			UserID:            loan.UserID,
			InstallmentNumber: 1,
			Amount:            decimal.NewFromInt(loan.LoanAmount),
			Status:            models.RepaymentPending,
			DueDate:           now.AddDate(0, 0, s.cfg.FixedDueDays),
			Strategy:          string(st),
		})
	}
	if err := tx.DB().Create(&rows).Error; err != nil {
		return fmt.Errorf("create repayment schedule: %w", err)
	}
	return nil
}

func loadLoan(tx *gorm.DB, userID, loanID uint) (*models.Loan, error) {
	var l models.Loan
	err := tx.Where("loan_id = ? AND user_id = ?", loanID, userID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("loan %d: %w", loanID, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load loan %d: %w", loanID, err)
	}
	return &l, nil
}

// Repay settles the next amount due using the loan's own strategy. Any
// failure rolls the whole repayment back.
func (s *Service) Repay(ctx context.Context, userID, loanID uint) (*Receipt, error) {
	var receipt *Receipt
	err := s.store.WithUsers(ctx, []uint{userID}, func(tx *ledger.Tx) error {
		loan, err := loadLoan(tx.DB(), userID, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanApproved {
			return fmt.Errorf("loan %d is %s: %w", loanID, loan.Status, ledger.ErrInvalidState)
		}
		st, err := ParseStrategy(loan.Strategy)
		if err != nil {
			return err
		}
		receipt, err = NewContext(st).Execute(tx, loan, s.now())
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Uint("loan_id", loanID).Msg("repayment rolled back")
		return nil, fmt.Errorf("repay loan %d: %w", loanID, err)
	}
	s.log.Info().Uint("user_id", userID).Uint("loan_id", loanID).Int64("minutes", receipt.Total.Minutes()).
		Str("loan_status", receipt.LoanStatus).Msg("repayment settled")
	return receipt, nil
}

// Quote previews the next payment without changing anything.
type Quote struct {
	LoanID            uint            `json:"loan_id"`
	Strategy          Strategy        `json:"strategy"`
	InstallmentNumber int             `json:"installment_number"`
	Interest          timevalue.Value `json:"interest"`
	Total             timevalue.Value `json:"total"`
	InterestHours     string          `json:"interest_hours"`
	TotalHours        string          `json:"total_hours"`
}

func (s *Service) Quote(ctx context.Context, userID, loanID uint) (*Quote, error) {
	var q *Quote
	err := s.store.Transaction(ctx, func(tx *ledger.Tx) error {
		loan, err := loadLoan(tx.DB(), userID, loanID)
		if err != nil {
			return err
		}
		if loan.Status != models.LoanApproved {
			return fmt.Errorf("loan %d is %s: %w", loanID, loan.Status, ledger.ErrInvalidState)
		}
		st, err := ParseStrategy(loan.Strategy)
		if err != nil {
			return err
		}
		q = &Quote{LoanID: loanID, Strategy: st, InstallmentNumber: 1}
		switch st {
		case Fixed:
			principal := timevalue.FromMinutes(loan.LoanAmount * 60)
			q.Interest = FixedInterest(principal)
			q.Total = principal.Add(q.Interest)
		case Installment:
			row, count, err := nextInstallment(tx, loan)
			if err != nil {
				return err
			}
			q.InstallmentNumber = row.InstallmentNumber
			q.Interest, q.Total = installmentDue(loan.LoanAmount, row.Amount, count)
		}
		q.InterestHours = q.Interest.Hours().StringFixed(2)
		q.TotalHours = q.Total.Hours().StringFixed(2)
		return nil
	})
	return q, err
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.Loan, error) {
	var loans []models.Loan
	if err := s.store.DB().WithContext(ctx).Where("user_id = ?", userID).
		Order("applied_at DESC").Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return loans, nil
}

func (s *Service) Schedule(ctx context.Context, userID, loanID uint) ([]models.Repayment, error) {
	if _, err := loadLoan(s.store.DB().WithContext(ctx), userID, loanID); err != nil {
		return nil, err
	}
	var rows []models.Repayment
	if err := s.store.DB().WithContext(ctx).Where("loan_id = ?", loanID).
		Order("installment_number ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("repayment schedule: %w", err)
	}
	return rows, nil
}

// DueWithin lists Approved loans whose repayment is due in the next d,
// including loans already past their due date.
func (s *Service) DueWithin(ctx context.Context, d time.Duration) ([]models.Loan, error) {
	now := s.now()
	var loans []models.Loan
	if err := s.store.DB().WithContext(ctx).
		Where("status = ? AND repayment_due <= ?", models.LoanApproved, now.Add(d)).
		Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("loans due: %w", err)
	}
	return loans, nil
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// InterestRate is the tier an account opens with.
func InterestRate(accountType string, balance timevalue.Value) int {
	hours := balance.Minutes() / 60
	switch accountType {
	case models.AccountSavings:
		switch {
		case hours < 100:
			return 2
		case hours < 500:
			return 3
		}
		return 4
	case models.AccountInvestment:
		if hours < 500 {
			return 5
		}
		return 7
	case models.AccountLoan:
		return -6
	}
	return 0
}

// DescribeState explains what an account status permits.
func DescribeState(status string) string {
	switch status {
	case models.StatusActive:
		return "account is active; all operations allowed"
	case models.StatusOverdrawn:
		return "account is overdrawn; deposits only"
	case models.StatusFrozen:
		return "account is frozen; no transactions allowed"
	}
	return "unknown account status"
}

func newAccountNumber() string {
	return fmt.Sprintf("%011d", 10_000_000_000+rand.Int63n(90_000_000_000))
}

// OpenAccount creates an account with an initial balance and credits the
// aggregate in the same transaction.
func (tx *Tx) OpenAccount(userID uint, accountType string, initial timevalue.Value) (*models.Account, error) {
	if !models.IsValidAccountType(accountType) {
		return nil, fmt.Errorf("account type %q: %w", accountType, ErrInvalidState)
	}
	initial = whole(initial)
	if initial.Seconds() < 0 {
		return nil, fmt.Errorf("initial balance %s: %w", initial, ErrBadAmount)
	}
	if _, err := tx.GetUser(userID); err != nil {
		return nil, err
	}

	var number string
	for attempt := 0; ; attempt++ {
		if attempt == 10 {
			return nil, fmt.Errorf("allocate account number: too many collisions")
		}
		number = newAccountNumber()
		var n int64
		if err := tx.db.Model(&models.Account{}).Where("account_number = ?", number).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("check account number: %w", err)
		}
		if n == 0 {
			break
		}
	}

	acc := &models.Account{
		UserID:           userID,
		AccountNumber:    number,
		AccountType:      accountType,
		Balance:          initial,
		InterestRate:     InterestRate(accountType, initial),
		TransactionLimit: initial.Minutes() / 60 * 10,
		AccountStatus:    models.StatusActive,
	}
	if err := tx.db.Create(acc).Error; err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	if err := tx.AdjustUserAggregate(userID, initial.Minutes()); err != nil {
		return nil, err
	}
	return acc, nil
}

// OpenAccount is the transactional wrapper of Tx.OpenAccount.
func (s *Store) OpenAccount(ctx context.Context, userID uint, accountType string, initial timevalue.Value) (*models.Account, error) {
	var acc *models.Account
	err := s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		var err error
		acc, err = tx.OpenAccount(userID, accountType, initial)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", userID).Str("account_number", acc.AccountNumber).
		Int64("minutes", acc.Balance.Minutes()).Msg("account opened")
	return acc, nil
}

// Deposit credits one account and the aggregate.
func (s *Store) Deposit(ctx context.Context, userID uint, accountNumber string, amount timevalue.Value) (*models.Account, error) {
	amount = whole(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount %s: %w", amount, ErrBadAmount)
	}
	var acc *models.Account
	err := s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		a, err := tx.GetAccount(userID, accountNumber)
		if err != nil {
			return err
		}
		if a.AccountStatus == models.StatusFrozen {
			return fmt.Errorf("deposit to %s: %s: %w", accountNumber, DescribeState(a.AccountStatus), ErrInvalidState)
		}
		if err := tx.CreditAccount(a.ID, amount); err != nil {
			return err
		}
		if err := tx.AdjustUserAggregate(userID, amount.Minutes()); err != nil {
			return err
		}
		acc, err = tx.accountByID(a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", userID).Str("account_number", accountNumber).
		Int64("minutes", amount.Minutes()).Msg("deposit")
	return acc, nil
}

// Withdraw debits one account and the aggregate. Only active accounts
// may be withdrawn from.
func (s *Store) Withdraw(ctx context.Context, userID uint, accountNumber string, amount timevalue.Value) (*models.Account, error) {
	amount = whole(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount %s: %w", amount, ErrBadAmount)
	}
	var acc *models.Account
	err := s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		a, err := tx.GetAccount(userID, accountNumber)
		if err != nil {
			return err
		}
		if a.AccountStatus != models.StatusActive {
			return fmt.Errorf("withdraw from %s: %s: %w", accountNumber, DescribeState(a.AccountStatus), ErrInvalidState)
		}
		if err := tx.DebitAccount(a.ID, amount); err != nil {
			return err
		}
		if err := tx.AdjustUserAggregate(userID, -amount.Minutes()); err != nil {
			return err
		}
		acc, err = tx.accountByID(a.ID)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Str("account_number", accountNumber).Msg("withdraw rolled back")
		return nil, err
	}
	s.log.Info().Uint("user_id", userID).Str("account_number", accountNumber).
		Int64("minutes", amount.Minutes()).Msg("withdraw")
	return acc, nil
}

// SoftDeleteAccount flags the account deleted and removes its balance from
// the aggregate. Rows are never physically removed.
func (s *Store) SoftDeleteAccount(ctx context.Context, userID uint, accountNumber string) error {
	err := s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		a, err := tx.GetAccount(userID, accountNumber)
		if err != nil {
			return err
		}
		if err := tx.db.Model(&models.Account{}).Where("id = ?", a.ID).Update("is_deleted", true).Error; err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return tx.AdjustUserAggregate(userID, -a.Balance.Minutes())
	})
	if err != nil {
		return err
	}
	s.log.Info().Uint("user_id", userID).Str("account_number", accountNumber).Msg("account deleted")
	return nil
}

// SetStatus moves an account between active, overdrawn and frozen.
func (s *Store) SetStatus(ctx context.Context, userID uint, accountNumber, status string) error {
	switch status {
	case models.StatusActive, models.StatusOverdrawn, models.StatusFrozen:
	default:
		return fmt.Errorf("status %q: %w", status, ErrInvalidState)
	}
	return s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		a, err := tx.GetAccount(userID, accountNumber)
		if err != nil {
			return err
		}
		return tx.db.Model(&models.Account{}).Where("id = ?", a.ID).Update("account_status", status).Error
	})
}

func (s *Store) Accounts(ctx context.Context, userID uint) ([]models.Account, error) {
	var accs []models.Account
	err := s.Transaction(ctx, func(tx *Tx) error {
		var err error
		accs, err = tx.Accounts(userID)
		return err
	})
	return accs, err
}

// Balance returns the user's aggregate.
func (s *Store) Balance(ctx context.Context, userID uint) (timevalue.Value, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return timevalue.Zero, notFound(err, fmt.Sprintf("user %d", userID))
	}
	return timevalue.FromMinutes(u.TotalBalanceMinutes), nil
}

func (s *Store) CheckInvariant(ctx context.Context, userID uint) error {
	return s.Transaction(ctx, func(tx *Tx) error { return tx.CheckInvariant(userID) })
}

// CheckAll runs CheckInvariant for every user and joins the violations.
func (s *Store) CheckAll(ctx context.Context) error {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := s.CheckInvariant(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MoneyToTime converts legacy money to time at the configured rate,
// truncating to whole minutes.
func (s *Store) MoneyToTime(money decimal.Decimal) timevalue.Value {
	return timevalue.FromMinutes(money.Mul(decimal.NewFromInt(s.moneyRate)).Truncate(0).IntPart())
}

// DepositMoney credits the user's first account of accountType with the
// time equivalent of money and logs the conversion.
func (s *Store) DepositMoney(ctx context.Context, userID uint, accountType string, money decimal.Decimal) (timevalue.Value, error) {
	return s.moneyOp(ctx, userID, accountType, money, "deposit")
}

// WithdrawMoney is the inverse of DepositMoney.
func (s *Store) WithdrawMoney(ctx context.Context, userID uint, accountType string, money decimal.Decimal) (timevalue.Value, error) {
	return s.moneyOp(ctx, userID, accountType, money, "withdraw")
}

func (s *Store) moneyOp(ctx context.Context, userID uint, accountType string, money decimal.Decimal, kind string) (timevalue.Value, error) {
	if !money.IsPositive() {
		return timevalue.Zero, ErrBadAmount
	}
	if money.Mul(decimal.NewFromInt(s.moneyRate)).GreaterThan(decimal.NewFromInt(timevalue.MaxHours * 60)) {
		return timevalue.Zero, fmt.Errorf("money amount %s: %w", money, ErrBadAmount)
	}
	amount := s.MoneyToTime(money)
	if !amount.IsPositive() {
		return timevalue.Zero, ErrBadAmount
	}
	err := s.WithUsers(ctx, []uint{userID}, func(tx *Tx) error {
		var a models.Account
		err := tx.db.Where("user_id = ? AND account_type = ? AND is_deleted = ?", userID, accountType, false).
			Order("id ASC").First(&a).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%s account of user %d: %w", accountType, userID, ErrNotFound)
		} else if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		delta := amount.Minutes()
		if kind == "deposit" {
			err = tx.CreditAccount(a.ID, amount)
		} else {
			err = tx.DebitAccount(a.ID, amount)
			delta = -delta
		}
		if err != nil {
			return err
		}
		if err := tx.AdjustUserAggregate(userID, delta); err != nil {
			return err
		}
		return tx.db.Create(&models.MoneyTimeTransaction{
			UserID:          userID,
			AccountType:     accountType,
			TransactionType: kind,
			MoneyAmount:     money,
			TimeEquivalent:  amount,
			Timestamp:       time.Now(),
		}).Error
	})
	if err != nil {
		return timevalue.Zero, err
	}
	return amount, nil
}

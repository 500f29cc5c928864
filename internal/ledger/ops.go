package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// whole drops any seconds part; the ledger posts whole minutes only so the
// minute-denominated aggregate always matches the account sum.
func whole(v timevalue.Value) timevalue.Value {
	return timevalue.FromMinutes(v.Minutes())
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// GetUser loads a user row.
func (tx *Tx) GetUser(userID uint) (*models.User, error) {
	var u models.User
	if err := tx.db.First(&u, userID).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", userID))
	}
	return &u, nil
}

// GetAccount loads a non-deleted account owned by userID.
func (tx *Tx) GetAccount(userID uint, accountNumber string) (*models.Account, error) {
	var a models.Account
	err := tx.db.Where("user_id = ? AND account_number = ? AND is_deleted = ?", userID, accountNumber, false).
		First(&a).Error
	if err != nil {
		return nil, notFound(err, "account "+accountNumber)
	}
	return &a, nil
}

// AccountByNumber loads a non-deleted account regardless of owner.
func (tx *Tx) AccountByNumber(accountNumber string) (*models.Account, error) {
	var a models.Account
	err := tx.db.Where("account_number = ? AND is_deleted = ?", accountNumber, false).First(&a).Error
	if err != nil {
		return nil, notFound(err, "account "+accountNumber)
	}
	return &a, nil
}

// Accounts lists the user's non-deleted accounts by ascending id.
func (tx *Tx) Accounts(userID uint) ([]models.Account, error) {
	var accs []models.Account
	if err := tx.db.Where("user_id = ? AND is_deleted = ?", userID, false).
		Order("id ASC").Find(&accs).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accs, nil
}

func (tx *Tx) accountByID(accountID uint) (*models.Account, error) {
	var a models.Account
	if err := tx.db.Where("id = ? AND is_deleted = ?", accountID, false).First(&a).Error; err != nil {
		return nil, notFound(err, fmt.Sprintf("account id %d", accountID))
	}
	return &a, nil
}

func (tx *Tx) setBalance(a *models.Account, v timevalue.Value) error {
	if v.Seconds() < 0 {
		return fmt.Errorf("balance of %s would be %s: %w", a.AccountNumber, v, ErrInsufficientBalance)
	}
	if err := tx.db.Model(&models.Account{}).Where("id = ?", a.ID).Update("balance", v).Error; err != nil {
		return fmt.Errorf("update balance of %s: %w", a.AccountNumber, err)
	}
	a.Balance = v
	return nil
}

// DebitAccount subtracts amount from the account balance. It fails with
// ErrInsufficientBalance when the balance is smaller than amount and with
// ErrBadAmount for a negative amount.
func (tx *Tx) DebitAccount(accountID uint, amount timevalue.Value) error {
	if amount.Seconds() < 0 {
		return fmt.Errorf("debit of %s: %w", amount, ErrBadAmount)
	}
	a, err := tx.accountByID(accountID)
	if err != nil {
		return err
	}
	next, err := a.Balance.Sub(whole(amount))
	if err != nil {
		return fmt.Errorf("debit %s by %s (balance %s): %w", a.AccountNumber, amount, a.Balance, ErrInsufficientBalance)
	}
	return tx.setBalance(a, next)
}

func (tx *Tx) CreditAccount(accountID uint, amount timevalue.Value) error {
	if amount.Seconds() < 0 {
		return fmt.Errorf("credit of %s: %w", amount, ErrBadAmount)
	}
	a, err := tx.accountByID(accountID)
	if err != nil {
		return err
	}
	return tx.setBalance(a, a.Balance.Add(whole(amount)))
}

// AdjustUserAggregate applies a signed minute delta to the user's aggregate.
// A result below zero fails with ErrInsufficientBalance.
func (tx *Tx) AdjustUserAggregate(userID uint, deltaMinutes int64) error {
	u, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	next := u.TotalBalanceMinutes + deltaMinutes
	if next < 0 {
		return fmt.Errorf("aggregate of user %d would be %d minutes: %w", userID, next, ErrInsufficientBalance)
	}
	return tx.setAggregate(userID, next)
}

func (tx *Tx) setAggregate(userID uint, minutes int64) error {
	if err := tx.db.Model(&models.User{}).Where("id = ?", userID).
		Update("total_balance_minutes", minutes).Error; err != nil {
		return fmt.Errorf("update aggregate of user %d: %w", userID, err)
	}
	return nil
}

// SweepDeduct removes minutes from the user's non-Loan accounts in
// ascending id order, emptying each before moving on. Running out of
// accounts is a caller error reported as ErrInsufficientBalance.
func (tx *Tx) SweepDeduct(userID uint, minutes int64) error {
	if minutes <= 0 {
		return nil
	}
	var accs []models.Account
	if err := tx.db.Where("user_id = ? AND is_deleted = ? AND account_type <> ?", userID, false, models.AccountLoan).
		Order("id ASC").Find(&accs).Error; err != nil {
		return fmt.Errorf("sweep accounts: %w", err)
	}
	remaining := minutes
	for i := range accs {
		if remaining == 0 {
			break
		}
		a := &accs[i]
		bal := a.Balance.Minutes()
		if bal == 0 {
			continue
		}
		take := min(bal, remaining)
		if err := tx.setBalance(a, timevalue.FromMinutes(bal-take)); err != nil {
			return err
		}
		remaining -= take
	}
	if remaining > 0 {
		return fmt.Errorf("sweep of %d minutes for user %d left %d uncovered: %w", minutes, userID, remaining, ErrInsufficientBalance)
	}
	return nil
}

func (tx *Tx) accountSum(userID uint) (int64, error) {
	accs, err := tx.Accounts(userID)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, a := range accs {
		sum += a.Balance.Minutes()
	}
	return sum, nil
}

// RecomputeUserAggregate re-derives the aggregate from the account sum.
func (tx *Tx) RecomputeUserAggregate(userID uint) (int64, error) {
	sum, err := tx.accountSum(userID)
	if err != nil {
		return 0, err
	}
	if sum < 0 {
		return 0, fmt.Errorf("account sum of user %d is %d minutes: %w", userID, sum, ErrIntegrityViolation)
	}
	if err := tx.setAggregate(userID, sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// PrimaryAccount is the lowest-id non-deleted non-Loan account.
func (tx *Tx) PrimaryAccount(userID uint) (*models.Account, error) {
	var a models.Account
	err := tx.db.Where("user_id = ? AND is_deleted = ? AND account_type <> ?", userID, false, models.AccountLoan).
		Order("id ASC").First(&a).Error
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("primary account of user %d", userID))
	}
	return &a, nil
}

// SyncMirror rewrites the primary account so that the account sum equals
// the aggregate again. Used after goal allocations move minutes between
// the aggregate and goal balances.
func (tx *Tx) SyncMirror(userID uint) error {
	u, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	primary, err := tx.PrimaryAccount(userID)
	if err != nil {
		return err
	}
	sum, err := tx.accountSum(userID)
	if err != nil {
		return err
	}
	others := sum - primary.Balance.Minutes()
	target := u.TotalBalanceMinutes - others
	if target < 0 {
		return fmt.Errorf("mirror for user %d needs %d minutes on %s: %w", userID, target, primary.AccountNumber, ErrInsufficientBalance)
	}
	return tx.setBalance(primary, timevalue.FromMinutes(target))
}

// CheckInvariant reports ErrIntegrityViolation when the aggregate has
// drifted from the account sum.
func (tx *Tx) CheckInvariant(userID uint) error {
	u, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	sum, err := tx.accountSum(userID)
	if err != nil {
		return err
	}
	if sum != u.TotalBalanceMinutes {
		return fmt.Errorf("user %d: accounts sum to %d minutes, aggregate is %d: %w",
			userID, sum, u.TotalBalanceMinutes, ErrIntegrityViolation)
	}
	return nil
}

package ledger

import (
	"errors"

	"github.com/tishajain880/Chronobank/internal/timevalue"
)

var (
	// ErrParse is re-exported so callers need one import for the taxonomy.
	ErrParse = timevalue.ErrParse

	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientFunds is the name used by the repayment engine.
	ErrInsufficientFunds = ErrInsufficientBalance

	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrBadAmount          = errors.New("amount must be positive")
	ErrSameAccount        = errors.New("sender and receiver are the same")
	ErrLoanBlocked        = errors.New("account is blocked from loans")
)

// Error kinds returned by KindOf.
const (
	KindParse        = "parse_error"
	KindInsufficient = "insufficient_balance"
	KindNotFound     = "not_found"
	KindInvalidState = "invalid_state"
	KindIntegrity    = "integrity_violation"
	KindBadAmount    = "bad_amount"
	KindSameAccount  = "same_account"
	KindLoanBlocked  = "loan_blocked"
	KindInternal     = "internal"
)

// KindOf classifies err into a stable string; unknown errors are internal.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, timevalue.ErrUnderflow):
		return KindInsufficient
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrIntegrityViolation):
		return KindIntegrity
	case errors.Is(err, ErrBadAmount):
		return KindBadAmount
	case errors.Is(err, ErrSameAccount):
		return KindSameAccount
	case errors.Is(err, ErrLoanBlocked):
		return KindLoanBlocked
	}
	return KindInternal
}

package loan

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/ledger/ledgertest"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

var ctx = context.Background()

func setup(t *testing.T, balances ...string) (*Service, *ledger.Store, *models.User, []*models.Account) {
	t.Helper()
	_, store := ledgertest.Open(t)
	u, accs := ledgertest.User(t, store, "alice", balances...)
	return NewService(store, config.Default().Loan, logger.Nop()), store, u, accs
}

func TestFixedInterestTiers(t *testing.T) {
	h := func(n int64) timevalue.Value { return timevalue.FromMinutes(n * 60) }
	assert.Equal(t, int64(240), FixedInterest(h(200)).Minutes())
	assert.Equal(t, int64(540), FixedInterest(h(300)).Minutes())
	assert.Equal(t, int64(1500), FixedInterest(h(500)).Minutes())
	assert.Equal(t, int64(1), FixedInterest(timevalue.FromMinutes(99)).Minutes())
}

func TestInstallmentInterestTiers(t *testing.T) {
	assert.Equal(t, "4", InstallmentInterest(100).String())
	assert.Equal(t, "18", InstallmentInterest(300).String())
	assert.Equal(t, "50", InstallmentInterest(500).String())

	interest, total := installmentDue(100, decimal.NewFromInt(25), 4)
	assert.Equal(t, "1:00", interest.String())
	assert.Equal(t, "26:00", total.String())

	// 30h loan in 4 rows: 7.5h base + 0.3h interest = 7.8h = 468 minutes
	_, total = installmentDue(30, decimal.RequireFromString("7.5"), 4)
	assert.Equal(t, int64(468), total.Minutes())
}

func TestParseStrategy(t *testing.T) {
	st, err := ParseStrategy(" Installment ")
	require.NoError(t, err)
	assert.Equal(t, Installment, st)
	_, err = ParseStrategy("basic")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestApplyApprovedCreditsAndSchedules(t *testing.T) {
	svc, store, u, accs := setup(t, "10:00")
	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 100, "installment")
	require.NoError(t, err)
	assert.Equal(t, models.LoanApproved, loan.Status)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 5), loan.RepaymentDue, time.Minute)

	assert.Equal(t, "110:00", ledgertest.Balance(t, store, accs[0].ID))
	assert.Equal(t, int64(110*60), ledgertest.Aggregate(t, store, u.ID))
	require.NoError(t, store.CheckInvariant(ctx, u.ID))

	rows, err := svc.Schedule(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, i+1, r.InstallmentNumber)
		assert.True(t, r.Amount.Equal(decimal.NewFromInt(25)))
		assert.Equal(t, models.RepaymentPending, r.Status)
	}
	assert.True(t, rows[1].DueDate.After(rows[0].DueDate))

	_, err = svc.Apply(ctx, u.ID, accs[0].AccountNumber, 10, "fixed")
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "one approved loan at a time")
}

func TestApplyRules(t *testing.T) {
	svc, store, u, accs := setup(t, "1:00", "1:00")

	_, err := svc.Apply(ctx, u.ID, accs[1].AccountNumber, 10, "fixed")
	assert.ErrorIs(t, err, ledger.ErrNotFound, "investment accounts cannot borrow")

	_, err = svc.Apply(ctx, u.ID, accs[0].AccountNumber, 0, "fixed")
	assert.ErrorIs(t, err, ledger.ErrBadAmount)

	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 501, "fixed")
	require.NoError(t, err)
	assert.Equal(t, models.LoanRejected, loan.Status)
	assert.Equal(t, int64(120), ledgertest.Aggregate(t, store, u.ID))

	_, err = svc.Apply(ctx, u.ID, accs[0].AccountNumber, 1001, "fixed")
	assert.ErrorIs(t, err, ledger.ErrLoanBlocked)
	_, err = svc.Apply(ctx, u.ID, accs[0].AccountNumber, 10, "fixed")
	assert.ErrorIs(t, err, ledger.ErrLoanBlocked, "block persists")

	var acc models.Account
	require.NoError(t, store.DB().First(&acc, accs[0].ID).Error)
	assert.True(t, acc.LoanBlocked)
}

func TestFixedRepaymentScenario(t *testing.T) {
	svc, store, u, accs := setup(t, "0:00")
	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 300, "fixed")
	require.NoError(t, err)
	require.Equal(t, int64(300*60), ledgertest.Aggregate(t, store, u.ID))

	q, err := svc.Quote(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, int64(540), q.Interest.Minutes())
	assert.Equal(t, "309.00", q.TotalHours)

	// 300h is not enough to cover 309h
	_, err = svc.Repay(ctx, u.ID, loan.LoanID)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(300*60), ledgertest.Aggregate(t, store, u.ID))

	_, err = store.Deposit(ctx, u.ID, accs[0].AccountNumber, timevalue.FromMinutes(20*60))
	require.NoError(t, err)
	before := ledgertest.Aggregate(t, store, u.ID)

	r, err := svc.Repay(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanRepaid, r.LoanStatus)
	assert.Equal(t, "309:00", r.Total.String())
	assert.Equal(t, before-309*60, ledgertest.Aggregate(t, store, u.ID))
	assert.Equal(t, "11:00", ledgertest.Balance(t, store, accs[0].ID))
	require.NoError(t, store.CheckInvariant(ctx, u.ID))

	rows, err := svc.Schedule(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.RepaymentPaid, rows[0].Status)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(309)))

	_, err = svc.Repay(ctx, u.ID, loan.LoanID)
	assert.ErrorIs(t, err, ledger.ErrInvalidState, "repaid loans cannot be repaid again")
}

func TestInstallmentRepaymentFIFO(t *testing.T) {
	svc, store, u, accs := setup(t, "10:00", "0:00", "20:00")
	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 100, "installment")
	require.NoError(t, err)
	// aggregate 130h; four payments of 26h

	for i := 1; i <= 4; i++ {
		r, err := svc.Repay(ctx, u.ID, loan.LoanID)
		require.NoError(t, err, "installment %d", i)
		assert.Equal(t, i, r.InstallmentNumber)
		assert.Equal(t, int64(26*60), r.Total.Minutes())
		assert.Equal(t, int64(4-i), r.Remaining)
		if i < 4 {
			assert.Equal(t, models.LoanApproved, r.LoanStatus)
		} else {
			assert.Equal(t, models.LoanRepaid, r.LoanStatus)
		}
		require.NoError(t, store.CheckInvariant(ctx, u.ID))
	}
	assert.Equal(t, int64(26*60), ledgertest.Aggregate(t, store, u.ID))
	// sweep empties the lowest-id account first
	assert.Equal(t, "6:00", ledgertest.Balance(t, store, accs[0].ID))
	assert.Equal(t, "20:00", ledgertest.Balance(t, store, accs[2].ID))
}

func TestInstallmentInsufficientRollsBack(t *testing.T) {
	svc, store, u, accs := setup(t, "0:00")
	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 100, "installment")
	require.NoError(t, err)
	_, err = store.Withdraw(ctx, u.ID, accs[0].AccountNumber, timevalue.FromMinutes(70*60))
	require.NoError(t, err)

	_, err = svc.Repay(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	_, err = svc.Repay(ctx, u.ID, loan.LoanID)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	rows, err := svc.Schedule(ctx, u.ID, loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, models.RepaymentPaid, rows[0].Status)
	assert.Equal(t, models.RepaymentPending, rows[1].Status)
	require.NoError(t, store.CheckInvariant(ctx, u.ID))
}

func TestRepayUnknownLoan(t *testing.T) {
	svc, _, u, _ := setup(t, "1:00")
	_, err := svc.Repay(ctx, u.ID, 42)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestDueWithin(t *testing.T) {
	svc, store, u, accs := setup(t, "1:00")
	loan, err := svc.Apply(ctx, u.ID, accs[0].AccountNumber, 10, "fixed")
	require.NoError(t, err)

	due, err := svc.DueWithin(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = svc.DueWithin(ctx, 6*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, loan.LoanID, due[0].LoanID)

	// overdue loans stay listed
	require.NoError(t, store.DB().Model(&models.Loan{}).Where("loan_id = ?", loan.LoanID).
		Update("repayment_due", time.Now().Add(-48*time.Hour)).Error)
	due, err = svc.DueWithin(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, loan.LoanID, due[0].LoanID)
}

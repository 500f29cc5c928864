package transfer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/ledger/ledgertest"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

var ctx = context.Background()

func newEngine(t *testing.T) (*Engine, *ledger.Store) {
	t.Helper()
	db, store := ledgertest.Open(t)
	return NewEngine(store, chain.New(), chain.NewGormRepository(db), config.Default().Ledger, logger.Nop()), store
}

func TestAdjustPipeline(t *testing.T) {
	e, _ := newEngine(t)
	a := e.Adjust(timevalue.FromMinutes(120))
	assert.Equal(t, int64(6), a.Tax.Minutes())
	assert.Equal(t, int64(2), a.Bonus.Minutes())
	assert.Equal(t, "2:08", a.Final.String())

	// floors are taken independently off the base
	a = e.Adjust(timevalue.FromMinutes(19))
	assert.Equal(t, int64(0), a.Tax.Minutes())
	assert.Equal(t, int64(0), a.Bonus.Minutes())
	assert.Equal(t, int64(19), a.Final.Minutes())
}

func TestTransferScenario(t *testing.T) {
	e, store := newEngine(t)
	alice, aAccs := ledgertest.User(t, store, "alice", "5:00")
	bob, bAccs := ledgertest.User(t, store, "bob", "1:00")

	res, err := e.Transfer(ctx, Request{
		SenderUserID:     alice.ID,
		SenderAccount:    aAccs[0].AccountNumber,
		ReceiverUsername: "Bob",
		ReceiverAccount:  bAccs[0].AccountNumber,
		Amount:           "2:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "2:08", res.Adjustment.Final.String())

	assert.Equal(t, "2:52", ledgertest.Balance(t, store, aAccs[0].ID))
	assert.Equal(t, "3:08", ledgertest.Balance(t, store, bAccs[0].ID))
	assert.Equal(t, int64(172), ledgertest.Aggregate(t, store, alice.ID))
	assert.Equal(t, int64(188), ledgertest.Aggregate(t, store, bob.ID))
	require.NoError(t, store.CheckInvariant(ctx, alice.ID))
	require.NoError(t, store.CheckInvariant(ctx, bob.ID))

	last := e.chain.Last()
	assert.Equal(t, 2, last.Index)
	require.Len(t, last.Transactions, 1)
	assert.Equal(t, "2:08", last.Transactions[0].Amount)
	assert.True(t, e.chain.Verify())

	var row models.Transaction
	require.NoError(t, store.DB().First(&row, res.Transaction.ID).Error)
	assert.Equal(t, last.Transactions[0].Hash(), row.TxnHash)
	assert.Equal(t, 2, row.BlockIndex)
	assert.Equal(t, "2:08", row.TimeAmount.String())
	assert.Equal(t, last.Transactions[0].Amount, row.TimeAmount.String())
	assert.Equal(t, "0:06", row.Tax.String())

	reloaded, err := e.repo.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, last.Hash, reloaded.Last().Hash)

	hist, err := e.History(ctx, bob.ID, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestTransferFailuresLeaveNoTrace(t *testing.T) {
	e, store := newEngine(t)
	alice, aAccs := ledgertest.User(t, store, "alice", "2:00", "1:00")
	_, bAccs := ledgertest.User(t, store, "bob", "1:00")
	req := func(amount string) Request {
		return Request{SenderUserID: alice.ID, SenderAccount: aAccs[0].AccountNumber,
			ReceiverAccount: bAccs[0].AccountNumber, Amount: amount}
	}

	_, err := e.Transfer(ctx, req("2:00")) // needs 2:08
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	_, err = e.Transfer(ctx, req("0:00"))
	assert.ErrorIs(t, err, ledger.ErrBadAmount)
	_, err = e.Transfer(ctx, req("two"))
	assert.ErrorIs(t, err, ledger.ErrParse)
	_, err = e.Transfer(ctx, req("5124095576030430:00"))
	assert.ErrorIs(t, err, ledger.ErrParse)
	_, err = e.Transfer(ctx, req("-1:00"))
	assert.Error(t, err)

	self := req("0:10")
	self.ReceiverAccount = aAccs[1].AccountNumber
	_, err = e.Transfer(ctx, self)
	assert.ErrorIs(t, err, ledger.ErrSameAccount)
	self.ReceiverAccount = aAccs[0].AccountNumber
	_, err = e.Transfer(ctx, self)
	assert.ErrorIs(t, err, ledger.ErrSameAccount)

	wrongOwner := req("0:10")
	wrongOwner.ReceiverUsername = "alice"
	_, err = e.Transfer(ctx, wrongOwner)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, store.SetStatus(ctx, alice.ID, aAccs[0].AccountNumber, models.StatusFrozen))
	_, err = e.Transfer(ctx, req("0:10"))
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	assert.Len(t, e.chain.Blocks(), 1, "no block for failed transfers")
	var n int64
	require.NoError(t, store.DB().Model(&models.Transaction{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, store.DB().Model(&models.BlockRecord{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, "2:00", ledgertest.Balance(t, store, aAccs[0].ID))
	assert.Equal(t, "1:00", ledgertest.Balance(t, store, bAccs[0].ID))
}

func TestConcurrentTransfersKeepChainAndInvariant(t *testing.T) {
	e, store := newEngine(t)
	alice, aAccs := ledgertest.User(t, store, "alice", "100:00")
	bob, bAccs := ledgertest.User(t, store, "bob", "100:00")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.Transfer(ctx, Request{SenderUserID: alice.ID, SenderAccount: aAccs[0].AccountNumber,
				ReceiverAccount: bAccs[0].AccountNumber, Amount: "1:00"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.Transfer(ctx, Request{SenderUserID: bob.ID, SenderAccount: bAccs[0].AccountNumber,
				ReceiverAccount: aAccs[0].AccountNumber, Amount: "1:00"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, e.chain.Blocks(), 21)
	assert.True(t, e.chain.Verify())
	require.NoError(t, store.CheckInvariant(ctx, alice.ID))
	require.NoError(t, store.CheckInvariant(ctx, bob.ID))
	assert.Equal(t, int64(200*60), ledgertest.Aggregate(t, store, alice.ID)+ledgertest.Aggregate(t, store, bob.ID))
}

func TestLargerThan(t *testing.T) {
	e, store := newEngine(t)
	alice, aAccs := ledgertest.User(t, store, "alice", "200:00")
	_, bAccs := ledgertest.User(t, store, "bob", "0:00")
	for _, amt := range []string{"1:00", "91:00"} {
		_, err := e.Transfer(ctx, Request{SenderUserID: alice.ID, SenderAccount: aAccs[0].AccountNumber,
			ReceiverAccount: bAccs[0].AccountNumber, Amount: amt})
		require.NoError(t, err)
	}
	rows, err := e.LargerThan(ctx, timevalue.FromMinutes(90*60), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "97:22", rows[0].TimeAmount.String())
}

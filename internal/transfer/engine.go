// Package transfer moves time between users. Each transfer is settled in
// one ledger transaction and sealed into its own audit chain block.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/chain"
	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// Adjustment is the result of the tax and bonus pipeline. Tax and bonus
// are both computed from Base; Final = Base + Tax + Bonus.
type Adjustment struct {
	Base  timevalue.Value `json:"base"`
	Tax   timevalue.Value `json:"tax"`
	Bonus timevalue.Value `json:"bonus"`
	Final timevalue.Value `json:"final"`
}

type Request struct {
	SenderUserID     uint
	SenderAccount    string
	ReceiverUsername string
	ReceiverAccount  string
	Amount           string
}

type Result struct {
	Transaction models.Transaction `json:"transaction"`
	Adjustment  Adjustment         `json:"adjustment"`
	BlockIndex  int                `json:"block_index"`
	BlockHash   string             `json:"block_hash"`
}

type Engine struct {
	store *ledger.Store
	chain *chain.Chain
	repo  *chain.GormRepository
	cfg   config.LedgerConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(store *ledger.Store, c *chain.Chain, repo *chain.GormRepository, cfg config.LedgerConfig, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		chain: c,
		repo:  repo,
		cfg:   cfg,
		log:   log.With().Str("component", "transfer").Logger(),
		now:   time.Now,
	}
}

// Adjust runs the pipeline: tax first, then bonus, neither compounding.
func (e *Engine) Adjust(base timevalue.Value) Adjustment {
	a := Adjustment{Base: base}
	a.Tax = base.FloorPercent(e.cfg.TaxPercent)
	a.Bonus = base.FloorPercent(e.cfg.BonusPercent)
	a.Final = base.Add(a.Tax).Add(a.Bonus)
	return a
}

// Transfer debits the sender's account by the adjusted amount, credits the
// receiver's account with the same amount, re-derives both aggregates from
// their account sums and records the transfer in the audit chain. Nothing
// is written unless every step succeeds.
func (e *Engine) Transfer(ctx context.Context, req Request) (*Result, error) {
	raw, err := timevalue.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	base := timevalue.FromMinutes(raw.Minutes())
	if !base.IsPositive() {
		return nil, fmt.Errorf("transfer of %q: %w", req.Amount, ledger.ErrBadAmount)
	}
	if req.SenderAccount == req.ReceiverAccount {
		return nil, ledger.ErrSameAccount
	}

	receiverID, err := e.receiverOf(ctx, req.ReceiverUsername, req.ReceiverAccount)
	if err != nil {
		return nil, err
	}
	if receiverID == req.SenderUserID {
		return nil, ledger.ErrSameAccount
	}

	adj := e.Adjust(base)
	now := e.now()
	entry := chain.NewEntry(req.SenderAccount, req.ReceiverAccount, adj.Final, models.TxnTransfer, now)
	res := &Result{Adjustment: adj}

	block, err := e.chain.Commit([]chain.Entry{entry}, func(b chain.Block) error {
		return e.store.WithUsers(ctx, []uint{req.SenderUserID, receiverID}, func(tx *ledger.Tx) error {
			sender, err := tx.GetAccount(req.SenderUserID, req.SenderAccount)
			if err != nil {
				return fmt.Errorf("sender: %w", err)
			}
			receiver, err := tx.GetAccount(receiverID, req.ReceiverAccount)
			if err != nil {
				return fmt.Errorf("receiver: %w", err)
			}
			if sender.AccountStatus != models.StatusActive {
				return fmt.Errorf("sender %s: %s: %w", sender.AccountNumber, ledger.DescribeState(sender.AccountStatus), ledger.ErrInvalidState)
			}
			if receiver.AccountStatus == models.StatusFrozen {
				return fmt.Errorf("receiver %s: %s: %w", receiver.AccountNumber, ledger.DescribeState(receiver.AccountStatus), ledger.ErrInvalidState)
			}
			if sender.Balance.Less(adj.Final) {
				return fmt.Errorf("balance %s, need %s: %w", sender.Balance, adj.Final, ledger.ErrInsufficientBalance)
			}

			if err := tx.DebitAccount(sender.ID, adj.Final); err != nil {
				return err
			}
			if err := tx.CreditAccount(receiver.ID, adj.Final); err != nil {
				return err
			}
			if _, err := tx.RecomputeUserAggregate(req.SenderUserID); err != nil {
				return err
			}
			if _, err := tx.RecomputeUserAggregate(receiverID); err != nil {
				return err
			}

			if err := e.repo.Save(tx.DB(), b); err != nil {
				return err
			}
			res.Transaction = models.Transaction{
				SenderID:              req.SenderUserID,
				ReceiverID:            receiverID,
				SenderAccountNumber:   sender.AccountNumber,
				ReceiverAccountNumber: receiver.AccountNumber,
				TimeAmount:            adj.Final,
				Tax:                   adj.Tax,
				Bonus:                 adj.Bonus,
				TransactionType:       models.TxnTransfer,
				Timestamp:             now,
				TxnHash:               entry.Hash(),
				BlockIndex:            b.Index,
			}
			if err := tx.DB().Create(&res.Transaction).Error; err != nil {
				return fmt.Errorf("record transaction: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		e.log.Warn().Err(err).Uint("user_id", req.SenderUserID).Str("account_number", req.SenderAccount).
			Int64("minutes", adj.Final.Minutes()).Msg("transfer rolled back")
		return nil, err
	}

	res.BlockIndex = block.Index
	res.BlockHash = block.Hash
	e.log.Info().Uint("user_id", req.SenderUserID).Uint("receiver_id", receiverID).
		Int64("minutes", adj.Final.Minutes()).Int("block_index", block.Index).Msg("transfer settled")
	return res, nil
}

// receiverOf resolves the receiving user. When a username is given the
// account must belong to that user.
func (e *Engine) receiverOf(ctx context.Context, username, accountNumber string) (uint, error) {
	var id uint
	err := e.store.Transaction(ctx, func(tx *ledger.Tx) error {
		acc, err := tx.AccountByNumber(accountNumber)
		if err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		if username != "" {
			var u models.User
			err := tx.DB().Where("LOWER(username) = LOWER(?)", username).First(&u).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("receiver user %q: %w", username, ledger.ErrNotFound)
			} else if err != nil {
				return fmt.Errorf("load receiver user: %w", err)
			}
			if u.ID != acc.UserID {
				return fmt.Errorf("account %s does not belong to %q: %w", accountNumber, username, ledger.ErrNotFound)
			}
		}
		id = acc.UserID
		return nil
	})
	return id, err
}

// History lists transfers sent or received by the user, newest first.
func (e *Engine) History(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.Transaction
	if err := e.store.DB().WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("transfer history: %w", err)
	}
	return rows, nil
}

// LargerThan lists transfers whose settled amount exceeds the threshold
// since the given time. Used by the alert monitor.
func (e *Engine) LargerThan(ctx context.Context, threshold timevalue.Value, since time.Time) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := e.store.DB().WithContext(ctx).Where("timestamp > ?", since).
		Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent transfers: %w", err)
	}
	out := rows[:0]
	for _, r := range rows {
		if threshold.Less(r.TimeAmount) {
			out = append(out, r)
		}
	}
	return out, nil
}

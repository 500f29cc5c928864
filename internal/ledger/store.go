// Package ledger owns the account and user-aggregate balance rows. Every
// mutation runs in one database transaction so that the sum of a user's
// non-deleted account balances equals users.total_balance_minutes at
// every commit.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Store is the transactional entry point to the ledger tables.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger

	moneyRate int64

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

type Option func(*Store)

// WithMoneyRate sets how many minutes one unit of legacy money buys.
func WithMoneyRate(minutesPerUnit int64) Option {
	return func(s *Store) {
		if minutesPerUnit > 0 {
			s.moneyRate = minutesPerUnit
		}
	}
}

func NewStore(db *gorm.DB, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		db:        db,
		log:       log.With().Str("component", "ledger").Logger(),
		moneyRate: 2,
		locks:     make(map[uint]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DB exposes the handle for read-only queries outside a ledger transaction.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Logger() zerolog.Logger { return s.log }

// Tx is a ledger transaction. All writes made through it commit or roll
// back together.
type Tx struct {
	db *gorm.DB
}

// DB returns the underlying gorm transaction so that callers can write
// their own rows (goals, loans, transfers) in the same commit.
func (tx *Tx) DB() *gorm.DB { return tx.db }

// Transaction runs fn in a single database transaction. A non-nil error
// from fn, or a panic, rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx})
	})
}

// WithUsers serialises fn against every other ledger operation touching
// any of userIDs, then runs it in one transaction. Locks are taken in
// ascending id order.
func (s *Store) WithUsers(ctx context.Context, userIDs []uint, fn func(tx *Tx) error) error {
	unlock := s.lockUsers(userIDs)
	defer unlock()
	return s.Transaction(ctx, fn)
}

func (s *Store) lockUsers(userIDs []uint) func() {
	ids := make([]uint, 0, len(userIDs))
	seen := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	s.mu.Lock()
	held := make([]*sync.Mutex, len(ids))
	for i, id := range ids {
		m, ok := s.locks[id]
		if !ok {
			m = &sync.Mutex{}
			s.locks[id] = m
		}
		held[i] = m
	}
	s.mu.Unlock()

	for _, m := range held {
		m.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// Package ledgertest opens throwaway SQLite ledgers for package tests.
package ledgertest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/database"
	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/logger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// Open returns a migrated database in t.TempDir() and a store over it.
func Open(t *testing.T) (*gorm.DB, *ledger.Store) {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db, ledger.NewStore(db, logger.Nop())
}

// User creates a user with one account per balance, in order, the first
// being Savings and the rest Investment.
func User(t *testing.T, store *ledger.Store, name string, balances ...string) (*models.User, []*models.Account) {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x"}
	require.NoError(t, store.DB().Create(u).Error)

	var accs []*models.Account
	for i, b := range balances {
		v, err := timevalue.Parse(b)
		require.NoError(t, err)
		typ := models.AccountInvestment
		if i == 0 {
			typ = models.AccountSavings
		}
		acc, err := store.OpenAccount(context.Background(), u.ID, typ, v)
		require.NoError(t, err)
		accs = append(accs, acc)
	}
	return u, accs
}

// Aggregate reads users.total_balance_minutes.
func Aggregate(t *testing.T, store *ledger.Store, userID uint) int64 {
	t.Helper()
	var u models.User
	require.NoError(t, store.DB().First(&u, userID).Error)
	return u.TotalBalanceMinutes
}

// Balance reads an account balance as H:MM.
func Balance(t *testing.T, store *ledger.Store, accountID uint) string {
	t.Helper()
	var a models.Account
	require.NoError(t, store.DB().First(&a, accountID).Error)
	return a.Balance.String()
}

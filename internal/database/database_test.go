package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tishajain880/Chronobank/internal/config"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

func TestInitAndMigrate(t *testing.T) {
	db, err := Init(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	u := models.User{Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.Create(&u).Error)

	acc := models.Account{
		UserID:        u.ID,
		AccountNumber: "12345678901",
		AccountType:   models.AccountSavings,
		Balance:       timevalue.FromMinutes(150),
		AccountStatus: models.StatusActive,
	}
	require.NoError(t, db.Create(&acc).Error)

	var raw string
	require.NoError(t, db.Raw("SELECT balance FROM accounts WHERE id = ?", acc.ID).Scan(&raw).Error)
	assert.Equal(t, "2:30", raw)

	var back models.Account
	require.NoError(t, db.First(&back, acc.ID).Error)
	assert.Equal(t, int64(150), back.Balance.Minutes())
}

package database

import (
	"fmt"

	"github.com/tishajain880/Chronobank/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Account{},
		&models.TimeGoal{},
		&models.GoalTransaction{},
		&models.Loan{},
		&models.Repayment{},
		&models.Transaction{},
		&models.MoneyTimeTransaction{},
		&models.BlockRecord{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

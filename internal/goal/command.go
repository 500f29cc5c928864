// Package goal implements time goals: named sub-ledgers a user moves time
// into and out of through reversible commands.
package goal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// Command is a goal operation that can be reversed exactly.
type Command interface {
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
	String() string
}

func loadGoal(tx *ledger.Tx, userID, goalID uint) (*models.TimeGoal, error) {
	var g models.TimeGoal
	err := tx.DB().Where("id = ? AND user_id = ?", goalID, userID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("goal %d: %w", goalID, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load goal %d: %w", goalID, err)
	}
	return &g, nil
}

// move shifts minutes between the user's balance and a goal. Positive
// minutes go into the goal. The primary account mirror is resynced so
// the account sum keeps matching the aggregate.
func move(tx *ledger.Tx, userID, goalID uint, minutes int64) error {
	g, err := loadGoal(tx, userID, goalID)
	if err != nil {
		return err
	}
	saved := g.SavedMinutes + minutes
	if saved < 0 {
		return fmt.Errorf("goal %d holds %s: %w", goalID, timevalue.FromMinutes(g.SavedMinutes), ledger.ErrInsufficientBalance)
	}
	if err := tx.DB().Model(&models.TimeGoal{}).Where("id = ?", g.ID).
		Update("saved_minutes", saved).Error; err != nil {
		return fmt.Errorf("update goal %d: %w", goalID, err)
	}
	if err := tx.AdjustUserAggregate(userID, -minutes); err != nil {
		return err
	}
	return tx.SyncMirror(userID)
}

func record(tx *ledger.Tx, userID, goalID uint, minutes int64, kind string) (uint, error) {
	row := models.GoalTransaction{
		UserID:    userID,
		GoalID:    goalID,
		Minutes:   minutes,
		Type:      kind,
		Timestamp: time.Now(),
	}
	if err := tx.DB().Create(&row).Error; err != nil {
		return 0, fmt.Errorf("record goal transaction: %w", err)
	}
	return row.ID, nil
}

func unrecord(tx *ledger.Tx, id uint) error {
	if err := tx.DB().Delete(&models.GoalTransaction{}, id).Error; err != nil {
		return fmt.Errorf("delete goal transaction %d: %w", id, err)
	}
	return nil
}

// AllocateTime moves Amount from the user's balance into a goal. It does
// not check affordability itself; the aggregate and the account mirror
// refuse to go negative, which rolls the whole command back.
//
// With a zero GoalID the goal titled NewGoal is created in the same
// transaction, so a failed allocation leaves no goal behind.
type AllocateTime struct {
	Store   *ledger.Store
	UserID  uint
	GoalID  uint
	NewGoal string
	Amount  timevalue.Value

	txID uint
}

func (c *AllocateTime) Execute(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.UserID}, func(tx *ledger.Tx) error {
		goalID := c.GoalID
		if goalID == 0 {
			g := models.TimeGoal{UserID: c.UserID, Title: c.NewGoal}
			if err := tx.DB().Create(&g).Error; err != nil {
				return fmt.Errorf("create goal: %w", err)
			}
			goalID = g.ID
		}
		if err := move(tx, c.UserID, goalID, c.Amount.Minutes()); err != nil {
			return err
		}
		id, err := record(tx, c.UserID, goalID, c.Amount.Minutes(), models.GoalAllocate)
		if err != nil {
			return err
		}
		c.GoalID, c.txID = goalID, id
		return nil
	})
}

func (c *AllocateTime) Undo(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.UserID}, func(tx *ledger.Tx) error {
		if err := move(tx, c.UserID, c.GoalID, -c.Amount.Minutes()); err != nil {
			return err
		}
		return unrecord(tx, c.txID)
	})
}

func (c *AllocateTime) String() string {
	return fmt.Sprintf("allocate %s to goal %d", c.Amount, c.GoalID)
}

// WithdrawTime moves Amount from a goal back to the user's balance. The
// goal must hold at least Amount.
type WithdrawTime struct {
	Store  *ledger.Store
	UserID uint
	GoalID uint
	Amount timevalue.Value

	txID uint
}

func (c *WithdrawTime) Execute(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.UserID}, func(tx *ledger.Tx) error {
		if err := move(tx, c.UserID, c.GoalID, -c.Amount.Minutes()); err != nil {
			return err
		}
		id, err := record(tx, c.UserID, c.GoalID, c.Amount.Minutes(), models.GoalWithdraw)
		if err != nil {
			return err
		}
		c.txID = id
		return nil
	})
}

func (c *WithdrawTime) Undo(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.UserID}, func(tx *ledger.Tx) error {
		if err := move(tx, c.UserID, c.GoalID, c.Amount.Minutes()); err != nil {
			return err
		}
		return unrecord(tx, c.txID)
	})
}

func (c *WithdrawTime) String() string {
	return fmt.Sprintf("withdraw %s from goal %d", c.Amount, c.GoalID)
}

// DeleteGoal removes a goal and its history. Saved time is not returned to
// the user. Undo restores the goal row with its saved time but not its
// history.
type DeleteGoal struct {
	Store *ledger.Store
	Goal  models.TimeGoal
}

func (c *DeleteGoal) Execute(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.Goal.UserID}, func(tx *ledger.Tx) error {
		if _, err := loadGoal(tx, c.Goal.UserID, c.Goal.ID); err != nil {
			return err
		}
		if err := tx.DB().Where("goal_id = ?", c.Goal.ID).Delete(&models.GoalTransaction{}).Error; err != nil {
			return fmt.Errorf("delete goal history: %w", err)
		}
		if err := tx.DB().Delete(&models.TimeGoal{}, c.Goal.ID).Error; err != nil {
			return fmt.Errorf("delete goal %d: %w", c.Goal.ID, err)
		}
		return nil
	})
}

func (c *DeleteGoal) Undo(ctx context.Context) error {
	return c.Store.WithUsers(ctx, []uint{c.Goal.UserID}, func(tx *ledger.Tx) error {
		g := c.Goal
		if err := tx.DB().Create(&g).Error; err != nil {
			return fmt.Errorf("restore goal %d: %w", c.Goal.ID, err)
		}
		return nil
	})
}

func (c *DeleteGoal) String() string {
	return fmt.Sprintf("delete goal %d (%s)", c.Goal.ID, c.Goal.Title)
}

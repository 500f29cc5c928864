package goal

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tishajain880/Chronobank/internal/ledger"
	"github.com/tishajain880/Chronobank/internal/models"
	"github.com/tishajain880/Chronobank/internal/timevalue"
)

// Service runs goal operations through a caller-supplied Manager so that
// each session undoes only its own commands.
type Service struct {
	store *ledger.Store
	log   zerolog.Logger
}

func NewService(store *ledger.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log.With().Str("component", "goal").Logger()}
}

func (s *Service) affordable(ctx context.Context, userID uint, amount timevalue.Value) error {
	bal, err := s.store.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if bal.Minutes() < amount.Minutes() {
		return fmt.Errorf("balance %s, need %s: %w", bal, amount, ledger.ErrInsufficientBalance)
	}
	return nil
}

func (s *Service) run(ctx context.Context, m *Manager, userID uint, cmd Command) error {
	if err := m.Execute(ctx, cmd); err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Str("command", cmd.String()).Msg("goal command rolled back")
		return err
	}
	s.log.Info().Uint("user_id", userID).Str("command", cmd.String()).Msg("goal command executed")
	return nil
}

// Create adds a goal and, when amount is non-zero, allocates it as an
// undoable command. Goal row and allocation commit together.
func (s *Service) Create(ctx context.Context, m *Manager, userID uint, title string, amount timevalue.Value) (*models.TimeGoal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("goal title is empty: %w", ledger.ErrInvalidState)
	}
	if err := s.affordable(ctx, userID, amount); err != nil {
		return nil, err
	}
	if amount.Minutes() <= 0 {
		g := &models.TimeGoal{UserID: userID, Title: title}
		if err := s.store.DB().WithContext(ctx).Create(g).Error; err != nil {
			return nil, fmt.Errorf("create goal: %w", err)
		}
		return s.Get(ctx, userID, g.ID)
	}
	cmd := &AllocateTime{Store: s.store, UserID: userID, NewGoal: title, Amount: amount}
	if err := s.run(ctx, m, userID, cmd); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, cmd.GoalID)
}

// Allocate moves amount into a goal after checking the user can afford it.
func (s *Service) Allocate(ctx context.Context, m *Manager, userID, goalID uint, amount timevalue.Value) (*models.TimeGoal, error) {
	if amount.Minutes() <= 0 {
		return nil, ledger.ErrBadAmount
	}
	if err := s.affordable(ctx, userID, amount); err != nil {
		return nil, err
	}
	if err := s.run(ctx, m, userID, &AllocateTime{Store: s.store, UserID: userID, GoalID: goalID, Amount: amount}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, goalID)
}

func (s *Service) Withdraw(ctx context.Context, m *Manager, userID, goalID uint, amount timevalue.Value) (*models.TimeGoal, error) {
	if amount.Minutes() <= 0 {
		return nil, ledger.ErrBadAmount
	}
	if err := s.run(ctx, m, userID, &WithdrawTime{Store: s.store, UserID: userID, GoalID: goalID, Amount: amount}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, goalID)
}

// Rename is not undoable.
func (s *Service) Rename(ctx context.Context, userID, goalID uint, title string) (*models.TimeGoal, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("goal title is empty: %w", ledger.ErrInvalidState)
	}
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DB().WithContext(ctx).Model(g).Update("title", title).Error; err != nil {
		return nil, fmt.Errorf("rename goal %d: %w", goalID, err)
	}
	g.Title = title
	return g, nil
}

func (s *Service) Delete(ctx context.Context, m *Manager, userID, goalID uint) error {
	g, err := s.Get(ctx, userID, goalID)
	if err != nil {
		return err
	}
	return s.run(ctx, m, userID, &DeleteGoal{Store: s.store, Goal: *g})
}

// Undo reverses the session's newest goal command; nil means nothing was
// left to undo.
func (s *Service) Undo(ctx context.Context, m *Manager) (Command, error) {
	cmd, err := m.Undo(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("undo failed")
		return nil, err
	}
	if cmd != nil {
		s.log.Info().Str("command", cmd.String()).Msg("undone")
	}
	return cmd, nil
}

func (s *Service) Redo(ctx context.Context, m *Manager) (Command, error) {
	cmd, err := m.Redo(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("redo failed")
		return nil, err
	}
	if cmd != nil {
		s.log.Info().Str("command", cmd.String()).Msg("redone")
	}
	return cmd, nil
}

func (s *Service) Get(ctx context.Context, userID, goalID uint) (*models.TimeGoal, error) {
	var g *models.TimeGoal
	err := s.store.Transaction(ctx, func(tx *ledger.Tx) error {
		var err error
		g, err = loadGoal(tx, userID, goalID)
		return err
	})
	return g, err
}

func (s *Service) List(ctx context.Context, userID uint) ([]models.TimeGoal, error) {
	var goals []models.TimeGoal
	if err := s.store.DB().WithContext(ctx).Where("user_id = ?", userID).
		Order("id ASC").Find(&goals).Error; err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	return goals, nil
}

// History lists a goal's allocations and withdrawals, oldest first.
func (s *Service) History(ctx context.Context, userID, goalID uint) ([]models.GoalTransaction, error) {
	var rows []models.GoalTransaction
	if err := s.store.DB().WithContext(ctx).Where("user_id = ? AND goal_id = ?", userID, goalID).
		Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("goal history: %w", err)
	}
	return rows, nil
}

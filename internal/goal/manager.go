package goal

import (
	"context"
	"sync"
	"time"
)

// DefaultDepth bounds each manager's undo history.
const DefaultDepth = 50

// pruneEvery throttles the expiry sweep Get runs.
const pruneEvery = time.Minute

// Manager keeps the undo and redo stacks of one session.
type Manager struct {
	mu       sync.Mutex
	undo     []Command
	redo     []Command
	maxDepth int
}

func NewManager(maxDepth int) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultDepth
	}
	return &Manager{maxDepth: maxDepth}
}

// Execute runs cmd; on success it becomes the newest undo entry and the
// redo stack is cleared.
func (m *Manager) Execute(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := cmd.Execute(ctx); err != nil {
		return err
	}
	m.pushUndo(cmd)
	m.redo = nil
	return nil
}

func (m *Manager) pushUndo(cmd Command) {
	m.undo = append(m.undo, cmd)
	if len(m.undo) > m.maxDepth {
		m.undo = m.undo[len(m.undo)-m.maxDepth:]
	}
}

// Undo reverses the newest command. It returns nil, nil when there is
// nothing to undo. A failed undo leaves both stacks unchanged.
func (m *Manager) Undo(ctx context.Context) (Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return nil, nil
	}
	cmd := m.undo[len(m.undo)-1]
	if err := cmd.Undo(ctx); err != nil {
		return nil, err
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cmd)
	return cmd, nil
}

// Redo re-executes the newest undone command.
func (m *Manager) Redo(ctx context.Context) (Command, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.redo) == 0 {
		return nil, nil
	}
	cmd := m.redo[len(m.redo)-1]
	if err := cmd.Execute(ctx); err != nil {
		return nil, err
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.pushUndo(cmd)
	return cmd, nil
}

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Sessions hands out one Manager per session id. A manager lives until
// its session expires or is dropped.
type Sessions struct {
	mu        sync.Mutex
	managers  map[string]*session
	maxDepth  int
	now       func() time.Time
	lastPrune time.Time
}

type session struct {
	m         *Manager
	expiresAt time.Time
}

func NewSessions(maxDepth int) *Sessions {
	return &Sessions{managers: make(map[string]*session), maxDepth: maxDepth, now: time.Now}
}

// Get returns the session's manager, creating it on first use. A zero
// expiresAt never expires. Expired managers are swept at most once per
// minute.
func (s *Sessions) Get(sessionID string, expiresAt time.Time) *Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastPrune) >= pruneEvery {
		s.prune(now)
	}
	e, ok := s.managers[sessionID]
	if !ok {
		e = &session{m: NewManager(s.maxDepth)}
		s.managers[sessionID] = e
	}
	e.expiresAt = expiresAt
	return e.m
}

// Prune drops managers whose session expired before now and returns how
// many were dropped.
func (s *Sessions) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(now)
}

func (s *Sessions) prune(now time.Time) int {
	s.lastPrune = now
	n := 0
	for id, e := range s.managers {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.managers, id)
			n++
		}
	}
	return n
}

// Drop forgets a session's history, e.g. on logout.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.managers, sessionID)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.managers)
}

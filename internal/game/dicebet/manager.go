// Package dicebet tracks the active round per chat.
package dicebet

import "sync"

// Manager holds at most one live round per chat and enforces that round ids
// increase monotonically within a chat.
type Manager struct {
	mu     sync.RWMutex
	rounds map[int64]*Round
	lastID map[int64]int64
}

// NewManager creates an empty round manager.
func NewManager() *Manager {
	return &Manager{
		rounds: make(map[int64]*Round),
		lastID: make(map[int64]int64),
	}
}

// Open creates a new WAITING round for the chat. The id normally comes from
// the chat's persistent round sequence; ids below the last seen id are bumped
// to keep the per-chat sequence monotonic.
func (m *Manager) Open(chatID, id int64) (*Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rounds[chatID]; ok && existing.State() != StateOver {
		return nil, ErrRoundActive
	}
	if last := m.lastID[chatID]; id <= last {
		id = last + 1
	}

	round := NewRound(id, chatID)
	m.rounds[chatID] = round
	m.lastID[chatID] = id
	return round, nil
}

// Current returns the chat's live round, if any.
func (m *Manager) Current(chatID int64) (*Round, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	round, ok := m.rounds[chatID]
	if !ok || round.State() == StateOver {
		return nil, false
	}
	return round, true
}

// Close transitions the chat's round to CLOSED and returns it for
// settlement.
func (m *Manager) Close(chatID int64) (*Round, error) {
	m.mu.RLock()
	round, ok := m.rounds[chatID]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNoActiveRound
	}
	if err := round.Close(); err != nil {
		return nil, err
	}
	return round, nil
}

// Remove discards the chat's round once it is OVER and its history record
// persisted.
func (m *Manager) Remove(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rounds, chatID)
}

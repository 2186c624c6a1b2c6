// Package dicebet manages round state and the per-round bet ledger.
package dicebet

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// State represents a round's lifecycle phase.
type State string

const (
	// StateWaiting accepts bets
	StateWaiting State = "waiting"
	// StateClosed accepts no more bets and awaits the dice result
	StateClosed State = "closed"
	// StateOver is fully settled
	StateOver State = "over"
)

// Round and settlement errors
var (
	ErrRoundActive       = errors.New("a round is already running in this chat")
	ErrNoActiveRound     = errors.New("no active round in this chat")
	ErrBettingClosed     = errors.New("betting is closed for this round")
	ErrInvalidCategory   = errors.New("invalid bet category")
	ErrInvalidAmount     = errors.New("bet amount must be positive")
	ErrInvalidDice       = errors.New("dice values must be between 1 and 6")
	ErrResultAlreadySet  = errors.New("dice result already set for this round")
	ErrInvalidRoundState = errors.New("round is not in a settleable state")
)

// Round is one betting cycle in a chat. Bets accumulate per user and
// category while the round is WAITING; after Close the ledger is frozen
// until settlement moves the round to OVER.
type Round struct {
	ID        int64
	ChatID    int64
	CreatedAt time.Time

	mu           sync.RWMutex
	state        State
	closedAt     time.Time
	dice         [2]int
	resultSet    bool
	bets         map[Category]map[int64]int64
	participants map[int64]struct{}
}

// NewRound creates a WAITING round for a chat.
func NewRound(id, chatID int64) *Round {
	bets := make(map[Category]map[int64]int64, len(Categories))
	for _, cat := range Categories {
		bets[cat] = make(map[int64]int64)
	}
	return &Round{
		ID:           id,
		ChatID:       chatID,
		CreatedAt:    time.Now(),
		state:        StateWaiting,
		bets:         bets,
		participants: make(map[int64]struct{}),
	}
}

// State returns the round's current lifecycle state.
func (r *Round) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// ClosedAt returns when betting was closed (zero while WAITING).
func (r *Round) ClosedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closedAt
}

// PlaceBet records a wager for a user. Repeated bets on the same category
// accumulate. Bets are only accepted while the round is WAITING.
func (r *Round) PlaceBet(userID int64, cat Category, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, ok := r.bets[cat]; !ok {
		return ErrInvalidCategory
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return ErrBettingClosed
	}
	r.bets[cat][userID] += amount
	r.participants[userID] = struct{}{}
	return nil
}

// Close stops betting: WAITING -> CLOSED. The bet ledger is frozen from
// this point on.
func (r *Round) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return ErrInvalidRoundState
	}
	r.state = StateClosed
	r.closedAt = time.Now()
	return nil
}

// SetResult records the dice roll on a CLOSED round. The result can only be
// set once.
func (r *Round) SetResult(d1, d2 int) error {
	if !ValidDie(d1) || !ValidDie(d2) {
		return ErrInvalidDice
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateClosed {
		return ErrInvalidRoundState
	}
	if r.resultSet {
		return ErrResultAlreadySet
	}
	r.dice = [2]int{d1, d2}
	r.resultSet = true
	return nil
}

// Result returns the dice pair and whether it has been set.
func (r *Round) Result() ([2]int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dice, r.resultSet
}

// Wager returns the user's cumulative wager on one category.
func (r *Round) Wager(userID int64, cat Category) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bets[cat][userID]
}

// UserTotal returns the user's cumulative wager across all categories.
func (r *Round) UserTotal(userID int64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, users := range r.bets {
		total += users[userID]
	}
	return total
}

// TotalBets returns the sum of all wagers in the round.
func (r *Round) TotalBets() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, users := range r.bets {
		for _, amount := range users {
			total += amount
		}
	}
	return total
}

// CategoryTotals returns the total wagered per category.
func (r *Round) CategoryTotals() map[Category]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := make(map[Category]int64, len(r.bets))
	for cat, users := range r.bets {
		var sum int64
		for _, amount := range users {
			sum += amount
		}
		totals[cat] = sum
	}
	return totals
}

// PlayerCount returns the number of distinct bettors in the round.
func (r *Round) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Participants returns the bettors in ascending user-id order.
func (r *Round) Participants() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantsLocked()
}

func (r *Round) participantsLocked() []int64 {
	ids := make([]int64, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// snapshot returns a copy of the bet ledger and the participants in
// ascending user-id order, for settlement.
func (r *Round) snapshot() (map[Category]map[int64]int64, []int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bets := make(map[Category]map[int64]int64, len(r.bets))
	for cat, users := range r.bets {
		copied := make(map[int64]int64, len(users))
		for id, amount := range users {
			copied[id] = amount
		}
		bets[cat] = copied
	}
	return bets, r.participantsLocked()
}

// markOver transitions the round to OVER after settlement.
func (r *Round) markOver() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateOver
}

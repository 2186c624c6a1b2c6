// Package dicebet settles closed rounds into winners, losers and balance
// credits.
package dicebet

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// BalanceStore is the chat-scoped main-score store settlement credits
// winnings into. Wagers are debited when bets are placed, so settlement
// never debits.
type BalanceStore interface {
	// MainScore returns the user's current main score in the chat.
	MainScore(ctx context.Context, chatID, userID int64) (int64, error)
	// AddMainScore credits delta to the user's main score and returns the
	// new value.
	AddMainScore(ctx context.Context, chatID, userID, delta int64) (int64, error)
}

// HistoryStore persists settled-round records and the per-chat idle-round
// counter.
type HistoryStore interface {
	// Append pushes a record onto the chat's bounded match history.
	Append(ctx context.Context, rec MatchRecord) error
	// BumpIdle increments the chat's idle-round counter when idle is true
	// and resets it otherwise, returning the new value.
	BumpIdle(ctx context.Context, chatID int64, idle bool) (int, error)
}

// MatchRecord is one settled round in a chat's match history.
type MatchRecord struct {
	RoundID     int64     `json:"round_id"`
	ChatID      int64     `json:"chat_id"`
	SettledAt   time.Time `json:"settled_at"`
	Dice        [2]int    `json:"dice"`
	Sum         int       `json:"sum"`
	Winning     Category  `json:"winning"`
	TotalBets   int64     `json:"total_bets"`
	TotalPayout int64     `json:"total_payout"`
	Winners     int       `json:"winners"`
	Losers      int       `json:"losers"`
}

// PlayerResult is one participant's outcome in a settled round.
type PlayerResult struct {
	UserID    int64
	Wagered   int64
	Winnings  int64
	Net       int64
	MainScore int64
}

// SettlementResult is the full outcome of settling one round.
type SettlementResult struct {
	RoundID      int64
	ChatID       int64
	Dice         [2]int
	Sum          int
	Winning      Category
	Multiplier   float64
	TotalBets    int64
	TotalPayout  int64
	TotalWinners int
	TotalLosers  int
	Winners      []PlayerResult
	Losers       []PlayerResult
	IdleRounds   int
}

// Engine settles rounds against the balance store and records the outcome
// in the match history.
type Engine struct {
	store   BalanceStore
	history HistoryStore
	mult    Multipliers
}

// NewEngine creates a settlement engine.
func NewEngine(store BalanceStore, history HistoryStore, mult Multipliers) *Engine {
	return &Engine{store: store, history: history, mult: mult}
}

// Multipliers returns the engine's payout multipliers.
func (e *Engine) Multipliers() Multipliers {
	return e.mult
}

// Settle resolves a CLOSED round with a dice result: it classifies the sum,
// credits winnings to the winners' main scores, splits participants into
// winners (net > 0) and losers (net < 0), appends the match record and
// updates the idle-round counter, then marks the round OVER.
//
// A balance-store failure for one user is logged and skipped so the
// remaining participants still settle; the summary then reports the locally
// computed score for that user. History and idle-counter failures are
// logged and do not block the round from finishing.
func (e *Engine) Settle(ctx context.Context, round *Round) (*SettlementResult, error) {
	if round == nil {
		return nil, ErrInvalidRoundState
	}
	dice, ok := round.Result()
	if round.State() != StateClosed || !ok {
		return nil, ErrInvalidRoundState
	}

	sum := dice[0] + dice[1]
	winning := ClassifySum(sum)
	multiplier := e.mult.For(winning)
	bets, participants := round.snapshot()

	result := &SettlementResult{
		RoundID:    round.ID,
		ChatID:     round.ChatID,
		Dice:       dice,
		Sum:        sum,
		Winning:    winning,
		Multiplier: multiplier,
	}

	for _, userID := range participants {
		var wagered int64
		for _, cat := range Categories {
			wagered += bets[cat][userID]
		}
		winnings := Winnings(bets[winning][userID], multiplier)
		net := winnings - wagered
		result.TotalBets += wagered

		entry := PlayerResult{
			UserID:    userID,
			Wagered:   wagered,
			Winnings:  winnings,
			Net:       net,
			MainScore: e.creditWinnings(ctx, round.ChatID, userID, winnings),
		}

		switch {
		case net > 0:
			result.Winners = append(result.Winners, entry)
			result.TotalPayout += winnings
		case net < 0:
			result.Losers = append(result.Losers, entry)
		}
	}

	result.TotalWinners = len(result.Winners)
	result.TotalLosers = len(result.Losers)

	// winners from biggest gain, losers from biggest loss
	sort.Slice(result.Winners, func(i, j int) bool {
		if result.Winners[i].Net != result.Winners[j].Net {
			return result.Winners[i].Net > result.Winners[j].Net
		}
		return result.Winners[i].UserID < result.Winners[j].UserID
	})
	sort.Slice(result.Losers, func(i, j int) bool {
		if result.Losers[i].Net != result.Losers[j].Net {
			return result.Losers[i].Net < result.Losers[j].Net
		}
		return result.Losers[i].UserID < result.Losers[j].UserID
	})

	rec := MatchRecord{
		RoundID:     round.ID,
		ChatID:      round.ChatID,
		SettledAt:   time.Now(),
		Dice:        dice,
		Sum:         sum,
		Winning:     winning,
		TotalBets:   result.TotalBets,
		TotalPayout: result.TotalPayout,
		Winners:     result.TotalWinners,
		Losers:      result.TotalLosers,
	}
	if err := e.history.Append(ctx, rec); err != nil {
		log.Warn().Err(err).
			Int64("chat_id", round.ChatID).
			Int64("round_id", round.ID).
			Msg("failed to append match history")
	}

	idle, err := e.history.BumpIdle(ctx, round.ChatID, result.TotalBets == 0)
	if err != nil {
		log.Warn().Err(err).
			Int64("chat_id", round.ChatID).
			Msg("failed to update idle-round counter")
	} else {
		result.IdleRounds = idle
	}

	round.markOver()
	return result, nil
}

// creditWinnings adds winnings to the user's main score and returns the
// resulting score. When the store rejects the credit, the error is logged
// and a locally computed score is reported so settlement can continue for
// the other participants.
func (e *Engine) creditWinnings(ctx context.Context, chatID, userID, winnings int64) int64 {
	before, err := e.store.MainScore(ctx, chatID, userID)
	if err != nil {
		log.Warn().Err(err).
			Int64("chat_id", chatID).
			Int64("user_id", userID).
			Msg("failed to read main score during settlement")
		before = 0
	}
	if winnings <= 0 {
		return before
	}

	after, err := e.store.AddMainScore(ctx, chatID, userID, winnings)
	if err != nil {
		log.Error().Err(err).
			Int64("chat_id", chatID).
			Int64("user_id", userID).
			Int64("winnings", winnings).
			Msg("failed to credit winnings, manual credit may be required")
		return before + winnings
	}
	return after
}

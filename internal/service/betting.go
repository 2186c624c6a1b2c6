// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"telegram-dice-bot/internal/game/dicebet"
	"telegram-dice-bot/internal/pkg/lock"
	"telegram-dice-bot/internal/wallet"
)

// Common errors for bet placement.
var (
	ErrBetBelowMinimum = errors.New("bet amount below minimum")
	ErrBetAboveMaximum = errors.New("bet amount above maximum")
)

// BetReceipt describes a successfully placed bet, including how the amount
// was funded.
type BetReceipt struct {
	RoundID      int64
	Category     dicebet.Category
	Amount       int64
	BonusUsed    int64
	ReferralUsed int64
	MainUsed     int64
	// After holds the balances once the charge is applied.
	After wallet.Balances
	// UserTotal is the user's total wager in the round after this bet.
	UserTotal int64
}

// BettingService places bets against the chat's active round.
type BettingService struct {
	resolver *wallet.Resolver
	rounds   *dicebet.Manager
	chatLock *lock.ChatLock
	minBet   int64
	maxBet   int64
}

// NewBettingService creates a new BettingService instance.
func NewBettingService(
	resolver *wallet.Resolver,
	rounds *dicebet.Manager,
	chatLock *lock.ChatLock,
	minBet, maxBet int64,
) *BettingService {
	return &BettingService{
		resolver: resolver,
		rounds:   rounds,
		chatLock: chatLock,
		minBet:   minBet,
		maxBet:   maxBet,
	}
}

// MinBet returns the smallest accepted bet amount.
func (s *BettingService) MinBet() int64 { return s.minBet }

// MaxBet returns the largest accepted bet amount.
func (s *BettingService) MaxBet() int64 { return s.maxBet }

// CurrentRound returns the chat's active round, if any.
func (s *BettingService) CurrentRound(chatID int64) (*dicebet.Round, bool) {
	return s.rounds.Current(chatID)
}

// PlaceBet charges amount through the funding resolver and records the bet
// on the chat's active round. The chat lock serializes placement against the
// close/roll/settle sequence, so the round cannot leave WAITING between the
// state check and the write. A failed charge leaves both the balances and
// the round untouched.
func (s *BettingService) PlaceBet(ctx context.Context, chatID, userID int64, cat dicebet.Category, amount int64) (*BetReceipt, error) {
	if !dicebet.ValidCategory(cat) {
		return nil, dicebet.ErrInvalidCategory
	}
	if amount <= 0 {
		return nil, dicebet.ErrInvalidAmount
	}
	if amount < s.minBet {
		return nil, ErrBetBelowMinimum
	}
	if amount > s.maxBet {
		return nil, ErrBetAboveMaximum
	}

	s.chatLock.Lock(chatID)
	defer s.chatLock.Unlock(chatID)

	round, ok := s.rounds.Current(chatID)
	if !ok {
		return nil, dicebet.ErrNoActiveRound
	}
	if round.State() != dicebet.StateWaiting {
		return nil, dicebet.ErrBettingClosed
	}

	charge, err := s.resolver.ResolveAndCharge(ctx, chatID, userID, amount)
	if err != nil {
		return nil, err
	}

	if err := round.PlaceBet(userID, cat, amount); err != nil {
		// Unreachable while the chat lock is held; the charge has already
		// been applied, so surface loudly instead of guessing at a refund.
		log.Error().Err(err).
			Int64("chat_id", chatID).
			Int64("user_id", userID).
			Int64("round_id", round.ID).
			Int64("amount", amount).
			Msg("Bet charged but not recorded")
		return nil, err
	}

	log.Info().
		Int64("chat_id", chatID).
		Int64("user_id", userID).
		Int64("round_id", round.ID).
		Str("category", string(cat)).
		Int64("amount", amount).
		Int64("bonus_used", charge.BonusUsed).
		Int64("referral_used", charge.ReferralUsed).
		Int64("main_used", charge.MainUsed).
		Msg("Bet placed")

	return &BetReceipt{
		RoundID:      round.ID,
		Category:     cat,
		Amount:       amount,
		BonusUsed:    charge.BonusUsed,
		ReferralUsed: charge.ReferralUsed,
		MainUsed:     charge.MainUsed,
		After:        charge.After,
		UserTotal:    round.UserTotal(userID),
	}, nil
}

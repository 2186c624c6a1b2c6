package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-dice-bot/internal/model"
	"telegram-dice-bot/internal/repository"
	"telegram-dice-bot/internal/wallet"
)

// WalletService handles user registration, chat wallets and point balances.
type WalletService struct {
	userRepo     *repository.UserRepository
	walletRepo   *repository.WalletRepository
	welcomeScore int64
	dailyBonus   int64
	cooldownHrs  int
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(
	userRepo *repository.UserRepository,
	walletRepo *repository.WalletRepository,
	welcomeScore int64,
	dailyBonus int64,
	cooldownHours int,
) *WalletService {
	return &WalletService{
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		welcomeScore: welcomeScore,
		dailyBonus:   dailyBonus,
		cooldownHrs:  cooldownHours,
	}
}

// Register ensures the user and their wallet for the chat exist. A new
// wallet is seeded with the welcome score. Returns the user, the wallet and
// whether the wallet was newly created.
func (s *WalletService) Register(ctx context.Context, chatID, telegramID int64, username, firstName string) (*model.User, *model.Wallet, bool, error) {
	user, created, err := s.userRepo.GetOrCreate(ctx, telegramID, username, firstName)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	// Refresh the stored username if it changed on Telegram's side
	if !created && username != "" && user.Username != username {
		if err := s.userRepo.UpdateUsername(ctx, telegramID, username); err != nil {
			log.Warn().Err(err).Int64("user_id", telegramID).Msg("Failed to refresh username")
		} else {
			user.Username = username
		}
	}

	w, seeded, err := s.walletRepo.EnsureWallet(ctx, chatID, telegramID, s.welcomeScore)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to ensure wallet: %w", err)
	}

	return user, w, seeded, nil
}

// GetUser retrieves a user by their Telegram ID.
func (s *WalletService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, telegramID)
}

// Balances retrieves a user's three balances for a chat.
func (s *WalletService) Balances(ctx context.Context, chatID, telegramID int64) (wallet.Balances, error) {
	return s.walletRepo.Balances(ctx, chatID, telegramID)
}

// MainScore retrieves a user's main score for a chat.
func (s *WalletService) MainScore(ctx context.Context, chatID, telegramID int64) (int64, error) {
	return s.walletRepo.MainScore(ctx, chatID, telegramID)
}

// Usernames resolves display names for a set of users.
func (s *WalletService) Usernames(ctx context.Context, telegramIDs []int64) (map[int64]string, error) {
	return s.userRepo.Usernames(ctx, telegramIDs)
}

// ClaimDaily attempts to claim the daily bonus for a user.
// Returns:
// - success: whether the claim was successful
// - message: a message describing the result (remaining time if failed)
// - error: any error that occurred
func (s *WalletService) ClaimDaily(ctx context.Context, telegramID int64) (bool, string, error) {
	canClaim, remaining, err := s.userRepo.CanClaimDaily(ctx, telegramID, s.cooldownHrs)
	if err != nil {
		return false, "", fmt.Errorf("failed to check daily claim eligibility: %w", err)
	}

	if !canClaim {
		hours := int(remaining.Hours())
		minutes := int(remaining.Minutes()) % 60
		seconds := int(remaining.Seconds()) % 60
		msg := fmt.Sprintf("请等待 %d小时%d分%d秒 后再领取", hours, minutes, seconds)
		return false, msg, nil
	}

	user, err := s.userRepo.ClaimDaily(ctx, telegramID, s.dailyBonus, time.Now().Unix())
	if err != nil {
		return false, "", fmt.Errorf("failed to claim daily bonus: %w", err)
	}

	msg := fmt.Sprintf("签到成功！获得 %d 彩金，当前彩金 %d", s.dailyBonus, user.BonusPoints)
	return true, msg, nil
}

// AddScore adjusts a user's main score by delta. Admin commands use this for
// both credits and debits; a debit below zero fails on the wallet's
// non-negativity guard.
func (s *WalletService) AddScore(ctx context.Context, chatID, telegramID, delta int64) (int64, error) {
	return s.walletRepo.AddMainScore(ctx, chatID, telegramID, delta)
}

// SetScore sets a user's main score to an exact value.
func (s *WalletService) SetScore(ctx context.Context, chatID, telegramID, score int64) (*model.Wallet, error) {
	return s.walletRepo.SetMainScore(ctx, chatID, telegramID, score)
}

// GiftBonusAll credits bonus points to every registered user. Returns the
// number of users credited.
func (s *WalletService) GiftBonusAll(ctx context.Context, amount int64) (int64, error) {
	count, err := s.userRepo.GiftBonusAll(ctx, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to gift bonus points: %w", err)
	}
	return count, nil
}

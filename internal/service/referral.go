package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-dice-bot/internal/repository"
)

// ReferralService handles referral binding and rewards.
type ReferralService struct {
	userRepo       *repository.UserRepository
	referralRepo   *repository.ReferralRepository
	referrerReward int64
	referredBonus  int64
}

// NewReferralService creates a new ReferralService instance.
func NewReferralService(
	userRepo *repository.UserRepository,
	referralRepo *repository.ReferralRepository,
	referrerReward int64,
	referredBonus int64,
) *ReferralService {
	return &ReferralService{
		userRepo:       userRepo,
		referralRepo:   referralRepo,
		referrerReward: referrerReward,
		referredBonus:  referredBonus,
	}
}

// Bind links a user to a referrer via an invite code. Each user can be
// referred at most once, and never by themselves. The referrer earns
// referral points, the referred user bonus points.
// Returns:
// - success: whether the bind succeeded
// - message: a user-facing message describing the result
// - error: any error that occurred
func (s *ReferralService) Bind(ctx context.Context, telegramID int64, code string) (bool, string, error) {
	referrer, err := s.userRepo.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, "邀请码无效", nil
		}
		return false, "", fmt.Errorf("failed to look up invite code: %w", err)
	}

	if referrer.TelegramID == telegramID {
		return false, "不能使用自己的邀请码", nil
	}

	if err := s.userRepo.SetReferredBy(ctx, telegramID, referrer.TelegramID); err != nil {
		if errors.Is(err, repository.ErrAlreadyReferred) {
			return false, "您已经绑定过邀请人", nil
		}
		return false, "", fmt.Errorf("failed to bind referrer: %w", err)
	}

	// The bind itself is the source of truth. Reward bookkeeping failures
	// are logged and do not undo it.
	if _, err := s.referralRepo.Create(ctx, referrer.TelegramID, telegramID, s.referrerReward); err != nil {
		log.Error().Err(err).
			Int64("referrer_id", referrer.TelegramID).
			Int64("referred_id", telegramID).
			Msg("Failed to record referral")
	}

	if _, err := s.userRepo.AddReferralPoints(ctx, referrer.TelegramID, s.referrerReward); err != nil {
		log.Error().Err(err).
			Int64("referrer_id", referrer.TelegramID).
			Msg("Failed to credit referrer reward")
	}

	if _, err := s.userRepo.AddBonusPoints(ctx, telegramID, s.referredBonus); err != nil {
		log.Error().Err(err).
			Int64("referred_id", telegramID).
			Msg("Failed to credit referred bonus")
	}

	log.Info().
		Int64("referrer_id", referrer.TelegramID).
		Int64("referred_id", telegramID).
		Msg("Referral bound")

	msg := fmt.Sprintf("绑定邀请成功！邀请人获得 %d 推荐积分，您获得 %d 彩金", s.referrerReward, s.referredBonus)
	return true, msg, nil
}

// Stats returns a user's invite code together with how many users they
// referred and the total reward earned.
func (s *ReferralService) Stats(ctx context.Context, telegramID int64) (string, int64, int64, error) {
	user, err := s.userRepo.GetByID(ctx, telegramID)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to get user: %w", err)
	}

	count, total, err := s.referralRepo.Stats(ctx, telegramID)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to get referral stats: %w", err)
	}

	return user.ReferralCode, count, total, nil
}

package service

import (
	"context"

	"telegram-dice-bot/internal/model"
	"telegram-dice-bot/internal/repository"
)

// RankingService serves chat leaderboards.
type RankingService struct {
	walletRepo *repository.WalletRepository
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(walletRepo *repository.WalletRepository) *RankingService {
	return &RankingService{walletRepo: walletRepo}
}

// TopWallets retrieves a chat's top wallets by main score.
func (s *RankingService) TopWallets(ctx context.Context, chatID int64, limit int) ([]*model.RankEntry, error) {
	return s.walletRepo.TopByChat(ctx, chatID, limit)
}

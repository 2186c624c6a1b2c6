// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-dice-bot/internal/service"
)

// RankingHandler handles the leaderboard command.
type RankingHandler struct {
	rankingService *service.RankingService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(rankingService *service.RankingService) *RankingHandler {
	return &RankingHandler{
		rankingService: rankingService,
	}
}

// HandleRank handles the /rank command.
// Displays the chat's top 10 wallets by main score.
func (h *RankingHandler) HandleRank(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	entries, err := h.rankingService.TopWallets(ctx, chat.ID, 10)
	if err != nil {
		return c.Reply("❌ 获取排行榜失败，请稍后重试")
	}

	if len(entries) == 0 {
		return c.Reply("📊 本群暂无排行数据")
	}

	msg := "🏆 本群富豪榜 TOP 10\n"
	msg += "━━━━━━━━━━━━━━━\n"

	medals := []string{"🥇", "🥈", "🥉"}
	for i, entry := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < 3 {
			rank = medals[i]
		}

		displayName := entry.Username
		if displayName == "" {
			displayName = fmt.Sprintf("User%d", entry.UserID)
		}

		msg += fmt.Sprintf("%s @%s: %d\n", rank, displayName, entry.MainScore)
	}

	msg += "━━━━━━━━━━━━━━━"

	return c.Reply(msg)
}

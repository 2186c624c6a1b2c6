// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-dice-bot/internal/service"
)

// AdminHandler handles admin score commands. All score changes apply to the
// target's wallet in the chat the command was issued in.
type AdminHandler struct {
	walletService *service.WalletService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(walletService *service.WalletService) *AdminHandler {
	return &AdminHandler{walletService: walletService}
}

// HandleAdd handles the /add command.
// Format: /add <user_id> <amount>
func (h *AdminHandler) HandleAdd(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	targetID, amount, err := h.parseAdminArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}

	if amount <= 0 {
		return c.Reply("❌ 金额必须大于 0")
	}

	newScore, err := h.walletService.AddScore(ctx, chat.ID, targetID, amount)
	if err != nil {
		return c.Reply("❌ 操作失败，用户在本群可能没有钱包")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("chat_id", chat.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "admin_add").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n"+
			"👤 用户: %s (ID: %d)\n"+
			"➕ 添加: %d 金币\n"+
			"💰 当前余额: %d 金币",
		h.targetName(ctx, targetID), targetID, amount, newScore,
	))
}

// HandleSub handles the /sub command.
// Format: /sub <user_id> <amount>
// Deductions clamp at zero rather than fail.
func (h *AdminHandler) HandleSub(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	targetID, amount, err := h.parseAdminArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}

	if amount <= 0 {
		return c.Reply("❌ 金额必须大于 0")
	}

	current, err := h.walletService.MainScore(ctx, chat.ID, targetID)
	if err != nil {
		return c.Reply("❌ 操作失败，用户在本群可能没有钱包")
	}
	if amount > current {
		amount = current
	}

	newScore := current
	if amount > 0 {
		newScore, err = h.walletService.AddScore(ctx, chat.ID, targetID, -amount)
		if err != nil {
			return c.Reply("❌ 操作失败，请稍后重试")
		}
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("chat_id", chat.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "admin_sub").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n"+
			"👤 用户: %s (ID: %d)\n"+
			"➖ 扣除: %d 金币\n"+
			"💰 当前余额: %d 金币",
		h.targetName(ctx, targetID), targetID, amount, newScore,
	))
}

// HandleSet handles the /set command.
// Format: /set <user_id> <amount>
func (h *AdminHandler) HandleSet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	targetID, newScore, err := h.parseAdminArgs(c)
	if err != nil {
		return c.Reply(err.Error())
	}

	if newScore < 0 {
		return c.Reply("❌ 余额不能为负数")
	}

	current, err := h.walletService.MainScore(ctx, chat.ID, targetID)
	if err != nil {
		return c.Reply("❌ 操作失败，用户在本群可能没有钱包")
	}

	w, err := h.walletService.SetScore(ctx, chat.ID, targetID, newScore)
	if err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("chat_id", chat.ID).
		Int64("target_id", targetID).
		Int64("old_score", current).
		Int64("new_score", w.MainScore).
		Str("operation", "admin_set").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ 操作成功\n\n"+
			"👤 用户: %s (ID: %d)\n"+
			"📝 原余额: %d 金币\n"+
			"💰 新余额: %d 金币",
		h.targetName(ctx, targetID), targetID, current, w.MainScore,
	))
}

// HandleGiftAll handles the /gift_all command.
// Format: /gift_all <amount>
// Grants the amount as bonus points to every registered user.
func (h *AdminHandler) HandleGiftAll(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /gift_all <金额>\n例如: /gift_all 100")
	}

	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return c.Reply("❌ 金额必须是大于 0 的整数")
	}

	count, err := h.walletService.GiftBonusAll(ctx, amount)
	if err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("amount", amount).
		Int64("user_count", count).
		Str("operation", "admin_gift_all").
		Msg("Admin gift all operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ 赠送成功\n\n"+
			"🎁 每人 %d 彩金\n"+
			"👥 受益用户: %d 人",
		amount, count,
	))
}

// parseAdminArgs parses the <user_id> <amount> argument pair.
func (h *AdminHandler) parseAdminArgs(c tele.Context) (int64, int64, error) {
	args := c.Args()
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("❌ 用法: /add <用户ID> <金额>\n例如: /add 123456789 100")
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ 用户ID格式错误，请输入数字")
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("❌ 金额格式错误，请输入整数")
	}

	return targetID, amount, nil
}

// targetName resolves a display name for an admin target.
func (h *AdminHandler) targetName(ctx context.Context, targetID int64) string {
	user, err := h.walletService.GetUser(ctx, targetID)
	if err != nil || user.Username == "" {
		return fmt.Sprintf("%d", targetID)
	}
	return user.Username
}

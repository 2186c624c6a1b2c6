// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"telegram-dice-bot/internal/config"
	"telegram-dice-bot/internal/service"
)

// AccountHandler handles account and referral commands.
type AccountHandler struct {
	cfg             *config.Config
	walletService   *service.WalletService
	referralService *service.ReferralService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(cfg *config.Config, walletService *service.WalletService, referralService *service.ReferralService) *AccountHandler {
	return &AccountHandler{
		cfg:             cfg,
		walletService:   walletService,
		referralService: referralService,
	}
}

// displayName picks the best handle for a sender.
func displayName(sender *tele.User) string {
	if sender.Username != "" {
		return sender.Username
	}
	return sender.FirstName
}

// HandleStart handles the /start command.
// Registers the user, seeds the chat wallet on first contact, and binds a
// referral code passed as the deep-link payload ("/start <code>").
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	_, w, seeded, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName)
	if err != nil {
		return c.Reply("❌ 创建账户失败，请稍后重试")
	}

	// A failed bind must not swallow the welcome message.
	var refNote string
	if args := c.Args(); len(args) > 0 && args[0] != "" {
		ok, msg, err := h.referralService.Bind(ctx, sender.ID, args[0])
		switch {
		case err != nil:
			refNote = "\n\n❌ 绑定邀请失败，请稍后重试"
		case ok:
			refNote = "\n\n🎁 " + msg
		default:
			refNote = "\n\n❌ " + msg
		}
	}

	if seeded {
		return c.Reply(fmt.Sprintf(
			"🎉 欢迎 @%s！\n\n"+
				"您的账户已创建，新手礼金: %d 金币\n\n"+
				"可用命令:\n"+
				"/balance - 查看余额\n"+
				"/daily - 每日签到\n"+
				"/ref - 邀请好友\n"+
				"/rank - 富豪榜\n"+
				"/game - 开启骰子对局\n"+
				"/bet 大 100 - 下注\n"+
				"/history - 近期战绩"+refNote,
			displayName(sender), w.MainScore,
		))
	}

	return c.Reply(fmt.Sprintf(
		"👋 欢迎回来 @%s！\n\n"+
			"当前余额: %d 金币"+refNote,
		displayName(sender), w.MainScore,
	))
}

// HandleBalance handles the /balance command.
// Displays the three fund sources for the current chat.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 获取余额失败，请稍后重试")
	}

	bal, err := h.walletService.Balances(ctx, chat.ID, sender.ID)
	if err != nil {
		return c.Reply("❌ 获取余额失败，请稍后重试")
	}

	return c.Reply(fmt.Sprintf(
		"💰 账户余额\n"+
			"━━━━━━━━━━━━━━━\n"+
			"🪙 金币: %d\n"+
			"🎁 彩金: %d\n"+
			"🔗 推荐积分: %d\n"+
			"━━━━━━━━━━━━━━━\n"+
			"合计: %d",
		bal.Main, bal.Bonus, bal.Referral, bal.Total(),
	))
}

// HandleDaily handles the /daily command.
// Grants the daily bonus if the cooldown has passed since the last claim.
func (h *AccountHandler) HandleDaily(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	success, msg, err := h.walletService.ClaimDaily(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ 签到失败，请稍后重试")
	}

	if success {
		return c.Reply(fmt.Sprintf("✅ %s", msg))
	}

	return c.Reply(fmt.Sprintf("⏰ %s", msg))
}

// HandleRef handles the /ref command.
// Displays the user's invite link and referral stats.
func (h *AccountHandler) HandleRef(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 获取邀请信息失败，请稍后重试")
	}

	code, count, total, err := h.referralService.Stats(ctx, sender.ID)
	if err != nil {
		return c.Reply("❌ 获取邀请信息失败，请稍后重试")
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", c.Bot().Me.Username, code)

	return c.Reply(fmt.Sprintf(
		"🔗 邀请好友\n"+
			"━━━━━━━━━━━━━━━\n"+
			"邀请码: %s\n"+
			"邀请链接: %s\n"+
			"━━━━━━━━━━━━━━━\n"+
			"已邀请: %d 人\n"+
			"累计奖励: %d 推荐积分\n\n"+
			"好友通过链接加入后，您获得 %d 推荐积分，好友获得 %d 彩金",
		code, link, count, total,
		h.cfg.Bonus.ReferralReward, h.cfg.Bonus.ReferredBonus,
	))
}

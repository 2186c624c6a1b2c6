// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-dice-bot/internal/config"
	"telegram-dice-bot/internal/game/dicebet"
	"telegram-dice-bot/internal/service"
	"telegram-dice-bot/internal/wallet"
)

const (
	// MessageDeleteInterval is the age at which tracked bot messages are deleted
	MessageDeleteInterval = 30 * time.Minute
	// diceGapDelay spaces the two dice sends so the animations read in order
	diceGapDelay = 500 * time.Millisecond
	// diceAnimationDelay waits out the Telegram dice animation before the result lands
	diceAnimationDelay = 3 * time.Second
)

// TrackedMessage represents a bot message to be deleted later
type TrackedMessage struct {
	ChatID    int64
	MessageID int
	SentAt    time.Time
}

// GameHandler handles the dice-betting commands and implements the round
// scheduler's Notifier: panels, dice animations and settlement announcements
// all go out through here.
type GameHandler struct {
	cfg            *config.Config
	bot            *tele.Bot
	walletService  *service.WalletService
	bettingService *service.BettingService
	scheduler      *service.Scheduler
	kb             *dicebet.KeyboardBuilder

	panelsMu sync.Mutex
	panels   map[int64]*tele.Message // current betting panel per chat

	trackedMessages []TrackedMessage
	messagesMu      sync.Mutex
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	cfg *config.Config,
	bot *tele.Bot,
	walletService *service.WalletService,
	bettingService *service.BettingService,
	scheduler *service.Scheduler,
) *GameHandler {
	return &GameHandler{
		cfg:             cfg,
		bot:             bot,
		walletService:   walletService,
		bettingService:  bettingService,
		scheduler:       scheduler,
		kb:              dicebet.NewKeyboardBuilder(),
		panels:          make(map[int64]*tele.Message),
		trackedMessages: make([]TrackedMessage, 0),
	}
}

// multipliers returns the configured payout multipliers.
func (h *GameHandler) multipliers() dicebet.Multipliers {
	return dicebet.Multipliers{
		Big:   h.cfg.Game.BigMultiplier,
		Small: h.cfg.Game.SmallMultiplier,
		Lucky: h.cfg.Game.LuckyMultiplier,
	}
}

// StartMessageCleaner starts the background goroutine that deletes old
// panels, dice and result messages, keeping busy group chats readable.
func (h *GameHandler) StartMessageCleaner() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			h.cleanOldMessages()
		}
	}()
}

// cleanOldMessages deletes messages older than MessageDeleteInterval.
func (h *GameHandler) cleanOldMessages() {
	h.messagesMu.Lock()
	defer h.messagesMu.Unlock()

	now := time.Now()
	remaining := make([]TrackedMessage, 0)

	for _, msg := range h.trackedMessages {
		if now.Sub(msg.SentAt) >= MessageDeleteInterval {
			err := h.bot.Delete(&tele.Message{
				ID:   msg.MessageID,
				Chat: &tele.Chat{ID: msg.ChatID},
			})
			if err != nil {
				log.Debug().Err(err).Int("msg_id", msg.MessageID).Msg("Failed to delete old message")
			}
		} else {
			remaining = append(remaining, msg)
		}
	}

	h.trackedMessages = remaining
}

// trackMessage adds a message to the tracking list for later deletion.
func (h *GameHandler) trackMessage(chatID int64, messageID int) {
	h.messagesMu.Lock()
	defer h.messagesMu.Unlock()

	h.trackedMessages = append(h.trackedMessages, TrackedMessage{
		ChatID:    chatID,
		MessageID: messageID,
		SentAt:    time.Now(),
	})
}

// rememberPanel stores the chat's current betting panel for in-place edits.
func (h *GameHandler) rememberPanel(chatID int64, msg *tele.Message) {
	h.panelsMu.Lock()
	h.panels[chatID] = msg
	h.panelsMu.Unlock()
}

// forgetPanel drops the stored panel once the round no longer takes bets.
func (h *GameHandler) forgetPanel(chatID int64) {
	h.panelsMu.Lock()
	delete(h.panels, chatID)
	h.panelsMu.Unlock()
}

// refreshPanel re-renders the current betting panel in place with the
// latest totals and remaining time.
func (h *GameHandler) refreshPanel(chatID int64) {
	h.panelsMu.Lock()
	panel := h.panels[chatID]
	h.panelsMu.Unlock()
	if panel == nil {
		return
	}

	round, ok := h.bettingService.CurrentRound(chatID)
	if !ok || round.State() != dicebet.StateWaiting {
		return
	}

	msg := dicebet.FormatPanelMessage(
		round.ID,
		h.scheduler.TimeRemaining(chatID),
		round.PlayerCount(),
		round.CategoryTotals(),
		h.multipliers(),
		h.bettingService.MinBet(),
		h.bettingService.MaxBet(),
	)
	if _, err := h.bot.Edit(panel, msg, h.kb.BuildBetPanel(h.cfg.Game.PanelAmounts)); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to edit betting panel")
	}
}

// HandleGameStart handles the /game command.
// Launches the chat's round loop; the first round's panel follows from the
// scheduler.
func (h *GameHandler) HandleGameStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	// Only allow in group chats
	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ 骰子对局只能在群组中进行")
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	if err := h.scheduler.Start(chat.ID); err != nil {
		if errors.Is(err, service.ErrGameRunning) {
			if remaining := h.scheduler.TimeRemaining(chat.ID); remaining > 0 {
				return c.Reply(fmt.Sprintf("❌ 当前已有进行中的对局，本轮剩余 %d 秒", remaining))
			}
			return c.Reply("❌ 当前已有进行中的对局")
		}
		return c.Reply("❌ 启动对局失败，请稍后重试")
	}

	return nil
}

// HandleGameStop handles the /stopgame command.
// The in-flight round still settles; the loop exits afterwards.
func (h *GameHandler) HandleGameStop(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	if !h.scheduler.Stop(chat.ID) {
		return c.Reply("❌ 当前没有进行中的对局")
	}

	return c.Reply("🛑 收到，本轮结算后停止")
}

// HandleBet handles the /bet command, e.g. "/bet 大 100".
func (h *GameHandler) HandleBet(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ 用法: /bet <大|小|幸运7> <金额>\n例如: /bet 大 100")
	}

	cat, ok := dicebet.ParseCategory(args[0])
	if !ok {
		return c.Reply("❌ 无效的下注类型，可选: 大 / 小 / 幸运7")
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return c.Reply("❌ 请输入有效的下注金额")
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Reply("❌ 操作失败，请稍后重试")
	}

	receipt, err := h.bettingService.PlaceBet(ctx, chat.ID, sender.ID, cat, amount)
	if err != nil {
		return c.Reply(h.betErrorMessage(ctx, chat.ID, sender.ID, err))
	}

	h.refreshPanel(chat.ID)

	reply, err := c.Bot().Send(chat, fmt.Sprintf(
		"✅ @%s 下注 %s %d%s\n💰 余额: %d",
		displayName(sender), dicebet.CategoryLabel(receipt.Category), receipt.Amount,
		fundingNote(receipt), receipt.After.Total(),
	))
	if err == nil && reply != nil {
		h.trackMessage(chat.ID, reply.ID)
	}
	return err
}

// HandleMyBets handles the /mybets command to show the user's bets in the
// current round.
func (h *GameHandler) HandleMyBets(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	round, ok := h.bettingService.CurrentRound(chat.ID)
	if !ok {
		return c.Reply("❌ 当前没有进行中的对局")
	}

	return c.Reply(dicebet.FormatMyBets(round, sender.ID))
}

// HandleHistory handles the /history command with the chat's recent results.
func (h *GameHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	limit := h.cfg.Game.HistorySize
	if limit > 10 {
		limit = 10
	}

	records, err := h.scheduler.RecentHistory(ctx, chat.ID, limit)
	if err != nil {
		return c.Reply("❌ 获取对局记录失败，请稍后重试")
	}

	return c.Reply(dicebet.FormatHistory(records))
}

// HandleCallback handles the betting panel's inline button callbacks.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	chat := c.Chat()
	if callback == nil || sender == nil || chat == nil {
		return nil
	}

	data := strings.TrimPrefix(callback.Data, "\f")
	action, param := dicebet.DecodeCallback(data)

	switch action {
	case "bet":
		return h.handleBetCallback(ctx, c, param)
	case "my":
		return h.handleMyBetsCallback(c)
	default:
		return c.Respond(&tele.CallbackResponse{Text: "❌ 无效操作"})
	}
}

// handleBetCallback places a quick bet from a panel button.
func (h *GameHandler) handleBetCallback(ctx context.Context, c tele.Context, param string) error {
	sender := c.Sender()
	chat := c.Chat()

	cat, amount, ok := dicebet.DecodeBetParam(param)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "❌ 无效操作"})
	}

	if _, _, _, err := h.walletService.Register(ctx, chat.ID, sender.ID, sender.Username, sender.FirstName); err != nil {
		return c.Respond(&tele.CallbackResponse{
			Text:      "❌ 操作失败",
			ShowAlert: true,
		})
	}

	receipt, err := h.bettingService.PlaceBet(ctx, chat.ID, sender.ID, cat, amount)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{
			Text:      h.betErrorMessage(ctx, chat.ID, sender.ID, err),
			ShowAlert: true,
		})
	}

	h.refreshPanel(chat.ID)

	return c.Respond(&tele.CallbackResponse{
		Text: fmt.Sprintf("✅ 已下注 %s: %d，本轮共 %d", dicebet.CategoryLabel(receipt.Category), receipt.Amount, receipt.UserTotal),
	})
}

// handleMyBetsCallback shows the user's bets as a popup.
func (h *GameHandler) handleMyBetsCallback(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()

	round, ok := h.bettingService.CurrentRound(chat.ID)
	if !ok {
		return c.Respond(&tele.CallbackResponse{
			Text:      "❌ 当前没有进行中的对局",
			ShowAlert: true,
		})
	}

	return c.Respond(&tele.CallbackResponse{
		Text:      dicebet.FormatMyBets(round, sender.ID),
		ShowAlert: true,
	})
}

// betErrorMessage maps a PlaceBet error to a user-facing line.
func (h *GameHandler) betErrorMessage(ctx context.Context, chatID, userID int64, err error) string {
	var insufficient *wallet.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		bal, balErr := h.walletService.Balances(ctx, chatID, userID)
		if balErr != nil {
			return fmt.Sprintf("❌ 余额不足，还差 %d", insufficient.Shortfall)
		}
		return fmt.Sprintf("❌ 余额不足，还差 %d（金币 %d | 彩金 %d | 推荐积分 %d）",
			insufficient.Shortfall, bal.Main, bal.Bonus, bal.Referral)
	case errors.Is(err, dicebet.ErrNoActiveRound):
		return "❌ 当前没有进行中的对局，/game 开始"
	case errors.Is(err, dicebet.ErrBettingClosed):
		return "❌ 本轮已封盘，请等待下一轮"
	case errors.Is(err, service.ErrBetBelowMinimum):
		return fmt.Sprintf("❌ 最小下注金额为 %d", h.bettingService.MinBet())
	case errors.Is(err, service.ErrBetAboveMaximum):
		return fmt.Sprintf("❌ 最大下注金额为 %d", h.bettingService.MaxBet())
	case errors.Is(err, dicebet.ErrInvalidCategory):
		return "❌ 无效的下注类型，可选: 大 / 小 / 幸运7"
	case errors.Is(err, dicebet.ErrInvalidAmount):
		return "❌ 请输入有效的下注金额"
	default:
		return "❌ 下注失败，请稍后重试"
	}
}

// fundingNote describes which fund sources covered a bet. Plain all-main
// bets get no note.
func fundingNote(r *service.BetReceipt) string {
	if r.BonusUsed == 0 && r.ReferralUsed == 0 {
		return ""
	}

	parts := make([]string, 0, 3)
	if r.BonusUsed > 0 {
		parts = append(parts, fmt.Sprintf("彩金 %d", r.BonusUsed))
	}
	if r.ReferralUsed > 0 {
		parts = append(parts, fmt.Sprintf("推荐积分 %d", r.ReferralUsed))
	}
	if r.MainUsed > 0 {
		parts = append(parts, fmt.Sprintf("金币 %d", r.MainUsed))
	}
	return fmt.Sprintf("（%s）", strings.Join(parts, " + "))
}

// RoundOpened sends the betting panel for a freshly opened round.
func (h *GameHandler) RoundOpened(ctx context.Context, round *dicebet.Round, bettingSeconds int) {
	chat := &tele.Chat{ID: round.ChatID}

	msg := dicebet.FormatPanelMessage(
		round.ID,
		bettingSeconds,
		0,
		nil,
		h.multipliers(),
		h.bettingService.MinBet(),
		h.bettingService.MaxBet(),
	)
	panel, err := h.bot.Send(chat, msg, h.kb.BuildBetPanel(h.cfg.Game.PanelAmounts))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", round.ChatID).Int64("round_id", round.ID).Msg("Failed to send betting panel")
		return
	}

	h.trackMessage(round.ChatID, panel.ID)
	h.rememberPanel(round.ChatID, panel)
}

// BettingClosed announces that the round takes no more bets.
func (h *GameHandler) BettingClosed(ctx context.Context, round *dicebet.Round) {
	h.forgetPanel(round.ChatID)

	msg := fmt.Sprintf("🔒 第 %d 轮封盘！\n👥 %d 人下注 %d 金币，开骰中...",
		round.ID, round.PlayerCount(), round.TotalBets())
	sent, err := h.bot.Send(&tele.Chat{ID: round.ChatID}, msg)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", round.ChatID).Msg("Failed to send betting-closed notice")
		return
	}
	h.trackMessage(round.ChatID, sent.ID)
}

// RollDice rolls via two Telegram dice animations and reports what they
// showed. Zeroes on send failure make the scheduler roll locally instead.
func (h *GameHandler) RollDice(ctx context.Context, chatID int64) (int, int) {
	chat := &tele.Chat{ID: chatID}

	first, err := h.bot.Send(chat, tele.Cube)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send dice")
		return 0, 0
	}
	h.trackMessage(chatID, first.ID)

	time.Sleep(diceGapDelay)

	second, err := h.bot.Send(chat, tele.Cube)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send dice")
		return 0, 0
	}
	h.trackMessage(chatID, second.ID)

	// Wait for the dice animation before the result is announced
	time.Sleep(diceAnimationDelay)

	return first.Dice.Value, second.Dice.Value
}

// RoundSettled announces the settlement result.
func (h *GameHandler) RoundSettled(ctx context.Context, result *dicebet.SettlementResult) {
	ids := make([]int64, 0, len(result.Winners)+len(result.Losers))
	for _, w := range result.Winners {
		ids = append(ids, w.UserID)
	}
	for _, l := range result.Losers {
		ids = append(ids, l.UserID)
	}

	names, err := h.walletService.Usernames(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", result.ChatID).Msg("Failed to resolve usernames")
		names = map[int64]string{}
	}

	sent, err := h.bot.Send(&tele.Chat{ID: result.ChatID}, dicebet.FormatSettlementMessage(result, names))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", result.ChatID).Msg("Failed to send settlement message")
		return
	}
	h.trackMessage(result.ChatID, sent.ID)
}

// GameStopped announces the end of the round loop.
func (h *GameHandler) GameStopped(ctx context.Context, chatID int64, idle bool) {
	h.forgetPanel(chatID)

	msg := "🛑 对局已停止，/game 再来一局"
	if idle {
		msg = fmt.Sprintf("💤 连续 %d 轮无人下注，对局自动结束\n/game 再来一局", h.cfg.Game.IdleLimit)
	}

	sent, err := h.bot.Send(&tele.Chat{ID: chatID}, msg)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send game-stopped notice")
		return
	}
	h.trackMessage(chatID, sent.ID)
}

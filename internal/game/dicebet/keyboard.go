// Package dicebet builds the Telegram inline keyboards and message texts for
// the dice game.
package dicebet

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

const (
	// CallbackPrefix is the prefix for all dice-game callback data
	CallbackPrefix = "dicebet_"
)

// KeyboardBuilder builds Telegram inline keyboards for the dice game.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder instance.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// EncodeCallback encodes an action and parameter into callback data.
func EncodeCallback(action string, param string) string {
	if param != "" {
		return fmt.Sprintf("%s%s_%s", CallbackPrefix, action, param)
	}
	return fmt.Sprintf("%s%s", CallbackPrefix, action)
}

// DecodeCallback decodes callback data into action and parameter.
func DecodeCallback(data string) (action string, param string) {
	if !strings.HasPrefix(data, CallbackPrefix) {
		return "", ""
	}

	content := strings.TrimPrefix(data, CallbackPrefix)
	parts := strings.SplitN(content, "_", 2)
	action = parts[0]
	if len(parts) > 1 {
		param = parts[1]
	}
	return action, param
}

// EncodeBetParam encodes a category and amount into a bet callback
// parameter, e.g. "big_100".
func EncodeBetParam(cat Category, amount int64) string {
	return fmt.Sprintf("%s_%d", cat, amount)
}

// DecodeBetParam decodes a bet callback parameter into its category and
// amount.
func DecodeBetParam(param string) (Category, int64, bool) {
	parts := strings.SplitN(param, "_", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	cat, ok := ParseCategory(parts[0])
	if !ok {
		return "", 0, false
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || amount <= 0 {
		return "", 0, false
	}
	return cat, amount, true
}

// BuildBetPanel builds the betting panel keyboard: one row per category
// with a button for each quick-bet amount, plus a row to check your own
// bets.
func (kb *KeyboardBuilder) BuildBetPanel(amounts []int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	rows := make([][]tele.InlineButton, 0, len(Categories)+1)
	for _, cat := range Categories {
		row := make([]tele.InlineButton, 0, len(amounts))
		for _, amount := range amounts {
			row = append(row, tele.InlineButton{
				Text: fmt.Sprintf("%s %d", CategoryLabel(cat), amount),
				Data: EncodeCallback("bet", EncodeBetParam(cat, amount)),
			})
		}
		rows = append(rows, row)
	}

	rows = append(rows, []tele.InlineButton{
		{
			Text: "📋 我的下注",
			Data: EncodeCallback("my", ""),
		},
	})

	markup.InlineKeyboard = rows
	return markup
}

// FormatPanelMessage formats the betting panel message.
func FormatPanelMessage(roundID int64, remaining int, playerCount int, totals map[Category]int64, mult Multipliers, minBet, maxBet int64) string {
	var totalBets int64
	for _, amount := range totals {
		totalBets += amount
	}

	msg := fmt.Sprintf("🎲 第 %d 轮 - 下注中\n", roundID)
	msg += fmt.Sprintf("⏰ 剩余 %d 秒 | 👥 %d 人 | 💰 %d\n", remaining, playerCount, totalBets)
	msg += "━━━━━━━━━━━━━━━\n"
	msg += fmt.Sprintf("大 (8-12) x%.2f: %d\n", mult.Big, totals[CategoryBig])
	msg += fmt.Sprintf("小 (2-6) x%.2f: %d\n", mult.Small, totals[CategorySmall])
	msg += fmt.Sprintf("幸运7 x%.2f: %d\n", mult.Lucky, totals[CategoryLucky])
	msg += "━━━━━━━━━━━━━━━\n"
	msg += fmt.Sprintf("点击按钮下注，或 /bet 大 100 (限额 %d-%d)", minBet, maxBet)
	return msg
}

// FormatSettlementMessage formats the settlement result message. The names
// map supplies display names per user id; missing entries fall back to the
// numeric id.
func FormatSettlementMessage(result *SettlementResult, names map[int64]string) string {
	msg := fmt.Sprintf("🎰 第 %d 轮开奖\n", result.RoundID)
	msg += "━━━━━━━━━━━━━━━\n"
	msg += fmt.Sprintf("骰子: 🎲%d 🎲%d = %d (%s x%.2f)\n",
		result.Dice[0], result.Dice[1], result.Sum, CategoryLabel(result.Winning), result.Multiplier)
	msg += "━━━━━━━━━━━━━━━\n"

	if result.TotalBets == 0 {
		msg += "本轮无人下注\n"
	} else {
		for _, w := range result.Winners {
			msg += fmt.Sprintf("🎉 %s +%d (余额 %d)\n", displayName(w.UserID, names), w.Net, w.MainScore)
		}
		for _, l := range result.Losers {
			msg += fmt.Sprintf("😢 %s %d (余额 %d)\n", displayName(l.UserID, names), l.Net, l.MainScore)
		}
		if len(result.Winners) == 0 && len(result.Losers) == 0 {
			msg += "本轮无人盈亏\n"
		}
	}

	msg += "━━━━━━━━━━━━━━━\n"
	msg += fmt.Sprintf("总下注 %d | 总派彩 %d", result.TotalBets, result.TotalPayout)
	return msg
}

// FormatMyBets formats a user's bets in the current round.
func FormatMyBets(round *Round, userID int64) string {
	total := round.UserTotal(userID)
	if total == 0 {
		return "您还没有下注"
	}

	msg := "📋 您的下注:\n"
	msg += "━━━━━━━━━━━━━━━\n"
	for _, cat := range Categories {
		if amount := round.Wager(userID, cat); amount > 0 {
			msg += fmt.Sprintf("• %s: %d 金币\n", CategoryLabel(cat), amount)
		}
	}
	msg += "━━━━━━━━━━━━━━━\n"
	msg += fmt.Sprintf("💰 总计: %d 金币", total)
	return msg
}

// FormatHistory formats the chat's recent match records, newest first.
func FormatHistory(records []MatchRecord) string {
	if len(records) == 0 {
		return "暂无对局记录"
	}

	msg := "📜 近期对局:\n"
	msg += "━━━━━━━━━━━━━━━\n"
	for _, rec := range records {
		msg += fmt.Sprintf("第 %d 轮: %d+%d=%d %s | 下注 %d 派彩 %d\n",
			rec.RoundID, rec.Dice[0], rec.Dice[1], rec.Sum, CategoryLabel(rec.Winning), rec.TotalBets, rec.TotalPayout)
	}
	return msg
}

// displayName resolves a user's display name, preferring the supplied map.
func displayName(userID int64, names map[int64]string) string {
	name := names[userID]
	if name == "" {
		return fmt.Sprintf("%d", userID)
	}
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	return name
}

// Package model defines the data models for the dice-betting bot.
package model

import "time"

// User represents a Telegram user account.
// referral_points and bonus_points are global balances, not chat-scoped.
type User struct {
	TelegramID     int64     `db:"telegram_id"`
	Username       string    `db:"username"`
	FirstName      string    `db:"first_name"`
	ReferralCode   string    `db:"referral_code"`
	ReferredBy     *int64    `db:"referred_by"`
	ReferralPoints int64     `db:"referral_points"`
	BonusPoints    int64     `db:"bonus_points"`
	LastDailyClaim int64     `db:"last_daily_claim"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Wallet represents a user's chat-scoped main score.
// A row is created with the welcome bonus the first time a user is seen in a chat.
type Wallet struct {
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	MainScore int64     `db:"main_score"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Referral records a successful referral. One row per referred user.
type Referral struct {
	ID         int64     `db:"id"`
	ReferrerID int64     `db:"referrer_id"`
	ReferredID int64     `db:"referred_id"`
	Reward     int64     `db:"reward"`
	CreatedAt  time.Time `db:"created_at"`
}

// RankEntry represents one row of a chat's main-score leaderboard.
type RankEntry struct {
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	MainScore int64  `db:"main_score"`
}

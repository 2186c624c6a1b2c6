// Package dicebet implements the two-dice betting game: players wager on
// BIG, SMALL or LUCKY against the sum of two dice rolled at the end of each
// round.
package dicebet

import "strings"

// Category represents a bet category.
type Category string

const (
	// CategorySmall wins when the dice sum is 2-6
	CategorySmall Category = "small"
	// CategoryLucky wins when the dice sum is exactly 7
	CategoryLucky Category = "lucky"
	// CategoryBig wins when the dice sum is 8-12
	CategoryBig Category = "big"
)

// Categories lists all bet categories in display order.
var Categories = []Category{CategoryBig, CategorySmall, CategoryLucky}

// Multipliers holds the configured payout multiplier per category.
type Multipliers struct {
	Big   float64
	Small float64
	Lucky float64
}

// For returns the multiplier for a category.
func (m Multipliers) For(c Category) float64 {
	switch c {
	case CategoryBig:
		return m.Big
	case CategorySmall:
		return m.Small
	case CategoryLucky:
		return m.Lucky
	default:
		return 0
	}
}

// ClassifySum maps a two-dice sum to its winning category.
// Rules:
//   - sum 2-6: SMALL
//   - sum 7: LUCKY
//   - sum 8-12: BIG
func ClassifySum(sum int) Category {
	switch {
	case sum <= 6:
		return CategorySmall
	case sum == 7:
		return CategoryLucky
	default:
		return CategoryBig
	}
}

// Winnings returns the payout for a wager on the winning category:
// floor(wager x multiplier). Wagers on losing categories pay nothing.
func Winnings(wager int64, multiplier float64) int64 {
	if wager <= 0 {
		return 0
	}
	return int64(float64(wager) * multiplier)
}

// ParseCategory parses user input into a bet category. Accepts the english
// keywords and the chinese button labels.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "big", "大":
		return CategoryBig, true
	case "small", "小":
		return CategorySmall, true
	case "lucky", "lucky7", "7", "幸运7", "幸运":
		return CategoryLucky, true
	default:
		return "", false
	}
}

// CategoryLabel returns the display label for a category.
func CategoryLabel(c Category) string {
	switch c {
	case CategoryBig:
		return "大"
	case CategorySmall:
		return "小"
	case CategoryLucky:
		return "幸运7"
	default:
		return string(c)
	}
}

// ValidCategory reports whether c is one of the three bet categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryBig, CategorySmall, CategoryLucky:
		return true
	default:
		return false
	}
}

// ValidDie reports whether a single die value is valid.
func ValidDie(d int) bool {
	return d >= 1 && d <= 6
}

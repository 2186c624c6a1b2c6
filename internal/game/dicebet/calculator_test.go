// Package dicebet contains unit tests for sum classification and payout
// calculation.
package dicebet

import "testing"

func TestClassifySum(t *testing.T) {
	tests := []struct {
		sum  int
		want Category
	}{
		{2, CategorySmall},
		{3, CategorySmall},
		{4, CategorySmall},
		{5, CategorySmall},
		{6, CategorySmall},
		{7, CategoryLucky},
		{8, CategoryBig},
		{9, CategoryBig},
		{10, CategoryBig},
		{11, CategoryBig},
		{12, CategoryBig},
	}

	for _, tt := range tests {
		if got := ClassifySum(tt.sum); got != tt.want {
			t.Errorf("ClassifySum(%d) = %s, want %s", tt.sum, got, tt.want)
		}
	}
}

func TestWinnings(t *testing.T) {
	tests := []struct {
		name       string
		wager      int64
		multiplier float64
		want       int64
	}{
		{"big or small payout", 100, 1.95, 195},
		{"lucky seven payout", 100, 4.5, 450},
		{"fraction truncated", 99, 1.95, 193},
		{"single unit truncated", 1, 1.95, 1},
		{"lucky fraction truncated", 33, 4.5, 148},
		{"zero wager", 0, 1.95, 0},
		{"negative wager", -50, 1.95, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Winnings(tt.wager, tt.multiplier); got != tt.want {
				t.Errorf("Winnings(%d, %v) = %d, want %d", tt.wager, tt.multiplier, got, tt.want)
			}
		})
	}
}

func TestMultipliersFor(t *testing.T) {
	mult := Multipliers{Big: 1.95, Small: 1.95, Lucky: 4.5}

	tests := []struct {
		cat  Category
		want float64
	}{
		{CategoryBig, 1.95},
		{CategorySmall, 1.95},
		{CategoryLucky, 4.5},
		{Category("bogus"), 0},
	}

	for _, tt := range tests {
		if got := mult.For(tt.cat); got != tt.want {
			t.Errorf("For(%s) = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
		ok    bool
	}{
		{"big", CategoryBig, true},
		{"BIG", CategoryBig, true},
		{"大", CategoryBig, true},
		{"small", CategorySmall, true},
		{"小", CategorySmall, true},
		{"lucky", CategoryLucky, true},
		{"lucky7", CategoryLucky, true},
		{"7", CategoryLucky, true},
		{"幸运7", CategoryLucky, true},
		{" big ", CategoryBig, true},
		{"medium", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCategory(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCategory(%q) = (%s, %v), want (%s, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidDie(t *testing.T) {
	for d := 1; d <= 6; d++ {
		if !ValidDie(d) {
			t.Errorf("ValidDie(%d) = false, want true", d)
		}
	}
	for _, d := range []int{0, -1, 7, 100} {
		if ValidDie(d) {
			t.Errorf("ValidDie(%d) = true, want false", d)
		}
	}
}

func TestRollRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d1, d2 := Roll()
		if !ValidDie(d1) || !ValidDie(d2) {
			t.Fatalf("Roll() = (%d, %d), values out of range", d1, d2)
		}
	}
}

func TestDecodeBetParam(t *testing.T) {
	tests := []struct {
		param  string
		cat    Category
		amount int64
		ok     bool
	}{
		{"big_100", CategoryBig, 100, true},
		{"small_500", CategorySmall, 500, true},
		{"lucky_1000", CategoryLucky, 1000, true},
		{"big_0", "", 0, false},
		{"big_-5", "", 0, false},
		{"big_abc", "", 0, false},
		{"medium_100", "", 0, false},
		{"big", "", 0, false},
	}

	for _, tt := range tests {
		cat, amount, ok := DecodeBetParam(tt.param)
		if cat != tt.cat || amount != tt.amount || ok != tt.ok {
			t.Errorf("DecodeBetParam(%q) = (%s, %d, %v), want (%s, %d, %v)",
				tt.param, cat, amount, ok, tt.cat, tt.amount, tt.ok)
		}
	}
}

func TestEncodeDecodeCallback(t *testing.T) {
	data := EncodeCallback("bet", EncodeBetParam(CategoryBig, 100))
	if data != "dicebet_bet_big_100" {
		t.Errorf("EncodeCallback = %q, want %q", data, "dicebet_bet_big_100")
	}

	action, param := DecodeCallback(data)
	if action != "bet" || param != "big_100" {
		t.Errorf("DecodeCallback(%q) = (%q, %q), want (bet, big_100)", data, action, param)
	}

	if action, param := DecodeCallback("other_bet_big_100"); action != "" || param != "" {
		t.Errorf("DecodeCallback with foreign prefix = (%q, %q), want empty", action, param)
	}
}

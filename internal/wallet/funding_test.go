// Package wallet tests for the funding allocation plan.
package wallet

import (
	"errors"
	"strings"
	"testing"
)

var testRules = Rules{MinMainForReferral: 100, ReferralRatio: 0.5}

// TestPlan tests allocation planning across the three fund sources.
func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		balances  Balances
		amount    int64
		rules     Rules
		expected  Allocation
		wantErr   bool
		shortfall int64
	}{
		{
			name:     "zero amount is a no-op",
			balances: Balances{Main: 10, Referral: 10, Bonus: 10},
			amount:   0,
			rules:    testRules,
			expected: Allocation{},
		},
		{
			name:     "bonus covers everything",
			balances: Balances{Main: 0, Referral: 0, Bonus: 500},
			amount:   300,
			rules:    testRules,
			expected: Allocation{BonusUsed: 300},
		},
		{
			name:     "bonus first then main",
			balances: Balances{Main: 500, Referral: 0, Bonus: 100},
			amount:   300,
			rules:    testRules,
			expected: Allocation{BonusUsed: 100, MainUsed: 200},
		},
		{
			name:     "main only",
			balances: Balances{Main: 1000, Referral: 0, Bonus: 0},
			amount:   100,
			rules:    testRules,
			expected: Allocation{MainUsed: 100},
		},
		{
			name:     "referral capped by ratio",
			balances: Balances{Main: 1000, Referral: 1000, Bonus: 0},
			amount:   200,
			rules:    testRules,
			// floor(200 * 0.5) = 100 from referral, the rest from main
			expected: Allocation{ReferralUsed: 100, MainUsed: 100},
		},
		{
			name:     "referral capped by available points",
			balances: Balances{Main: 1000, Referral: 30, Bonus: 0},
			amount:   200,
			rules:    testRules,
			expected: Allocation{ReferralUsed: 30, MainUsed: 170},
		},
		{
			name:     "ratio floor on odd remainder",
			balances: Balances{Main: 1000, Referral: 1000, Bonus: 0},
			amount:   99,
			rules:    testRules,
			// floor(99 * 0.5) = 49
			expected: Allocation{ReferralUsed: 49, MainUsed: 50},
		},
		{
			name:     "bonus shrinks the referral base",
			balances: Balances{Main: 1000, Referral: 1000, Bonus: 100},
			amount:   300,
			rules:    testRules,
			// remainder after bonus is 200, floor(200 * 0.5) = 100
			expected: Allocation{BonusUsed: 100, ReferralUsed: 100, MainUsed: 100},
		},
		{
			name:     "below threshold main covers whole remainder",
			balances: Balances{Main: 80, Referral: 500, Bonus: 20},
			amount:   100,
			rules:    testRules,
			// main 80 < 100 threshold: referral untouched, main pays the remainder
			expected: Allocation{BonusUsed: 20, MainUsed: 80},
		},
		{
			name:      "below threshold referral cannot fill the gap",
			balances:  Balances{Main: 50, Referral: 500, Bonus: 0},
			amount:    100,
			rules:     testRules,
			wantErr:   true,
			shortfall: 50,
		},
		{
			name:      "total funds insufficient",
			balances:  Balances{Main: 10, Referral: 20, Bonus: 30},
			amount:    100,
			rules:     testRules,
			wantErr:   true,
			shortfall: 40,
		},
		{
			name:     "exactly covered",
			balances: Balances{Main: 70, Referral: 0, Bonus: 30},
			amount:   100,
			rules:    testRules,
			// main 70 < 100 threshold but covers the remainder exactly
			expected: Allocation{BonusUsed: 30, MainUsed: 70},
		},
		{
			name:      "ratio cap can fail a bet the total would cover",
			balances:  Balances{Main: 100, Referral: 1000, Bonus: 0},
			amount:    300,
			rules:     testRules,
			wantErr:   true,
			shortfall: 50, // referral capped at 150, main 100 < remaining 150
		},
		{
			name:     "zero ratio disables referral draw",
			balances: Balances{Main: 1000, Referral: 1000, Bonus: 0},
			amount:   200,
			rules:    Rules{MinMainForReferral: 100, ReferralRatio: 0},
			expected: Allocation{MainUsed: 200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc, err := Plan(tt.balances, tt.amount, tt.rules)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("Plan(%+v, %d) expected error, got allocation %+v", tt.balances, tt.amount, alloc)
				}
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("error does not unwrap to ErrInsufficientFunds: %v", err)
				}
				var ife *InsufficientFundsError
				if !errors.As(err, &ife) {
					t.Fatalf("error is not *InsufficientFundsError: %v", err)
				}
				if ife.Shortfall != tt.shortfall {
					t.Errorf("shortfall = %d, want %d", ife.Shortfall, tt.shortfall)
				}
				if ife.Balances != tt.balances {
					t.Errorf("error balances = %+v, want %+v", ife.Balances, tt.balances)
				}
				if alloc != (Allocation{}) {
					t.Errorf("failed plan returned non-zero allocation %+v", alloc)
				}
				return
			}

			if err != nil {
				t.Fatalf("Plan(%+v, %d) unexpected error: %v", tt.balances, tt.amount, err)
			}
			if alloc != tt.expected {
				t.Errorf("Plan(%+v, %d) = %+v, want %+v", tt.balances, tt.amount, alloc, tt.expected)
			}
			if alloc.Total() != tt.amount && tt.amount > 0 {
				t.Errorf("allocation total %d does not cover amount %d", alloc.Total(), tt.amount)
			}
		})
	}
}

// TestApply tests that applying an allocation subtracts each share.
func TestApply(t *testing.T) {
	b := Balances{Main: 500, Referral: 300, Bonus: 100}
	a := Allocation{BonusUsed: 100, ReferralUsed: 50, MainUsed: 150}

	got := Apply(b, a)
	want := Balances{Main: 350, Referral: 250, Bonus: 0}

	if got != want {
		t.Errorf("Apply(%+v, %+v) = %+v, want %+v", b, a, got, want)
	}
}

// TestInsufficientFundsErrorMessage tests that the error carries enough detail
// for the caller to show the user their balances.
func TestInsufficientFundsErrorMessage(t *testing.T) {
	_, err := Plan(Balances{Main: 10, Referral: 20, Bonus: 30}, 100, testRules)
	if err == nil {
		t.Fatal("expected error")
	}

	msg := err.Error()
	for _, want := range []string{"requested 100", "short 40", "main=10", "referral=20", "bonus=30"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

// Package wallet implements the funding resolver: the rules that decide how a
// bet's cost is drawn from a user's three fund sources (bonus points, referral
// points, main score).
package wallet

import (
	"errors"
	"fmt"
)

// Balances is a snapshot of one user's three fund sources.
// Main is chat-scoped; Referral and Bonus are global.
type Balances struct {
	Main     int64
	Referral int64
	Bonus    int64
}

// Total returns the combined funds across all three sources.
func (b Balances) Total() int64 {
	return b.Main + b.Referral + b.Bonus
}

// Rules holds the configured funding eligibility rules.
type Rules struct {
	// MinMainForReferral is the main-score threshold below which referral
	// points cannot cover a partial amount.
	MinMainForReferral int64
	// ReferralRatio caps the fraction of the post-bonus remainder that may
	// come from referral points.
	ReferralRatio float64
}

// Allocation describes how much of a charge each fund source covers.
type Allocation struct {
	BonusUsed    int64
	ReferralUsed int64
	MainUsed     int64
}

// Total returns the total amount the allocation draws.
func (a Allocation) Total() int64 {
	return a.BonusUsed + a.ReferralUsed + a.MainUsed
}

// ErrInsufficientFunds is the sentinel all funding failures unwrap to.
var ErrInsufficientFunds = errors.New("insufficient funds")

// InsufficientFundsError reports why a charge could not be funded. It carries
// the balances at the time of the attempt so callers can show them to the user.
type InsufficientFundsError struct {
	Requested int64
	Shortfall int64
	Balances  Balances
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: requested %d, short %d (main=%d referral=%d bonus=%d)",
		e.Requested, e.Shortfall, e.Balances.Main, e.Balances.Referral, e.Balances.Bonus)
}

// Unwrap makes errors.Is(err, ErrInsufficientFunds) work on the typed error.
func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Plan computes how amount is drawn from the three fund sources. It performs
// no mutation; a returned error means no allocation exists under the rules.
//
// Draw order, each step only while something remains to cover:
//  1. bonus points, unrestricted
//  2. referral points - only when main is at or above MinMainForReferral,
//     and at most floor(remainder x ReferralRatio)
//  3. main score covers the rest
//
// When main is below the threshold the whole post-bonus remainder must come
// from main; referral points are not touched even if they would cover the bet.
func Plan(b Balances, amount int64, r Rules) (Allocation, error) {
	var alloc Allocation

	// Zero is a no-op success; negative amounts never pass caller validation.
	if amount <= 0 {
		return alloc, nil
	}

	if b.Total() < amount {
		return Allocation{}, &InsufficientFundsError{
			Requested: amount,
			Shortfall: amount - b.Total(),
			Balances:  b,
		}
	}

	remaining := amount

	alloc.BonusUsed = min(b.Bonus, remaining)
	remaining -= alloc.BonusUsed

	if remaining > 0 {
		if b.Main < r.MinMainForReferral {
			if b.Main < remaining {
				return Allocation{}, &InsufficientFundsError{
					Requested: amount,
					Shortfall: remaining - b.Main,
					Balances:  b,
				}
			}
		} else {
			capped := int64(float64(remaining) * r.ReferralRatio)
			if capped < 0 {
				capped = 0
			}
			alloc.ReferralUsed = min(b.Referral, remaining, capped)
			remaining -= alloc.ReferralUsed
		}
	}

	if remaining > 0 {
		if b.Main < remaining {
			return Allocation{}, &InsufficientFundsError{
				Requested: amount,
				Shortfall: remaining - b.Main,
				Balances:  b,
			}
		}
		alloc.MainUsed = remaining
	}

	return alloc, nil
}

// Apply returns the balances after drawing the allocation from them.
func Apply(b Balances, a Allocation) Balances {
	return Balances{
		Main:     b.Main - a.MainUsed,
		Referral: b.Referral - a.ReferralUsed,
		Bonus:    b.Bonus - a.BonusUsed,
	}
}

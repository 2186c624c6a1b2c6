// Package wallet implements the funding resolver.
// resolver.go binds the pure allocation plan to a balance store.
package wallet

import (
	"context"
	"fmt"
)

// Store is the balance store the resolver charges against.
// ApplyCharge must apply the whole allocation atomically: either all three
// balances change or none do. A store that detects the plan went stale (a
// balance no longer covers its share) returns an error unwrapping to
// ErrInsufficientFunds.
type Store interface {
	Balances(ctx context.Context, chatID, userID int64) (Balances, error)
	ApplyCharge(ctx context.Context, chatID, userID int64, alloc Allocation) (Balances, error)
}

// ChargeResult describes a successful charge.
type ChargeResult struct {
	BonusUsed    int64
	ReferralUsed int64
	MainUsed     int64
	// After holds the balances once the charge is applied.
	After Balances
}

// TotalCharged returns the total amount drawn across the three sources.
func (r *ChargeResult) TotalCharged() int64 {
	return r.BonusUsed + r.ReferralUsed + r.MainUsed
}

// Resolver charges bet amounts against a balance store.
type Resolver struct {
	store Store
	rules Rules
}

// NewResolver creates a Resolver over the given store and rules.
func NewResolver(store Store, rules Rules) *Resolver {
	return &Resolver{
		store: store,
		rules: rules,
	}
}

// ResolveAndCharge funds amount from the user's balances. The allocation plan
// is computed first without mutation and applied only when it fully covers the
// amount, so a failed charge leaves the store untouched. A zero amount is a
// no-op success.
func (r *Resolver) ResolveAndCharge(ctx context.Context, chatID, userID, amount int64) (*ChargeResult, error) {
	bal, err := r.store.Balances(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}

	if amount <= 0 {
		return &ChargeResult{After: bal}, nil
	}

	alloc, err := Plan(bal, amount, r.rules)
	if err != nil {
		return nil, err
	}

	after, err := r.store.ApplyCharge(ctx, chatID, userID, alloc)
	if err != nil {
		return nil, fmt.Errorf("failed to apply charge: %w", err)
	}

	return &ChargeResult{
		BonusUsed:    alloc.BonusUsed,
		ReferralUsed: alloc.ReferralUsed,
		MainUsed:     alloc.MainUsed,
		After:        after,
	}, nil
}

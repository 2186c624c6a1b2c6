// Package wallet tests for the store-bound resolver.
package wallet

import (
	"context"
	"errors"
	"testing"
)

// fakeStore is an in-memory Store for resolver tests.
type fakeStore struct {
	balances   Balances
	applyCalls int
	balErr     error
	applyErr   error
}

func (s *fakeStore) Balances(ctx context.Context, chatID, userID int64) (Balances, error) {
	if s.balErr != nil {
		return Balances{}, s.balErr
	}
	return s.balances, nil
}

func (s *fakeStore) ApplyCharge(ctx context.Context, chatID, userID int64, alloc Allocation) (Balances, error) {
	s.applyCalls++
	if s.applyErr != nil {
		return Balances{}, s.applyErr
	}
	s.balances = Apply(s.balances, alloc)
	return s.balances, nil
}

// TestResolveAndChargeSuccess tests the basic charge path.
func TestResolveAndChargeSuccess(t *testing.T) {
	store := &fakeStore{balances: Balances{Main: 1000}}
	r := NewResolver(store, testRules)

	result, err := r.ResolveAndCharge(context.Background(), 1, 42, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.MainUsed != 100 || result.BonusUsed != 0 || result.ReferralUsed != 0 {
		t.Errorf("unexpected draw: %+v", result)
	}
	if result.TotalCharged() != 100 {
		t.Errorf("TotalCharged() = %d, want 100", result.TotalCharged())
	}
	if result.After.Main != 900 {
		t.Errorf("main after charge = %d, want 900", result.After.Main)
	}
	if store.applyCalls != 1 {
		t.Errorf("ApplyCharge called %d times, want 1", store.applyCalls)
	}
}

// TestResolveAndChargeMixedSources tests a charge drawing from all three sources.
func TestResolveAndChargeMixedSources(t *testing.T) {
	store := &fakeStore{balances: Balances{Main: 500, Referral: 300, Bonus: 100}}
	r := NewResolver(store, testRules)

	result, err := r.ResolveAndCharge(context.Background(), 1, 42, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// bonus 100, then floor(200 x 0.5) = 100 referral, then 100 main
	if result.BonusUsed != 100 || result.ReferralUsed != 100 || result.MainUsed != 100 {
		t.Errorf("unexpected draw: %+v", result)
	}
	want := Balances{Main: 400, Referral: 200, Bonus: 0}
	if result.After != want {
		t.Errorf("balances after charge = %+v, want %+v", result.After, want)
	}
	if store.balances != want {
		t.Errorf("store balances = %+v, want %+v", store.balances, want)
	}
}

// TestResolveAndChargeFailureLeavesStoreUntouched tests charge atomicity.
func TestResolveAndChargeFailureLeavesStoreUntouched(t *testing.T) {
	before := Balances{Main: 10, Referral: 20, Bonus: 30}
	store := &fakeStore{balances: before}
	r := NewResolver(store, testRules)

	_, err := r.ResolveAndCharge(context.Background(), 1, 42, 100)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	var ife *InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("error is not *InsufficientFundsError: %v", err)
	}
	if ife.Shortfall != 40 {
		t.Errorf("shortfall = %d, want 40", ife.Shortfall)
	}

	if store.applyCalls != 0 {
		t.Errorf("ApplyCharge called %d times on a failed charge", store.applyCalls)
	}
	if store.balances != before {
		t.Errorf("store mutated on failed charge: %+v, want %+v", store.balances, before)
	}
}

// TestResolveAndChargeZeroAmount tests that a zero amount is a no-op success.
func TestResolveAndChargeZeroAmount(t *testing.T) {
	before := Balances{Main: 500, Referral: 100, Bonus: 50}
	store := &fakeStore{balances: before}
	r := NewResolver(store, testRules)

	result, err := r.ResolveAndCharge(context.Background(), 1, 42, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalCharged() != 0 {
		t.Errorf("TotalCharged() = %d, want 0", result.TotalCharged())
	}
	if result.After != before {
		t.Errorf("balances changed on zero charge: %+v", result.After)
	}
	if store.applyCalls != 0 {
		t.Errorf("ApplyCharge called %d times on zero charge", store.applyCalls)
	}
}

// TestResolveAndChargeStoreErrors tests that store errors surface to the caller.
func TestResolveAndChargeStoreErrors(t *testing.T) {
	loadErr := errors.New("connection refused")
	store := &fakeStore{balErr: loadErr}
	r := NewResolver(store, testRules)

	if _, err := r.ResolveAndCharge(context.Background(), 1, 42, 100); !errors.Is(err, loadErr) {
		t.Errorf("load error not propagated: %v", err)
	}

	// A store that rejects the plan (stale balances) surfaces as insufficient funds.
	applyErr := &InsufficientFundsError{Requested: 100, Shortfall: 1}
	store = &fakeStore{balances: Balances{Main: 1000}, applyErr: applyErr}
	r = NewResolver(store, testRules)

	if _, err := r.ResolveAndCharge(context.Background(), 1, 42, 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("stale-plan rejection not surfaced as insufficient funds: %v", err)
	}
}

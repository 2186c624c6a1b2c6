// Package repository implements chat-scoped wallet persistence and the
// atomic funding charge.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-dice-bot/internal/model"
	"telegram-dice-bot/internal/wallet"
)

// ErrWalletNotFound is returned when a user has no wallet in a chat.
var ErrWalletNotFound = errors.New("wallet not found")

// WalletRepository handles chat-scoped main scores and the combined
// bonus/referral/main charge.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ChatID, &w.UserID, &w.MainScore, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// EnsureWallet returns the user's wallet in a chat, creating it with the
// welcome score on first contact. The bool reports whether a new wallet was
// created.
func (r *WalletRepository) EnsureWallet(ctx context.Context, chatID, userID, welcomeScore int64) (*model.Wallet, bool, error) {
	const insertQuery = `
		INSERT INTO wallets (chat_id, user_id, main_score, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id, user_id) DO NOTHING
		RETURNING chat_id, user_id, main_score, updated_at
	`

	w, err := scanWallet(r.pool.QueryRow(ctx, insertQuery, chatID, userID, welcomeScore))
	if err == nil {
		return w, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create wallet: %w", err)
	}

	w, err = r.Get(ctx, chatID, userID)
	if err != nil {
		return nil, false, err
	}
	return w, false, nil
}

// Get retrieves a user's wallet in a chat.
// Returns ErrWalletNotFound if the wallet does not exist.
func (r *WalletRepository) Get(ctx context.Context, chatID, userID int64) (*model.Wallet, error) {
	const query = `
		SELECT chat_id, user_id, main_score, updated_at
		FROM wallets
		WHERE chat_id = $1 AND user_id = $2
	`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, chatID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

// Balances loads a user's three balances for a chat in one query: the
// chat-scoped main score plus the global referral and bonus points.
func (r *WalletRepository) Balances(ctx context.Context, chatID, userID int64) (wallet.Balances, error) {
	const query = `
		SELECT w.main_score, u.referral_points, u.bonus_points
		FROM wallets w
		JOIN users u ON u.telegram_id = w.user_id
		WHERE w.chat_id = $1 AND w.user_id = $2
	`

	var b wallet.Balances
	err := r.pool.QueryRow(ctx, query, chatID, userID).Scan(&b.Main, &b.Referral, &b.Bonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Balances{}, ErrWalletNotFound
		}
		return wallet.Balances{}, fmt.Errorf("failed to load balances: %w", err)
	}
	return b, nil
}

// ApplyCharge applies a planned funding allocation in one transaction:
// bonus and referral points come off the users row, the main part off the
// chat wallet. Non-negativity guards in the statements reject a stale plan;
// nothing is written in that case and the caller gets an
// InsufficientFundsError built from the re-read balances.
func (r *WalletRepository) ApplyCharge(ctx context.Context, chatID, userID int64, alloc wallet.Allocation) (wallet.Balances, error) {
	const userQuery = `
		UPDATE users
		SET bonus_points = bonus_points - $2, referral_points = referral_points - $3, updated_at = NOW()
		WHERE telegram_id = $1 AND bonus_points >= $2 AND referral_points >= $3
		RETURNING referral_points, bonus_points
	`
	const walletQuery = `
		UPDATE wallets
		SET main_score = main_score - $3, updated_at = NOW()
		WHERE chat_id = $1 AND user_id = $2 AND main_score >= $3
		RETURNING main_score
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wallet.Balances{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var after wallet.Balances
	err = tx.QueryRow(ctx, userQuery, userID, alloc.BonusUsed, alloc.ReferralUsed).
		Scan(&after.Referral, &after.Bonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Balances{}, r.staleCharge(ctx, chatID, userID, alloc)
		}
		return wallet.Balances{}, fmt.Errorf("failed to charge points: %w", err)
	}

	err = tx.QueryRow(ctx, walletQuery, chatID, userID, alloc.MainUsed).Scan(&after.Main)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return wallet.Balances{}, r.staleCharge(ctx, chatID, userID, alloc)
		}
		return wallet.Balances{}, fmt.Errorf("failed to charge main score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wallet.Balances{}, fmt.Errorf("failed to commit charge: %w", err)
	}
	return after, nil
}

// staleCharge builds the InsufficientFundsError for a charge whose guards
// failed, from a fresh read of the balances. The rejected transaction wrote
// nothing.
func (r *WalletRepository) staleCharge(ctx context.Context, chatID, userID int64, alloc wallet.Allocation) error {
	current, err := r.Balances(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("charge rejected and balances could not be re-read: %w", err)
	}

	shortfall := alloc.Total() - current.Total()
	if shortfall < 0 {
		shortfall = 0
	}
	return &wallet.InsufficientFundsError{
		Requested: alloc.Total(),
		Shortfall: shortfall,
		Balances:  current,
	}
}

// MainScore returns the user's main score in a chat.
func (r *WalletRepository) MainScore(ctx context.Context, chatID, userID int64) (int64, error) {
	const query = `SELECT main_score FROM wallets WHERE chat_id = $1 AND user_id = $2`

	var score int64
	err := r.pool.QueryRow(ctx, query, chatID, userID).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("failed to get main score: %w", err)
	}
	return score, nil
}

// AddMainScore credits delta to the user's main score and returns the new
// value. Settlement uses this to pay out winnings.
func (r *WalletRepository) AddMainScore(ctx context.Context, chatID, userID, delta int64) (int64, error) {
	const query = `
		UPDATE wallets
		SET main_score = main_score + $3, updated_at = NOW()
		WHERE chat_id = $1 AND user_id = $2
		RETURNING main_score
	`

	var score int64
	err := r.pool.QueryRow(ctx, query, chatID, userID, delta).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("failed to add main score: %w", err)
	}
	return score, nil
}

// SetMainScore sets a user's main score to an exact value.
// Used primarily for admin operations.
func (r *WalletRepository) SetMainScore(ctx context.Context, chatID, userID, score int64) (*model.Wallet, error) {
	const query = `
		UPDATE wallets
		SET main_score = $3, updated_at = NOW()
		WHERE chat_id = $1 AND user_id = $2
		RETURNING chat_id, user_id, main_score, updated_at
	`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, chatID, userID, score))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to set main score: %w", err)
	}
	return w, nil
}

// TopByChat retrieves the chat's top wallets by main score.
func (r *WalletRepository) TopByChat(ctx context.Context, chatID int64, limit int) ([]*model.RankEntry, error) {
	const query = `
		SELECT w.user_id, u.username, w.main_score
		FROM wallets w
		JOIN users u ON u.telegram_id = w.user_id
		WHERE w.chat_id = $1
		ORDER BY w.main_score DESC, w.user_id ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat ranking: %w", err)
	}
	defer rows.Close()

	var entries []*model.RankEntry
	for rows.Next() {
		var entry model.RankEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.MainScore); err != nil {
			return nil, fmt.Errorf("failed to scan rank entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rank entries: %w", err)
	}
	return entries, nil
}

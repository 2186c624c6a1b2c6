// Package repository implements referral link persistence.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-dice-bot/internal/model"
)

// ReferralRepository handles referral records.
type ReferralRepository struct {
	pool *pgxpool.Pool
}

// NewReferralRepository creates a new ReferralRepository instance.
func NewReferralRepository(pool *pgxpool.Pool) *ReferralRepository {
	return &ReferralRepository{pool: pool}
}

// Create records a successful referral and the reward paid for it.
func (r *ReferralRepository) Create(ctx context.Context, referrerID, referredID, reward int64) (*model.Referral, error) {
	const query = `
		INSERT INTO referrals (referrer_id, referred_id, reward, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, referrer_id, referred_id, reward, created_at
	`

	var ref model.Referral
	err := r.pool.QueryRow(ctx, query, referrerID, referredID, reward).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.Reward,
		&ref.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create referral: %w", err)
	}
	return &ref, nil
}

// Stats returns how many users a referrer has invited and the total reward
// earned for them.
func (r *ReferralRepository) Stats(ctx context.Context, referrerID int64) (int64, int64, error) {
	const query = `
		SELECT COUNT(*), COALESCE(SUM(reward), 0)
		FROM referrals
		WHERE referrer_id = $1
	`

	var count, total int64
	err := r.pool.QueryRow(ctx, query, referrerID).Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get referral stats: %w", err)
	}
	return count, total, nil
}

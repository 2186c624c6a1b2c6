// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-dice-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyReferred = errors.New("user already has a referrer")
)

const userColumns = `telegram_id, username, first_name, referral_code, referred_by,
		referral_points, bonus_points, last_daily_claim, created_at, updated_at`

// UserRepository handles user data persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.ReferralPoints,
		&user.BonusPoints,
		&user.LastDailyClaim,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create creates a new user with zero point balances and a fresh referral
// code.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username, firstName string) (*model.User, error) {
	const query = `
		INSERT INTO users (telegram_id, username, first_name, referral_code, referral_points, bonus_points, last_daily_claim, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, 0, 0, NOW(), NOW())
		RETURNING ` + userColumns

	code := uuid.NewString()[:8]
	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, username, firstName, code))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one if it doesn't
// exist. The bool reports whether a new account was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, firstName string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username, firstName)
	if err != nil {
		// Handle race condition: another request might have created the user
		user, err = r.GetByID(ctx, telegramID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// GetByReferralCode retrieves a user by their referral code.
// Returns ErrUserNotFound if no user owns the code.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by referral code: %w", err)
	}
	return user, nil
}

// SetReferredBy binds a user to their referrer. A user can only ever have
// one referrer and cannot refer themselves; returns ErrAlreadyReferred when
// the binding is rejected.
func (r *UserRepository) SetReferredBy(ctx context.Context, telegramID, referrerID int64) error {
	const query = `
		UPDATE users
		SET referred_by = $2, updated_at = NOW()
		WHERE telegram_id = $1 AND referred_by IS NULL AND telegram_id <> $2
	`

	result, err := r.pool.Exec(ctx, query, telegramID, referrerID)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyReferred
	}
	return nil
}

// AddReferralPoints credits referral points to a user and returns the
// updated user.
func (r *UserRepository) AddReferralPoints(ctx context.Context, telegramID, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET referral_points = referral_points + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add referral points: %w", err)
	}
	return user, nil
}

// AddBonusPoints credits bonus points to a user and returns the updated
// user.
func (r *UserRepository) AddBonusPoints(ctx context.Context, telegramID, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET bonus_points = bonus_points + $2, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add bonus points: %w", err)
	}
	return user, nil
}

// CanClaimDaily checks if a user can claim their daily bonus.
// Returns true if the cooldown has passed or the user never claimed, and
// otherwise the remaining time until the next claim.
func (r *UserRepository) CanClaimDaily(ctx context.Context, telegramID int64, cooldownHours int) (bool, time.Duration, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err != nil {
		return false, 0, err
	}

	if user.LastDailyClaim == 0 {
		return true, 0, nil
	}

	lastClaim := time.Unix(user.LastDailyClaim, 0)
	nextClaimTime := lastClaim.Add(time.Duration(cooldownHours) * time.Hour)
	now := time.Now()

	if !now.Before(nextClaimTime) {
		return true, 0, nil
	}
	return false, nextClaimTime.Sub(now), nil
}

// ClaimDaily credits the daily bonus to the user's bonus points and records
// the claim time in one statement.
func (r *UserRepository) ClaimDaily(ctx context.Context, telegramID, amount, claimTime int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET bonus_points = bonus_points + $2, last_daily_claim = $3, updated_at = NOW()
		WHERE telegram_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID, amount, claimTime))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to claim daily bonus: %w", err)
	}
	return user, nil
}

// GiftBonusAll credits bonus points to every registered user and returns
// the number of users credited. Used by the admin gift command.
func (r *UserRepository) GiftBonusAll(ctx context.Context, amount int64) (int64, error) {
	const query = `UPDATE users SET bonus_points = bonus_points + $1, updated_at = NOW()`

	result, err := r.pool.Exec(ctx, query, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to gift bonus points: %w", err)
	}
	return result.RowsAffected(), nil
}

// UpdateUsername updates a user's username when it changes on Telegram.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.pool.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Usernames resolves display names for a set of users, for settlement
// summaries.
func (r *UserRepository) Usernames(ctx context.Context, telegramIDs []int64) (map[int64]string, error) {
	const query = `SELECT telegram_id, username FROM users WHERE telegram_id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, telegramIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get usernames: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string, len(telegramIDs))
	for rows.Next() {
		var id int64
		var username string
		if err := rows.Scan(&id, &username); err != nil {
			return nil, fmt.Errorf("failed to scan username: %w", err)
		}
		names[id] = username
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usernames: %w", err)
	}
	return names, nil
}

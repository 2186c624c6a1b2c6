// Package repository implements the Redis-backed match history, idle-round
// counter and per-chat round sequence.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"telegram-dice-bot/internal/game/dicebet"
)

// HistoryRepository keeps per-chat match history, the idle-round counter
// and the round-id sequence in Redis.
type HistoryRepository struct {
	client *redis.Client
	size   int
}

// NewHistoryRepository creates a HistoryRepository keeping the last size
// match records per chat.
func NewHistoryRepository(client *redis.Client, size int) *HistoryRepository {
	return &HistoryRepository{client: client, size: size}
}

func historyKey(chatID int64) string  { return fmt.Sprintf("dicebot:history:%d", chatID) }
func idleKey(chatID int64) string     { return fmt.Sprintf("dicebot:idle:%d", chatID) }
func roundSeqKey(chatID int64) string { return fmt.Sprintf("dicebot:roundseq:%d", chatID) }

// Append pushes a match record onto the chat's history and trims it to the
// configured size.
func (r *HistoryRepository) Append(ctx context.Context, rec dicebet.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal match record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, historyKey(rec.ChatID), data)
	pipe.LTrim(ctx, historyKey(rec.ChatID), 0, int64(r.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append match record: %w", err)
	}
	return nil
}

// Recent returns up to limit of the chat's latest match records, newest
// first.
func (r *HistoryRepository) Recent(ctx context.Context, chatID int64, limit int) ([]dicebet.MatchRecord, error) {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	items, err := r.client.LRange(ctx, historyKey(chatID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read match history: %w", err)
	}

	records := make([]dicebet.MatchRecord, 0, len(items))
	for _, item := range items {
		var rec dicebet.MatchRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// BumpIdle increments the chat's idle-round counter when idle is true and
// resets it to zero otherwise, returning the new value.
func (r *HistoryRepository) BumpIdle(ctx context.Context, chatID int64, idle bool) (int, error) {
	if !idle {
		if err := r.client.Set(ctx, idleKey(chatID), 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("failed to reset idle counter: %w", err)
		}
		return 0, nil
	}

	count, err := r.client.Incr(ctx, idleKey(chatID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment idle counter: %w", err)
	}
	return int(count), nil
}

// IdleRounds returns the chat's current idle-round count.
func (r *HistoryRepository) IdleRounds(ctx context.Context, chatID int64) (int, error) {
	count, err := r.client.Get(ctx, idleKey(chatID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read idle counter: %w", err)
	}
	return count, nil
}

// NextRoundID returns the next id from the chat's persistent round
// sequence.
func (r *HistoryRepository) NextRoundID(ctx context.Context, chatID int64) (int64, error) {
	id, err := r.client.Incr(ctx, roundSeqKey(chatID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance round sequence: %w", err)
	}
	return id, nil
}

// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a Redis container.
package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-dice-bot/internal/game/dicebet"
)

// setupTestRedis creates a Redis container and returns a client
// Skips the test if Docker is not available
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	cleanup := func() {
		_ = client.Close()
		_ = redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestHistoryRepository_AppendAndRecent(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	repo := NewHistoryRepository(client, 5)
	ctx := context.Background()

	// append more records than the history keeps
	for i := 1; i <= 7; i++ {
		rec := dicebet.MatchRecord{
			RoundID:     int64(i),
			ChatID:      100,
			SettledAt:   time.Now(),
			Dice:        [2]int{3, 4},
			Sum:         7,
			Winning:     dicebet.CategoryLucky,
			TotalBets:   int64(i * 100),
			TotalPayout: int64(i * 450),
			Winners:     1,
		}
		require.NoError(t, repo.Append(ctx, rec))
	}

	records, err := repo.Recent(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, records, 5)

	// newest first, oldest trimmed away
	for i, want := range []int64{7, 6, 5, 4, 3} {
		assert.Equal(t, want, records[i].RoundID)
	}
	assert.Equal(t, dicebet.CategoryLucky, records[0].Winning)
	assert.Equal(t, [2]int{3, 4}, records[0].Dice)

	// other chats have their own history
	records, err = repo.Recent(ctx, 200, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryRepository_RecentLimit(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	repo := NewHistoryRepository(client, 20)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		require.NoError(t, repo.Append(ctx, dicebet.MatchRecord{RoundID: int64(i), ChatID: 100}))
	}

	records, err := repo.Recent(ctx, 100, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(10), records[0].RoundID)
}

func TestHistoryRepository_BumpIdle(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	repo := NewHistoryRepository(client, 20)
	ctx := context.Background()

	// counter starts at zero
	count, err := repo.IdleRounds(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// idle rounds increment
	for want := 1; want <= 3; want++ {
		count, err = repo.BumpIdle(ctx, 100, true)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	count, err = repo.IdleRounds(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// a played round resets the counter
	count, err = repo.BumpIdle(ctx, 100, false)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = repo.IdleRounds(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHistoryRepository_NextRoundID(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	repo := NewHistoryRepository(client, 20)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := repo.NextRoundID(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// sequences are per chat
	id, err := repo.NextRoundID(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

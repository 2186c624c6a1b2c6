// Package lock provides chat-level locking.
// Property-based tests for serialized balance mutation under the chat lock.
package lock

import (
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentChargesSerializedProperty checks that concurrent read-modify-write
// operations on the same chat's pot produce the sequential result when guarded
// by the chat lock.
func TestConcurrentChargesSerializedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initial
		for i := 0; i < numOps; i++ {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		chatID := rapid.Int64Range(1, 1000000).Draw(t, "chatID")
		cl := NewChatLock()

		total := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(delta int64) {
				defer wg.Done()
				cl.Lock(chatID)
				defer cl.Unlock(chatID)
				total += delta
			}(amount)
		}
		wg.Wait()

		if total != expected {
			t.Fatalf("total mismatch with locking: expected %d, got %d (initial=%d, numOps=%d)",
				expected, total, initial, numOps)
		}
	})
}

// TestWithLockSerializesProperty checks that WithLock serializes its callbacks.
func TestWithLockSerializesProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		perOp := rapid.Int64Range(1, 100).Draw(t, "perOp")
		chatID := rapid.Int64Range(1, 1000000).Draw(t, "chatID")

		expected := initial + int64(numOps)*perOp
		cl := NewChatLock()
		total := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = cl.WithLock(chatID, func() error {
					total += perOp
					return nil
				})
			}()
		}
		wg.Wait()

		if total != expected {
			t.Fatalf("total mismatch with WithLock: expected %d, got %d", expected, total)
		}
	})
}

// TestChatsLockIndependentlyProperty checks that different chats' locks do not
// serialize against each other's counters.
func TestChatsLockIndependentlyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numChats := rapid.IntRange(2, 10).Draw(t, "numChats")
		opsPerChat := rapid.IntRange(5, 20).Draw(t, "opsPerChat")

		cl := NewChatLock()

		totals := make(map[int64]*int64)
		for i := 0; i < numChats; i++ {
			v := int64(0)
			totals[int64(i+1)] = &v
		}

		var wg sync.WaitGroup
		wg.Add(numChats * opsPerChat)
		for chatID := int64(1); chatID <= int64(numChats); chatID++ {
			for j := 0; j < opsPerChat; j++ {
				go func(id int64) {
					defer wg.Done()
					cl.Lock(id)
					defer cl.Unlock(id)
					*totals[id] += 10
				}(chatID)
			}
		}
		wg.Wait()

		for chatID := int64(1); chatID <= int64(numChats); chatID++ {
			want := int64(opsPerChat) * 10
			if *totals[chatID] != want {
				t.Fatalf("chat %d total mismatch: expected %d, got %d", chatID, want, *totals[chatID])
			}
		}
	})
}

// TestTryLockExclusionProperty checks that TryLock grants the lock to at most
// one goroutine at a time and that the lock is free afterwards.
func TestTryLockExclusionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatID := rapid.Int64Range(1, 1000000).Draw(t, "chatID")
		numAttempts := rapid.IntRange(5, 20).Draw(t, "numAttempts")

		cl := NewChatLock()

		var successCount atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		startCh := make(chan struct{})

		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				<-startCh
				if cl.TryLock(chatID) {
					successCount.Add(1)
					cl.Unlock(chatID)
				}
			}()
		}

		close(startCh)
		wg.Wait()

		if successCount.Load() < 1 {
			t.Fatalf("at least one TryLock should succeed, got %d successes", successCount.Load())
		}

		if !cl.TryLock(chatID) {
			t.Fatal("lock should be available after all attempts complete")
		}
		cl.Unlock(chatID)
	})
}

// TestLockUnlockSymmetryProperty checks that repeated lock/unlock cycles leave
// the lock available.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chatID := rapid.Int64Range(1, 1000000).Draw(t, "chatID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		cl := NewChatLock()

		for i := 0; i < numCycles; i++ {
			cl.Lock(chatID)
			cl.Unlock(chatID)
		}

		if !cl.TryLock(chatID) {
			t.Fatal("lock should be available after symmetric lock/unlock cycles")
		}
		cl.Unlock(chatID)
	})
}

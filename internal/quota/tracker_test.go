package quota

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpilot/internal/logger"
)

func TestTryReserve_ExactlyLimitReservations(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), 24*time.Hour, logger.NopLogger())
	ctx := context.Background()

	const limit = 3
	for i := 0; i < limit; i++ {
		allowed, err := tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", limit)
		require.NoError(t, err)
		assert.True(t, allowed, "reservation %d within the limit", i+1)
	}

	for i := 0; i < 5; i++ {
		allowed, err := tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", limit)
		require.NoError(t, err)
		assert.False(t, allowed, "reservation beyond the limit")
	}
}

func TestTryReserve_KeysAreIndependent(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), 24*time.Hour, logger.NopLogger())
	ctx := context.Background()

	allowed, err := tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	// different campaign, action type and rule each get their own counter
	for _, args := range [][3]string{
		{"r1", "pause_campaign", "c2"},
		{"r1", "change_bid", "c1"},
		{"r2", "pause_campaign", "c1"},
	} {
		allowed, err = tracker.TryReserve(ctx, args[0], args[1], args[2], 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestTryReserve_NoOverrunUnderConcurrency(t *testing.T) {
	tracker := NewTracker(NewMemoryStore(), 24*time.Hour, logger.NopLogger())
	ctx := context.Background()

	const (
		limit   = 5
		callers = 50
	)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed, err := tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", limit)
			assert.NoError(t, err)
			if allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted.Load(), "exactly limit reservations under racing callers")
}

func TestTryReserve_CounterExpiresAfterWindow(t *testing.T) {
	store := NewMemoryStore()
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	tracker := NewTracker(store, time.Hour, logger.NopLogger())
	tracker.now = store.now
	ctx := context.Background()

	allowed, err := tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", 1)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", 1)
	require.NoError(t, err)
	assert.False(t, allowed)

	current = current.Add(2 * time.Hour)

	allowed, err = tracker.TryReserve(ctx, "r1", "pause_campaign", "c1", 1)
	require.NoError(t, err)
	assert.True(t, allowed, "expired counter resets the quota")
}

type failingStore struct{}

func (failingStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, fmt.Errorf("store unavailable")
}

func TestTryReserve_StoreErrorDeniesReservation(t *testing.T) {
	tracker := NewTracker(failingStore{}, 24*time.Hour, logger.NopLogger())

	allowed, err := tracker.TryReserve(context.Background(), "r1", "pause_campaign", "c1", 5)

	require.Error(t, err)
	assert.False(t, allowed)
}

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpilot/internal/quota"
)

func TestQuotaTracker_RedisLimitSemantics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, false, true)
	ctx := context.Background()

	tracker := quota.NewTracker(quota.NewRedisStore(infra.RedisClient), 24*time.Hour, createTestLogger())

	for i := 0; i < 3; i++ {
		allowed, err := tracker.TryReserve(ctx, "rule-1", "pause_campaign", "camp-1", 3)
		require.NoError(t, err)
		assert.True(t, allowed, "reservation %d within limit", i+1)
	}

	allowed, err := tracker.TryReserve(ctx, "rule-1", "pause_campaign", "camp-1", 3)
	require.NoError(t, err)
	assert.False(t, allowed, "limit exhausted")

	// Other campaigns and actions count independently.
	allowed, err = tracker.TryReserve(ctx, "rule-1", "pause_campaign", "camp-2", 3)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = tracker.TryReserve(ctx, "rule-1", "increase_budget", "camp-1", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestQuotaTracker_RedisConcurrentReservations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, false, true)
	ctx := context.Background()

	tracker := quota.NewTracker(quota.NewRedisStore(infra.RedisClient), 24*time.Hour, createTestLogger())

	const racers = 50
	const limit = 5

	var granted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			allowed, err := tracker.TryReserve(ctx, "rule-1", "change_bid", "camp-1", limit)
			if err == nil && allowed {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), granted.Load(), "concurrent reservations never exceed the limit")
}

func TestRedisStore_AttachesTTLOnFirstIncrement(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, false, true)
	ctx := context.Background()

	store := quota.NewRedisStore(infra.RedisClient)

	count, err := store.IncrWithTTL(ctx, "executions:2026-08-29:rule-1:pause_campaign:camp-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ttl, err := infra.RedisClient.TTL(ctx, "executions:2026-08-29:rule-1:pause_campaign:camp-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute, "expiry set on first increment")

	count, err = store.IncrWithTTL(ctx, "executions:2026-08-29:rule-1:pause_campaign:camp-1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

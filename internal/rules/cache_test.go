package rules

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

type fakeRepository struct {
	mu    sync.Mutex
	rules map[string][]Rule
	err   error
	loads atomic.Int64
	delay time.Duration
}

func (f *fakeRepository) GetActiveRules(ctx context.Context, tenantID string) ([]Rule, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.rules[tenantID], nil
}

func (f *fakeRepository) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestCache_ReadThrough(t *testing.T) {
	repo := &fakeRepository{rules: map[string][]Rule{
		"t1": {*validRule()},
	}}
	cache := NewCache(repo, time.Hour, time.Minute, logger.NopLogger())

	rules, err := cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(1), repo.loads.Load())

	// second call served from cache
	rules, err = cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(1), repo.loads.Load())
}

func TestCache_Invalidate(t *testing.T) {
	repo := &fakeRepository{rules: map[string][]Rule{"t1": {*validRule()}}}
	cache := NewCache(repo, time.Hour, time.Minute, logger.NopLogger())

	_, err := cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.loads.Load())

	cache.Invalidate("t1")

	_, err = cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), repo.loads.Load())
}

func TestCache_FailOpenOnStoreError(t *testing.T) {
	repo := &fakeRepository{}
	repo.setErr(fmt.Errorf("connection refused"))
	cache := NewCache(repo, time.Hour, time.Minute, logger.NopLogger())

	rules, err := cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err, "store outage must not surface as an error")
	assert.Empty(t, rules)

	// the empty answer is held for the negative TTL
	_, err = cache.GetActiveRules(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), repo.loads.Load())
}

func TestCache_SingleFlightCollapsesConcurrentMisses(t *testing.T) {
	repo := &fakeRepository{
		rules: map[string][]Rule{"t1": {*validRule()}},
		delay: 50 * time.Millisecond,
	}
	cache := NewCache(repo, time.Hour, time.Minute, logger.NopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rules, err := cache.GetActiveRules(context.Background(), "t1")
			assert.NoError(t, err)
			assert.Len(t, rules, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), repo.loads.Load(), "concurrent misses must collapse into one load")
}

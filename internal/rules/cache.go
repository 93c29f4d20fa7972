package rules

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
)

// Cache is the read-through rule store client. Entries expire after a TTL;
// concurrent misses for the same tenant collapse into one store load. When the
// store is unreachable the cache answers with an empty rule set so that a store
// outage degrades to "no automation" instead of stalling the pipeline; the
// empty answer is held only for a short negative TTL.
type Cache struct {
	repo        Repository
	ttl         time.Duration
	negativeTTL time.Duration
	logger      logger.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	rules     []Rule
	expiresAt time.Time
}

func NewCache(repo Repository, ttl, negativeTTL time.Duration, log logger.Logger) *Cache {
	if ttl <= 0 {
		ttl = constants.RuleCacheTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = constants.RuleCacheNegativeTTL
	}
	return &Cache{
		repo:        repo,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		logger:      log,
		entries:     make(map[string]cacheEntry),
	}
}

func (c *Cache) GetActiveRules(ctx context.Context, tenantID string) ([]Rule, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		metrics.RuleCacheLookupsTotal.WithLabelValues("hit").Inc()
		return entry.rules, nil
	}
	metrics.RuleCacheLookupsTotal.WithLabelValues("miss").Inc()

	result, err, _ := c.group.Do(tenantID, func() (interface{}, error) {
		return c.load(ctx, tenantID), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Rule), nil
}

func (c *Cache) load(ctx context.Context, tenantID string) []Rule {
	rules, err := c.repo.GetActiveRules(ctx, tenantID)
	if err != nil {
		metrics.RuleStoreFailuresTotal.Inc()
		c.logger.ErrorwCtx(ctx, "Rule store unreachable, answering with empty rule set",
			"tenant_id", tenantID,
			"error", err,
		)
		c.store(tenantID, nil, c.negativeTTL)
		return nil
	}

	c.store(tenantID, rules, c.ttl)
	metrics.SetActiveRules(tenantID, len(rules))
	return rules
}

func (c *Cache) store(tenantID string, rules []Rule, ttl time.Duration) {
	c.mu.Lock()
	c.entries[tenantID] = cacheEntry{rules: rules, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate drops the tenant's entry. The next GetActiveRules forces a reload.
// Called from the admin API and from rule-update events.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
	c.group.Forget(tenantID)
}

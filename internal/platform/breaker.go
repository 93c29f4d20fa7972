package platform

import (
	"context"

	"adpilot/pkg/circuitbreaker"
)

// BreakerClient decorates a Client with a shared circuit breaker so a dying
// platform API fast-fails instead of tying up workers on timeouts.
type BreakerClient struct {
	inner   Client
	breaker *circuitbreaker.Wrapper
}

func NewBreakerClient(inner Client, cfg circuitbreaker.Config) *BreakerClient {
	return &BreakerClient{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(cfg),
	}
}

func (c *BreakerClient) PauseCampaign(ctx context.Context, campaignID string) error {
	return c.execute(ctx, func() error {
		return c.inner.PauseCampaign(ctx, campaignID)
	})
}

func (c *BreakerClient) UpdateBudget(ctx context.Context, campaignID string, newBudget float64) error {
	return c.execute(ctx, func() error {
		return c.inner.UpdateBudget(ctx, campaignID, newBudget)
	})
}

func (c *BreakerClient) UpdateBid(ctx context.Context, campaignID string, newBid float64) error {
	return c.execute(ctx, func() error {
		return c.inner.UpdateBid(ctx, campaignID, newBid)
	})
}

func (c *BreakerClient) UpdateCreative(ctx context.Context, campaignID string, creativeID string) error {
	return c.execute(ctx, func() error {
		return c.inner.UpdateCreative(ctx, campaignID, creativeID)
	})
}

func (c *BreakerClient) DuplicateAdSet(ctx context.Context, campaignID string, adSetID string) error {
	return c.execute(ctx, func() error {
		return c.inner.DuplicateAdSet(ctx, campaignID, adSetID)
	})
}

func (c *BreakerClient) execute(ctx context.Context, fn func() error) error {
	_, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, fn()
	})
	c.breaker.RecordRequest(err == nil)
	return err
}

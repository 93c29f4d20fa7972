package platform

import "context"

// Client is the advertising-platform boundary. Every call is a single attempt
// with a bounded timeout; the engine never retries within one rule invocation.
type Client interface {
	PauseCampaign(ctx context.Context, campaignID string) error
	UpdateBudget(ctx context.Context, campaignID string, newBudget float64) error
	UpdateBid(ctx context.Context, campaignID string, newBid float64) error
	UpdateCreative(ctx context.Context, campaignID string, creativeID string) error
	DuplicateAdSet(ctx context.Context, campaignID string, adSetID string) error
}

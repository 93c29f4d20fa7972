package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpilot/internal/events"
	"adpilot/internal/logger"
	"adpilot/internal/quota"
	"adpilot/internal/rules"
	"adpilot/pkg/models"
)

type fakePlatform struct {
	mu      sync.Mutex
	calls   []string
	budgets []float64
	bids    []float64
	failOn  map[string]error
	onCall  func()
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{failOn: make(map[string]error)}
}

func (f *fakePlatform) record(op string) error {
	if f.onCall != nil {
		f.onCall()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakePlatform) PauseCampaign(ctx context.Context, campaignID string) error {
	return f.record("pause_campaign")
}

func (f *fakePlatform) UpdateBudget(ctx context.Context, campaignID string, newBudget float64) error {
	f.mu.Lock()
	f.budgets = append(f.budgets, newBudget)
	f.mu.Unlock()
	return f.record("update_budget")
}

func (f *fakePlatform) UpdateBid(ctx context.Context, campaignID string, newBid float64) error {
	f.mu.Lock()
	f.bids = append(f.bids, newBid)
	f.mu.Unlock()
	return f.record("update_bid")
}

func (f *fakePlatform) UpdateCreative(ctx context.Context, campaignID string, creativeID string) error {
	return f.record("update_creative")
}

func (f *fakePlatform) DuplicateAdSet(ctx context.Context, campaignID string, adSetID string) error {
	return f.record("duplicate_adset")
}

func noopAlert(ctx context.Context, alert models.Alert) error { return nil }

func newTestExecutor(client *fakePlatform, alert AlertFunc) *Executor {
	if alert == nil {
		alert = noopAlert
	}
	tracker := quota.NewTracker(quota.NewMemoryStore(), 24*time.Hour, logger.NopLogger())
	opts := Options{PlatformRPS: 1000, PlatformBurst: 10, ActionTimeout: time.Second}
	return New(client, tracker, alert, opts, logger.NopLogger())
}

func testEvent() *events.MetricsEvent {
	return &events.MetricsEvent{
		CampaignID:  "c1",
		TenantID:    "t1",
		Budget:      100,
		CPC:         0.50,
		CTR:         0.003,
		SampleCount: 200,
	}
}

func TestExecuteActions_PriorityOrdering(t *testing.T) {
	client := newFakePlatform()
	e := newTestExecutor(client, nil)

	rule := &rules.Rule{
		ID:       "r1",
		TenantID: "t1",
		Actions: []rules.Action{
			{Type: rules.ActionChangeBid, Priority: 3, MaxExecutionsPerDay: 5},
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 5},
			{Type: rules.ActionIncreaseBudget, Priority: 2, MaxExecutionsPerDay: 5},
		},
	}

	results := e.ExecuteActions(context.Background(), rule, testEvent())

	require.Len(t, results, 3)
	assert.Equal(t, []string{"pause_campaign", "update_budget", "update_bid"}, client.calls)
	assert.Equal(t, rules.ActionPauseCampaign, results[0].Action.Type)
	assert.Equal(t, rules.ActionIncreaseBudget, results[1].Action.Type)
	assert.Equal(t, rules.ActionChangeBid, results[2].Action.Type)
}

func TestExecuteActions_PartialFailureIsolation(t *testing.T) {
	client := newFakePlatform()
	client.failOn["pause_campaign"] = fmt.Errorf("platform 500")
	e := newTestExecutor(client, nil)

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 5},
			{Type: rules.ActionDecreaseBudget, Priority: 2, MaxExecutionsPerDay: 5},
		},
	}

	results := e.ExecuteActions(context.Background(), rule, testEvent())

	require.Len(t, results, 2)
	assert.Equal(t, models.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "platform 500")
	assert.Equal(t, models.ExecutionSuccess, results[1].Status, "failure of one action must not abort the next")
	assert.Contains(t, client.calls, "update_budget")
}

func TestExecuteActions_QuotaDenialSkips(t *testing.T) {
	client := newFakePlatform()
	e := newTestExecutor(client, nil)

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 1},
			{Type: rules.ActionAlertOnly, Priority: 2, MaxExecutionsPerDay: 5},
		},
	}

	first := e.ExecuteActions(context.Background(), rule, testEvent())
	require.Len(t, first, 2)
	assert.Equal(t, models.ExecutionSuccess, first[0].Status)

	second := e.ExecuteActions(context.Background(), rule, testEvent())
	require.Len(t, second, 2)
	assert.Equal(t, models.ExecutionSkippedQuota, second[0].Status)
	assert.Equal(t, models.ExecutionSuccess, second[1].Status, "quota denial on one action must not skip the rest")

	// platform touched exactly once for the pause
	pauses := 0
	for _, c := range client.calls {
		if c == "pause_campaign" {
			pauses++
		}
	}
	assert.Equal(t, 1, pauses)
}

func TestExecuteActions_BudgetMath(t *testing.T) {
	client := newFakePlatform()
	e := newTestExecutor(client, nil)
	event := testEvent() // budget 100

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionIncreaseBudget, Priority: 1, MaxExecutionsPerDay: 5,
				Parameters: map[string]interface{}{"percent": 30.0}},
			{Type: rules.ActionDecreaseBudget, Priority: 2, MaxExecutionsPerDay: 5},
		},
	}

	e.ExecuteActions(context.Background(), rule, event)

	require.Len(t, client.budgets, 2)
	assert.InDelta(t, 130.0, client.budgets[0], 1e-9)
	assert.InDelta(t, 80.0, client.budgets[1], 1e-9, "decrease defaults to 20 percent")
}

func TestExecuteActions_BidMath(t *testing.T) {
	client := newFakePlatform()
	e := newTestExecutor(client, nil)
	event := testEvent() // cpc 0.50

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionChangeBid, Priority: 1, MaxExecutionsPerDay: 5,
				Parameters: map[string]interface{}{"adjust_percent": -10.0}},
		},
	}

	e.ExecuteActions(context.Background(), rule, event)

	require.Len(t, client.bids, 1)
	assert.InDelta(t, 0.45, client.bids[0], 1e-9)
}

func TestExecuteActions_AlertOnlyPublishes(t *testing.T) {
	client := newFakePlatform()
	var published []models.Alert
	e := newTestExecutor(client, func(ctx context.Context, alert models.Alert) error {
		published = append(published, alert)
		return nil
	})

	rule := &rules.Rule{
		ID:   "r1",
		Name: "ctr drop",
		Actions: []rules.Action{
			{Type: rules.ActionAlertOnly, Priority: 1, MaxExecutionsPerDay: 5,
				Parameters: map[string]interface{}{"message": "ctr collapsed", "severity": "critical"}},
		},
	}

	results := e.ExecuteActions(context.Background(), rule, testEvent())

	require.Len(t, results, 1)
	assert.Equal(t, models.ExecutionSuccess, results[0].Status)
	require.Len(t, published, 1)
	assert.Equal(t, "ctr collapsed", published[0].Message)
	assert.Equal(t, models.AlertSeverityCritical, published[0].Severity)
	assert.Equal(t, models.AlertSourceRuleAction, published[0].Source)
	assert.Empty(t, client.calls, "alert_only never touches the platform")
}

func TestExecuteActions_SerializedPerRuleAndCampaign(t *testing.T) {
	client := newFakePlatform()

	var inFlight, maxInFlight atomic.Int64
	client.onCall = func() {
		n := inFlight.Add(1)
		for {
			max := maxInFlight.Load()
			if n <= max || maxInFlight.CompareAndSwap(max, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}

	e := newTestExecutor(client, nil)

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 100},
		},
	}

	const racers = 4
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			e.ExecuteActions(context.Background(), rule, testEvent())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxInFlight.Load(),
		"actions for one rule and campaign must never run concurrently")
	assert.Len(t, client.calls, racers)
}

func TestExecuteActions_MissingActionParameters(t *testing.T) {
	client := newFakePlatform()
	e := newTestExecutor(client, nil)

	rule := &rules.Rule{
		ID: "r1",
		Actions: []rules.Action{
			{Type: rules.ActionRotateCreative, Priority: 1, MaxExecutionsPerDay: 5},
			{Type: rules.ActionDuplicateAdSet, Priority: 2, MaxExecutionsPerDay: 5},
		},
	}

	results := e.ExecuteActions(context.Background(), rule, testEvent())

	require.Len(t, results, 2)
	assert.Equal(t, models.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "backup_creative_id")
	assert.Equal(t, models.ExecutionFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "adset_id")
	assert.Empty(t, client.calls)
}

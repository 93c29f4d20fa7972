package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	celeval "adpilot/pkg/cel"

	"adpilot/internal/events"
	"adpilot/internal/logger"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	cel, err := celeval.NewEvaluator()
	require.NoError(t, err)
	return NewEvaluator(cel, logger.NopLogger())
}

func TestEvaluate_ANDSemantics(t *testing.T) {
	// Three conditions; falsify each position in turn.
	event := &events.MetricsEvent{
		CampaignID:  "c1",
		TenantID:    "t1",
		CTR:         0.005,
		Spend:       80,
		Impressions: 5000,
		SampleCount: 1000,
	}

	passing := []Condition{
		{Metric: MetricCTR, Operator: OpLess, Threshold: 0.01},
		{Metric: MetricSpend, Operator: OpGreater, Threshold: 50},
		{Metric: MetricImpressions, Operator: OpGreaterEq, Threshold: 5000},
	}
	failing := []Condition{
		{Metric: MetricCTR, Operator: OpGreater, Threshold: 0.01},
		{Metric: MetricSpend, Operator: OpLess, Threshold: 50},
		{Metric: MetricImpressions, Operator: OpLess, Threshold: 5000},
	}

	e := newTestEvaluator(t)

	rule := validRule()
	rule.Conditions = passing
	assert.True(t, e.Evaluate(rule, event))

	for i := range passing {
		conds := make([]Condition, len(passing))
		copy(conds, passing)
		conds[i] = failing[i]
		rule.Conditions = conds
		assert.False(t, e.Evaluate(rule, event), "position %d false must void the rule", i)
	}
}

func TestEvaluate_SampleSizeGate(t *testing.T) {
	e := newTestEvaluator(t)

	rule := validRule()
	rule.Conditions = []Condition{
		{Metric: MetricCTR, Operator: OpLess, Threshold: 0.01, MinSampleCount: 500},
	}

	event := &events.MetricsEvent{
		CampaignID:  "c1",
		TenantID:    "t1",
		CTR:         0.001, // would match on its own
		SampleCount: 499,
	}
	assert.False(t, e.Evaluate(rule, event))

	event.SampleCount = 500
	assert.True(t, e.Evaluate(rule, event))
}

func TestEvaluate_EpsilonComparisons(t *testing.T) {
	e := newTestEvaluator(t)
	event := &events.MetricsEvent{CampaignID: "c1", TenantID: "t1", CTR: 0.0205, SampleCount: 100}

	rule := validRule()

	rule.Conditions = []Condition{{Metric: MetricCTR, Operator: OpEqual, Threshold: 0.02}}
	assert.True(t, e.Evaluate(rule, event), "within epsilon counts as equal")

	rule.Conditions = []Condition{{Metric: MetricCTR, Operator: OpNotEqual, Threshold: 0.02}}
	assert.False(t, e.Evaluate(rule, event))

	event.CTR = 0.025
	rule.Conditions = []Condition{{Metric: MetricCTR, Operator: OpEqual, Threshold: 0.02}}
	assert.False(t, e.Evaluate(rule, event))
}

func TestEvaluate_UnknownMetricNeverMatches(t *testing.T) {
	e := newTestEvaluator(t)

	rule := validRule()
	rule.Conditions = []Condition{
		{Metric: "engagement_score", Operator: OpGreater, Threshold: 0},
	}
	event := &events.MetricsEvent{CampaignID: "c1", TenantID: "t1", SampleCount: 100}

	assert.False(t, e.Evaluate(rule, event))
}

func TestApplies(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := context.Background()

	event := &events.MetricsEvent{
		CampaignID:  "c1",
		TenantID:    "t1",
		Budget:      100,
		SampleCount: 100,
	}

	rule := validRule()

	rule.AppliesTo = ""
	assert.True(t, e.Applies(ctx, rule, event), "empty predicate selects all campaigns")

	rule.AppliesTo = `campaign_id == "c1" && campaign.budget >= 50.0`
	assert.True(t, e.Applies(ctx, rule, event))

	rule.AppliesTo = `campaign_id == "other"`
	assert.False(t, e.Applies(ctx, rule, event))

	rule.AppliesTo = `campaign.nonexistent > 1.0`
	assert.False(t, e.Applies(ctx, rule, event), "predicate error skips the rule")
}

package confidence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"adpilot/internal/events"
	"adpilot/internal/logger"
	"adpilot/internal/rules"
)

type fakePredictor struct {
	confidence float64
	err        error
	calls      int
}

func (f *fakePredictor) Predict(ctx context.Context, ruleID string, actionType string, features map[string]float64) (*Prediction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Prediction{Confidence: f.confidence}, nil
}

func gatedRule(threshold float64, fallback bool) *rules.Rule {
	return &rules.Rule{
		ID:       "rule-1",
		TenantID: "t1",
		Conditions: []rules.Condition{
			{Metric: rules.MetricCTR, Operator: rules.OpLess, Threshold: 0.01},
		},
		Actions: []rules.Action{
			{Type: rules.ActionPauseCampaign, Priority: 1, MaxExecutionsPerDay: 1},
		},
		ConfidenceGate: &rules.ConfidenceGate{
			Enabled:             true,
			ConfidenceThreshold: threshold,
			FallbackToRule:      fallback,
		},
	}
}

func TestDecide_UnmatchedAlwaysVetoed(t *testing.T) {
	predictor := &fakePredictor{confidence: 0.99}
	gate := NewGate(predictor, logger.NopLogger())

	d := gate.Decide(context.Background(), gatedRule(0.5, false), &events.MetricsEvent{}, false)

	assert.False(t, d.Proceed)
	assert.Equal(t, 0, predictor.calls, "no prediction for an unmatched rule")
}

func TestDecide_GateAbsentOrDisabled(t *testing.T) {
	predictor := &fakePredictor{}
	gate := NewGate(predictor, logger.NopLogger())

	rule := gatedRule(0.5, false)
	rule.ConfidenceGate = nil
	d := gate.Decide(context.Background(), rule, &events.MetricsEvent{}, true)
	assert.True(t, d.Proceed)

	rule = gatedRule(0.5, false)
	rule.ConfidenceGate.Enabled = false
	d = gate.Decide(context.Background(), rule, &events.MetricsEvent{}, true)
	assert.True(t, d.Proceed)

	assert.Equal(t, 0, predictor.calls)
}

func TestDecide_ConfidenceFallback(t *testing.T) {
	// confidence 0.4 against threshold 0.7, both fallback settings
	predictor := &fakePredictor{confidence: 0.4}
	gate := NewGate(predictor, logger.NopLogger())

	d := gate.Decide(context.Background(), gatedRule(0.7, false), &events.MetricsEvent{}, true)
	assert.False(t, d.Proceed)
	assert.Equal(t, "confidence_below_threshold", d.Reason)

	d = gate.Decide(context.Background(), gatedRule(0.7, true), &events.MetricsEvent{}, true)
	assert.True(t, d.Proceed)
	assert.Equal(t, "fallback_to_rule", d.Reason)
}

func TestDecide_ConfidenceMeetsThreshold(t *testing.T) {
	predictor := &fakePredictor{confidence: 0.85}
	gate := NewGate(predictor, logger.NopLogger())

	d := gate.Decide(context.Background(), gatedRule(0.7, false), &events.MetricsEvent{}, true)

	assert.True(t, d.Proceed)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
}

func TestDecide_PredictorErrorDegradesToZero(t *testing.T) {
	predictor := &fakePredictor{err: fmt.Errorf("connection refused")}
	gate := NewGate(predictor, logger.NopLogger())

	d := gate.Decide(context.Background(), gatedRule(0.7, false), &events.MetricsEvent{}, true)
	assert.False(t, d.Proceed, "collaborator outage vetoes without fallback")
	assert.Equal(t, 0.0, d.Confidence)

	d = gate.Decide(context.Background(), gatedRule(0.7, true), &events.MetricsEvent{}, true)
	assert.True(t, d.Proceed, "fallback still proceeds on collaborator outage")
}

package confidence

import (
	"context"

	"adpilot/internal/events"
	"adpilot/internal/logger"
	"adpilot/internal/rules"
	"adpilot/pkg/metrics"
)

type Decision struct {
	Proceed    bool
	Confidence float64
	Reason     string
}

// Gate applies the optional ML veto between rule match and action execution.
// The ML signal is strictly advisory: it can only veto a matched rule, never
// fire an unmatched one.
type Gate struct {
	predictor Predictor
	logger    logger.Logger
}

func NewGate(predictor Predictor, log logger.Logger) *Gate {
	return &Gate{predictor: predictor, logger: log}
}

func (g *Gate) Decide(ctx context.Context, rule *rules.Rule, event *events.MetricsEvent, matched bool) Decision {
	if !matched {
		return g.record(Decision{Proceed: false, Reason: "not_matched"})
	}

	cg := rule.ConfidenceGate
	if cg == nil || !cg.Enabled {
		return g.record(Decision{Proceed: true, Reason: "gate_disabled"})
	}

	primary := rule.PrimaryAction()
	if primary == nil {
		return g.record(Decision{Proceed: false, Reason: "no_actions"})
	}

	confidence := g.predict(ctx, rule, event, primary)

	if confidence >= cg.ConfidenceThreshold {
		return g.record(Decision{Proceed: true, Confidence: confidence, Reason: "confidence_met"})
	}
	if cg.FallbackToRule {
		return g.record(Decision{Proceed: true, Confidence: confidence, Reason: "fallback_to_rule"})
	}
	return g.record(Decision{Proceed: false, Confidence: confidence, Reason: "confidence_below_threshold"})
}

// predict degrades any collaborator failure to confidence 0.
func (g *Gate) predict(ctx context.Context, rule *rules.Rule, event *events.MetricsEvent, action *rules.Action) float64 {
	prediction, err := g.predictor.Predict(ctx, rule.ID, string(action.Type), event.Snapshot())
	if err != nil {
		metrics.ConfidencePredictionsTotal.WithLabelValues("error").Inc()
		g.logger.WarnwCtx(ctx, "Confidence prediction failed, treating confidence as 0",
			"rule_id", rule.ID,
			"action_type", action.Type,
			"error", err,
		)
		return 0
	}
	metrics.ConfidencePredictionsTotal.WithLabelValues("ok").Inc()
	return prediction.Confidence
}

func (g *Gate) record(d Decision) Decision {
	decision := "veto"
	if d.Proceed {
		decision = "proceed"
	}
	metrics.ConfidenceGateDecisionsTotal.WithLabelValues(decision, d.Reason).Inc()
	return d
}

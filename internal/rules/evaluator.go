package rules

import (
	"context"
	"math"

	celeval "adpilot/pkg/cel"

	"adpilot/internal/constants"
	"adpilot/internal/events"
	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
)

// Evaluator decides whether a rule matches one metrics event. Conditions
// combine with AND semantics and evaluation short-circuits on the first miss.
type Evaluator struct {
	cel    *celeval.Evaluator
	logger logger.Logger
}

func NewEvaluator(cel *celeval.Evaluator, log logger.Logger) *Evaluator {
	return &Evaluator{cel: cel, logger: log}
}

// Applies reports whether the rule's applies_to predicate selects this
// campaign. An empty predicate selects all campaigns. A predicate error skips
// the rule for this event; automation never fires on a predicate it could not
// evaluate.
func (e *Evaluator) Applies(ctx context.Context, rule *Rule, event *events.MetricsEvent) bool {
	if rule.AppliesTo == "" {
		return true
	}

	attributes := map[string]interface{}{
		"budget":      event.Budget,
		"spend":       event.Spend,
		"impressions": event.Impressions,
	}

	ok, err := e.cel.EvaluateFilter(ctx, rule.AppliesTo, event.CampaignID, event.TenantID, attributes)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Skipping rule with failing applies_to predicate",
			"rule_id", rule.ID,
			"error", err,
		)
		return false
	}
	return ok
}

// Evaluate applies the rule's conditions to the event.
func (e *Evaluator) Evaluate(rule *Rule, event *events.MetricsEvent) bool {
	for _, cond := range rule.Conditions {
		if !evaluateCondition(cond, event) {
			metrics.IncRuleEvaluation(rule.ID, "not_matched")
			return false
		}
	}
	metrics.IncRuleEvaluation(rule.ID, "matched")
	metrics.RulesTriggeredTotal.Inc()
	return true
}

func evaluateCondition(cond Condition, event *events.MetricsEvent) bool {
	// Small samples produce noisy rates; withholding judgment beats flapping.
	if event.SampleCount < cond.MinSampleCount {
		return false
	}

	value, ok := event.Metric(string(cond.Metric))
	if !ok {
		return false
	}

	return compare(value, cond.Operator, cond.Threshold)
}

func compare(value float64, op Operator, threshold float64) bool {
	switch op {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEq:
		return value >= threshold
	case OpLessEq:
		return value <= threshold
	case OpEqual:
		return math.Abs(value-threshold) < constants.MetricEpsilon
	case OpNotEqual:
		return math.Abs(value-threshold) >= constants.MetricEpsilon
	default:
		return false
	}
}

package processor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"adpilot/internal/broker"
	"adpilot/internal/confidence"
	"adpilot/internal/events"
	"adpilot/internal/executor"
	"adpilot/internal/logger"
	"adpilot/internal/rules"
	"adpilot/pkg/logging"
	"adpilot/pkg/metrics"
	"adpilot/pkg/models"
)

// RuleSource is the rule store client view the processor needs.
type RuleSource interface {
	GetActiveRules(ctx context.Context, tenantID string) ([]rules.Rule, error)
	Invalidate(tenantID string)
}

// ExecutionRecorder persists attempted actions. Implementations must swallow
// their own failures.
type ExecutionRecorder interface {
	Record(ctx context.Context, record models.ExecutionRecord)
}

type Topics struct {
	ProcessingLogs string
	Alerts         string
}

// Processor runs the per-event pipeline: decode, rule lookup, condition
// evaluation, confidence gate, action execution, audit. Per-event failures are
// absorbed here so one bad event never fails the broker batch.
type Processor struct {
	source    RuleSource
	evaluator *rules.Evaluator
	gate      *confidence.Gate
	executor  *executor.Executor
	recorder  ExecutionRecorder
	producer  broker.Producer
	topics    Topics
	logger    logger.Logger

	processed atomic.Int64
	malformed atomic.Int64
	triggered atomic.Int64
}

func New(
	source RuleSource,
	evaluator *rules.Evaluator,
	gate *confidence.Gate,
	exec *executor.Executor,
	recorder ExecutionRecorder,
	producer broker.Producer,
	topics Topics,
	log logger.Logger,
) *Processor {
	return &Processor{
		source:    source,
		evaluator: evaluator,
		gate:      gate,
		executor:  exec,
		recorder:  recorder,
		producer:  producer,
		topics:    topics,
		logger:    log,
	}
}

// Stats is the ops-endpoint view of pipeline throughput.
type Stats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsMalformed int64 `json:"events_malformed"`
	RulesTriggered  int64 `json:"rules_triggered"`
}

func (p *Processor) Stats() Stats {
	return Stats{
		EventsProcessed: p.processed.Load(),
		EventsMalformed: p.malformed.Load(),
		RulesTriggered:  p.triggered.Load(),
	}
}

// HandleMessage is the broker handler for the metrics input topic.
func (p *Processor) HandleMessage(ctx context.Context, msg broker.Message) error {
	start := time.Now()

	event, err := events.Decode(msg.Value)
	if err != nil {
		p.malformed.Add(1)
		metrics.EventsMalformedTotal.Inc()
		p.logger.WarnwCtx(ctx, "Skipping malformed metrics event",
			"error", err,
		)
		metrics.ObserveEventProcessing(time.Since(start), "malformed")
		return nil
	}

	ctx = logging.WithTenantID(ctx, event.TenantID)
	ctx = logging.WithCampaignID(ctx, event.CampaignID)

	ruleSet, err := p.source.GetActiveRules(ctx, event.TenantID)
	if err != nil {
		// The cache answers fail-open; an error here is unexpected but still
		// must not fail the batch.
		p.logger.ErrorwCtx(ctx, "Rule lookup failed, skipping event",
			"error", err,
		)
		metrics.ObserveEventProcessing(time.Since(start), "error")
		return nil
	}

	var triggeredIDs []string
	for i := range ruleSet {
		rule := &ruleSet[i]

		if !p.evaluator.Applies(ctx, rule, event) {
			continue
		}
		matched := p.evaluator.Evaluate(rule, event)
		decision := p.gate.Decide(ctx, rule, event, matched)
		if !decision.Proceed {
			continue
		}

		triggeredIDs = append(triggeredIDs, rule.ID)
		p.triggered.Add(1)

		results := p.executor.ExecuteActions(ctx, rule, event)
		for _, result := range results {
			p.recorder.Record(ctx, buildRecord(rule, event, result))
		}
	}

	p.publishProcessingLog(ctx, event, triggeredIDs)

	p.processed.Add(1)
	metrics.ObserveEventProcessing(time.Since(start), "ok")
	return nil
}

// HandleRuleUpdate is the broker handler for the rule-updates topic. Any rule
// mutation for a tenant busts that tenant's cache entry.
func (p *Processor) HandleRuleUpdate(ctx context.Context, msg broker.Message) error {
	var update models.RuleUpdateEvent
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		p.logger.WarnwCtx(ctx, "Skipping malformed rule update event",
			"error", err,
		)
		return nil
	}
	if update.TenantID == "" {
		return nil
	}

	p.source.Invalidate(update.TenantID)
	p.logger.InfowCtx(ctx, "Invalidated rule cache",
		"tenant_id", update.TenantID,
		"rule_id", update.RuleID,
		"change_type", update.ChangeType,
	)
	return nil
}

// PublishAlert delivers an alert to the alerts queue. Used by alert_only
// actions, rule-load validation failures and the supervisor.
func (p *Processor) PublishAlert(ctx context.Context, alert models.Alert) error {
	if err := p.producer.Publish(ctx, p.topics.Alerts, alert.CampaignID, alert); err != nil {
		return err
	}
	metrics.AlertsPublishedTotal.WithLabelValues(string(alert.Source), string(alert.Severity)).Inc()
	return nil
}

func (p *Processor) publishProcessingLog(ctx context.Context, event *events.MetricsEvent, triggeredIDs []string) {
	log := models.ProcessingLog{
		CampaignID:      event.CampaignID,
		TenantID:        event.TenantID,
		ProcessedAt:     time.Now().UTC(),
		TriggeredRules:  triggeredIDs,
		MetricsSnapshot: snapshot(event),
	}
	if err := p.producer.Publish(ctx, p.topics.ProcessingLogs, event.CampaignID, log); err != nil {
		metrics.ExecutionLogFailuresTotal.WithLabelValues("processing_log").Inc()
		p.logger.ErrorwCtx(ctx, "Failed to publish processing log",
			"error", err,
		)
	}
}

func buildRecord(rule *rules.Rule, event *events.MetricsEvent, result executor.ExecutionResult) models.ExecutionRecord {
	return models.ExecutionRecord{
		ExecutionID:   uuid.New().String(),
		RuleID:        rule.ID,
		CampaignID:    event.CampaignID,
		TenantID:      event.TenantID,
		ActionType:    string(result.Action.Type),
		AttemptedAt:   result.ExecutedAt,
		Status:        result.Status,
		Error:         result.Error,
		BeforeMetrics: snapshot(event),
	}
}

func snapshot(event *events.MetricsEvent) models.MetricsSnapshot {
	return models.MetricsSnapshot{
		CTR:         event.CTR,
		CPC:         event.CPC,
		Spend:       event.Spend,
		Conversions: event.Conversions,
		Budget:      event.Budget,
	}
}

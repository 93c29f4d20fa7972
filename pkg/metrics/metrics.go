package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_processed_total",
			Help: "Total number of metrics events processed (count)",
		},
		[]string{"status"},
	)

	EventsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_events_malformed_total",
			Help: "Total number of undecodable metrics events skipped (count)",
		},
	)

	EventProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_event_processing_duration_ms",
			Help:    "Per-event pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rule_evaluations_total",
			Help: "Total number of rule evaluations (count)",
		},
		[]string{"rule_id", "result"},
	)

	RulesTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_rules_triggered_total",
			Help: "Total number of rules whose conditions matched (count)",
		},
	)

	RuleStoreFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_rule_store_failures_total",
			Help: "Total number of rule store load failures answered fail-open (count)",
		},
	)

	RuleCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rule_cache_lookups_total",
			Help: "Total number of rule cache lookups (count)",
		},
		[]string{"result"},
	)

	RulesRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rules_rejected_total",
			Help: "Total number of rules excluded at load time for invariant violations (count)",
		},
		[]string{"reason"},
	)

	ActiveRules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_active_rules",
			Help: "Number of cached active rules per tenant (count)",
		},
		[]string{"tenant_id"},
	)

	ActionsExecutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_actions_executed_total",
			Help: "Total number of action execution attempts (count)",
		},
		[]string{"action_type", "status"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_action_duration_ms",
			Help:    "Platform action call duration in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"action_type"},
	)

	QuotaDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_quota_denied_total",
			Help: "Total number of action reservations denied by the daily quota (count)",
		},
		[]string{"action_type"},
	)

	QuotaStoreFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_quota_store_failures_total",
			Help: "Total number of quota store errors (reservation denied fail-safe) (count)",
		},
	)

	ConfidencePredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_confidence_predictions_total",
			Help: "Total number of ML confidence predictions requested (count)",
		},
		[]string{"outcome"},
	)

	ConfidenceGateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_confidence_gate_decisions_total",
			Help: "Total number of confidence gate decisions (count)",
		},
		[]string{"decision", "reason"},
	)

	ExecutionLogFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_execution_log_failures_total",
			Help: "Total number of swallowed execution logger failures (count)",
		},
		[]string{"sink"},
	)

	AlertsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_alerts_published_total",
			Help: "Total number of alerts published to the alerts queue (count)",
		},
		[]string{"source", "severity"},
	)

	SupervisorState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_supervisor_state",
			Help: "Streaming supervisor state (0=stopped, 1=starting, 2=running, 3=degraded, 4=restarting) (state code)",
		},
	)

	SupervisorRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_supervisor_restarts_total",
			Help: "Total number of supervisor-driven consumer/producer restarts (count)",
		},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_kafka_batch_size",
			Help:    "Number of messages per fetched batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	KafkaCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_kafka_commit_duration_ms",
			Help:    "Duration of batch offset commits in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_rate_limit_requests_total",
			Help: "Total number of admin API requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterEngineMetrics() {
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(EventsMalformedTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(RuleEvaluationsTotal)
	prometheus.MustRegister(RulesTriggeredTotal)
	prometheus.MustRegister(RuleStoreFailuresTotal)
	prometheus.MustRegister(RuleCacheLookupsTotal)
	prometheus.MustRegister(RulesRejectedTotal)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(ActionsExecutedTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(QuotaDeniedTotal)
	prometheus.MustRegister(QuotaStoreFailuresTotal)
	prometheus.MustRegister(ConfidencePredictionsTotal)
	prometheus.MustRegister(ConfidenceGateDecisionsTotal)
	prometheus.MustRegister(ExecutionLogFailuresTotal)
	prometheus.MustRegister(AlertsPublishedTotal)
}

func RegisterStreamingMetrics() {
	prometheus.MustRegister(SupervisorState)
	prometheus.MustRegister(SupervisorRestartsTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaBatchSize)
	prometheus.MustRegister(KafkaCommitDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveEventProcessing(duration time.Duration, status string) {
	EventsProcessedTotal.WithLabelValues(status).Inc()
	EventProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveActionDuration(actionType string, duration time.Duration) {
	ActionDuration.WithLabelValues(actionType).Observe(float64(duration.Milliseconds()))
}

func IncRuleEvaluation(ruleID, result string) {
	RuleEvaluationsTotal.WithLabelValues(ruleID, result).Inc()
}

func SetActiveRules(tenantID string, count int) {
	ActiveRules.WithLabelValues(tenantID).Set(float64(count))
}

func IncKafkaMessagesRead(topic string) {
	KafkaMessagesReadTotal.WithLabelValues(topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultInputTopic         = "campaign-metrics-stream"
	DefaultExecutionsLogTopic = "rule-executions-log"
	DefaultProcessingLogTopic = "processing-logs"
	DefaultAlertsTopic        = "alerts-queue"
	DefaultRuleUpdatesTopic   = "rule-updates"
)

const (
	QuotaKeyPrefix = "executions"
	QuotaKeyTTL    = 24 * time.Hour
)

const (
	RuleCacheTTL         = time.Hour
	RuleCacheNegativeTTL = 30 * time.Second
)

const (
	// Float comparisons on event metrics tolerate rounding introduced
	// upstream by the metrics producer.
	MetricEpsilon = 1e-3
)

const (
	DefaultBudgetChangePercent = 20.0
	DefaultBidChangePercent    = 10.0
	DefaultMaxExecutionsPerDay = 5
)

const (
	DefaultWorkerCount    = 8
	DefaultBatchSize      = 100
	DefaultBatchWait      = time.Second
	DefaultPlatformRPS    = 1.0
	DefaultActionTimeout  = 10 * time.Second
	DefaultPredictTimeout = 2 * time.Second
)

const (
	DefaultHealthCheckInterval = 30 * time.Second
	DefaultMaxRestartAttempts  = 3
	DefaultRestartBackoff      = 5 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultMongoDBName          = "adpilot"
	ExecutionRecordsCollection  = "execution_records"
)

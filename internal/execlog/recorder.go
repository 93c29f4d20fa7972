package execlog

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"adpilot/internal/broker"
	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
	"adpilot/pkg/models"
)

// Recorder appends execution records to the audit store and streams them to
// the executions log topic. Both sinks are best-effort: a logging failure is
// metered and swallowed, never surfaced to the action executor.
type Recorder struct {
	collection *mongo.Collection
	producer   broker.Producer
	topic      string
	logger     logger.Logger
}

func NewRecorder(db *mongo.Database, producer broker.Producer, topic string, log logger.Logger) *Recorder {
	return &Recorder{
		collection: db.Collection(constants.ExecutionRecordsCollection),
		producer:   producer,
		topic:      topic,
		logger:     log,
	}
}

func (r *Recorder) Record(ctx context.Context, record models.ExecutionRecord) {
	insertCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.collection.InsertOne(insertCtx, record); err != nil {
		metrics.ExecutionLogFailuresTotal.WithLabelValues("mongodb").Inc()
		r.logger.ErrorwCtx(ctx, "Failed to persist execution record",
			"execution_id", record.ExecutionID,
			"rule_id", record.RuleID,
			"error", err,
		)
	}

	if err := r.producer.Publish(ctx, r.topic, record.CampaignID, record); err != nil {
		metrics.ExecutionLogFailuresTotal.WithLabelValues("kafka").Inc()
		r.logger.ErrorwCtx(ctx, "Failed to publish execution record",
			"execution_id", record.ExecutionID,
			"topic", r.topic,
			"error", err,
		)
	}
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"adpilot/internal/config"
	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/errors"
	"adpilot/pkg/logging"
	"adpilot/pkg/metrics"
	"adpilot/pkg/retry"
	"adpilot/pkg/tracing"
)

// Consecutive fetch failures above this mark the consumer unhealthy so the
// supervisor can restart the stream.
const maxConsecutiveFetchErrors = 5

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	serviceName string
	fetchErrors atomic.Int64
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Healthy() bool {
	return c.fetchErrors.Load() < maxConsecutiveFetchErrors
}

// Consume fetches messages in batches and fans each batch out to a bounded
// worker group, sharded by message key. Offsets are committed only after the
// whole batch has been handled, so a crash mid-batch replays the batch rather
// than dropping it.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}
	batchWait := c.cfg.BatchWait
	if batchWait <= 0 {
		batchWait = constants.DefaultBatchWait
	}
	workers := c.cfg.WorkerCount
	if workers <= 0 {
		workers = constants.DefaultWorkerCount
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
			"batch_size", batchSize,
			"workers", workers,
		)

		for {
			batch, err := c.fetchBatch(ctx, batchSize, batchWait)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.fetchErrors.Add(1)
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka messages",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}
			c.fetchErrors.Store(0)

			if len(batch) == 0 {
				continue
			}
			metrics.KafkaBatchSize.Observe(float64(len(batch)))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(workers)
			for _, shard := range shardByKey(batch) {
				shard := shard
				g.Go(func() error {
					for _, m := range shard {
						c.handleMessage(gctx, topic, m, handler)
					}
					return nil
				})
			}
			_ = g.Wait()

			commitStart := time.Now()
			if err := c.reader.CommitMessages(ctx, batch...); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Failed to commit batch",
					"error", err,
					"topic", topic,
					"batch_size", len(batch),
				)
			}
			metrics.KafkaCommitDuration.Observe(time.Since(commitStart).Seconds())
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// fetchBatch blocks for the first message, then drains up to size-1 more
// within the wait window so a quiet topic still makes progress.
func (c *KafkaConsumer) fetchBatch(ctx context.Context, size int, wait time.Duration) ([]kafka.Message, error) {
	first, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := make([]kafka.Message, 0, size)
	batch = append(batch, first)

	drainCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for len(batch) < size {
		m, err := c.reader.FetchMessage(drainCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		batch = append(batch, m)
	}

	return batch, nil
}

// shardByKey groups a batch by message key so same-key messages are handled
// one after another in partition order, never concurrently. Producers key by
// campaign_id, which keeps action execution for one campaign serialized even
// when the batch fans out across workers. Keyless messages shard alone.
func shardByKey(batch []kafka.Message) [][]kafka.Message {
	shards := make([][]kafka.Message, 0, len(batch))
	index := make(map[string]int, len(batch))
	for _, m := range batch {
		if len(m.Key) == 0 {
			shards = append(shards, []kafka.Message{m})
			continue
		}
		key := string(m.Key)
		i, ok := index[key]
		if !ok {
			index[key] = len(shards)
			shards = append(shards, []kafka.Message{m})
			continue
		}
		shards[i] = append(shards[i], m)
	}
	return shards
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, topic string, m kafka.Message, handler HandlerFunc) {
	metrics.IncKafkaMessagesRead(topic)

	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()
	msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

	if err := c.processWithRetry(msgCtx, Message{Key: m.Key, Value: m.Value}, handler, topic); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to process message after retries",
			"error", err,
			"topic", topic,
			"partition", m.Partition,
			"offset", m.Offset,
		)
	}
}

func (c *KafkaConsumer) processWithRetry(ctx context.Context, msg Message, handler HandlerFunc, topic string) error {
	policy := retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}

	if c.cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = c.cfg.Retry.MaxAttempts
	}
	if c.cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		policy.Multiplier = c.cfg.Retry.Multiplier
	}
	if c.cfg.Retry.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.cfg.Retry.MaxElapsedTime
	}

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", topic,
				)
			}
		}()
		return handler(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", topic,
		)
	})
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	c.wg.Wait()
	return err
}

package streaming

import (
	"context"
	"sync"

	"adpilot/internal/broker"
	"adpilot/internal/logger"
)

// Stream is the supervised resource: the consumer set feeding the engine.
type Stream interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Healthy() bool
}

// EngineStream runs the metrics consumer and the rule-updates consumer. The
// producer is owned by the application and survives restarts; only consumer
// network resources are torn down here.
type EngineStream struct {
	metricsConsumer broker.Consumer
	updatesConsumer broker.Consumer
	metricsTopic    string
	updatesTopic    string
	metricsHandler  broker.HandlerFunc
	updatesHandler  broker.HandlerFunc
	logger          logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngineStream(
	metricsConsumer broker.Consumer,
	updatesConsumer broker.Consumer,
	metricsTopic, updatesTopic string,
	metricsHandler, updatesHandler broker.HandlerFunc,
	log logger.Logger,
) *EngineStream {
	return &EngineStream{
		metricsConsumer: metricsConsumer,
		updatesConsumer: updatesConsumer,
		metricsTopic:    metricsTopic,
		updatesTopic:    updatesTopic,
		metricsHandler:  metricsHandler,
		updatesHandler:  updatesHandler,
		logger:          log,
	}
}

func (s *EngineStream) Start(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.metricsConsumer.Consume(streamCtx, s.metricsTopic, s.metricsHandler); err != nil && streamCtx.Err() == nil {
			s.logger.Errorw("Metrics consumer stopped unexpectedly",
				"topic", s.metricsTopic,
				"error", err,
			)
		}
	}()

	if s.updatesConsumer != nil && s.updatesTopic != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.updatesConsumer.Consume(streamCtx, s.updatesTopic, s.updatesHandler); err != nil && streamCtx.Err() == nil {
				s.logger.Errorw("Rule updates consumer stopped unexpectedly",
					"topic", s.updatesTopic,
					"error", err,
				)
			}
		}()
	}

	return nil
}

func (s *EngineStream) Healthy() bool {
	if !s.metricsConsumer.Healthy() {
		return false
	}
	if s.updatesConsumer != nil && !s.updatesConsumer.Healthy() {
		return false
	}
	return true
}

// Stop drains the consumers: cancel stops new fetches, Close waits for
// in-flight batches to finish their commit cycle.
func (s *EngineStream) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	var firstErr error
	if err := s.metricsConsumer.Close(); err != nil {
		firstErr = err
	}
	if s.updatesConsumer != nil {
		if err := s.updatesConsumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.wg.Wait()
	return firstErr
}

package streaming

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"adpilot/internal/config"
	"adpilot/internal/constants"
	"adpilot/internal/logger"
	"adpilot/pkg/metrics"
	"adpilot/pkg/models"
)

type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateDegraded   State = "degraded"
	StateRestarting State = "restarting"
)

func stateCode(s State) float64 {
	switch s {
	case StateStarting:
		return 1
	case StateRunning:
		return 2
	case StateDegraded:
		return 3
	case StateRestarting:
		return 4
	default:
		return 0
	}
}

// AlertFunc surfaces supervisor-level operational alerts.
type AlertFunc func(ctx context.Context, alert models.Alert) error

// StreamFactory builds a fresh stream for initial start and for each restart.
type StreamFactory func() (Stream, error)

// Supervisor owns the stream lifecycle: periodic health checks, bounded
// auto-restart with backoff, and graceful shutdown. Exhausting the restart
// budget is fatal and requires manual intervention.
type Supervisor struct {
	factory StreamFactory
	cfg     config.StreamingConfig
	alert   AlertFunc
	logger  logger.Logger

	mu              sync.Mutex
	state           State
	stream          Stream
	restartAttempts int
	startedAt       time.Time
	cancel          context.CancelFunc
	done            chan struct{}
}

func NewSupervisor(factory StreamFactory, cfg config.StreamingConfig, alert AlertFunc, log logger.Logger) *Supervisor {
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = constants.DefaultHealthCheckInterval
	}
	if cfg.MaxRestartAttempts <= 0 {
		cfg.MaxRestartAttempts = constants.DefaultMaxRestartAttempts
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = constants.DefaultRestartBackoff
	}
	return &Supervisor{
		factory: factory,
		cfg:     cfg,
		alert:   alert,
		logger:  log,
		state:   StateStopped,
	}
}

type Status struct {
	State           State     `json:"state"`
	RestartAttempts int       `json:"restart_attempts"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:           s.state,
		RestartAttempts: s.restartAttempts,
		StartedAt:       s.startedAt,
	}
	if s.state != StateStopped && !s.startedAt.IsZero() {
		status.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}
	return status
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started (state %s)", s.state)
	}
	s.setStateLocked(StateStarting)
	s.mu.Unlock()

	stream, err := s.factory()
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		return fmt.Errorf("failed to build stream: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	if err := stream.Start(loopCtx); err != nil {
		cancel()
		s.mu.Lock()
		s.setStateLocked(StateStopped)
		s.mu.Unlock()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.cancel = cancel
	s.startedAt = time.Now()
	s.restartAttempts = 0
	s.done = make(chan struct{})
	s.setStateLocked(StateRunning)
	s.mu.Unlock()

	s.logger.Infow("Streaming supervisor running",
		"health_check_interval", s.cfg.HealthCheckInterval,
		"max_restart_attempts", s.cfg.MaxRestartAttempts,
	)

	go s.healthLoop(loopCtx)
	return nil
}

func (s *Supervisor) healthLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		stream := s.stream
		s.mu.Unlock()

		if stream.Healthy() {
			continue
		}

		s.mu.Lock()
		s.setStateLocked(StateDegraded)
		s.mu.Unlock()
		s.logger.Warnw("Stream unhealthy")

		if !s.cfg.AutoRestartOnFailure {
			continue
		}

		if !s.restart(ctx) {
			return
		}
	}
}

// restart tears the stream down and reinitializes it, up to the configured
// attempt budget. Returns false when the budget is exhausted.
func (s *Supervisor) restart(ctx context.Context) bool {
	for {
		s.mu.Lock()
		if s.restartAttempts >= s.cfg.MaxRestartAttempts {
			s.mu.Unlock()
			s.fatal(ctx)
			return false
		}
		s.restartAttempts++
		attempt := s.restartAttempts
		stream := s.stream
		s.setStateLocked(StateRestarting)
		s.mu.Unlock()

		metrics.SupervisorRestartsTotal.Inc()
		s.logger.Warnw("Restarting stream",
			"attempt", attempt,
			"max_attempts", s.cfg.MaxRestartAttempts,
		)

		if err := stream.Stop(ctx); err != nil {
			s.logger.Errorw("Error stopping stream during restart", "error", err)
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.cfg.RestartBackoff):
		}

		next, err := s.factory()
		if err != nil {
			s.logger.Errorw("Failed to rebuild stream", "attempt", attempt, "error", err)
			continue
		}
		if err := next.Start(ctx); err != nil {
			s.logger.Errorw("Failed to start rebuilt stream", "attempt", attempt, "error", err)
			continue
		}

		s.mu.Lock()
		s.stream = next
		s.restartAttempts = 0
		s.setStateLocked(StateRunning)
		s.mu.Unlock()
		s.logger.Infow("Stream restarted", "attempt", attempt)
		return true
	}
}

func (s *Supervisor) fatal(ctx context.Context) {
	s.logger.Errorw("Restart attempts exhausted, stopping supervisor",
		"max_attempts", s.cfg.MaxRestartAttempts,
	)

	if s.alert != nil {
		alert := models.Alert{
			AlertID:   uuid.New().String(),
			Severity:  models.AlertSeverityCritical,
			Source:    models.AlertSourceSupervisor,
			Message:   fmt.Sprintf("streaming supervisor exhausted %d restart attempts, manual intervention required", s.cfg.MaxRestartAttempts),
			Timestamp: time.Now().UTC(),
		}
		if err := s.alert(ctx, alert); err != nil {
			s.logger.Errorw("Failed to publish fatal supervisor alert", "error", err)
		}
	}

	s.mu.Lock()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()
}

// Stop shuts the supervisor down gracefully: the health loop exits, the stream
// drains in-flight batches and closes its connections.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateStopped && s.cancel == nil {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	// A restart may have swapped the stream while we waited for the health
	// loop to exit, so resolve the current one only now.
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.Stop(ctx)
	}

	s.mu.Lock()
	s.setStateLocked(StateStopped)
	s.mu.Unlock()
	return err
}

func (s *Supervisor) setStateLocked(state State) {
	s.state = state
	metrics.SupervisorState.Set(stateCode(state))
}

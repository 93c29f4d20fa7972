package streaming

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adpilot/internal/config"
	"adpilot/internal/logger"
	"adpilot/pkg/models"
)

type fakeStream struct {
	healthy  atomic.Bool
	started  atomic.Bool
	stopped  atomic.Bool
	startErr error
}

func newFakeStream(healthy bool) *fakeStream {
	s := &fakeStream{}
	s.healthy.Store(healthy)
	return s
}

func (f *fakeStream) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started.Store(true)
	return nil
}

func (f *fakeStream) Stop(ctx context.Context) error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeStream) Healthy() bool {
	return f.healthy.Load()
}

type streamSequence struct {
	mu      sync.Mutex
	streams []*fakeStream
	built   int
	err     error
}

func (s *streamSequence) factory() (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.built >= len(s.streams) {
		return nil, fmt.Errorf("no more streams")
	}
	stream := s.streams[s.built]
	s.built++
	return stream, nil
}

func testConfig() config.StreamingConfig {
	return config.StreamingConfig{
		HealthCheckInterval:  10 * time.Millisecond,
		AutoRestartOnFailure: true,
		MaxRestartAttempts:   3,
		RestartBackoff:       time.Millisecond,
	}
}

func TestSupervisor_StartAndStop(t *testing.T) {
	stream := newFakeStream(true)
	seq := &streamSequence{streams: []*fakeStream{stream}}
	sup := NewSupervisor(seq.factory, testConfig(), nil, logger.NopLogger())

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, StateRunning, sup.Status().State)
	assert.True(t, stream.started.Load())

	// double start rejected
	assert.Error(t, sup.Start(context.Background()))

	require.NoError(t, sup.Stop(context.Background()))
	assert.Equal(t, StateStopped, sup.Status().State)
	assert.True(t, stream.stopped.Load())
}

func TestSupervisor_RestartOnUnhealthyAndCounterReset(t *testing.T) {
	first := newFakeStream(true)
	second := newFakeStream(true)
	seq := &streamSequence{streams: []*fakeStream{first, second}}
	sup := NewSupervisor(seq.factory, testConfig(), nil, logger.NopLogger())

	require.NoError(t, sup.Start(context.Background()))

	first.healthy.Store(false)

	assert.Eventually(t, func() bool {
		return second.started.Load() && sup.Status().State == StateRunning
	}, time.Second, 5*time.Millisecond, "supervisor must replace the unhealthy stream")

	assert.True(t, first.stopped.Load())
	assert.Equal(t, 0, sup.Status().RestartAttempts, "successful restart resets the counter")

	require.NoError(t, sup.Stop(context.Background()))
	assert.True(t, second.stopped.Load(), "shutdown must close the stream installed by the restart")
}

func TestSupervisor_ExhaustedRestartsIsFatal(t *testing.T) {
	stream := newFakeStream(true)
	seq := &streamSequence{streams: []*fakeStream{stream}}

	var alerts []models.Alert
	var alertMu sync.Mutex
	alertFn := func(ctx context.Context, alert models.Alert) error {
		alertMu.Lock()
		alerts = append(alerts, alert)
		alertMu.Unlock()
		return nil
	}

	sup := NewSupervisor(seq.factory, testConfig(), alertFn, logger.NopLogger())
	require.NoError(t, sup.Start(context.Background()))

	// every rebuild fails from now on
	seq.mu.Lock()
	seq.err = fmt.Errorf("broker unreachable")
	seq.mu.Unlock()
	stream.healthy.Store(false)

	assert.Eventually(t, func() bool {
		return sup.Status().State == StateStopped
	}, time.Second, 5*time.Millisecond, "exhausted restarts must stop the supervisor")

	alertMu.Lock()
	defer alertMu.Unlock()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertSeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.AlertSourceSupervisor, alerts[0].Source)
	assert.Contains(t, alerts[0].Message, "manual intervention")
}

func TestSupervisor_NoRestartWhenDisabled(t *testing.T) {
	stream := newFakeStream(false)
	seq := &streamSequence{streams: []*fakeStream{stream}}

	cfg := testConfig()
	cfg.AutoRestartOnFailure = false
	sup := NewSupervisor(seq.factory, cfg, nil, logger.NopLogger())

	require.NoError(t, sup.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return sup.Status().State == StateDegraded
	}, time.Second, 5*time.Millisecond)

	assert.False(t, stream.stopped.Load(), "no teardown without auto restart")
	assert.Equal(t, 1, seq.built)

	require.NoError(t, sup.Stop(context.Background()))
}

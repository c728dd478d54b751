package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRedeliverer struct {
	mu     sync.Mutex
	before []time.Time
	limit  int
	n      int
	err    error
}

func (f *fakeRedeliverer) Redeliver(_ context.Context, occurredBefore time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = append(f.before, occurredBefore)
	f.limit = limit
	return f.n, f.err
}

func TestRelayRunOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := &fakeRedeliverer{n: 3}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	r, err := NewRelay(pub, "@every 1m", 50, 30*time.Second, zap.New(core))
	require.NoError(t, err)
	r.clock = func() time.Time { return now }

	r.RunOnce(context.Background())
	require.Len(t, pub.before, 1)
	assert.Equal(t, now.Add(-30*time.Second), pub.before[0])
	assert.Equal(t, 50, pub.limit)
	assert.Equal(t, 1, logs.FilterMessage("Redelivered lifecycle events").Len())

	pub.err = errors.New("store down")
	r.RunOnce(context.Background())
	assert.Equal(t, 1, logs.FilterMessage("Failed to redeliver lifecycle events").Len())
}

func TestRelayRejectsBadSchedule(t *testing.T) {
	_, err := NewRelay(&fakeRedeliverer{}, "every minute please", 10, 0, zap.NewNop())
	assert.Error(t, err)
}

func TestRelayStartStop(t *testing.T) {
	r, err := NewRelay(&fakeRedeliverer{}, "@every 1h", 10, 0, zap.NewNop())
	require.NoError(t, err)
	r.Start(context.Background())
	r.Stop()
}

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("production", "warn")
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger = NewLogger("development", "not-a-level")
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "tutor_scheduler", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

// blockingRedeliverer держит проход, пока тест его не отпустит
type blockingRedeliverer struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRedeliverer) Redeliver(context.Context, time.Time, int) (int, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return 0, nil
}

func TestRelaySkipsOverlappingTicks(t *testing.T) {
	pub := &blockingRedeliverer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r, err := NewRelay(pub, "@every 1h", 10, 0, zap.NewNop())
	require.NoError(t, err)

	entries := r.cron.Entries()
	require.Len(t, entries, 1)
	job := entries[0].WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	<-pub.entered

	// второй тик, пока первый ещё идёт, сразу возвращается
	job.Run()

	close(pub.release)
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 1, pub.calls)
}

package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/dreamspy/mnemo/internal/errors"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDrainer struct {
	drains  atomic.Int64
	drained chan struct{}
}

func newCountingDrainer() *countingDrainer {
	return &countingDrainer{drained: make(chan struct{}, 16)}
}

func (d *countingDrainer) Drain(ctx context.Context) error {
	d.drains.Add(1)
	d.drained <- struct{}{}
	return nil
}

func waitForDrain(t *testing.T, d *countingDrainer) {
	t.Helper()
	select {
	case <-d.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for drain")
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestMonitorStartStop(t *testing.T) {
	client := newMockClient()
	monitor := NewConnectivityMonitor(client, newCountingDrainer(), time.Hour, testLogger())

	assert.False(t, monitor.IsRunning())
	require.NoError(t, monitor.Start(context.Background()))
	assert.True(t, monitor.IsRunning())

	// Second start while running is rejected
	assert.Error(t, monitor.Start(context.Background()))

	monitor.Stop()
	assert.False(t, monitor.IsRunning())

	// Stop on a stopped monitor is a no-op
	monitor.Stop()
}

func TestMonitorDrainsOnReconnect(t *testing.T) {
	client := newMockClient()
	var healthy atomic.Bool
	client.healthFn = func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return apperrors.Connectivity(assert.AnError)
	}

	drainer := newCountingDrainer()
	monitor := NewConnectivityMonitor(client, drainer, 10*time.Millisecond, testLogger())
	require.NoError(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	// Let at least one failing probe flip the state to offline
	assert.Eventually(t, func() bool {
		return !monitor.Online()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), drainer.drains.Load())

	healthy.Store(true)
	waitForDrain(t, drainer)
	assert.True(t, monitor.Online())
}

func TestMonitorDoesNotDrainWhileOnline(t *testing.T) {
	client := newMockClient()
	drainer := newCountingDrainer()
	monitor := NewConnectivityMonitor(client, drainer, 10*time.Millisecond, testLogger())
	require.NoError(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	// Probes keep succeeding; the starting state is online, so no
	// transition ever happens and no drain fires.
	assert.Eventually(t, func() bool {
		return len(client.callLog()) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), drainer.drains.Load())
	assert.True(t, monitor.Online())
}

func TestMonitorTreatsApplicationErrorAsOnline(t *testing.T) {
	client := newMockClient()
	var healthy atomic.Bool
	client.healthFn = func(ctx context.Context) error {
		if healthy.Load() {
			// Reachable but unhealthy: still counts as online
			return apperrors.Application(503, "database down")
		}
		return apperrors.Connectivity(assert.AnError)
	}

	drainer := newCountingDrainer()
	monitor := NewConnectivityMonitor(client, drainer, 10*time.Millisecond, testLogger())
	require.NoError(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	assert.Eventually(t, func() bool {
		return !monitor.Online()
	}, 2*time.Second, 5*time.Millisecond)

	healthy.Store(true)
	waitForDrain(t, drainer)
	assert.True(t, monitor.Online())
}

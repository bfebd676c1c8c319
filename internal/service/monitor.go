package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/dreamspy/mnemo/internal/errors"
	"github.com/dreamspy/mnemo/pkg/mnemo"

	"github.com/sirupsen/logrus"
)

// Drainer triggers one drain pass of the offline queue.
type Drainer interface {
	Drain(ctx context.Context) error
}

// ConnectivityMonitor probes the API health endpoint on an interval and
// fires a drain on the offline-to-online transition. A received error
// response still counts as online: the server was reachable, and
// reachability is all the queue cares about.
type ConnectivityMonitor struct {
	client   mnemo.Client
	drainer  Drainer
	interval time.Duration
	logger   *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	online  bool
	mu      sync.RWMutex
}

func NewConnectivityMonitor(client mnemo.Client, drainer Drainer, interval time.Duration, logger *logrus.Logger) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		client:   client,
		drainer:  drainer,
		interval: interval,
		logger:   logger,
		// Startup already runs its own drain; only a later
		// offline-to-online edge should fire another.
		online: true,
	}
}

// Start begins background probing.
func (m *ConnectivityMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("connectivity monitor is already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(1)
	go m.probeLoop()

	m.logger.WithField("interval", m.interval).Info("Connectivity monitor started")
	return nil
}

// Stop gracefully stops the monitor.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.cancel()
	m.wg.Wait()
	m.running = false
	m.logger.Info("Connectivity monitor stopped")
}

// IsRunning reports whether the monitor is active.
func (m *ConnectivityMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Online reports the last observed connectivity state.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *ConnectivityMonitor) probeLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *ConnectivityMonitor) probe() {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()

	err := m.client.Health(ctx)
	nowOnline := err == nil || !apperrors.IsConnectivity(err)

	m.mu.Lock()
	wasOnline := m.online
	m.online = nowOnline
	m.mu.Unlock()

	switch {
	case nowOnline && !wasOnline:
		m.logger.Info("Connectivity restored, triggering sync")
		if err := m.drainer.Drain(m.ctx); err != nil {
			m.logger.WithError(err).Warn("Drain after reconnect failed")
		}
	case !nowOnline && wasOnline:
		m.logger.Warn("Connectivity lost")
	}
}

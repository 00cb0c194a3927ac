// Package monitor re-evaluates reachability on a fixed interval, so that a
// network which starts or stops passing traffic without an OS link event is
// still noticed.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"linkcore/internal/models"
	"linkcore/internal/netstate"
)

// Recomputer is the part of the reachability engine the monitor drives.
type Recomputer interface {
	Recompute(ctx context.Context, state netstate.State) (models.ConnectionStatus, bool)
}

// Monitor periodically fetches the OS state and recomputes the status.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	source   netstate.Source
	engine   Recomputer
	logger   hclog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a monitor. Intervals under ten seconds are raised to ten.
func New(interval time.Duration, source netstate.Source, engine Recomputer, logger hclog.Logger) *Monitor {
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Monitor{
		interval: interval,
		timeout:  30 * time.Second,
		source:   source,
		engine:   engine,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the loop in a goroutine. Calls after the first, or after
// Stop, do nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	go m.run()
}

// Stop requests graceful loop termination and waits until it is done. It
// returns immediately when the loop never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		if m.started {
			<-m.doneCh
		}
		return
	}
	m.stopped = true
	close(m.stopCh)
	started := m.started
	m.mu.Unlock()

	if started {
		<-m.doneCh
	}
}

// RunOnce fetches the OS state and recomputes. It reports whether a new
// status was committed.
func (m *Monitor) RunOnce(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	state, err := m.source.Fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch network state: %w", err)
	}
	_, changed := m.engine.Recompute(ctx, state)
	return changed, nil
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := m.RunOnce(context.Background())
			if err != nil {
				m.logger.Warn("revalidation failed", "error", err)
				continue
			}
			if changed {
				m.logger.Debug("revalidation committed a new status")
			}
		case <-m.stopCh:
			return
		}
	}
}

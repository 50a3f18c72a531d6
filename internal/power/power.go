// Package power detects the charger-connected condition that dismisses a
// ringing alarm.
package power

import (
	"context"
	"log/slog"
	"time"
)

// Probe answers whether external power is currently connected.
type Probe interface {
	Connected(ctx context.Context) (bool, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) (bool, error)

// Connected implements Probe.
func (f ProbeFunc) Connected(ctx context.Context) (bool, error) {
	return f(ctx)
}

// DefaultPollInterval bounds dismissal latency while ringing.
const DefaultPollInterval = 500 * time.Millisecond

// Monitor polls a probe and reports the disconnected-to-connected edge.
type Monitor struct {
	probe    Probe
	interval time.Duration
	logger   *slog.Logger
}

// NewMonitor constructs a monitor polling at the supplied interval. A zero or
// negative interval falls back to DefaultPollInterval.
func NewMonitor(probe Probe, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{probe: probe, interval: interval, logger: logger}
}

// WaitForConnect blocks until the probe observes a false-to-true transition or
// the context is cancelled. The first reading establishes the baseline: a
// charger already connected when waiting begins does not count as the edge.
//
// Probe errors are logged and polling continues; a flaky probe must not strand
// the caller without a cancel path.
func (m *Monitor) WaitForConnect(ctx context.Context) error {
	previous, err := m.probe.Connected(ctx)
	if err != nil {
		m.logger.Warn("power probe failed, assuming disconnected", "error", err)
		previous = false
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			connected, err := m.probe.Connected(ctx)
			if err != nil {
				m.logger.Warn("power probe failed", "error", err)
				continue
			}
			if connected && !previous {
				return nil
			}
			previous = connected
		}
	}
}

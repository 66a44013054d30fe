package lamp

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPollInterval is the monitor tick used when none is configured.
const DefaultPollInterval = time.Second

// Monitor polls the lamp in the background. Every tick it takes a
// snapshot, lets the driver reconcile drifted state against the last
// commanded values, and hands the snapshot to an optional hook.
type Monitor struct {
	lamp     Lamp
	interval time.Duration
	logger   log.FieldLogger

	// OnSnapshot, when set, receives every polled snapshot, including
	// the all-unknown one while the lamp is unreachable.
	OnSnapshot func(Snapshot)
}

func NewMonitor(l Lamp, interval time.Duration, logger log.FieldLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		lamp:     l,
		interval: interval,
		logger:   logger.WithField("component", "monitor"),
	}
}

// Run polls until the context is canceled. The first poll happens
// immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.WithField("interval", m.interval).Info("status monitor started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.poll()
		select {
		case <-ctx.Done():
			m.logger.Info("status monitor stopped")
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) poll() {
	snap, err := m.lamp.Snapshot()
	if err != nil {
		m.logger.WithError(err).Warn("status poll failed")
	}
	if err := m.lamp.Reconcile(snap); err != nil {
		m.logger.WithError(err).Warn("state reconciliation failed")
	}
	if m.OnSnapshot != nil {
		m.OnSnapshot(snap)
	}
}

// Package lampsim provides an in-memory lamp used to develop and test
// the control panel without hardware attached.
package lampsim

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
)

const (
	firmwareVersion = "Version 9.9 (simulated)"

	maxPosition = 400

	idleTemperature = 24.0  // Celsius, bulb off
	hotTemperature  = 82.5  // Celsius, bulb on
	bulbCurrent     = 512.0 // mA drawn by the lit bulb
)

// Simulator implements the lamp.Lamp interface in memory.
type Simulator struct {
	logger log.FieldLogger

	mu        sync.Mutex
	connected bool
	port      string
	commanded bool // last commanded bulb state
	bulbOn    bool // physical bulb state, drifts via TripEnable
	driveOn   bool
	position  float64
}

var _ lamp.Lamp = (*Simulator)(nil)

func New(logger log.FieldLogger) *Simulator {
	return &Simulator{
		logger: logger.WithField("component", "lampsim"),
	}
}

func (s *Simulator) Connect(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return fmt.Errorf("already connected to %s", s.port)
	}
	s.connected = true
	s.port = port
	s.logger.WithField("port", port).Info("simulated lamp connected")
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	s.commanded = false
	s.bulbOn = false
	s.driveOn = false
	s.logger.Info("simulated lamp disconnected")
	return nil
}

func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Port returns the port identifier of the most recent connection.
func (s *Simulator) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *Simulator) SetEnabled(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.ErrNotConnected
	}
	s.commanded = on
	s.bulbOn = on
	return nil
}

func (s *Simulator) MoveShutter(ctx context.Context, position int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.ErrNotConnected
	}
	if position < -maxPosition || position > maxPosition {
		return fmt.Errorf("%w: shutter target %d not in [%d, %d]", lamp.ErrOutOfRange, position, -maxPosition, maxPosition)
	}
	s.driveOn = true
	s.position = float64(position)
	return nil
}

func (s *Simulator) SetHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.ErrNotConnected
	}
	s.position = 0
	return nil
}

func (s *Simulator) SetMaxVelocity(limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.ErrNotConnected
	}
	if limit <= 0 {
		return fmt.Errorf("%w: velocity cap %d", lamp.ErrOutOfRange, limit)
	}
	return nil
}

func (s *Simulator) Calibrate(ctx context.Context) error {
	if err := s.SetEnabled(false); err != nil {
		return err
	}
	if err := s.MoveShutter(ctx, -maxPosition); err != nil {
		return err
	}
	return s.SetHome()
}

func (s *Simulator) Faults() (lamp.FaultStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.FaultStatus{}, lamp.ErrNotConnected
	}
	return lamp.FaultStatus{}, nil
}

func (s *Simulator) Motion() (lamp.MotionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.MotionStatus{}, lamp.ErrNotConnected
	}
	return lamp.MotionStatus{
		Mode:        lamp.PositionMode,
		AmplifierOn: s.driveOn,
		InPosition:  true,
	}, nil
}

func (s *Simulator) Snapshot() (lamp.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return lamp.Unknown(), nil
	}
	snap := lamp.Snapshot{
		FirmwareVersion: firmwareVersion,
		IsConnected:     true,
		IsEnabled:       s.bulbOn,
		CoilTemperature: idleTemperature,
		ShutterPosition: s.position,
		DriverCurrent:   0,
	}
	if s.bulbOn {
		snap.CoilTemperature = hotTemperature
		snap.DriverCurrent = bulbCurrent
	}
	return snap, nil
}

func (s *Simulator) Reconcile(snap lamp.Snapshot) error {
	if !snap.IsConnected {
		return nil
	}
	s.mu.Lock()
	connected := s.connected
	commanded := s.commanded
	s.mu.Unlock()
	if !connected || snap.IsEnabled == commanded {
		return nil
	}
	s.logger.WithFields(log.Fields{
		"commanded": commanded,
		"observed":  snap.IsEnabled,
	}).Warn("simulated drift detected, re-asserting")
	return s.SetEnabled(commanded)
}

// TripEnable flips the physical bulb state behind the panel's back,
// simulating the drift Reconcile exists to repair.
func (s *Simulator) TripEnable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulbOn = !s.bulbOn
}

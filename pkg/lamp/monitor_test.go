package lamp

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type scriptedLamp struct {
	mu         sync.Mutex
	snap       Snapshot
	snapErr    error
	reconciled []Snapshot
}

func (s *scriptedLamp) Connect(string) error                   { return nil }
func (s *scriptedLamp) Disconnect() error                      { return nil }
func (s *scriptedLamp) Connected() bool                        { return true }
func (s *scriptedLamp) SetEnabled(bool) error                  { return nil }
func (s *scriptedLamp) MoveShutter(context.Context, int) error { return nil }
func (s *scriptedLamp) SetHome() error                         { return nil }
func (s *scriptedLamp) SetMaxVelocity(int) error               { return nil }
func (s *scriptedLamp) Calibrate(context.Context) error        { return nil }
func (s *scriptedLamp) Faults() (FaultStatus, error)           { return FaultStatus{}, nil }
func (s *scriptedLamp) Motion() (MotionStatus, error)          { return MotionStatus{}, nil }

func (s *scriptedLamp) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapErr != nil {
		return Unknown(), s.snapErr
	}
	return s.snap, nil
}

func (s *scriptedLamp) Reconcile(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciled = append(s.reconciled, snap)
	return nil
}

func discardLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMonitorPollsAndReconciles(t *testing.T) {
	device := &scriptedLamp{snap: Snapshot{IsConnected: true, IsEnabled: true, FirmwareVersion: "Version 1.2"}}
	monitor := NewMonitor(device, 5*time.Millisecond, discardLogger())

	snaps := make(chan Snapshot, 16)
	monitor.OnSnapshot = func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	var got []Snapshot
	for len(got) < 3 {
		select {
		case s := <-snaps:
			got = append(got, s)
		case <-time.After(time.Second):
			t.Fatal("monitor produced no snapshots")
		}
	}
	cancel()
	<-done

	assert.True(t, got[0].IsConnected)
	assert.Equal(t, "Version 1.2", got[0].FirmwareVersion)

	device.mu.Lock()
	defer device.mu.Unlock()
	assert.GreaterOrEqual(t, len(device.reconciled), 3, "every poll must reconcile")
	assert.Equal(t, got[0], device.reconciled[0])
}

func TestMonitorReportsUnknownOnPollFailure(t *testing.T) {
	device := &scriptedLamp{snapErr: errors.New("serial read timed out")}
	// A long interval: only the immediate first poll matters here.
	monitor := NewMonitor(device, time.Minute, discardLogger())

	snaps := make(chan Snapshot, 1)
	monitor.OnSnapshot = func(s Snapshot) {
		select {
		case snaps <- s:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	select {
	case snap := <-snaps:
		assert.False(t, snap.IsConnected)
		assert.Equal(t, UnknownFirmware, snap.FirmwareVersion)
	case <-time.After(time.Second):
		t.Fatal("monitor never delivered a snapshot")
	}
	cancel()
	<-done
}

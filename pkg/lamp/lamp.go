// Package lamp defines the device-facing surface of the halogen lamp:
// the driver interface the control panel talks to, the status snapshot
// and the decoded fault and motion words.
package lamp

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned by driver operations that need an
	// open serial link.
	ErrNotConnected = errors.New("lamp is not connected")

	// ErrOutOfRange is returned for shutter targets and velocity caps
	// outside the configured bounds. Nothing is sent to the device.
	ErrOutOfRange = errors.New("value out of range")
)

// Lamp is implemented by the hardware driver and by the simulator.
type Lamp interface {
	// Connect opens the serial link on the given port. Connecting while
	// already connected is an error; Disconnect first.
	Connect(port string) error
	// Disconnect shuts the lamp down best-effort and releases the port.
	// Disconnecting an already disconnected lamp is a no-op.
	Disconnect() error
	Connected() bool

	// SetEnabled switches the halogen bulb on or off.
	SetEnabled(on bool) error
	// MoveShutter drives the shutter to an absolute position.
	MoveShutter(ctx context.Context, position int) error
	// SetHome declares the current shutter position as zero.
	SetHome() error
	// SetMaxVelocity caps the shutter motion speed.
	SetMaxVelocity(limit int) error
	// Calibrate drives the shutter to its closed end stop and declares
	// that position home.
	Calibrate(ctx context.Context) error

	Faults() (FaultStatus, error)
	Motion() (MotionStatus, error)

	// Snapshot aggregates the current device state. It never fails on a
	// disconnected lamp; on a connected one any sub-query error yields
	// the all-unknown snapshot together with that error.
	Snapshot() (Snapshot, error)
	// Reconcile compares an observed snapshot against the last commanded
	// state and forces drifted settings back.
	Reconcile(snap Snapshot) error
}

package hl2000

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/serialport"
)

// wire is the transport surface the driver needs. *serialport.Port
// implements it; tests script it.
type wire interface {
	WriteLine(s string) error
	Query(cmd string) (string, error)
	Close() error
}

// Driver controls one HL-2000-HP-232R lamp. All methods are safe for
// concurrent use; a single mutex serializes every command/response
// exchange so replies cannot interleave.
type Driver struct {
	store  *Store
	logger log.FieldLogger
	dial   func(port string, cfg serialport.Config) (wire, error)

	mu        sync.Mutex
	conn      wire
	port      string
	cfg       Config
	connected bool
	enabled   bool   // last commanded illumination state
	driveOn   bool   // last commanded drive electronics state
	firmware  string // cached identity, cleared on disconnect
}

var _ lamp.Lamp = (*Driver)(nil)

func NewDriver(store *Store, logger log.FieldLogger) *Driver {
	return &Driver{
		store:  store,
		logger: logger.WithField("component", "HL2000"),
		dial: func(port string, cfg serialport.Config) (wire, error) {
			return serialport.Open(port, cfg)
		},
	}
}

// Connect loads the stored configuration and opens the serial link on the
// given port. A previous transport is never reused; connecting while
// connected is an error.
func (d *Driver) Connect(port string) error {
	cfg, err := d.store.GetConfig()
	if err != nil {
		return fmt.Errorf("load lamp config: %w", err)
	}

	d.mu.Lock()
	if d.connected {
		d.mu.Unlock()
		return fmt.Errorf("already connected to %s", d.port)
	}
	conn, err := d.dial(port, cfg.Serial)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("connect lamp: %w", err)
	}
	d.conn = conn
	d.port = port
	d.cfg = cfg
	d.connected = true
	d.enabled = false
	d.driveOn = false
	d.mu.Unlock()

	d.logger.WithField("port", port).Info("lamp connected")

	if cfg.MaxVelocity > 0 {
		if err := d.SetMaxVelocity(cfg.MaxVelocity); err != nil {
			d.logger.WithError(err).Warn("could not apply velocity cap")
		}
	}
	if cfg.CalibrateOnConnect {
		if err := d.Calibrate(context.Background()); err != nil {
			d.logger.WithError(err).Warn("initial calibration failed")
		}
	}
	return nil
}

// Disconnect switches the bulb and the drive electronics off best-effort
// and releases the port. Disconnecting an already disconnected lamp is a
// no-op, and a dead link still ends up disconnected locally.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	conn := d.conn
	port := d.port
	d.conn = nil
	d.connected = false
	d.enabled = false
	d.driveOn = false
	d.firmware = ""
	d.mu.Unlock()

	if err := conn.WriteLine(cmdLampOff); err != nil {
		d.logger.WithError(err).Debug("lamp-off on disconnect failed")
	}
	if err := conn.WriteLine(cmdDriveOff); err != nil {
		d.logger.WithError(err).Debug("drive-off on disconnect failed")
	}
	if err := conn.Close(); err != nil {
		d.logger.WithError(err).Warn("serial close failed")
	}
	d.logger.WithField("port", port).Info("lamp disconnected")
	return nil
}

func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Port returns the port identifier of the most recent connection.
func (d *Driver) Port() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port
}

// send transmits a bare command as one serialized exchange.
func (d *Driver) send(cmd string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendLocked(cmd)
}

func (d *Driver) sendLocked(cmd string) error {
	if !d.connected {
		return lamp.ErrNotConnected
	}
	d.logger.WithField("cmd", cmd).Debug("send")
	if err := d.conn.WriteLine(cmd); err != nil {
		return fmt.Errorf("command %s: %w", cmd, err)
	}
	return nil
}

// query runs one command/response exchange under the mutex and returns
// the trimmed payload.
func (d *Driver) query(cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return "", lamp.ErrNotConnected
	}
	reply, err := d.conn.Query(cmd)
	if err != nil {
		return "", fmt.Errorf("query %s: %w", cmd, err)
	}
	reply = strings.TrimSpace(reply)
	d.logger.WithFields(log.Fields{"cmd": cmd, "reply": reply}).Debug("query")
	return reply, nil
}

// SetEnabled switches the halogen bulb. The commanded state is recorded
// only once the device accepted the write.
func (d *Driver) SetEnabled(on bool) error {
	cmd := cmdLampOff
	if on {
		cmd = cmdLampOn
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sendLocked(cmd); err != nil {
		return err
	}
	d.enabled = on
	return nil
}

// SetDrive switches the shutter drive electronics.
func (d *Driver) SetDrive(on bool) error {
	cmd := cmdDriveOff
	if on {
		cmd = cmdDriveOn
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sendLocked(cmd); err != nil {
		return err
	}
	d.driveOn = on
	return nil
}

// SetHome declares the current shutter position as zero.
func (d *Driver) SetHome() error {
	return d.send(cmdSetHome)
}

// SetMaxVelocity caps the shutter motion speed.
func (d *Driver) SetMaxVelocity(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: velocity cap %d", lamp.ErrOutOfRange, limit)
	}
	return d.send(cmdMaxSpeed + strconv.Itoa(limit))
}

// MoveShutter drives the shutter to an absolute position. The drive
// electronics are enabled first; the controller needs a settle pause
// after the target load and again after the move start.
func (d *Driver) MoveShutter(ctx context.Context, position int) error {
	d.mu.Lock()
	maxPos := d.cfg.MaxPosition
	settle := d.cfg.SettleDelay
	d.mu.Unlock()

	if maxPos > 0 && (position < -maxPos || position > maxPos) {
		return fmt.Errorf("%w: shutter target %d not in [%d, %d]", lamp.ErrOutOfRange, position, -maxPos, maxPos)
	}
	if err := d.SetDrive(true); err != nil {
		return err
	}
	if err := d.send(cmdLoadPos + strconv.Itoa(position)); err != nil {
		return err
	}
	if err := settleSleep(ctx, settle); err != nil {
		return err
	}
	if err := d.send(cmdMove); err != nil {
		return err
	}
	return settleSleep(ctx, settle)
}

func settleSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Calibrate switches the bulb off, drives the shutter to its closed end
// position and declares it home, giving absolute moves a repeatable
// reference.
func (d *Driver) Calibrate(ctx context.Context) error {
	d.mu.Lock()
	closed := d.cfg.ClosedPosition
	d.mu.Unlock()

	if err := d.SetEnabled(false); err != nil {
		return err
	}
	if err := d.MoveShutter(ctx, closed); err != nil {
		return err
	}
	return d.SetHome()
}

// FirmwareVersion returns the controller identity. The device is asked
// once per connection; later calls serve the cached reply.
func (d *Driver) FirmwareVersion() (string, error) {
	d.mu.Lock()
	cached := d.firmware
	d.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	reply, err := d.query(cmdVersion)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.firmware = reply
	d.mu.Unlock()
	return reply, nil
}

// Faults reads and decodes the fault status word.
func (d *Driver) Faults() (lamp.FaultStatus, error) {
	reply, err := d.query(cmdFaults)
	if err != nil {
		return lamp.FaultStatus{}, err
	}
	return parseFaultStatus(reply)
}

// Motion reads and decodes the motion controller status word.
func (d *Driver) Motion() (lamp.MotionStatus, error) {
	reply, err := d.query(cmdMotion)
	if err != nil {
		return lamp.MotionStatus{}, err
	}
	return parseMotionStatus(reply)
}

// CoilTemperature returns the lamp coil temperature in Celsius.
func (d *Driver) CoilTemperature() (float64, error) {
	reply, err := d.query(cmdTemperature)
	if err != nil {
		return 0, err
	}
	return parseFloatReply(reply)
}

// ShutterPosition returns the shutter position in encoder counts
// relative to home.
func (d *Driver) ShutterPosition() (float64, error) {
	reply, err := d.query(cmdPosition)
	if err != nil {
		return 0, err
	}
	return parseFloatReply(reply)
}

// DriverCurrent returns the drive current in milliamps.
func (d *Driver) DriverCurrent() (float64, error) {
	reply, err := d.query(cmdCurrent)
	if err != nil {
		return 0, err
	}
	return parseFloatReply(reply)
}

// Velocity returns the current motion velocity.
func (d *Driver) Velocity() (int, error) {
	reply, err := d.query(cmdVelocity)
	if err != nil {
		return 0, err
	}
	return parseIntReply(reply)
}

// MaxVelocity returns the velocity cap configured on the controller.
func (d *Driver) MaxVelocity() (int, error) {
	reply, err := d.query(cmdGetMaxSpeed)
	if err != nil {
		return 0, err
	}
	return parseIntReply(reply)
}

// Snapshot aggregates identity and telemetry. A disconnected lamp yields
// the all-unknown snapshot without error; on a connected one the first
// failing sub-query collapses the whole snapshot to unknown and is
// returned, so callers never see a half-populated state.
func (d *Driver) Snapshot() (lamp.Snapshot, error) {
	if !d.Connected() {
		return lamp.Unknown(), nil
	}

	firmware, err := d.FirmwareVersion()
	if err != nil {
		return lamp.Unknown(), err
	}
	temp, err := d.CoilTemperature()
	if err != nil {
		return lamp.Unknown(), err
	}
	pos, err := d.ShutterPosition()
	if err != nil {
		return lamp.Unknown(), err
	}
	current, err := d.DriverCurrent()
	if err != nil {
		return lamp.Unknown(), err
	}

	d.mu.Lock()
	enabled := d.enabled
	d.mu.Unlock()

	return lamp.Snapshot{
		FirmwareVersion: firmware,
		IsConnected:     true,
		IsEnabled:       enabled,
		CoilTemperature: temp,
		ShutterPosition: pos,
		DriverCurrent:   current,
	}, nil
}

// Reconcile forces the illumination state back to the last commanded
// value when an observed snapshot disagrees. Drift adopted silently
// would leave the panel lying about the bulb state.
func (d *Driver) Reconcile(snap lamp.Snapshot) error {
	if !snap.IsConnected {
		return nil
	}

	d.mu.Lock()
	connected := d.connected
	commanded := d.enabled
	d.mu.Unlock()

	if !connected || snap.IsEnabled == commanded {
		return nil
	}
	d.logger.WithFields(log.Fields{
		"commanded": commanded,
		"observed":  snap.IsEnabled,
	}).Warn("illumination state drifted, re-asserting")
	return d.SetEnabled(commanded)
}

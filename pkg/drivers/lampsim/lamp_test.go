package lampsim

import (
	"context"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
)

func discardLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSimulatorLifecycle(t *testing.T) {
	sim := New(discardLogger())

	snap, err := sim.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsConnected)

	require.NoError(t, sim.Connect("sim0"))
	assert.True(t, sim.Connected())
	assert.Error(t, sim.Connect("sim1"))

	require.NoError(t, sim.SetEnabled(true))
	snap, err = sim.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.IsEnabled)
	assert.Equal(t, hotTemperature, snap.CoilTemperature)
	assert.Equal(t, bulbCurrent, snap.DriverCurrent)

	require.NoError(t, sim.Disconnect())
	assert.False(t, sim.Connected())
	require.NoError(t, sim.Disconnect())

	snap, err = sim.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsConnected)
	assert.Equal(t, lamp.UnknownFirmware, snap.FirmwareVersion)
}

func TestSimulatorMoveAndCalibrate(t *testing.T) {
	sim := New(discardLogger())
	require.NoError(t, sim.Connect("sim0"))

	require.NoError(t, sim.MoveShutter(context.Background(), 250))
	snap, _ := sim.Snapshot()
	assert.Equal(t, 250.0, snap.ShutterPosition)

	assert.ErrorIs(t, sim.MoveShutter(context.Background(), 1000), lamp.ErrOutOfRange)

	require.NoError(t, sim.Calibrate(context.Background()))
	snap, _ = sim.Snapshot()
	assert.Equal(t, 0.0, snap.ShutterPosition, "calibration ends at the new home")
	assert.False(t, snap.IsEnabled, "calibration must switch the bulb off")
}

func TestSimulatorDriftRepair(t *testing.T) {
	sim := New(discardLogger())
	require.NoError(t, sim.Connect("sim0"))
	require.NoError(t, sim.SetEnabled(true))

	sim.TripEnable()
	snap, err := sim.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsEnabled, "the trip must be observable")

	require.NoError(t, sim.Reconcile(snap))
	snap, err = sim.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.IsEnabled, "reconcile must restore the commanded state")
}

package lamp

import (
	"encoding/json"
	"fmt"
	"math"
)

// UnknownFirmware is the firmware version reported while no device
// identity is known.
const UnknownFirmware = "N/A"

// Snapshot is an immutable aggregate of the lamp state at one poll.
// Unknown values are explicit sentinels (NaN, "N/A", false), never
// plausible-looking zeroes.
type Snapshot struct {
	FirmwareVersion string
	IsConnected     bool
	IsEnabled       bool
	CoilTemperature float64 // degrees Celsius
	ShutterPosition float64 // encoder counts relative to home
	DriverCurrent   float64 // milliamps
}

// Unknown returns the snapshot of a lamp nothing is known about.
func Unknown() Snapshot {
	return Snapshot{
		FirmwareVersion: UnknownFirmware,
		CoilTemperature: math.NaN(),
		ShutterPosition: math.NaN(),
		DriverCurrent:   math.NaN(),
	}
}

// MarshalJSON emits null for unknown telemetry values; encoding/json has
// no representation for NaN.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FirmwareVersion string   `json:"firmware_version"`
		IsConnected     bool     `json:"is_connected"`
		IsEnabled       bool     `json:"is_enabled"`
		CoilTemperature *float64 `json:"coil_temperature"`
		ShutterPosition *float64 `json:"shutter_position"`
		DriverCurrent   *float64 `json:"driver_current"`
	}{
		FirmwareVersion: s.FirmwareVersion,
		IsConnected:     s.IsConnected,
		IsEnabled:       s.IsEnabled,
		CoilTemperature: jsonFloat(s.CoilTemperature),
		ShutterPosition: jsonFloat(s.ShutterPosition),
		DriverCurrent:   jsonFloat(s.DriverCurrent),
	})
}

func jsonFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func (s Snapshot) String() string {
	if !s.IsConnected {
		return "lamp disconnected"
	}
	return fmt.Sprintf("fw=%q enabled=%t temp=%.1f pos=%.1f current=%.1f",
		s.FirmwareVersion, s.IsEnabled, s.CoilTemperature, s.ShutterPosition, s.DriverCurrent)
}

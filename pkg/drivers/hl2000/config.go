package hl2000

import (
	"time"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/serialport"
)

// Config holds the tunables of one lamp. It is persisted by Store and
// edited through the setup form.
type Config struct {
	Serial serialport.Config `json:"serial"`

	// SettleDelay is the pause after loading a target and after starting
	// a move; the controller drops commands arriving mid-motion setup.
	SettleDelay time.Duration `json:"settle_delay"`

	// ClosedPosition is the encoder count of the fully closed shutter,
	// approached during calibration before home is declared.
	ClosedPosition int `json:"closed_position"`

	// MaxPosition bounds accepted shutter targets to [-Max, +Max].
	MaxPosition int `json:"max_position"`

	// MaxVelocity, when positive, is applied to the controller right
	// after connecting.
	MaxVelocity int `json:"max_velocity"`

	// CalibrateOnConnect homes the shutter as part of Connect.
	CalibrateOnConnect bool `json:"calibrate_on_connect"`
}

func DefaultConfig() Config {
	return Config{
		Serial:         serialport.DefaultConfig(),
		SettleDelay:    100 * time.Millisecond,
		ClosedPosition: -400,
		MaxPosition:    400,
		MaxVelocity:    1000,
	}
}

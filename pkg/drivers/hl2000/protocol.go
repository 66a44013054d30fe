// Package hl2000 drives the Ocean Optics HL-2000-HP-232R halogen lamp
// and its motorized shutter over a serial link.
package hl2000

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
)

// ErrBadReply is returned when a device payload does not parse.
var ErrBadReply = errors.New("unparseable lamp reply")

// Command tokens of the shutter controller.
const (
	cmdLampOn   = "SO" // switch illumination on
	cmdLampOff  = "CO" // switch illumination off
	cmdDriveOn  = "EN" // enable the drive electronics
	cmdDriveOff = "DI" // disable the drive electronics
	cmdLoadPos  = "LA" // load an absolute target position (LA<pos>)
	cmdMove     = "M"  // start motion towards the loaded target
	cmdSetHome  = "HO" // declare the current position home (zero)
	cmdMaxSpeed = "SP" // cap the motion velocity (SP<limit>)

	cmdVersion     = "VER" // firmware version
	cmdFaults      = "GFS" // fault status word
	cmdTemperature = "TEM" // coil temperature in Celsius
	cmdPosition    = "POS" // current shutter position
	cmdMotion      = "GST" // motion controller status word
	cmdCurrent     = "GRC" // drive current in mA
	cmdVelocity    = "GV"  // current motion velocity
	cmdGetMaxSpeed = "GSP" // configured velocity cap
)

// ProbeCommand and ProbeReplyMarker identify the lamp during a port scan.
const (
	ProbeCommand     = cmdVersion
	ProbeReplyMarker = "Version"
)

func parseBits(payload string, width int) ([]bool, error) {
	word := strings.TrimSpace(payload)
	if len(word) != width {
		return nil, fmt.Errorf("%w: status word %q, want %d bits", ErrBadReply, payload, width)
	}
	bits := make([]bool, width)
	for i, r := range word {
		switch r {
		case '0':
		case '1':
			bits[i] = true
		default:
			return nil, fmt.Errorf("%w: status word %q, want %d bits", ErrBadReply, payload, width)
		}
	}
	return bits, nil
}

func parseFaultStatus(payload string) (lamp.FaultStatus, error) {
	bits, err := parseBits(payload, 4)
	if err != nil {
		return lamp.FaultStatus{}, err
	}
	return lamp.FaultStatus{
		OverTemperature: bits[0],
		OverCurrent:     bits[1],
		UnderVoltage:    bits[2],
		OverVoltage:     bits[3],
	}, nil
}

func parseMotionStatus(payload string) (lamp.MotionStatus, error) {
	bits, err := parseBits(payload, 7)
	if err != nil {
		return lamp.MotionStatus{}, err
	}
	status := lamp.MotionStatus{
		AmplifierOn:     bits[3],
		InPosition:      bits[4],
		RisingEdgeValid: bits[5],
		SwitchHigh:      bits[6],
	}
	if bits[0] {
		status.Mode = lamp.PositionMode
	}
	if bits[1] {
		status.Source = lamp.SourceAnalog
	}
	if bits[2] {
		status.Signal = lamp.SignalPWM
	}
	return status, nil
}

func parseFloatReply(payload string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrBadReply, payload)
	}
	return v, nil
}

func parseIntReply(payload string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrBadReply, payload)
	}
	return v, nil
}

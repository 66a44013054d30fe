package hl2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
)

func TestParseFaultStatus(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expected    lamp.FaultStatus
		expectError bool
	}{
		{name: "all clear", payload: "0000", expected: lamp.FaultStatus{}},
		{name: "over temperature", payload: "1000", expected: lamp.FaultStatus{OverTemperature: true}},
		{name: "over current", payload: "0100", expected: lamp.FaultStatus{OverCurrent: true}},
		{name: "under voltage", payload: "0010", expected: lamp.FaultStatus{UnderVoltage: true}},
		{name: "over voltage", payload: "0001", expected: lamp.FaultStatus{OverVoltage: true}},
		{
			name:    "all faults at once",
			payload: "1111",
			expected: lamp.FaultStatus{
				OverTemperature: true,
				OverCurrent:     true,
				UnderVoltage:    true,
				OverVoltage:     true,
			},
		},
		{name: "trailing terminator", payload: "0100\r\n", expected: lamp.FaultStatus{OverCurrent: true}},
		{name: "too short", payload: "000", expectError: true},
		{name: "too long", payload: "00000", expectError: true},
		{name: "not binary", payload: "00x0", expectError: true},
		{name: "empty", payload: "", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, err := parseFaultStatus(tc.payload)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrBadReply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestParseMotionStatus(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected lamp.MotionStatus
	}{
		{name: "idle controller", payload: "0000000", expected: lamp.MotionStatus{}},
		{name: "position mode", payload: "1000000", expected: lamp.MotionStatus{Mode: lamp.PositionMode}},
		{name: "analog speed source", payload: "0100000", expected: lamp.MotionStatus{Source: lamp.SourceAnalog}},
		{name: "pwm speed signal", payload: "0010000", expected: lamp.MotionStatus{Signal: lamp.SignalPWM}},
		{name: "amplifier enabled", payload: "0001000", expected: lamp.MotionStatus{AmplifierOn: true}},
		{name: "in position", payload: "0000100", expected: lamp.MotionStatus{InPosition: true}},
		{name: "rising edge valid", payload: "0000010", expected: lamp.MotionStatus{RisingEdgeValid: true}},
		{name: "switch high", payload: "0000001", expected: lamp.MotionStatus{SwitchHigh: true}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, err := parseMotionStatus(tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}

	for _, payload := range []string{"", "101", "10101010", "00000a0"} {
		_, err := parseMotionStatus(payload)
		assert.ErrorIs(t, err, ErrBadReply, "payload %q", payload)
	}
}

func TestParseFloatReply(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		expected    float64
		expectError bool
	}{
		{name: "current reading", payload: "125.5\r\n", expected: 125.5},
		{name: "padded", payload: "  24.9 ", expected: 24.9},
		{name: "negative position", payload: "-400.0", expected: -400},
		{name: "integer payload", payload: "0", expected: 0},
		{name: "junk", payload: "oops", expectError: true},
		{name: "empty", payload: "", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := parseFloatReply(tc.payload)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrBadReply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestParseIntReply(t *testing.T) {
	v, err := parseIntReply("1000\r\n")
	require.NoError(t, err)
	assert.Equal(t, 1000, v)

	v, err = parseIntReply("-250")
	require.NoError(t, err)
	assert.Equal(t, -250, v)

	_, err = parseIntReply("12.5")
	assert.ErrorIs(t, err, ErrBadReply)
}

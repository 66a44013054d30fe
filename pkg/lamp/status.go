package lamp

import "strings"

// FaultStatus is the decoded fault word of the lamp controller. The
// voltage faults refer to the DC supply rail (nominal 15-28 VDC).
type FaultStatus struct {
	OverTemperature bool `json:"over_temperature"`
	OverCurrent     bool `json:"over_current"`
	UnderVoltage    bool `json:"under_voltage"`
	OverVoltage     bool `json:"over_voltage"`
}

// Any reports whether at least one fault is active.
func (f FaultStatus) Any() bool {
	return f.OverTemperature || f.OverCurrent || f.UnderVoltage || f.OverVoltage
}

func (f FaultStatus) String() string {
	if !f.Any() {
		return "none"
	}
	var faults []string
	if f.OverTemperature {
		faults = append(faults, "over-temperature")
	}
	if f.OverCurrent {
		faults = append(faults, "over-current")
	}
	if f.UnderVoltage {
		faults = append(faults, "under-voltage")
	}
	if f.OverVoltage {
		faults = append(faults, "over-voltage")
	}
	return strings.Join(faults, ",")
}

// MotionMode selects how the shutter controller interprets motion
// commands.
type MotionMode int

const (
	VelocityMode MotionMode = iota
	PositionMode
)

func (m MotionMode) String() string {
	if m == PositionMode {
		return "position"
	}
	return "velocity"
}

// SpeedSource is the input the controller takes its speed command from.
type SpeedSource int

const (
	SourceRS232 SpeedSource = iota
	SourceAnalog
)

func (s SpeedSource) String() string {
	if s == SourceAnalog {
		return "analog"
	}
	return "rs232"
}

// SpeedSignal is the electrical form of an analog speed command.
type SpeedSignal int

const (
	SignalVoltage SpeedSignal = iota
	SignalPWM
)

func (s SpeedSignal) String() string {
	if s == SignalPWM {
		return "pwm"
	}
	return "voltage"
}

// MotionStatus is the decoded motion controller status word.
type MotionStatus struct {
	Mode            MotionMode  `json:"mode"`
	Source          SpeedSource `json:"source"`
	Signal          SpeedSignal `json:"signal"`
	AmplifierOn     bool        `json:"amplifier_on"`
	InPosition      bool        `json:"in_position"`
	RisingEdgeValid bool        `json:"rising_edge_valid"`
	SwitchHigh      bool        `json:"switch_high"`
}

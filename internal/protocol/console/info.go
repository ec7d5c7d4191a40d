package console

import (
	"fmt"
	"io"

	"github.com/cjeanneret/TurnGo/internal/logic/state"
)

// Summary is the configuration and live data printed by <V>.
type Summary struct {
	Version         string  `json:"version"`
	Address         uint8   `json:"address"`
	FullTurnSteps   uint32  `json:"full_turn_steps"`
	ManualSteps     bool    `json:"manual_steps"` // full-turn count set in config rather than calibrated
	GearingFactor   uint32  `json:"gearing_factor"`
	AutoPhase       bool    `json:"auto_phase"`
	PhaseAngle      int     `json:"phase_angle"`
	PhaseStart      uint32  `json:"phase_start"`
	PhaseStop       uint32  `json:"phase_stop"`
	Traverser       bool    `json:"traverser"`
	Rotation        string  `json:"rotation"` // "shortest", "forward" or "reverse"
	InvertDirection bool    `json:"invert_direction"`
	InvertStep      bool    `json:"invert_step"`
	InvertEnable    bool    `json:"invert_enable"`
	MaxSpeed        float64 `json:"max_speed"`
	Acceleration    float64 `json:"acceleration"`
	HomeSensor      bool    `json:"home_sensor"`
	LimitSensor     bool    `json:"limit_sensor"`
	DebounceMs      int     `json:"debounce_ms"`
}

// WriteSummary prints the version and configuration block.
func WriteSummary(w io.Writer, s Summary, st *state.Machine) {
	fmt.Fprintln(w, "License GPLv3 fsf.org")
	fmt.Fprintf(w, "TurnGo version %s\n", s.Version)
	fmt.Fprintf(w, "Available at bus address 0x%X\n", s.Address)

	switch {
	case s.FullTurnSteps == 0:
		fmt.Fprintln(w, "Turntable has not been calibrated yet")
	case s.ManualSteps:
		fmt.Fprintf(w, "Manual override has been set for %d steps per revolution\n", s.FullTurnSteps)
	default:
		fmt.Fprintf(w, "Turntable has been calibrated for %d steps per revolution\n", s.FullTurnSteps)
	}
	fmt.Fprintf(w, "Gearing factor set to %d\n", s.GearingFactor)

	if s.AutoPhase {
		fmt.Fprintf(w, "Automatic phase switching enabled at %d degrees\n", s.PhaseAngle)
		fmt.Fprintf(w, "Phase will switch at %d steps from home, and revert at %d steps from home\n", s.PhaseStart, s.PhaseStop)
	} else {
		fmt.Fprintln(w, "Manual phase switching enabled")
	}

	if s.Traverser {
		fmt.Fprintln(w, "Turntable in TRAVERSER mode")
	} else {
		fmt.Fprintln(w, "Turntable in TURNTABLE mode")
	}

	switch s.Rotation {
	case "forward":
		fmt.Fprintln(w, "Rotating FORWARD only")
	case "reverse":
		fmt.Fprintln(w, "Rotating REVERSE only")
	default:
		fmt.Fprintln(w, "Rotating SHORTEST DIRECTION")
	}

	if s.InvertDirection {
		fmt.Fprintln(w, "INVERT_DIRECTION enabled")
	}
	if s.InvertStep {
		fmt.Fprintln(w, "INVERT_STEP enabled")
	}
	if s.InvertEnable {
		fmt.Fprintln(w, "INVERT_ENABLE enabled")
	}

	fmt.Fprintf(w, "STEPPER_MAX_SPEED %g\n", s.MaxSpeed)
	fmt.Fprintf(w, "STEPPER_ACCELERATION %g\n", s.Acceleration)

	if st.Debug() {
		fmt.Fprintf(w, "DEBUG: maxSpeed()|acceleration(): %g|%g\n", s.MaxSpeed, s.Acceleration)
	}

	if st.SensorTesting() {
		fmt.Fprintln(w, "SENSOR TESTING ENABLED, turntable operations disabled")
		fmt.Fprintf(w, "Home/limit switch current state: %d/%d\n", b2i(s.HomeSensor), b2i(s.LimitSensor))
		fmt.Fprintf(w, "Debounce delay: %d\n", s.DebounceMs)
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

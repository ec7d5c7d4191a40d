package dispatch

import (
	"fmt"
	"io"

	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
)

// Motion is the positioning, homing and calibration collaborator.
type Motion interface {
	MoveToPosition(steps uint32, phase activity.Code)
	InitiateHoming()
	InitiateCalibration()
	FullTurnSteps() uint32
}

// Accessories drives the LED and the accessory output.
type Accessories interface {
	SetLEDActivity(code activity.Code)
	SetAccessory(on bool)
}

// Engine is the single decision point for requests from both transports.
// It never blocks and never suspends: every call is a short run of
// comparisons followed by at most one collaborator call.
type Engine struct {
	state  *state.Machine
	motion Motion
	acc    Accessories
	out    io.Writer
}

// NewEngine wires the engine. out receives DEBUG lines while debug output
// is enabled; it may be nil.
func NewEngine(st *state.Machine, m Motion, acc Accessories, out io.Writer) *Engine {
	return &Engine{state: st, motion: m, acc: acc, out: out}
}

// Dispatch routes steps (already geared) and an activity code.
func (e *Engine) Dispatch(steps uint32, code activity.Code) activity.Outcome {
	running := e.state.StepperRunning()
	calibrating := e.state.Calibrating()
	sequenceOK := !running && (!calibrating || e.state.Homed() == state.HomingInProgress)

	switch {
	case steps <= e.motion.FullTurnSteps() && code.IsMove() && !running && !calibrating:
		if e.debugging() {
			fmt.Fprintf(e.out, "DEBUG: Requested valid step move to: %d with phase switch: %d\n", steps, code)
		}
		e.motion.MoveToPosition(steps, code)
		return activity.Moved

	case code == activity.Home && sequenceOK:
		if e.debugging() {
			fmt.Fprint(e.out, "DEBUG: Requested to home\n")
		}
		e.motion.InitiateHoming()
		return activity.Homing

	case code == activity.Calibrate && sequenceOK:
		if e.debugging() {
			fmt.Fprint(e.out, "DEBUG: Calibration requested\n")
		}
		e.motion.InitiateCalibration()
		return activity.Calibrating

	case code.IsLED():
		if e.debugging() {
			fmt.Fprintf(e.out, "DEBUG: Set LED state to: %d\n", code)
		}
		e.acc.SetLEDActivity(code)
		return activity.LEDSet

	case code == activity.AccessoryOn:
		if e.debugging() {
			fmt.Fprint(e.out, "DEBUG: Turn accessory pin on\n")
		}
		e.acc.SetAccessory(true)
		return activity.AccessorySetOn

	case code == activity.AccessoryOff:
		if e.debugging() {
			fmt.Fprint(e.out, "DEBUG: Turn accessory pin off\n")
		}
		e.acc.SetAccessory(false)
		return activity.AccessorySetOff
	}

	if e.debugging() {
		fmt.Fprintf(e.out, "DEBUG: Invalid step count or activity provided, or turntable still moving: %d steps, activity: %d\n", steps, code)
	}
	return activity.Rejected
}

// debugging gates each trace where it is written so a disabled trace
// costs no allocation.
func (e *Engine) debugging() bool {
	return e.out != nil && e.state.Debug()
}

package console

import (
	"fmt"
	"io"

	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
)

// MaxTestSteps is the largest step count accepted by <M>.
const MaxTestSteps = 32767

// Input is a non-blocking byte source.
type Input interface {
	Available() int
	ReadByte() (byte, error)
}

// Sequencer starts the homing and calibration sequences and owns the
// persisted full-turn step count.
type Sequencer interface {
	InitiateHoming()
	InitiateCalibration()
	// EraseCalibration clears the persisted count. reset reports whether
	// the live count was zeroed too (it is kept when set manually).
	EraseCalibration() (reset bool, err error)
}

// Loopback injects a synthetic bus request.
type Loopback interface {
	Loopback(steps uint16, code activity.Code) activity.Outcome
}

// Rebooter forces a watchdog reset.
type Rebooter interface {
	Reboot() error
}

// BusLink lets sensor-testing mode take the bus transport offline.
type BusLink interface {
	Disconnect() error
}

// Deps groups the console collaborators. Link may be nil.
type Deps struct {
	State    *state.Machine
	Sequence Sequencer
	Bus      Loopback
	Reboot   Rebooter
	Link     BusLink
	Info     func() Summary
}

// Console decodes the human-facing text protocol.
type Console struct {
	in    Input
	out   io.Writer
	deps  Deps
	frame Frame
}

// New creates a console reading from in and answering on out.
func New(in Input, out io.Writer, deps Deps) *Console {
	return &Console{in: in, out: out, deps: deps}
}

// Poll consumes available input until one frame completes, then handles
// that frame. It never blocks and handles at most one command per call.
func (c *Console) Poll() {
	for !c.frame.Ready() && c.in.Available() > 0 {
		b, err := c.in.ReadByte()
		if err != nil {
			return
		}
		c.frame.Push(b)
	}
	if !c.frame.Ready() {
		return
	}
	text := c.frame.Take()
	cmd, ok := Parse(text)
	if !ok {
		debug.Verbose("console: ignoring frame %q", text)
		return
	}
	c.Handle(cmd)
}

// Handle runs one parsed command.
func (c *Console) Handle(cmd Command) {
	debug.Live("console: command %c", cmd.Kind)
	switch cmd.Kind {
	case Calibrate:
		c.calibrate()
	case ToggleDebug:
		c.toggleDebug()
	case EraseCalibration:
		c.erase()
	case Home:
		c.home()
	case Move:
		c.move(cmd.Steps, cmd.Activity)
	case SoftReboot:
		c.reboot()
	case ToggleSensorTestMode:
		c.toggleSensorTesting()
	case ShowInfo:
		c.showInfo()
	}
}

func (c *Console) busy(cmd Kind) bool {
	if !c.deps.State.StepperRunning() {
		return false
	}
	c.println(fmt.Sprintf("Stepper is running, ignoring <%c>", cmd))
	return true
}

func (c *Console) calibrate() {
	if c.busy(Calibrate) {
		return
	}
	if c.deps.State.CanStartSequence() {
		c.deps.Sequence.InitiateCalibration()
	}
}

func (c *Console) home() {
	if c.busy(Home) {
		return
	}
	if c.deps.State.CanStartSequence() {
		c.deps.Sequence.InitiateHoming()
	}
}

func (c *Console) toggleDebug() {
	if c.deps.State.ToggleDebug() {
		c.println("Enabling debug output")
	} else {
		c.println("Disabling debug output")
	}
}

func (c *Console) erase() {
	if c.busy(EraseCalibration) {
		return
	}
	c.println("Erasing full step count from storage")
	reset, err := c.deps.Sequence.EraseCalibration()
	if err != nil {
		debug.Error(fmt.Errorf("erase calibration: %w", err))
		c.println("Erase failed: " + err.Error())
		return
	}
	if reset {
		c.println("Resetting full step count to 0")
	}
}

func (c *Console) move(steps int64, code uint8) {
	if c.busy(Move) {
		return
	}
	switch {
	case steps < 0:
		c.println("Cannot provide a negative step count")
	case steps > MaxTestSteps:
		c.println("Step count too large, refer to the documentation for large step counts > 32767")
	default:
		c.println(fmt.Sprintf("Test move %d steps, activity ID %d", steps, code))
		c.deps.Bus.Loopback(uint16(steps), activity.Code(code))
	}
}

func (c *Console) reboot() {
	c.println("Rebooting")
	if err := c.deps.Reboot.Reboot(); err != nil {
		debug.Error(fmt.Errorf("reboot: %w", err))
		c.println("Reboot failed: " + err.Error())
	}
}

func (c *Console) toggleSensorTesting() {
	if c.busy(ToggleSensorTestMode) {
		return
	}
	if c.deps.State.SensorTesting() {
		c.println("Disabling sensor testing mode, reboot required")
		c.deps.State.SetSensorTesting(false)
		return
	}
	c.println("Enabling sensor testing mode, taking turntable offline")
	if c.deps.Link != nil {
		if err := c.deps.Link.Disconnect(); err != nil {
			debug.Error(fmt.Errorf("disconnect bus: %w", err))
		}
	}
	c.deps.State.SetSensorTesting(true)
}

func (c *Console) showInfo() {
	if c.deps.Info == nil {
		return
	}
	WriteSummary(c.out, c.deps.Info(), c.deps.State)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

package motion

import (
	"errors"
	"time"

	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/hw/sensor"
	"github.com/cjeanneret/TurnGo/internal/hw/stepper"
	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/geometry"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
	"github.com/cjeanneret/TurnGo/internal/storage"
)

// Defaults for the sequence limits, in steps.
const (
	DefaultSanitySteps     = 10000
	DefaultHomeSensitivity = 300
)

// Config selects the platform behaviour.
type Config struct {
	Traverser           bool
	Rotation            geometry.Rotation
	AutoPhase           bool
	PhaseAngle          int    // degrees, auto phase switching only
	ManualFullTurnSteps uint32 // 0 = use the calibrated count
	SanitySteps         int64  // a sequence gives up after this many steps
	HomeSensitivity     int64  // steps to clear the home sensor before it counts again
	DisableWhenIdle     bool   // release the driver outputs between moves
}

// PhaseSwitch drives the track polarity relays.
type PhaseSwitch interface {
	SetPhase(inverted bool)
}

// Hardware groups the devices the controller drives. Limit is only used
// by a traverser and may be nil.
type Hardware struct {
	Motor *stepper.Stepper
	Home  sensor.Sensor
	Limit sensor.Sensor
	Phase PhaseSwitch
}

type sequence int

const (
	seqIdle sequence = iota
	seqHoming
	seqCounting
)

func (s sequence) String() string {
	switch s {
	case seqHoming:
		return "homing"
	case seqCounting:
		return "counting"
	}
	return "idle"
}

// Controller positions the platform and runs the homing and calibration
// sequences. It owns the calibrating and homed flags of the guard state.
//
// Every method runs on the loop goroutine except IsRunning.
type Controller struct {
	st    *state.Machine
	hw    Hardware
	store storage.Store
	cfg   Config

	fullTurn   uint32
	calc       *geometry.StepsCalculator
	window     geometry.PhaseWindow
	lastTarget int64
	seq        sequence
	wasRunning bool
}

// NewController wires the controller and loads the full-turn step count,
// from the manual override when set, from storage otherwise.
func NewController(st *state.Machine, hw Hardware, store storage.Store, cfg Config) *Controller {
	if cfg.SanitySteps <= 0 {
		cfg.SanitySteps = DefaultSanitySteps
	}
	if cfg.HomeSensitivity <= 0 {
		cfg.HomeSensitivity = DefaultHomeSensitivity
	}
	c := &Controller{st: st, hw: hw, store: store, cfg: cfg, lastTarget: -1}

	switch {
	case cfg.ManualFullTurnSteps > 0:
		debug.Info("Manual override has been set for %d steps", cfg.ManualFullTurnSteps)
		c.setFullTurn(cfg.ManualFullTurnSteps)
	default:
		steps, err := store.Load()
		if err != nil && !errors.Is(err, storage.ErrNoCalibration) {
			debug.Error(err)
		}
		c.setFullTurn(steps)
	}
	return c
}

func (c *Controller) setFullTurn(steps uint32) {
	c.fullTurn = steps
	c.calc = geometry.NewStepsCalculator(steps)
	c.window = c.calc.PhaseWindow(c.cfg.PhaseAngle)
}

// Start runs the power-on sequence: calibrate when no step count is
// known, home otherwise.
func (c *Controller) Start() {
	if c.fullTurn == 0 {
		debug.Info("Turntable not calibrated, calibrating now")
		c.InitiateCalibration()
		return
	}
	c.InitiateHoming()
}

// IsRunning reports whether the motor is moving. Safe from any goroutine.
func (c *Controller) IsRunning() bool { return c.hw.Motor.IsRunning() }

// FullTurnSteps returns the steps per revolution, or the traverser travel.
func (c *Controller) FullTurnSteps() uint32 { return c.fullTurn }

// PhaseWindow returns the auto phase switching window in steps.
func (c *Controller) PhaseWindow() geometry.PhaseWindow { return c.window }

// Sequence names the running sequence, "idle" when none.
func (c *Controller) Sequence() string { return c.seq.String() }

// Position returns the current motor position.
func (c *Controller) Position() int64 { return c.hw.Motor.CurrentPosition() }

// MoveToPosition moves to an absolute step position. A request for the
// position of the previous move is ignored.
func (c *Controller) MoveToPosition(steps uint32, phase activity.Code) {
	target := int64(steps)
	if target == c.lastTarget {
		debug.Verbose("Motion: already at position %d", target)
		return
	}
	c.lastTarget = target
	c.setPhase(target, phase)
	c.enable()

	if c.cfg.Traverser {
		c.hw.Motor.MoveTo(target)
		return
	}
	c.hw.Motor.Move(c.calc.RelativeMove(c.hw.Motor.CurrentPosition(), target, c.cfg.Rotation))
}

func (c *Controller) setPhase(target int64, phase activity.Code) {
	if c.hw.Phase == nil {
		return
	}
	if c.cfg.AutoPhase {
		c.hw.Phase.SetPhase(c.window.Contains(target))
		return
	}
	c.hw.Phase.SetPhase(phase == activity.MovePhaseB)
}

// InitiateHoming forgets the home position and seeks the home sensor.
func (c *Controller) InitiateHoming() {
	debug.Live("Motion: homing")
	c.st.SetHomed(state.NotHomed)
	c.seq = seqHoming
	c.enable()
	if c.homeActive() {
		return
	}
	if c.cfg.Traverser {
		c.hw.Motor.Move(-c.cfg.SanitySteps)
		return
	}
	c.hw.Motor.Move(c.cfg.SanitySteps)
}

// InitiateCalibration homes, then counts the steps of one revolution
// (or of the full traverser travel) and stores the result.
func (c *Controller) InitiateCalibration() {
	debug.Info("CALIBRATION: Starting calibration")
	c.st.SetCalibrating(true)
	c.InitiateHoming()
}

// EraseCalibration clears the stored step count. The live count is reset
// unless it comes from the manual override.
func (c *Controller) EraseCalibration() (bool, error) {
	err := c.store.Erase()
	if c.cfg.ManualFullTurnSteps > 0 {
		return false, err
	}
	c.setFullTurn(0)
	return true, err
}

// Process advances the motor and the running sequence. Call it once per
// loop iteration.
func (c *Controller) Process(now time.Time) {
	if _, err := c.hw.Motor.Run(now); err != nil {
		debug.Error(err)
	}

	switch c.seq {
	case seqHoming:
		c.processHoming()
	case seqCounting:
		c.processCounting()
	}

	running := c.hw.Motor.IsRunning()
	if c.wasRunning && !running && c.seq == seqIdle {
		c.finishMove()
	}
	c.wasRunning = running
}

func (c *Controller) processHoming() {
	if c.homeActive() {
		c.hw.Motor.SetCurrentPosition(0)
		c.lastTarget = 0
		c.st.SetHomed(state.IsHomed)
		debug.Info("Turntable homed successfully")
		if c.st.Calibrating() {
			c.startCounting()
			return
		}
		c.seq = seqIdle
		return
	}
	if c.hw.Motor.IsRunning() {
		return
	}
	// Out of steps without reaching the sensor.
	c.hw.Motor.SetCurrentPosition(0)
	c.lastTarget = 0
	c.st.SetHomed(state.HomingInProgress)
	c.seq = seqIdle
	debug.Info("ERROR: Turntable failed to home, setting random home position")
}

func (c *Controller) startCounting() {
	debug.Live("CALIBRATION: Phase 2, counting full turn steps")
	c.seq = seqCounting
	c.hw.Motor.Move(c.cfg.SanitySteps)
}

func (c *Controller) processCounting() {
	pos := c.hw.Motor.CurrentPosition()
	var done bool
	if c.cfg.Traverser {
		done = c.hw.Limit != nil && c.hw.Limit.Active()
	} else {
		done = pos > c.cfg.HomeSensitivity && c.homeActive()
	}

	if done {
		c.hw.Motor.Stop()
		steps := uint32(pos)
		if !c.cfg.Traverser {
			c.hw.Motor.SetCurrentPosition(0)
		}
		c.lastTarget = c.hw.Motor.CurrentPosition()
		c.seq = seqIdle
		c.st.SetCalibrating(false)

		debug.Info("CALIBRATION: Completed, storing full turn step count: %d", steps)
		if err := c.store.Save(steps); err != nil {
			debug.Error(err)
		}
		if c.cfg.ManualFullTurnSteps == 0 {
			c.setFullTurn(steps)
		}
		c.idle()
		return
	}
	if c.hw.Motor.IsRunning() {
		return
	}
	// Calibration stays set so only a new home or calibrate request is
	// accepted.
	c.seq = seqIdle
	c.st.SetHomed(state.HomingInProgress)
	debug.Info("CALIBRATION: Failed, could not determine full turn step count")
}

func (c *Controller) finishMove() {
	if !c.cfg.Traverser && c.fullTurn > 0 {
		pos := c.hw.Motor.CurrentPosition()
		if norm := c.calc.Normalize(pos); norm != pos {
			debug.Verbose("Motion: normalizing position %d to %d", pos, norm)
			c.hw.Motor.SetCurrentPosition(norm)
		}
	}
	debug.Live("Motion: arrived at %d", c.hw.Motor.CurrentPosition())
	c.idle()
}

func (c *Controller) homeActive() bool {
	return c.hw.Home != nil && c.hw.Home.Active()
}

func (c *Controller) enable() {
	if err := c.hw.Motor.Enable(); err != nil {
		debug.Error(err)
	}
}

func (c *Controller) idle() {
	if !c.cfg.DisableWhenIdle {
		return
	}
	if err := c.hw.Motor.Disable(); err != nil {
		debug.Error(err)
	}
}

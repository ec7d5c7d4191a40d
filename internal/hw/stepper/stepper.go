package stepper

import (
	"sync/atomic"
	"time"

	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
)

// DefaultMaxSpeed is used when Config.MaxSpeed is not set (steps/s).
const DefaultMaxSpeed = 200.0

// Config holds the hardware configuration for a step/dir stepper driver.
type Config struct {
	StepPin         int
	DirPin          int
	EnablePin       int     // driver ENABLE pin (BCM). 0 = not used. Active LOW unless InvertEnable.
	MaxSpeed        float64 // steps per second
	Acceleration    float64 // steps per second², reported only
	InvertDirection bool
	InvertStep      bool
	InvertEnable    bool
}

// Stepper is a non-blocking stepper polled from the main loop.
// Run emits at most one pulse per call, so the caller never stalls
// while the motor travels.
//
// Position and target belong to the loop goroutine. IsRunning is safe to
// call from anywhere, which the bus read callback relies on.
type Stepper struct {
	gpio     gpio.Driver
	cfg      Config
	interval time.Duration

	position int64
	target   int64
	lastStep time.Time
	dir      int8 // last direction written, 0 = none yet
	running  atomic.Bool
}

// NewStepper creates a new stepper motor controller with outputs disabled.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = DefaultMaxSpeed
	}

	s := &Stepper{
		gpio:     g,
		cfg:      cfg,
		interval: time.Duration(float64(time.Second) / cfg.MaxSpeed),
	}

	_ = g.WritePin(cfg.StepPin, s.stepLevel(false))
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = s.Disable()
	}

	return s
}

// Config returns the configuration the stepper was built with.
func (s *Stepper) Config() Config { return s.cfg }

// MoveTo sets an absolute target position.
func (s *Stepper) MoveTo(target int64) {
	s.target = target
	s.running.Store(s.target != s.position)
	debug.Move(s.target-s.position, s.target)
}

// Move sets a target relative to the current position.
func (s *Stepper) Move(steps int64) {
	s.MoveTo(s.position + steps)
}

// Stop abandons the current target where the motor stands.
func (s *Stepper) Stop() {
	s.target = s.position
	s.running.Store(false)
}

// IsRunning reports whether the motor still has steps to go.
func (s *Stepper) IsRunning() bool { return s.running.Load() }

func (s *Stepper) CurrentPosition() int64 { return s.position }
func (s *Stepper) TargetPosition() int64  { return s.target }
func (s *Stepper) DistanceToGo() int64    { return s.target - s.position }

// SetCurrentPosition redefines the current position; the motor stops.
func (s *Stepper) SetCurrentPosition(pos int64) {
	s.position = pos
	s.target = pos
	s.running.Store(false)
}

// Run emits one step if the motor is behind its target and a step is due.
// It reports whether the motor is still running afterwards.
func (s *Stepper) Run(now time.Time) (bool, error) {
	togo := s.target - s.position
	if togo == 0 {
		s.running.Store(false)
		return false, nil
	}
	if !s.lastStep.IsZero() && now.Sub(s.lastStep) < s.interval {
		return true, nil
	}

	var dir int8 = 1
	if togo < 0 {
		dir = -1
	}
	if dir != s.dir {
		if err := s.gpio.WritePin(s.cfg.DirPin, s.dirLevel(dir)); err != nil {
			return true, err
		}
		s.dir = dir
	}
	if err := s.stepPulse(); err != nil {
		return true, err
	}
	s.position += int64(dir)
	s.lastStep = now

	running := s.position != s.target
	s.running.Store(running)
	return running, nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, s.stepLevel(true)); err != nil {
		return err
	}
	return s.gpio.WritePin(s.cfg.StepPin, s.stepLevel(false))
}

func (s *Stepper) dirLevel(dir int8) gpio.Level {
	forward := dir > 0
	return gpio.Level(forward != s.cfg.InvertDirection)
}

func (s *Stepper) stepLevel(active bool) gpio.Level {
	return gpio.Level(active != s.cfg.InvertStep)
}

// Enable turns on the motor driver outputs. Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	// ENABLE is active LOW unless inverted.
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Level(s.cfg.InvertEnable))
}

// Disable turns off the motor driver outputs. Motors freewheel, no holding torque.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Level(!s.cfg.InvertEnable))
}

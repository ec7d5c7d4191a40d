package sensor

import (
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
)

// Sensor reports whether a position switch is triggered.
type Sensor interface {
	Active() bool
}

// Switch is a GPIO-connected switch or hall sensor. Active-low switches
// are wired to ground and use the internal pull-up.
type Switch struct {
	gpio      gpio.Driver
	pin       int
	activeLow bool
}

// NewSwitch configures pin as an input.
func NewSwitch(g gpio.Driver, pin int, activeLow bool) *Switch {
	mode := gpio.Input
	if activeLow {
		mode = gpio.InputPullUp
	}
	_ = g.SetupPin(pin, mode)
	return &Switch{gpio: g, pin: pin, activeLow: activeLow}
}

// Active reads the pin. Read errors count as inactive.
func (s *Switch) Active() bool {
	level, err := s.gpio.ReadPin(s.pin)
	if err != nil {
		return false
	}
	return bool(level) != s.activeLow
}

// Pin returns the BCM pin number.
func (s *Switch) Pin() int { return s.pin }

// PositionReporter exposes the motor position.
type PositionReporter interface {
	CurrentPosition() int64
}

// Simulated triggers when the motor sits within a window around a fixed
// position on a circle. It stands in for the home sensor in mock mode.
type Simulated struct {
	pos    PositionReporter
	at     int64
	width  int64
	modulo int64
}

// NewSimulated fires when position mod modulo is in [at, at+width).
// A modulo of 0 disables wrapping (traverser).
func NewSimulated(pos PositionReporter, at, width, modulo int64) *Simulated {
	if width < 1 {
		width = 1
	}
	return &Simulated{pos: pos, at: at, width: width, modulo: modulo}
}

func (s *Simulated) Active() bool {
	p := s.pos.CurrentPosition()
	if s.modulo > 0 {
		p %= s.modulo
		if p < 0 {
			p += s.modulo
		}
	}
	return p >= s.at && p < s.at+s.width
}

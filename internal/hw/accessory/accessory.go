package accessory

import (
	"time"

	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
	"github.com/cjeanneret/TurnGo/internal/logic/activity"
)

// Blink periods for the LED activities. The period is a full on/off cycle.
const (
	SlowBlinkPeriod = time.Second
	FastBlinkPeriod = 250 * time.Millisecond
)

// Config holds the output pins. A pin of 0 is not used.
type Config struct {
	LEDPin       int
	AccessoryPin int
	RelayPins    [2]int // phase-switch relays, always driven together
	ActiveLow    bool   // outputs sink current (relay boards)
}

// Outputs drives the status LED, the accessory output and the phase
// relays. Everything runs on the loop goroutine: SetLEDActivity only
// records the mode and Process toggles the pin when a blink is due.
type Outputs struct {
	gpio gpio.Driver
	cfg  Config

	led        activity.Code
	ledLevel   bool
	lastToggle time.Time
	accessory  bool
	phase      bool
}

// New configures the pins as outputs, all inactive.
func New(g gpio.Driver, cfg Config) *Outputs {
	o := &Outputs{gpio: g, cfg: cfg, led: activity.LEDOff}
	for _, pin := range o.pins() {
		_ = g.SetupPin(pin, gpio.Output)
		_ = g.WritePin(pin, o.level(false))
	}
	return o
}

func (o *Outputs) pins() []int {
	var pins []int
	for _, p := range []int{o.cfg.LEDPin, o.cfg.AccessoryPin, o.cfg.RelayPins[0], o.cfg.RelayPins[1]} {
		if p > 0 {
			pins = append(pins, p)
		}
	}
	return pins
}

func (o *Outputs) level(on bool) gpio.Level {
	return gpio.Level(on != o.cfg.ActiveLow)
}

func (o *Outputs) write(pin int, on bool) {
	if pin <= 0 {
		return
	}
	if err := o.gpio.WritePin(pin, o.level(on)); err != nil {
		debug.Error(err)
	}
}

// SetLEDActivity selects the LED mode. Codes outside 4..7 are ignored.
func (o *Outputs) SetLEDActivity(code activity.Code) {
	if !code.IsLED() {
		return
	}
	debug.Verbose("LED: %s", code)
	o.led = code
	o.lastToggle = time.Time{}
	switch code {
	case activity.LEDOn:
		o.setLED(true)
	case activity.LEDOff:
		o.setLED(false)
	}
}

// LEDActivity returns the current LED mode.
func (o *Outputs) LEDActivity() activity.Code { return o.led }

// LEDLit reports whether the LED is currently on.
func (o *Outputs) LEDLit() bool { return o.ledLevel }

func (o *Outputs) setLED(on bool) {
	o.ledLevel = on
	o.write(o.cfg.LEDPin, on)
}

// SetAccessory switches the accessory output.
func (o *Outputs) SetAccessory(on bool) {
	debug.Verbose("Accessory: on=%v", on)
	o.accessory = on
	o.write(o.cfg.AccessoryPin, on)
}

// Accessory reports the accessory output state.
func (o *Outputs) Accessory() bool { return o.accessory }

// SetPhase drives both phase-switch relays to the same level.
func (o *Outputs) SetPhase(inverted bool) {
	if inverted == o.phase {
		return
	}
	debug.Verbose("Phase relays: inverted=%v", inverted)
	o.phase = inverted
	o.write(o.cfg.RelayPins[0], inverted)
	o.write(o.cfg.RelayPins[1], inverted)
}

// Phase reports whether the relays are energized.
func (o *Outputs) Phase() bool { return o.phase }

// Process toggles a blinking LED when half a period has elapsed.
func (o *Outputs) Process(now time.Time) {
	var period time.Duration
	switch o.led {
	case activity.LEDSlowBlink:
		period = SlowBlinkPeriod
	case activity.LEDFastBlink:
		period = FastBlinkPeriod
	default:
		return
	}
	if !o.lastToggle.IsZero() && now.Sub(o.lastToggle) < period/2 {
		return
	}
	o.lastToggle = now
	o.setLED(!o.ledLevel)
}

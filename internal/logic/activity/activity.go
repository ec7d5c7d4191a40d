package activity

import "strconv"

// Code selects what a movement request does. It is shared by the serial
// text protocol and the bus binary protocol.
type Code uint8

const (
	MovePhaseA   Code = 0 // move, phase relay released
	MovePhaseB   Code = 1 // move, phase relay energized
	Home         Code = 2
	Calibrate    Code = 3
	LEDOn        Code = 4
	LEDSlowBlink Code = 5
	LEDFastBlink Code = 6
	LEDOff       Code = 7
	AccessoryOn  Code = 8
	AccessoryOff Code = 9
)

// IsMove reports whether the code requests a positioning move.
func (c Code) IsMove() bool { return c < Home }

// IsLED reports whether the code sets the LED indicator state.
func (c Code) IsLED() bool { return c > Calibrate && c < AccessoryOn }

func (c Code) String() string {
	switch c {
	case MovePhaseA:
		return "move/phase-a"
	case MovePhaseB:
		return "move/phase-b"
	case Home:
		return "home"
	case Calibrate:
		return "calibrate"
	case LEDOn:
		return "led-on"
	case LEDSlowBlink:
		return "led-slow-blink"
	case LEDFastBlink:
		return "led-fast-blink"
	case LEDOff:
		return "led-off"
	case AccessoryOn:
		return "accessory-on"
	case AccessoryOff:
		return "accessory-off"
	default:
		return "unknown(" + strconv.Itoa(int(c)) + ")"
	}
}

// Request is a decoded movement request before gearing is applied.
type Request struct {
	RawSteps uint16
	Code     Code
}

// NewRequest reassembles a request from its three wire bytes.
func NewRequest(stepsHigh, stepsLow uint8, code uint8) Request {
	return Request{
		RawSteps: uint16(stepsHigh)<<8 | uint16(stepsLow),
		Code:     Code(code),
	}
}

// Split returns the high and low bytes of the raw step count.
func (r Request) Split() (high, low uint8) {
	return uint8(r.RawSteps >> 8), uint8(r.RawSteps & 0xFF)
}

// Outcome is what the dispatcher did with a request.
type Outcome uint8

const (
	Rejected Outcome = iota
	Moved
	Homing
	Calibrating
	LEDSet
	AccessorySetOn
	AccessorySetOff
	Discarded // wrong transaction shape, bytes drained
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Moved:
		return "moved"
	case Homing:
		return "homing"
	case Calibrating:
		return "calibrating"
	case LEDSet:
		return "led"
	case AccessorySetOn:
		return "accessory-on"
	case AccessorySetOff:
		return "accessory-off"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

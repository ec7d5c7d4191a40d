package console

import (
	"math"
	"strings"
)

// Kind selects the console command variant.
type Kind byte

const (
	Calibrate            Kind = 'C'
	ToggleDebug          Kind = 'D'
	EraseCalibration     Kind = 'E'
	Home                 Kind = 'H'
	Move                 Kind = 'M'
	SoftReboot           Kind = 'R'
	ToggleSensorTestMode Kind = 'T'
	ShowInfo             Kind = 'V'
)

// Command is a parsed console command. Steps and Activity are only set
// for Move.
type Command struct {
	Kind     Kind
	Steps    int64
	Activity uint8
}

// Parse decodes the text of one frame. Tokens are separated by spaces
// only; quotes and other punctuation are ordinary characters. The first
// character of the first token selects the command; Move additionally
// takes a step count and an activity code. Extra tokens are ignored.
func Parse(text string) (Command, bool) {
	tokens := strings.FieldsFunc(text, isSeparator)
	if len(tokens) == 0 {
		return Command{}, false
	}

	cmd := Command{Kind: Kind(tokens[0][0])}
	switch cmd.Kind {
	case Calibrate, ToggleDebug, EraseCalibration, Home, SoftReboot, ToggleSensorTestMode, ShowInfo:
		return cmd, true
	case Move:
		if len(tokens) > 1 {
			cmd.Steps = parseLong(tokens[1])
		}
		if len(tokens) > 2 {
			cmd.Activity = uint8(parseLong(tokens[2]))
		}
		return cmd, true
	default:
		return Command{}, false
	}
}

func isSeparator(r rune) bool { return r == ' ' }

// parseLong reads an optional sign and the leading decimal digits of s.
// Anything unparsable yields 0; values saturate at the int64 range.
func parseLong(s string) int64 {
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	var v int64
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		d := int64(s[i] - '0')
		if v > (math.MaxInt64-d)/10 {
			if neg {
				return math.MinInt64
			}
			return math.MaxInt64
		}
		v = v*10 + d
	}
	if neg {
		return -v
	}
	return v
}

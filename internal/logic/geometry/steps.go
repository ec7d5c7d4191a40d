package geometry

import "fmt"

// Rotation constrains the direction a turntable may turn to reach a target.
type Rotation int

const (
	Shortest Rotation = iota
	ForwardOnly
	ReverseOnly
)

func (r Rotation) String() string {
	switch r {
	case Shortest:
		return "shortest"
	case ForwardOnly:
		return "forward"
	case ReverseOnly:
		return "reverse"
	}
	return fmt.Sprintf("rotation(%d)", int(r))
}

// ParseRotation maps a configuration value to a Rotation.
func ParseRotation(s string) (Rotation, error) {
	switch s {
	case "", "shortest":
		return Shortest, nil
	case "forward":
		return ForwardOnly, nil
	case "reverse":
		return ReverseOnly, nil
	}
	return Shortest, fmt.Errorf("unknown rotation %q (want shortest, forward or reverse)", s)
}

// StepsCalculator converts positions and angles on a circle of
// fullTurnSteps steps.
type StepsCalculator struct {
	fullTurnSteps int64
}

// NewStepsCalculator creates a calculator for one revolution of fullTurnSteps.
func NewStepsCalculator(fullTurnSteps uint32) *StepsCalculator {
	return &StepsCalculator{fullTurnSteps: int64(fullTurnSteps)}
}

// FullTurnSteps returns the revolution size.
func (s *StepsCalculator) FullTurnSteps() int64 { return s.fullTurnSteps }

// StepsFromAngle converts an angle in degrees to a step position.
func (s *StepsCalculator) StepsFromAngle(angleDegrees float64) int64 {
	return int64(float64(s.fullTurnSteps) / 360.0 * angleDegrees)
}

// Normalize folds a position into [0, fullTurnSteps).
func (s *StepsCalculator) Normalize(pos int64) int64 {
	if s.fullTurnSteps <= 0 {
		return pos
	}
	pos %= s.fullTurnSteps
	if pos < 0 {
		pos += s.fullTurnSteps
	}
	return pos
}

// RelativeMove returns the signed step count that brings current to target
// under the rotation constraint. Shortest never exceeds half a turn; a tie
// at exactly half a turn goes forward.
func (s *StepsCalculator) RelativeMove(current, target int64, rot Rotation) int64 {
	if s.fullTurnSteps <= 0 {
		return target - current
	}
	diff := s.Normalize(target) - s.Normalize(current)
	half := s.fullTurnSteps / 2
	switch rot {
	case ForwardOnly:
		if diff < 0 {
			diff += s.fullTurnSteps
		}
	case ReverseOnly:
		if diff > 0 {
			diff -= s.fullTurnSteps
		}
	default:
		if diff > half {
			diff -= s.fullTurnSteps
		} else if diff < -half {
			diff += s.fullTurnSteps
		}
	}
	return diff
}

// PhaseWindow is the range of positions, inclusive, in which the track
// polarity must be inverted.
type PhaseWindow struct {
	Start int64
	Stop  int64
}

// PhaseWindow computes the window from the switch angle: it opens at
// angle and closes half a turn later.
func (s *StepsCalculator) PhaseWindow(angleDegrees int) PhaseWindow {
	return PhaseWindow{
		Start: s.StepsFromAngle(float64(angleDegrees)),
		Stop:  s.StepsFromAngle(float64(angleDegrees + 180)),
	}
}

// Contains reports whether pos lies inside the window.
func (w PhaseWindow) Contains(pos int64) bool {
	return pos >= w.Start && pos <= w.Stop
}

package state

import "sync/atomic"

// Homed is the homing state of the platform.
//
// HomingInProgress doubles as the window in which a new home or calibrate
// request is accepted even though calibrating is still set.
type Homed uint32

const (
	NotHomed         Homed = 0
	IsHomed          Homed = 1
	HomingInProgress Homed = 2
)

func (h Homed) String() string {
	switch h {
	case NotHomed:
		return "not-homed"
	case IsHomed:
		return "homed"
	case HomingInProgress:
		return "homing"
	default:
		return "invalid"
	}
}

// RunningReporter is implemented by the motion engine, the only source of
// truth for whether the stepper is moving.
type RunningReporter interface {
	IsRunning() bool
}

// Machine holds the guard flags shared by both protocol entry points.
// The protocol layer only reads it. SetCalibrating and SetHomed belong to
// the motion collaborator.
type Machine struct {
	runner        RunningReporter
	calibrating   atomic.Bool
	homed         atomic.Uint32
	debug         atomic.Bool
	sensorTesting atomic.Bool
}

// New creates a machine with the start-up debug and sensor-testing modes.
func New(debug, sensorTesting bool) *Machine {
	m := &Machine{}
	m.debug.Store(debug)
	m.sensorTesting.Store(sensorTesting)
	return m
}

// Attach binds the motion engine that reports stepper activity.
func (m *Machine) Attach(r RunningReporter) { m.runner = r }

func (m *Machine) StepperRunning() bool {
	return m.runner != nil && m.runner.IsRunning()
}

func (m *Machine) Calibrating() bool   { return m.calibrating.Load() }
func (m *Machine) Homed() Homed        { return Homed(m.homed.Load()) }
func (m *Machine) Debug() bool         { return m.debug.Load() }
func (m *Machine) SensorTesting() bool { return m.sensorTesting.Load() }

// CanStartSequence reports whether homing or calibration may be (re)started.
func (m *Machine) CanStartSequence() bool {
	return !m.Calibrating() || m.Homed() == HomingInProgress
}

func (m *Machine) SetCalibrating(v bool) { m.calibrating.Store(v) }
func (m *Machine) SetHomed(h Homed)      { m.homed.Store(uint32(h)) }

// ToggleDebug flips debug output and returns the new value.
func (m *Machine) ToggleDebug() bool {
	for {
		old := m.debug.Load()
		if m.debug.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (m *Machine) SetSensorTesting(v bool) { m.sensorTesting.Store(v) }

// Snapshot is a point-in-time copy of the guard state.
type Snapshot struct {
	StepperRunning bool   `json:"stepper_running"`
	Calibrating    bool   `json:"calibrating"`
	Homed          string `json:"homed"`
	Debug          bool   `json:"debug"`
	SensorTesting  bool   `json:"sensor_testing"`
}

func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		StepperRunning: m.StepperRunning(),
		Calibrating:    m.Calibrating(),
		Homed:          m.Homed().String(),
		Debug:          m.Debug(),
		SensorTesting:  m.SensorTesting(),
	}
}

package device

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/TurnGo/internal/config"
	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/hw/accessory"
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
	"github.com/cjeanneret/TurnGo/internal/hw/sensor"
	"github.com/cjeanneret/TurnGo/internal/hw/stepper"
	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/dispatch"
	"github.com/cjeanneret/TurnGo/internal/logic/motion"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
	"github.com/cjeanneret/TurnGo/internal/protocol/bus"
	"github.com/cjeanneret/TurnGo/internal/protocol/console"
	"github.com/cjeanneret/TurnGo/internal/storage"
	"github.com/cjeanneret/TurnGo/internal/web"
)

// MockFullTurnSteps sizes the simulated revolution when no manual count
// is configured.
const MockFullTurnSteps = 4096

// publishInterval throttles the status snapshot served off the loop.
const publishInterval = 20 * time.Millisecond

// Deps are the outside resources the device runs on.
type Deps struct {
	GPIO   gpio.Driver
	Store  storage.Store
	Reboot console.Rebooter
	Input  console.Input
	Output io.Writer
}

// Status is the device view served by the status endpoint.
type Status struct {
	state.Snapshot
	Position      int64  `json:"position"`
	FullTurnSteps uint32 `json:"full_turn_steps"`
	Sequence      string `json:"sequence"`
	LED           string `json:"led"`
	Accessory     bool   `json:"accessory"`
	PhaseInverted bool   `json:"phase_inverted"`
	BusOnline     bool   `json:"bus_online"`
	HomeSensor    bool   `json:"home_sensor"`
	LimitSensor   bool   `json:"limit_sensor"`
}

// Device owns every component and runs them from one goroutine. The bus
// bridge and the status snapshot are the only parts touched elsewhere.
type Device struct {
	cfg     *config.Config
	version string
	out     io.Writer

	st      *state.Machine
	motor   *stepper.Stepper
	outputs *accessory.Outputs
	motion  *motion.Controller
	home    sensor.Sensor
	limit   sensor.Sensor
	gearing *activity.Gearing
	rx      bus.Buffer
	handler *bus.Handler
	engine  *dispatch.Engine
	console *console.Console
	bridge  *web.BusBridge

	homeSeen    bool
	limitSeen   bool
	lastPublish time.Time
	status      atomic.Pointer[Status]
	summary     atomic.Pointer[console.Summary]
}

// New wires the device from configuration.
func New(cfg *config.Config, version string, deps Deps) *Device {
	d := &Device{
		cfg:     cfg,
		version: version,
		out:     deps.Output,
		st:      state.New(cfg.Defaults.Debug, cfg.Defaults.SensorTesting),
	}

	d.motor = stepper.NewStepper(deps.GPIO, stepper.Config{
		StepPin:         cfg.Stepper.StepPin,
		DirPin:          cfg.Stepper.DirPin,
		EnablePin:       cfg.Stepper.EnablePin,
		MaxSpeed:        cfg.Stepper.MaxSpeed,
		Acceleration:    cfg.Stepper.Acceleration,
		InvertDirection: cfg.Stepper.InvertDirection,
		InvertStep:      cfg.Stepper.InvertStep,
		InvertEnable:    cfg.Stepper.InvertEnable,
	})
	d.st.Attach(d.motor)

	d.outputs = accessory.New(deps.GPIO, accessory.Config{
		LEDPin:       cfg.Outputs.LEDPin,
		AccessoryPin: cfg.Outputs.AccessoryPin,
		RelayPins:    cfg.Outputs.RelayPins,
		ActiveLow:    cfg.Outputs.ActiveLow,
	})

	d.home, d.limit = d.sensors(deps.GPIO)

	d.motion = motion.NewController(d.st, motion.Hardware{
		Motor: d.motor,
		Home:  d.home,
		Limit: d.limit,
		Phase: d.outputs,
	}, deps.Store, motion.Config{
		Traverser:           cfg.Traverser(),
		Rotation:            cfg.Rotation(),
		AutoPhase:           cfg.AutoPhase(),
		PhaseAngle:          cfg.Phase.Angle,
		ManualFullTurnSteps: cfg.Device.FullStepCount,
		SanitySteps:         cfg.Stepper.SanitySteps,
		HomeSensitivity:     cfg.Stepper.HomeSensitivity,
		DisableWhenIdle:     cfg.Stepper.DisableWhenIdle,
	})

	d.gearing = activity.NewGearing(cfg.Device.GearingFactor)
	d.engine = dispatch.NewEngine(d.st, d.motion, d.outputs, d.out)
	d.handler = bus.NewHandler(&d.rx, d.engine, d.gearing, d.st, d.out)
	d.bridge = web.NewBusBridge(cfg.Bus.Queue, d.handler.OnRequest)

	d.console = console.New(deps.Input, d.out, console.Deps{
		State:    d.st,
		Sequence: d.motion,
		Bus:      d.handler,
		Reboot:   deps.Reboot,
		Link:     d.bridge,
		Info:     d.Summary,
	})

	d.publish(time.Time{})
	return d
}

func (d *Device) sensors(g gpio.Driver) (home, limit sensor.Sensor) {
	if d.cfg.Defaults.MockGPIO {
		turn := int64(MockFullTurnSteps)
		if d.cfg.Device.FullStepCount > 0 {
			turn = int64(d.cfg.Device.FullStepCount)
		}
		if d.cfg.Traverser() {
			return sensor.NewSimulated(d.motor, 0, 5, 0), sensor.NewSimulated(d.motor, turn, 5, 0)
		}
		return sensor.NewSimulated(d.motor, 0, 5, turn), nil
	}
	home = sensor.NewSwitch(g, d.cfg.Sensors.HomePin, d.cfg.Sensors.HomeActiveLow)
	if d.cfg.Sensors.LimitPin > 0 {
		limit = sensor.NewSwitch(g, d.cfg.Sensors.LimitPin, d.cfg.Sensors.LimitActiveLow)
	}
	return home, limit
}

// State exposes the guard state.
func (d *Device) State() *state.Machine { return d.st }

// Bridge returns the bus bridge for the web layer.
func (d *Device) Bridge() *web.BusBridge { return d.bridge }

// Status returns the last published snapshot. Safe from any goroutine.
func (d *Device) Status() Status { return *d.status.Load() }

// Info returns the last published configuration summary. Safe from any
// goroutine.
func (d *Device) Info() console.Summary { return *d.summary.Load() }

// Summary builds the <V> summary from live data. Loop goroutine only.
func (d *Device) Summary() console.Summary {
	w := d.motion.PhaseWindow()
	return console.Summary{
		Version:         d.version,
		Address:         uint8(d.cfg.Device.Address),
		FullTurnSteps:   d.motion.FullTurnSteps(),
		ManualSteps:     d.cfg.Device.FullStepCount > 0,
		GearingFactor:   d.gearing.Factor(),
		AutoPhase:       d.cfg.AutoPhase(),
		PhaseAngle:      d.cfg.Phase.Angle,
		PhaseStart:      uint32(w.Start),
		PhaseStop:       uint32(w.Stop),
		Traverser:       d.cfg.Traverser(),
		Rotation:        d.cfg.Rotation().String(),
		InvertDirection: d.cfg.Stepper.InvertDirection,
		InvertStep:      d.cfg.Stepper.InvertStep,
		InvertEnable:    d.cfg.Stepper.InvertEnable,
		MaxSpeed:        d.cfg.Stepper.MaxSpeed,
		Acceleration:    d.cfg.Stepper.Acceleration,
		HomeSensor:      active(d.home),
		LimitSensor:     active(d.limit),
		DebounceMs:      d.cfg.Sensors.DebounceMs,
	}
}

func active(s sensor.Sensor) bool { return s != nil && s.Active() }

// Start prints the banner and begins the power-on sequence. In sensor
// testing mode the platform stays offline.
func (d *Device) Start() {
	d.console.Handle(console.Command{Kind: console.ShowInfo})
	if d.st.SensorTesting() {
		if err := d.bridge.Disconnect(); err != nil {
			debug.Error(err)
		}
		return
	}
	d.motion.Start()
}

// Step runs one loop iteration.
func (d *Device) Step(now time.Time) {
	d.console.Poll()
	if d.st.SensorTesting() {
		d.reportSensors()
	} else {
		d.serviceBus()
		d.motion.Process(now)
	}
	d.outputs.Process(now)

	if now.Sub(d.lastPublish) >= publishInterval {
		d.publish(now)
	}
}

// serviceBus hands every queued write transaction to the handler, one at
// a time, through the fixed receive buffer.
func (d *Device) serviceBus() {
	for {
		select {
		case msg := <-d.bridge.Transactions():
			n := d.rx.Load(msg)
			outcome := d.handler.OnReceive(n)
			debug.Transaction(len(msg), outcome.String())
		default:
			return
		}
	}
}

func (d *Device) reportSensors() {
	if h := active(d.home); h != d.homeSeen {
		d.homeSeen = h
		d.printf("Home sensor %s\n", activation(h))
	}
	if l := active(d.limit); l != d.limitSeen {
		d.limitSeen = l
		d.printf("Limit sensor %s\n", activation(l))
	}
}

func activation(on bool) string {
	if on {
		return "ACTIVATED"
	}
	return "DEACTIVATED"
}

func (d *Device) printf(format string, args ...any) {
	if d.out == nil {
		return
	}
	fmt.Fprintf(d.out, format, args...)
}

func (d *Device) publish(now time.Time) {
	d.lastPublish = now
	s := &Status{
		Snapshot:      d.st.Snapshot(),
		Position:      d.motion.Position(),
		FullTurnSteps: d.motion.FullTurnSteps(),
		Sequence:      d.motion.Sequence(),
		LED:           d.outputs.LEDActivity().String(),
		Accessory:     d.outputs.Accessory(),
		PhaseInverted: d.outputs.Phase(),
		BusOnline:     d.bridge.Online(),
		HomeSensor:    active(d.home),
		LimitSensor:   active(d.limit),
	}
	d.status.Store(s)
	sum := d.Summary()
	d.summary.Store(&sum)
}

// Run starts the device and loops until ctx is cancelled. On exit the
// motor stops and its outputs are released.
func (d *Device) Run(ctx context.Context) error {
	d.Start()
	interval := d.cfg.LoopInterval()
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		default:
		}
		d.Step(time.Now())
		time.Sleep(interval)
	}
}

func (d *Device) shutdown() {
	debug.Info("Shutting down")
	d.motor.Stop()
	if err := d.motor.Disable(); err != nil {
		debug.Error(err)
	}
	if err := d.bridge.Disconnect(); err != nil {
		debug.Error(err)
	}
}

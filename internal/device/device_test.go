package device

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/TurnGo/internal/config"
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
	"github.com/cjeanneret/TurnGo/internal/hw/watchdog"
	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
	"github.com/cjeanneret/TurnGo/internal/storage"
)

// scriptedInput hands out a fixed byte script.
type scriptedInput struct {
	data []byte
}

func (s *scriptedInput) Available() int { return len(s.data) }

func (s *scriptedInput) ReadByte() (byte, error) {
	if len(s.data) == 0 {
		return 0, errors.New("empty")
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, nil
}

func (s *scriptedInput) feed(text string) { s.data = append(s.data, text...) }

func testConfig() *config.Config {
	return &config.Config{
		Device:   config.DeviceConfig{Address: 0x60, Mode: config.ModeTurntable, GearingFactor: 1, FullStepCount: 1000},
		Phase:    config.PhaseConfig{Switching: config.PhaseAuto, Angle: 45},
		Stepper:  config.StepperConfig{StepPin: 17, DirPin: 27, EnablePin: 22, MaxSpeed: 1000},
		Sensors:  config.SensorsConfig{HomePin: 23, DebounceMs: 5},
		Outputs:  config.OutputsConfig{LEDPin: 5, AccessoryPin: 6, RelayPins: [2]int{20, 21}},
		Bus:      config.BusConfig{Queue: 4},
		Defaults: config.DefaultsConfig{MockGPIO: true, LoopIntervalUs: 100},
	}
}

type rig struct {
	dev    *Device
	in     *scriptedInput
	out    *bytes.Buffer
	store  *storage.MemStore
	reboot *watchdog.Mock
	now    time.Time
}

func newRig(t *testing.T, cfg *config.Config) *rig {
	t.Helper()
	r := &rig{
		in:     &scriptedInput{},
		out:    &bytes.Buffer{},
		store:  &storage.MemStore{},
		reboot: &watchdog.Mock{},
		now:    time.Unix(1000, 0),
	}
	r.dev = New(cfg, "test", Deps{
		GPIO:   &gpio.MockDriver{},
		Store:  r.store,
		Reboot: r.reboot,
		Input:  r.in,
		Output: r.out,
	})
	return r
}

func (r *rig) step(n int) {
	for i := 0; i < n; i++ {
		r.dev.Step(r.now)
		r.now = r.now.Add(time.Millisecond)
	}
}

// settle steps until the motor stops, failing after max iterations.
func (r *rig) settle(t *testing.T, max int) {
	t.Helper()
	for i := 0; i < max; i++ {
		r.step(1)
		if !r.dev.motor.IsRunning() {
			return
		}
	}
	t.Fatalf("motor still running at %d after %d steps", r.dev.motion.Position(), max)
}

func TestDevice_StartHomesWithManualCount(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(1)

	if got := r.dev.State().Homed(); got != state.IsHomed {
		t.Fatalf("homed = %v, want homed", got)
	}
	if !strings.Contains(r.out.String(), "TurnGo version test") {
		t.Errorf("start-up banner missing version:\n%s", r.out.String())
	}
}

func TestDevice_BusWriteMoves(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(1)

	if err := r.dev.Bridge().Write([]byte{0, 100, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r.step(1)
	if b, err := r.dev.Bridge().Read(); err != nil || b != 1 {
		t.Errorf("Read while moving = %d, %v; want 1", b, err)
	}
	r.settle(t, 1000)

	if pos := r.dev.motion.Position(); pos != 100 {
		t.Errorf("position = %d, want 100", pos)
	}
	if b, _ := r.dev.Bridge().Read(); b != 0 {
		t.Errorf("Read after move = %d, want 0", b)
	}
}

func TestDevice_ConsoleMoveMatchesBus(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(1)

	r.in.feed("<M 100 0>")
	r.step(1)
	r.settle(t, 1000)

	if pos := r.dev.motion.Position(); pos != 100 {
		t.Errorf("position = %d, want 100", pos)
	}
	if !strings.Contains(r.out.String(), "Test move 100 steps, activity ID 0") {
		t.Errorf("missing test move acknowledgement:\n%s", r.out.String())
	}
}

func TestDevice_ShortBusWriteIsDiscarded(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(1)

	if err := r.dev.Bridge().Write([]byte{0, 100}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r.step(1)
	if r.dev.motor.IsRunning() || r.dev.motion.Position() != 0 {
		t.Errorf("short write moved the motor to %d", r.dev.motion.Position())
	}

	// The next well-formed transaction starts aligned.
	if err := r.dev.Bridge().Write([]byte{0, 10, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r.step(1)
	r.settle(t, 1000)
	if pos := r.dev.motion.Position(); pos != 10 {
		t.Errorf("position = %d, want 10", pos)
	}
}

func TestDevice_LEDAndAccessory(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(1)

	r.dev.Bridge().Write([]byte{0, 0, byte(activity.LEDSlowBlink)})
	r.dev.Bridge().Write([]byte{0, 0, byte(activity.AccessoryOn)})
	r.step(25)

	st := r.dev.Status()
	if st.LED != activity.LEDSlowBlink.String() {
		t.Errorf("LED = %q, want %q", st.LED, activity.LEDSlowBlink.String())
	}
	if !st.Accessory {
		t.Error("accessory should be on")
	}
}

func TestDevice_CalibratesWithoutCount(t *testing.T) {
	cfg := testConfig()
	cfg.Device.FullStepCount = 0
	r := newRig(t, cfg)
	r.dev.Start()

	for i := 0; i < 20000 && r.dev.State().Calibrating(); i++ {
		r.step(1)
	}
	if r.dev.State().Calibrating() {
		t.Fatal("calibration never finished")
	}
	if got := r.dev.motion.FullTurnSteps(); got != MockFullTurnSteps {
		t.Errorf("full turn = %d, want %d", got, MockFullTurnSteps)
	}
	if saved, err := r.store.Load(); err != nil || saved != MockFullTurnSteps {
		t.Errorf("stored = %d, %v; want %d", saved, err, MockFullTurnSteps)
	}
}

func TestDevice_SensorTestingMode(t *testing.T) {
	cfg := testConfig()
	cfg.Defaults.SensorTesting = true
	r := newRig(t, cfg)
	r.dev.Start()
	r.step(1)

	if r.dev.Bridge().Online() {
		t.Error("bridge should be offline in sensor testing mode")
	}
	if err := r.dev.Bridge().Write([]byte{0, 100, 0}); err == nil {
		t.Error("write should fail while offline")
	}
	if !strings.Contains(r.out.String(), "Home sensor ACTIVATED") {
		t.Errorf("home sensor change not reported:\n%s", r.out.String())
	}
	if r.dev.State().Homed() != state.NotHomed {
		t.Error("no sequence should run in sensor testing mode")
	}
}

func TestDevice_ConsoleReboot(t *testing.T) {
	r := newRig(t, testConfig())
	r.in.feed("<R>")
	r.step(1)
	if r.reboot.Count() != 1 {
		t.Errorf("reboot count = %d, want 1", r.reboot.Count())
	}
}

func TestDevice_StatusPublished(t *testing.T) {
	r := newRig(t, testConfig())
	r.dev.Start()
	r.step(25)

	st := r.dev.Status()
	if st.Homed != state.IsHomed.String() || st.FullTurnSteps != 1000 || !st.BusOnline {
		t.Errorf("status = %+v", st)
	}
	info := r.dev.Info()
	if info.Version != "test" || info.Address != 0x60 || !info.ManualSteps {
		t.Errorf("info = %+v", info)
	}
}

func TestDevice_RunStopsOnCancel(t *testing.T) {
	r := newRig(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.dev.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if r.dev.Bridge().Online() {
		t.Error("bridge should be offline after shutdown")
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/TurnGo/internal/logic/geometry"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Platform modes.
const (
	ModeTurntable = "turntable"
	ModeTraverser = "traverser"
)

// Phase switching modes.
const (
	PhaseAuto   = "auto"
	PhaseManual = "manual"
)

// DeviceConfig describes the platform and how it answers on the bus.
type DeviceConfig struct {
	Address       int    `yaml:"address"`         // 7-bit bus address, reported by <V>
	Mode          string `yaml:"mode"`            // "turntable" or "traverser"
	Rotation      string `yaml:"rotation"`        // "shortest", "forward" or "reverse"
	GearingFactor uint32 `yaml:"gearing_factor"`  // bus step multiplier, clamped to 10 at use
	FullStepCount uint32 `yaml:"full_step_count"` // manual steps per revolution, 0 = calibrate
}

// PhaseConfig selects how the track polarity relays are driven.
type PhaseConfig struct {
	Switching string `yaml:"switching"` // "auto" or "manual"
	Angle     int    `yaml:"angle"`     // auto only: degrees where the window opens
}

// StepperConfig holds the motor driver wiring and limits.
type StepperConfig struct {
	StepPin         int     `yaml:"step_pin"`
	DirPin          int     `yaml:"dir_pin"`
	EnablePin       int     `yaml:"enable_pin"` // driver ENABLE pin (BCM). 0 = not used.
	MaxSpeed        float64 `yaml:"max_speed"`  // steps per second
	Acceleration    float64 `yaml:"acceleration"`
	InvertDirection bool    `yaml:"invert_direction"`
	InvertStep      bool    `yaml:"invert_step"`
	InvertEnable    bool    `yaml:"invert_enable"`
	DisableWhenIdle bool    `yaml:"disable_when_idle"`
	SanitySteps     int64   `yaml:"sanity_steps"`     // homing and calibration give up after this
	HomeSensitivity int64   `yaml:"home_sensitivity"` // steps to leave the home sensor when counting
}

// SensorsConfig holds the position switches.
type SensorsConfig struct {
	HomePin        int  `yaml:"home_pin"`
	HomeActiveLow  bool `yaml:"home_active_low"`
	LimitPin       int  `yaml:"limit_pin"` // traverser only
	LimitActiveLow bool `yaml:"limit_active_low"`
	DebounceMs     int  `yaml:"debounce_ms"`
}

// OutputsConfig holds the LED, accessory and relay pins. 0 = not used.
type OutputsConfig struct {
	LEDPin       int    `yaml:"led_pin"`
	AccessoryPin int    `yaml:"accessory_pin"`
	RelayPins    [2]int `yaml:"relay_pins"`
	ActiveLow    bool   `yaml:"active_low"`
}

// SerialConfig selects the console line. An empty port uses stdin/stdout.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// BusConfig configures the network bus bridge.
type BusConfig struct {
	Listen string `yaml:"listen"` // empty disables the bridge
	Queue  int    `yaml:"queue"`
}

// StorageConfig locates the calibration record.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WatchdogConfig locates the hardware watchdog.
type WatchdogConfig struct {
	Device string `yaml:"device"`
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	DebugLevel     int  `yaml:"debug_level"`      // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	Debug          bool `yaml:"debug"`            // console DEBUG output at startup, toggled with <D>
	SensorTesting  bool `yaml:"sensor_testing"`   // start in sensor testing mode
	MockGPIO       bool `yaml:"mock_gpio"`        // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	LoopIntervalUs int  `yaml:"loop_interval_us"` // pause between loop iterations
}

// Config aggregates all application configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Phase    PhaseConfig    `yaml:"phase"`
	Stepper  StepperConfig  `yaml:"stepper"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Outputs  OutputsConfig  `yaml:"outputs"`
	Serial   SerialConfig   `yaml:"serial"`
	Bus      BusConfig      `yaml:"bus"`
	Storage  StorageConfig  `yaml:"storage"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a
// directory named configs.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.Address == 0 {
		c.Device.Address = 0x60
	}
	if c.Device.Mode == "" {
		c.Device.Mode = ModeTurntable
	}
	if c.Device.GearingFactor == 0 {
		c.Device.GearingFactor = 1
	}
	if c.Phase.Switching == "" {
		c.Phase.Switching = PhaseAuto
	}
	if c.Phase.Switching == PhaseAuto && c.Phase.Angle == 0 {
		c.Phase.Angle = 45
	}
	if c.Stepper.MaxSpeed <= 0 {
		c.Stepper.MaxSpeed = 200
	}
	if c.Stepper.Acceleration <= 0 {
		c.Stepper.Acceleration = 25
	}
	if c.Sensors.DebounceMs <= 0 {
		c.Sensors.DebounceMs = 5
	}
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = 115200
	}
	if c.Bus.Queue <= 0 {
		c.Bus.Queue = 16
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "calibration.cbor"
	}
	if c.Defaults.LoopIntervalUs <= 0 {
		c.Defaults.LoopIntervalUs = 100
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Device.Address < 0x08 || c.Device.Address > 0x77 {
		return fmt.Errorf("device.address must be between 0x08 and 0x77, got 0x%X", c.Device.Address)
	}
	switch c.Device.Mode {
	case ModeTurntable, ModeTraverser:
	default:
		return fmt.Errorf("device.mode must be %q or %q, got %q", ModeTurntable, ModeTraverser, c.Device.Mode)
	}
	if _, err := geometry.ParseRotation(c.Device.Rotation); err != nil {
		return fmt.Errorf("device.rotation: %w", err)
	}
	switch c.Phase.Switching {
	case PhaseAuto, PhaseManual:
	default:
		return fmt.Errorf("phase.switching must be %q or %q, got %q", PhaseAuto, PhaseManual, c.Phase.Switching)
	}
	if c.Phase.Angle < 0 || c.Phase.Angle > 180 {
		return fmt.Errorf("phase.angle must be between 0 and 180, got %d", c.Phase.Angle)
	}
	if c.Stepper.StepPin <= 0 || c.Stepper.DirPin <= 0 {
		return errors.New("stepper.step_pin and stepper.dir_pin are required")
	}
	if c.Sensors.HomePin <= 0 {
		return errors.New("sensors.home_pin is required")
	}
	if c.Device.Mode == ModeTraverser && c.Sensors.LimitPin <= 0 {
		return errors.New("sensors.limit_pin is required in traverser mode")
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Bus.Listen != "" && !strings.Contains(c.Bus.Listen, ":") {
		return fmt.Errorf("bus.listen must be host:port, got %q", c.Bus.Listen)
	}
	return nil
}

// Traverser reports whether the platform is a linear traverser.
func (c *Config) Traverser() bool { return c.Device.Mode == ModeTraverser }

// AutoPhase reports whether the relays follow the phase window.
func (c *Config) AutoPhase() bool { return c.Phase.Switching == PhaseAuto }

// Rotation returns the parsed rotation constraint.
func (c *Config) Rotation() geometry.Rotation {
	r, _ := geometry.ParseRotation(c.Device.Rotation)
	return r
}

// LoopInterval returns the pause between loop iterations.
func (c *Config) LoopInterval() time.Duration {
	return time.Duration(c.Defaults.LoopIntervalUs) * time.Microsecond
}

// Debounce returns the sensor debounce delay.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sensors.DebounceMs) * time.Millisecond
}

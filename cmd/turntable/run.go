package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cjeanneret/TurnGo/internal/config"
	"github.com/cjeanneret/TurnGo/internal/debug"
	"github.com/cjeanneret/TurnGo/internal/device"
	"github.com/cjeanneret/TurnGo/internal/hw/gpio"
	"github.com/cjeanneret/TurnGo/internal/hw/watchdog"
	"github.com/cjeanneret/TurnGo/internal/storage"
	"github.com/cjeanneret/TurnGo/internal/transport/serialport"
	"github.com/cjeanneret/TurnGo/internal/web"
)

var (
	runConfigPath string
	runPort       string
	runListen     string
	runDebugLevel int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `Run the controller loop until interrupted.

The console speaks the <...> text protocol on the configured serial port,
or on stdin/stdout when no port is set. When a listen address is set, bus
masters connect over websocket at /bus and the device status is served at
/status, /status/stream and /info.`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", filepath.Join("configs", "default.yaml"), "path to config file")
	runCmd.Flags().StringVarP(&runPort, "port", "p", "", "serial console device, overrides serial.port")
	runCmd.Flags().StringVarP(&runListen, "listen", "l", "", "bus bridge address, overrides bus.listen")
	runCmd.Flags().IntVar(&runDebugLevel, "debug-level", -1, "debug level 0-4, overrides defaults.debug_level")
}

func runController(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}
	if err := applyRunOverrides(cfg, runPort, runListen, runDebugLevel); err != nil {
		return err
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", runConfigPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.PrintStruct("Device config", cfg.Device)

	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			debug.Error(fmt.Errorf("close GPIO driver: %w", err))
		}
	}()

	debug.Step(2, "Opening serial console")
	port, err := openConsole(cfg.Serial)
	if err != nil {
		return err
	}
	defer port.Close()

	broadcaster := web.NewStatusBroadcaster()
	consoleOut := io.MultiWriter(port, web.BroadcastWriter(broadcaster, web.SourceConsole))
	debug.SetOutput(io.MultiWriter(os.Stderr, web.BroadcastWriter(broadcaster, web.SourceLog)))

	debug.Step(3, "Wiring device")
	dev := device.New(cfg, version, device.Deps{
		GPIO:   gpioDriver,
		Store:  storage.NewFileStore(cfg.Storage.Path),
		Reboot: watchdog.New(cfg.Defaults.MockGPIO, cfg.Watchdog.Device),
		Input:  port,
		Output: consoleOut,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srvErr := make(chan error, 1)
	if cfg.Bus.Listen != "" {
		debug.Step(4, "Starting bus bridge")
		handlers := web.NewHandlers(broadcaster, dev.Bridge(),
			func() any { return dev.Status() },
			func() any { return dev.Info() },
		)
		srv := web.NewServer(cfg.Bus.Listen, handlers)
		go func() {
			err := srv.Run(ctx)
			if err != nil {
				cancel()
			}
			srvErr <- err
		}()
	} else {
		close(srvErr)
	}

	debug.Section("Running")
	if err := dev.Run(ctx); err != nil {
		return err
	}
	if err := <-srvErr; err != nil {
		return fmt.Errorf("bus bridge: %w", err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if err := config.ValidateConfigPath(path); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// applyRunOverrides applies the command line overrides. Empty strings and
// a negative debug level leave the configuration untouched.
func applyRunOverrides(cfg *config.Config, port, listen string, debugLevel int) error {
	if port != "" {
		cfg.Serial.Port = port
	}
	if listen != "" {
		cfg.Bus.Listen = listen
	}
	if debugLevel >= 0 {
		cfg.Defaults.DebugLevel = debugLevel
	}
	return cfg.Validate()
}

func openConsole(sc config.SerialConfig) (*serialport.Port, error) {
	if sc.Port == "" {
		debug.Info("Serial console on stdin/stdout")
		return serialport.Pipe(os.Stdin, os.Stdout), nil
	}
	return serialport.Open(sc.Port, sc.Baud)
}

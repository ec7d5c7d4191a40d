package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "turntable",
	Short: "Model railway turntable and traverser controller",
	Long: `turntable drives a stepper-motor turntable or traverser for a model railway.

Commands:
  run    start the controller loop with its serial console and bus bridge
  send   send a console command such as <H> or <M 100 0> over a serial line
  bus    write a three byte request to, or read the device through, the bus bridge`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "turntable: %v\n", err)
		os.Exit(1)
	}
}

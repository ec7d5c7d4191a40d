package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cjeanneret/TurnGo/internal/protocol/console"
	"github.com/cjeanneret/TurnGo/internal/transport/serialport"
)

var (
	sendPort string
	sendBaud int
	sendWait time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [command]",
	Short: "Send console commands over a serial line",
	Long: `Send one console command, framed as <...>, and print what the device
answers until --wait elapses.

Without an argument, commands are read from stdin. Each line is split into
shell words and every word is sent as one command, so a line may carry
several quoted commands and # starts a comment. A prompt is shown when
stdin is a terminal.

Examples:
  turntable send -p /dev/ttyACM0 V
  turntable send -p /dev/ttyACM0 "M 100 0"
  echo 'H "M 100 0" # home, then move' | turntable send -p /dev/ttyACM0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendPort, "port", "p", "", "serial device (required)")
	sendCmd.Flags().IntVarP(&sendBaud, "baud", "b", serialport.DefaultBaudRate, "baud rate")
	sendCmd.Flags().DurationVarP(&sendWait, "wait", "w", time.Second, "how long to print replies after each command")
	_ = sendCmd.MarkFlagRequired("port")
}

func runSend(cmd *cobra.Command, args []string) error {
	port, err := serialport.Open(sendPort, sendBaud)
	if err != nil {
		return err
	}
	defer port.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return sendOne(port, out, args[0], sendWait)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := sendLine(port, out, scanner.Text(), sendWait); err != nil {
			if !interactive {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// lineCommands splits one stdin line into shell words, one command each.
// A blank or comment-only line yields none.
func lineCommands(line string) ([]string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("line %q: %w", line, err)
	}
	return words, nil
}

func sendLine(port *serialport.Port, out io.Writer, line string, wait time.Duration) error {
	words, err := lineCommands(line)
	if err != nil {
		return err
	}
	for _, w := range words {
		if err := sendOne(port, out, w, wait); err != nil {
			return err
		}
	}
	return nil
}

func sendOne(port *serialport.Port, out io.Writer, text string, wait time.Duration) error {
	frame, err := frameCommand(text)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(port, frame); err != nil {
		return fmt.Errorf("write %s: %w", frame, err)
	}
	copyFor(out, port, wait)
	return nil
}

// frameCommand wraps text in start and end markers unless it already has
// them, and rejects text the device would not recognise.
func frameCommand(text string) (string, error) {
	inner := strings.TrimSpace(text)
	inner = strings.TrimPrefix(inner, string(console.StartMarker))
	inner = strings.TrimSuffix(inner, string(console.EndMarker))
	inner = strings.TrimSpace(inner)
	if len(inner) >= console.FrameCapacity {
		return "", fmt.Errorf("command %q longer than %d characters", inner, console.FrameCapacity-1)
	}
	if _, ok := console.Parse(inner); !ok {
		return "", fmt.Errorf("unknown command %q", inner)
	}
	return string(console.StartMarker) + inner + string(console.EndMarker), nil
}

// copyFor copies whatever the port receives to out for d.
func copyFor(out io.Writer, in console.Input, d time.Duration) {
	deadline := time.Now().Add(d)
	buf := make([]byte, 0, 64)
	for time.Now().Before(deadline) {
		for in.Available() > 0 {
			b, err := in.ReadByte()
			if err != nil {
				break
			}
			buf = append(buf, b)
		}
		if len(buf) > 0 {
			out.Write(buf)
			buf = buf[:0]
		}
		time.Sleep(10 * time.Millisecond)
	}
}

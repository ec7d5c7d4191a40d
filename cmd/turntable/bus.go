package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/TurnGo/internal/web"
)

var (
	busURL     string
	busRead    bool
	busTimeout time.Duration
)

var busCmd = &cobra.Command{
	Use:   "bus [steps activity]",
	Short: "Talk to the device through its bus bridge",
	Long: `Connect to the bus bridge as a bus master.

With two arguments, send one write transaction {stepsHigh, stepsLow, activity}.
With --read, send a read request and print the byte the device answers:
1 while the stepper is moving, 0 otherwise.

Examples:
  turntable bus 1200 0
  turntable bus 0 2
  turntable bus --read`,
	Args: func(cmd *cobra.Command, args []string) error {
		if busRead {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runBus,
}

func init() {
	rootCmd.AddCommand(busCmd)
	busCmd.Flags().StringVarP(&busURL, "url", "u", "ws://localhost:8090/bus", "bus bridge websocket URL")
	busCmd.Flags().BoolVarP(&busRead, "read", "r", false, "read the running flag instead of writing")
	busCmd.Flags().DurationVar(&busTimeout, "timeout", 5*time.Second, "connection and reply timeout")
}

func runBus(cmd *cobra.Command, args []string) error {
	conn, err := dialBus(busURL, busTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if busRead {
		b, err := busReadByte(conn, busTimeout)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), b)
		return nil
	}

	wr, err := parseWrite(args[0], args[1])
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, wr.Bytes()); err != nil {
		return fmt.Errorf("bus write: %w", err)
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return nil
}

func dialBus(rawURL string, timeout time.Duration) (*websocket.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bus bridge connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bus bridge connection failed: %w", err)
	}
	return conn, nil
}

func busReadByte(conn *websocket.Conn, timeout time.Duration) (byte, error) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(web.ReadRequest)); err != nil {
		return 0, fmt.Errorf("bus read request: %w", err)
	}
	conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("bus read: %w", err)
		}
		if kind == websocket.BinaryMessage && len(msg) == 1 {
			return msg[0], nil
		}
	}
}

func parseWrite(steps, activity string) (web.Write, error) {
	s, err := strconv.Atoi(steps)
	if err != nil {
		return web.Write{}, fmt.Errorf("steps: %w", err)
	}
	a, err := strconv.Atoi(activity)
	if err != nil {
		return web.Write{}, fmt.Errorf("activity: %w", err)
	}
	wr := web.Write{Steps: s, Activity: a}
	if err := web.ValidateWrite(wr); err != nil {
		return web.Write{}, err
	}
	return wr, nil
}

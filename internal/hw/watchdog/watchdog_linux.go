//go:build linux

package watchdog

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/cjeanneret/TurnGo/internal/debug"
)

// Hardware arms the kernel watchdog with a one second timeout and never
// feeds it.
type Hardware struct {
	Device string
}

func (h *Hardware) Reboot() error {
	fd, err := unix.Open(h.Device, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open watchdog %s: %w", h.Device, err)
	}
	// The fd stays open: closing it disarms the timer on drivers
	// without nowayout.
	if err := unix.IoctlSetPointerInt(fd, unix.WDIOC_SETTIMEOUT, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("set watchdog timeout: %w", err)
	}
	debug.Info("Watchdog: armed %s with 1s timeout, waiting for reset", h.Device)
	return nil
}

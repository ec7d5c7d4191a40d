//go:build !linux

package watchdog

import "errors"

// Hardware is only available on Linux.
type Hardware struct {
	Device string
}

func (h *Hardware) Reboot() error {
	return errors.New("hardware watchdog requires linux")
}

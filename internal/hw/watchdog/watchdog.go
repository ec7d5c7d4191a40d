package watchdog

import (
	"sync"

	"github.com/cjeanneret/TurnGo/internal/debug"
)

// DefaultDevice is the Linux watchdog character device.
const DefaultDevice = "/dev/watchdog"

// Rebooter resets the controller. On success the process is expected to
// be killed by the hardware shortly after the call returns.
type Rebooter interface {
	Reboot() error
}

// New returns a hardware watchdog rebooter, or a Mock when mock is true.
func New(mock bool, device string) Rebooter {
	if mock {
		return &Mock{}
	}
	if device == "" {
		device = DefaultDevice
	}
	return &Hardware{Device: device}
}

// Mock records reboot requests instead of resetting anything.
type Mock struct {
	mu    sync.Mutex
	count int
}

func (m *Mock) Reboot() error {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	debug.Info("Watchdog: reboot requested (mock, ignored)")
	return nil
}

// Count returns the number of reboot requests seen.
func (m *Mock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

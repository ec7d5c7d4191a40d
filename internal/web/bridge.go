package web

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/TurnGo/internal/debug"
)

// DefaultQueueSize bounds the bus writes waiting for the loop.
const DefaultQueueSize = 16

var (
	// ErrOffline is returned once the bridge has been disconnected.
	ErrOffline = errors.New("web: bus bridge offline")
	// ErrBusy is returned when the write queue is full.
	ErrBusy = errors.New("web: bus write queue full")
)

// RequestFunc answers a bus read request with a single byte.
type RequestFunc func() byte

// BusBridge carries bus transactions from network masters to the loop
// goroutine. Writes are queued; reads are answered on the caller's
// goroutine, which is why the request callback must not touch loop state.
type BusBridge struct {
	tx      chan []byte
	request RequestFunc
	offline atomic.Bool

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewBusBridge creates a bridge answering reads with request.
func NewBusBridge(queue int, request RequestFunc) *BusBridge {
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	return &BusBridge{
		tx:      make(chan []byte, queue),
		request: request,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Transactions delivers write transactions in arrival order.
func (b *BusBridge) Transactions() <-chan []byte { return b.tx }

// Write queues one write transaction. p is copied and never truncated
// here: length checks belong to the receiving handler.
func (b *BusBridge) Write(p []byte) error {
	if b.offline.Load() {
		return ErrOffline
	}
	msg := make([]byte, len(p))
	copy(msg, p)
	select {
	case b.tx <- msg:
		return nil
	default:
		return ErrBusy
	}
}

// Read answers a read request.
func (b *BusBridge) Read() (byte, error) {
	if b.offline.Load() {
		return 0, ErrOffline
	}
	if b.request == nil {
		return 0, nil
	}
	return b.request(), nil
}

// Online reports whether the bridge accepts traffic.
func (b *BusBridge) Online() bool { return !b.offline.Load() }

// Disconnect takes the bridge offline and drops every connected master.
// The bridge stays offline until the process restarts.
func (b *BusBridge) Disconnect() error {
	if b.offline.Swap(true) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.conns {
		c.Close()
		delete(b.conns, c)
	}
	debug.Info("Bus bridge offline")
	return nil
}

func (b *BusBridge) attach(c *websocket.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline.Load() {
		return false
	}
	b.conns[c] = struct{}{}
	return true
}

func (b *BusBridge) detach(c *websocket.Conn) {
	b.mu.Lock()
	delete(b.conns, c)
	b.mu.Unlock()
}

// Masters returns the number of connected websocket masters.
func (b *BusBridge) Masters() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

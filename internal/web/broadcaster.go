package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// Event sources carried in StatusEvent.Source.
const (
	SourceConsole = "console" // text the console answered
	SourceLog     = "log"     // process debug output
	SourceBus     = "bus"     // bus bridge activity
)

// subscriberBuffer is the per-client backlog before events are dropped.
const subscriberBuffer = 64

// StatusEvent is one line pushed to SSE clients.
type StatusEvent struct {
	Time   string `json:"t"`
	Source string `json:"src,omitempty"`
	Msg    string `json:"msg"`
}

// StatusBroadcaster fans status lines out to SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel of JSON-encoded events and its cleanup.
// The caller must call the cleanup when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends one event to every subscriber. Never blocks: a client
// with a full backlog misses the event.
func (b *StatusBroadcaster) Broadcast(source, msg string) {
	data, err := json.Marshal(StatusEvent{
		Time:   time.Now().Format(time.RFC3339Nano),
		Source: source,
		Msg:    msg,
	})
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// BroadcastWriter returns an io.Writer that broadcasts every non-blank
// line written to it, tagged with source.
func BroadcastWriter(b *StatusBroadcaster, source string) *broadcastWriter {
	return &broadcastWriter{b: b, source: source}
}

type broadcastWriter struct {
	b      *StatusBroadcaster
	source string
}

func (w *broadcastWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.Broadcast(w.source, msg)
		}
	}
	return len(p), nil
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/TurnGo/internal/debug"
)

// maxWriteBody caps the JSON body of POST /bus/write.
const maxWriteBody = 1 << 10

// ReadRequest is the text message a websocket master sends to read the
// device. Any binary message is a write transaction.
const ReadRequest = "?"

// Write is the JSON form of a three byte bus write.
type Write struct {
	Steps    int `json:"steps"`
	Activity int `json:"activity"`
}

// ValidateWrite checks that the fields fit their wire bytes. Activity
// codes are not checked here: unknown codes reach the device, which
// ignores them.
func ValidateWrite(wr Write) error {
	if wr.Steps < 0 || wr.Steps > 0xFFFF {
		return fmt.Errorf("steps must be between 0 and 65535, got %d", wr.Steps)
	}
	if wr.Activity < 0 || wr.Activity > 0xFF {
		return fmt.Errorf("activity must be between 0 and 255, got %d", wr.Activity)
	}
	return nil
}

// Bytes returns the wire form {stepsHigh, stepsLow, activity}.
func (wr Write) Bytes() []byte {
	return []byte{byte(wr.Steps >> 8), byte(wr.Steps), byte(wr.Activity)}
}

// SnapshotFunc returns a JSON-encodable view of the device.
type SnapshotFunc func() any

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Bridge      *BusBridge
	Status      SnapshotFunc
	Info        SnapshotFunc
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers. status and info may be nil.
func NewHandlers(broadcaster *StatusBroadcaster, bridge *BusBridge, status, info SnapshotFunc) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Bridge:      bridge,
		Status:      status,
		Info:        info,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 256,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func serveSnapshot(w http.ResponseWriter, fn SnapshotFunc) {
	if fn == nil {
		http.Error(w, "not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, fn())
}

// HandleStatus returns the guard state as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	serveSnapshot(w, h.Status)
}

// HandleInfo returns the configuration summary as JSON.
func (h *Handlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	serveSnapshot(w, h.Info)
}

// HandleWrite handles POST /bus/write, a bus write for masters that
// cannot speak websocket.
func (h *Handlers) HandleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wr Write
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWriteBody)).Decode(&wr); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateWrite(wr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch err := h.Bridge.Write(wr.Bytes()); {
	case errors.Is(err, ErrOffline):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, ErrBusy):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// HandleRead handles GET /bus/read.
func (h *Handlers) HandleRead(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bridge.Read()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"running": int(b)})
}

// HandleBus upgrades GET /bus to a websocket bus master connection.
// Each binary message is one write transaction, forwarded whatever its
// length. A text ReadRequest is answered with one binary byte.
func (h *Handlers) HandleBus(w http.ResponseWriter, r *http.Request) {
	if !h.Bridge.Online() {
		http.Error(w, ErrOffline.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("Bus: websocket upgrade failed: %v", err)
		return
	}
	if !h.Bridge.attach(conn) {
		conn.Close()
		return
	}
	defer func() {
		h.Bridge.detach(conn)
		conn.Close()
	}()
	debug.Live("Bus: master connected from %s", r.RemoteAddr)

	for {
		kind, msg, err := readBusMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Verbose("Bus: read error: %v", err)
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := h.Bridge.Write(msg); err != nil {
				debug.Verbose("Bus: write dropped: %v", err)
			}
			if h.Broadcaster != nil {
				h.Broadcaster.Broadcast(SourceBus, fmt.Sprintf("write % x", msg))
			}
		case websocket.TextMessage:
			if string(msg) != ReadRequest {
				debug.Verbose("Bus: ignoring text message %q", msg)
				continue
			}
			b, err := h.Bridge.Read()
			if err != nil {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, []byte{b}); err != nil {
				return
			}
		}
	}
}

// readBusMessage reads the next message, keeping at most BusMessageLimit
// bytes and discarding the rest so the connection stays usable.
func readBusMessage(conn *websocket.Conn) (int, []byte, error) {
	kind, r, err := conn.NextReader()
	if err != nil {
		return 0, nil, err
	}
	msg, err := io.ReadAll(io.LimitReader(r, BusMessageLimit))
	if err != nil {
		return 0, nil, err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, nil, err
	}
	return kind, msg, nil
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

package bus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
)

type dispatchCall struct {
	steps uint32
	code  activity.Code
}

// recordingDispatcher records Dispatch calls for verification.
type recordingDispatcher struct {
	calls []dispatchCall
}

func (d *recordingDispatcher) Dispatch(steps uint32, code activity.Code) activity.Outcome {
	d.calls = append(d.calls, dispatchCall{steps, code})
	return activity.Moved
}

type fakeRunner struct{ running bool }

func (f *fakeRunner) IsRunning() bool { return f.running }

func newTestHandler(factor uint32) (*Handler, *Buffer, *recordingDispatcher, *state.Machine) {
	buf := &Buffer{}
	d := &recordingDispatcher{}
	st := state.New(false, false)
	return NewHandler(buf, d, activity.NewGearing(factor), st, nil), buf, d, st
}

func TestOnReceive_ThreeBytes(t *testing.T) {
	h, buf, d, _ := newTestHandler(1)
	buf.Load([]byte{0x01, 0x00, 0x01})

	if got := h.OnReceive(buf.Available()); got != activity.Moved {
		t.Fatalf("OnReceive = %v", got)
	}
	if len(d.calls) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(d.calls))
	}
	if d.calls[0].steps != 256 || d.calls[0].code != activity.MovePhaseB {
		t.Errorf("dispatched %+v, want {256 1}", d.calls[0])
	}
	if buf.Available() != 0 {
		t.Errorf("%d bytes left unread", buf.Available())
	}
}

func TestOnReceive_WrongLengthDrainsAll(t *testing.T) {
	for n := 0; n <= BufferSize; n++ {
		if n == RequestLength {
			continue
		}
		h, buf, d, _ := newTestHandler(1)
		payload := bytes.Repeat([]byte{0xAA}, n)
		buf.Load(payload)

		if got := h.OnReceive(n); got != activity.Discarded {
			t.Errorf("n=%d: OnReceive = %v, want discarded", n, got)
		}
		if buf.Available() != 0 {
			t.Errorf("n=%d: %d bytes left in buffer", n, buf.Available())
		}
		if len(d.calls) != 0 {
			t.Errorf("n=%d: unexpected dispatch %v", n, d.calls)
		}
	}
}

func TestOnReceive_TwoBytesThenValidTransaction(t *testing.T) {
	h, buf, d, _ := newTestHandler(1)
	buf.Load([]byte{0x00, 0x32})
	h.OnReceive(2)

	buf.Load([]byte{0x00, 0x32, 0x02})
	h.OnReceive(3)
	if len(d.calls) != 1 || d.calls[0] != (dispatchCall{50, activity.Home}) {
		t.Errorf("calls = %+v", d.calls)
	}
}

func TestOnReceive_ShortBufferDiscarded(t *testing.T) {
	h, buf, d, _ := newTestHandler(1)
	buf.Load([]byte{0x00})
	if got := h.OnReceive(3); got != activity.Discarded {
		t.Errorf("OnReceive = %v, want discarded", got)
	}
	if len(d.calls) != 0 {
		t.Errorf("unexpected dispatch %v", d.calls)
	}
}

func TestOnReceive_GearingClamped(t *testing.T) {
	h, buf, d, _ := newTestHandler(15)
	buf.Load([]byte{0x00, 0x64, 0x00})
	h.OnReceive(3)
	if d.calls[0].steps != 100*activity.MaxGearingFactor {
		t.Errorf("steps = %d, want %d", d.calls[0].steps, 100*activity.MaxGearingFactor)
	}
}

func TestLoopback_ConsumesStagingNotTransport(t *testing.T) {
	h, buf, d, _ := newTestHandler(1)
	buf.Load([]byte{0x7F, 0x7F, 0x09})

	h.Loopback(100, activity.LEDOn)

	if h.Staged().Pending() {
		t.Error("staging should be consumed")
	}
	if buf.Available() != 3 {
		t.Errorf("transport bytes should be untouched, %d available", buf.Available())
	}
	if len(d.calls) != 1 || d.calls[0] != (dispatchCall{100, activity.LEDOn}) {
		t.Errorf("calls = %+v", d.calls)
	}

	// The next real transaction reads the transport again.
	h.OnReceive(3)
	if len(d.calls) != 2 || d.calls[1] != (dispatchCall{0x7F7F, activity.AccessoryOff}) {
		t.Errorf("calls = %+v", d.calls)
	}
}

func TestLoopback_EquivalentToBusWrite(t *testing.T) {
	hLoop, _, dLoop, _ := newTestHandler(2)
	hBus, buf, dBus, _ := newTestHandler(2)

	hLoop.Loopback(100, activity.MovePhaseA)
	buf.Load([]byte{0, 100, 0})
	hBus.OnReceive(3)

	if len(dLoop.calls) != 1 || len(dBus.calls) != 1 || dLoop.calls[0] != dBus.calls[0] {
		t.Errorf("loopback %+v != bus %+v", dLoop.calls, dBus.calls)
	}
}

func TestOnRequest(t *testing.T) {
	h, _, _, st := newTestHandler(1)
	r := &fakeRunner{}
	st.Attach(r)
	if got := h.OnRequest(); got != 0 {
		t.Errorf("idle OnRequest = %d, want 0", got)
	}
	r.running = true
	if got := h.OnRequest(); got != 1 {
		t.Errorf("running OnRequest = %d, want 1", got)
	}
}

func TestOnReceive_DebugTrace(t *testing.T) {
	var out bytes.Buffer
	buf := &Buffer{}
	st := state.New(true, false)
	h := NewHandler(buf, &recordingDispatcher{}, activity.NewGearing(3), st, &out)

	buf.Load([]byte{0x00, 0x0A, 0x04})
	h.OnReceive(3)
	if !strings.Contains(out.String(), "gearingFactor|receivedSteps|steps: 3|10|30") {
		t.Errorf("debug output = %q", out.String())
	}

	out.Reset()
	buf.Load([]byte{1, 2})
	h.OnReceive(2)
	if !strings.Contains(out.String(), "Incorrect number of bytes received") {
		t.Errorf("debug output = %q", out.String())
	}
}

func TestBuffer_Truncates(t *testing.T) {
	var b Buffer
	if n := b.Load(make([]byte, BufferSize+10)); n != BufferSize {
		t.Errorf("Load kept %d bytes, want %d", n, BufferSize)
	}
	for b.Available() > 0 {
		if _, err := b.ReadByte(); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := b.ReadByte(); err != ErrEmpty {
		t.Errorf("err = %v, want ErrEmpty", err)
	}
}

// countingDispatcher records calls without allocating.
type countingDispatcher struct{ n int }

func (d *countingDispatcher) Dispatch(steps uint32, code activity.Code) activity.Outcome {
	d.n++
	return activity.Moved
}

func TestOnReceive_NoAllocationWithDebugOff(t *testing.T) {
	var out bytes.Buffer
	buf := &Buffer{}
	d := &countingDispatcher{}
	h := NewHandler(buf, d, activity.NewGearing(2), state.New(false, false), &out)

	cases := []struct {
		name    string
		payload []byte
	}{
		{"request", []byte{0x12, 0x34, 0x09}},
		{"wrong length", []byte{0x12, 0x34}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allocs := testing.AllocsPerRun(100, func() {
				h.OnReceive(buf.Load(tc.payload))
			})
			if allocs != 0 {
				t.Errorf("OnReceive allocated %.0f times per call", allocs)
			}
		})
	}
	if out.Len() != 0 {
		t.Errorf("debug disabled should print nothing, got %q", out.String())
	}
	if d.n == 0 {
		t.Error("request never dispatched")
	}
}

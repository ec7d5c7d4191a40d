package bus

import (
	"fmt"
	"io"

	"github.com/cjeanneret/TurnGo/internal/logic/activity"
	"github.com/cjeanneret/TurnGo/internal/logic/state"
)

// RequestLength is the only write transaction shape the device acts on:
// [stepsHigh, stepsLow, activity].
const RequestLength = 3

// Dispatcher consumes a geared step count and an activity code.
type Dispatcher interface {
	Dispatch(steps uint32, code activity.Code) activity.Outcome
}

// Staging is a single-slot mailbox used to inject one synthetic request
// into OnReceive. It is consumed exactly once.
type Staging struct {
	stepsHigh uint8
	stepsLow  uint8
	activity  uint8
	pending   bool
}

// Pending reports whether a staged request is waiting.
func (s *Staging) Pending() bool { return s.pending }

func (s *Staging) stage(req activity.Request) {
	s.stepsHigh, s.stepsLow = req.Split()
	s.activity = uint8(req.Code)
	s.pending = true
}

func (s *Staging) take() (high, low, code uint8) {
	s.pending = false
	return s.stepsHigh, s.stepsLow, s.activity
}

// Handler implements the bus peripheral callbacks. Both callbacks must
// return quickly: they do no I/O beyond the receive buffer and no
// allocation outside debug output.
type Handler struct {
	transport  Transport
	dispatcher Dispatcher
	gearing    *activity.Gearing
	state      *state.Machine
	out        io.Writer
	staging    Staging
}

// NewHandler creates a handler reading transactions from t.
func NewHandler(t Transport, d Dispatcher, g *activity.Gearing, st *state.Machine, out io.Writer) *Handler {
	return &Handler{
		transport:  t,
		dispatcher: d,
		gearing:    g,
		state:      st,
		out:        out,
	}
}

// OnReceive handles a write transaction of n bytes.
func (h *Handler) OnReceive(n int) activity.Outcome {
	if h.debugging() {
		fmt.Fprintf(h.out, "DEBUG: Received %d bytes\n", n)
	}
	if n != RequestLength {
		if h.debugging() {
			fmt.Fprint(h.out, "DEBUG: Incorrect number of bytes received, discarding\n")
		}
		h.drain()
		return activity.Discarded
	}

	var high, low, code uint8
	if h.staging.pending {
		high, low, code = h.staging.take()
	} else {
		var ok bool
		if high, low, code, ok = h.readTriple(); !ok {
			h.drain()
			return activity.Discarded
		}
	}

	req := activity.NewRequest(high, low, code)
	steps := h.gearing.Scale(req.RawSteps)
	if h.debugging() {
		fmt.Fprintf(h.out, "DEBUG: receivedStepsMSB|receivedStepsLSB|activity: %d|%d|%d\n", high, low, code)
		fmt.Fprintf(h.out, "DEBUG: gearingFactor|receivedSteps|steps: %d|%d|%d\n", h.gearing.Factor(), req.RawSteps, steps)
	}
	return h.dispatcher.Dispatch(steps, req.Code)
}

// OnRequest answers a read transaction: 1 while the stepper is moving.
func (h *Handler) OnRequest() byte {
	if h.state.StepperRunning() {
		return 1
	}
	return 0
}

// Loopback runs a request through OnReceive exactly as if a bus master had
// written it, so the text and bus protocols share one code path.
func (h *Handler) Loopback(steps uint16, code activity.Code) activity.Outcome {
	h.staging.stage(activity.Request{RawSteps: steps, Code: code})
	return h.OnReceive(RequestLength)
}

// Staged exposes the loopback mailbox for inspection.
func (h *Handler) Staged() *Staging { return &h.staging }

func (h *Handler) readTriple() (high, low, code uint8, ok bool) {
	var err error
	if high, err = h.transport.ReadByte(); err != nil {
		return 0, 0, 0, false
	}
	if low, err = h.transport.ReadByte(); err != nil {
		return 0, 0, 0, false
	}
	if code, err = h.transport.ReadByte(); err != nil {
		return 0, 0, 0, false
	}
	return high, low, code, true
}

// drain discards everything left in the receive buffer so the next
// transaction starts aligned.
func (h *Handler) drain() {
	for h.transport.Available() > 0 {
		if _, err := h.transport.ReadByte(); err != nil {
			return
		}
	}
}

// debugging gates every trace at its call site; boxing the arguments
// would otherwise allocate with debug output off.
func (h *Handler) debugging() bool {
	return h.out != nil && h.state.Debug()
}

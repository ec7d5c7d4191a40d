package console

const (
	// FrameCapacity is the size of the frame buffer including the terminator.
	FrameCapacity = 20

	StartMarker = '<'
	EndMarker   = '>'
)

// Frame accumulates the characters of one <...> command.
//
// It never grows: once full, the write index stays on the last slot and
// further characters overwrite it. The terminator then lands on that
// slot too, so at most FrameCapacity-1 characters survive.
type Frame struct {
	buf        [FrameCapacity]byte
	idx        int
	inProgress bool
	length     int
	ready      bool
}

// Push feeds one byte and reports whether a frame just completed.
// Bytes outside a frame are discarded.
func (f *Frame) Push(c byte) bool {
	if !f.inProgress {
		if c == StartMarker {
			f.inProgress = true
		}
		return false
	}
	if c != EndMarker {
		f.buf[f.idx] = c
		f.idx++
		if f.idx >= FrameCapacity {
			f.idx = FrameCapacity - 1
		}
		return false
	}
	f.buf[f.idx] = 0
	f.length = f.idx
	f.inProgress = false
	f.idx = 0
	f.ready = true
	return true
}

// Ready reports whether a completed frame is waiting to be taken.
func (f *Frame) Ready() bool { return f.ready }

// Take returns the completed frame text and clears the ready mark.
func (f *Frame) Take() string {
	if !f.ready {
		return ""
	}
	f.ready = false
	return string(f.buf[:f.length])
}

// Reset abandons any partial frame.
func (f *Frame) Reset() {
	f.idx = 0
	f.length = 0
	f.inProgress = false
	f.ready = false
}

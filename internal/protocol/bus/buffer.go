package bus

import "errors"

// BufferSize mirrors the receive buffer of a typical two-wire peripheral.
const BufferSize = 32

// ErrEmpty is returned when reading past the received bytes.
var ErrEmpty = errors.New("bus: receive buffer empty")

// Transport is the receive side of the bus as seen from a callback.
type Transport interface {
	Available() int
	ReadByte() (byte, error)
}

// Buffer is a fixed receive buffer loaded once per write transaction.
// Bytes beyond BufferSize are dropped, as a hardware peripheral would.
type Buffer struct {
	data [BufferSize]byte
	n    int
	pos  int
}

// Load replaces the buffer contents and returns the number of bytes kept.
func (b *Buffer) Load(p []byte) int {
	b.n = copy(b.data[:], p)
	b.pos = 0
	return b.n
}

func (b *Buffer) Available() int { return b.n - b.pos }

func (b *Buffer) ReadByte() (byte, error) {
	if b.pos >= b.n {
		return 0, ErrEmpty
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

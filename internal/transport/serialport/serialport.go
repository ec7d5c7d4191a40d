package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/cjeanneret/TurnGo/internal/debug"
)

// DefaultBaudRate matches the console of the original hardware.
const DefaultBaudRate = 115200

// rxBufferSize bounds the bytes held between two loop iterations. Bytes
// arriving while it is full wait in the OS buffer.
const rxBufferSize = 256

// ErrClosed is returned once the port has been closed or the peer went away.
var ErrClosed = errors.New("serialport: closed")

// errEmpty is returned by ReadByte when no byte is waiting.
var errEmpty = errors.New("serialport: no data")

// Port turns a blocking byte stream into the non-blocking source the
// console polls. A reader goroutine pumps bytes into a bounded channel.
type Port struct {
	r  io.Reader
	w  io.Writer
	c  io.Closer
	rx chan byte

	wmu       sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Open opens a serial device at baud 8N1.
func Open(name string, baud int) (*Port, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	debug.Info("Serial console on %s at %d baud", name, baud)
	return newPort(port, port, port), nil
}

// Pipe adapts any reader/writer pair, e.g. stdin and stdout in mock mode.
func Pipe(r io.Reader, w io.Writer) *Port {
	var c io.Closer
	if rc, ok := r.(io.Closer); ok {
		c = rc
	}
	return newPort(r, w, c)
}

func newPort(r io.Reader, w io.Writer, c io.Closer) *Port {
	p := &Port{
		r:    r,
		w:    w,
		c:    c,
		rx:   make(chan byte, rxBufferSize),
		done: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *Port) pump() {
	buf := make([]byte, 64)
	for {
		n, err := p.r.Read(buf)
		for _, b := range buf[:n] {
			select {
			case p.rx <- b:
			case <-p.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				debug.Verbose("Serial read stopped: %v", err)
			}
			return
		}
	}
}

// Available returns the number of bytes ready to read.
func (p *Port) Available() int { return len(p.rx) }

// ReadByte returns the next waiting byte without blocking.
func (p *Port) ReadByte() (byte, error) {
	select {
	case b := <-p.rx:
		return b, nil
	default:
	}
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
		return 0, errEmpty
	}
}

// Write sends p to the peer. Safe for concurrent use.
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, ErrClosed
	default:
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.w.Write(b)
}

// Close stops the reader and closes the underlying device.
func (p *Port) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		if p.c != nil {
			err = p.c.Close()
		}
	})
	return err
}

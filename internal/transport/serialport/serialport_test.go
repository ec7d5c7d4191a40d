package serialport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// waitAvailable polls until n bytes are buffered.
func waitAvailable(t *testing.T, p *Port, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Available() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Available() = %d, want %d", p.Available(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPipe_ReadsBytes(t *testing.T) {
	p := Pipe(strings.NewReader("<V>"), io.Discard)
	defer p.Close()

	waitAvailable(t, p, 3)
	var got []byte
	for p.Available() > 0 {
		b, err := p.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte: %v", err)
		}
		got = append(got, b)
	}
	if string(got) != "<V>" {
		t.Errorf("read %q, want <V>", got)
	}
}

func TestPipe_ReadByteNeverBlocks(t *testing.T) {
	r, w := io.Pipe()
	p := Pipe(r, io.Discard)
	defer w.Close()

	if _, err := p.ReadByte(); err == nil || errors.Is(err, ErrClosed) {
		t.Errorf("ReadByte on idle port: err = %v, want a non-closed error", err)
	}
	if p.Available() != 0 {
		t.Errorf("Available() = %d", p.Available())
	}
}

func TestPipe_Write(t *testing.T) {
	var out bytes.Buffer
	p := Pipe(strings.NewReader(""), &out)
	if _, err := p.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.String() != "hello\n" {
		t.Errorf("wrote %q", out.String())
	}
}

func TestPort_Close(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	p := Pipe(r, io.Discard)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := p.ReadByte(); !errors.Is(err, ErrClosed) {
		t.Errorf("ReadByte after Close: err = %v, want ErrClosed", err)
	}
	if _, err := p.Write([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close: err = %v, want ErrClosed", err)
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	if _, err := Open("/dev/does-not-exist-turngo", 0); err == nil {
		t.Error("expected an error for a missing device")
	}
}

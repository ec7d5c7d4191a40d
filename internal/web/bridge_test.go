package web

import (
	"errors"
	"testing"
)

func TestBusBridge_WriteCopiesPayload(t *testing.T) {
	b := NewBusBridge(0, nil)
	p := []byte{0, 100, 0}
	if err := b.Write(p); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p[1] = 0xFF
	if got := <-b.Transactions(); got[1] != 100 {
		t.Errorf("queued payload aliased the caller's buffer: %v", got)
	}
}

func TestBusBridge_ReadWithoutCallback(t *testing.T) {
	b := NewBusBridge(0, nil)
	if v, err := b.Read(); err != nil || v != 0 {
		t.Errorf("Read() = %d, %v; want 0, nil", v, err)
	}
}

func TestBusBridge_Offline(t *testing.T) {
	b := NewBusBridge(0, func() byte { return 1 })
	if !b.Online() {
		t.Fatal("new bridge should be online")
	}
	if err := b.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := b.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
	if b.Online() {
		t.Error("bridge should be offline")
	}
	if err := b.Write([]byte{1}); !errors.Is(err, ErrOffline) {
		t.Errorf("Write err = %v, want ErrOffline", err)
	}
	if _, err := b.Read(); !errors.Is(err, ErrOffline) {
		t.Errorf("Read err = %v, want ErrOffline", err)
	}
}

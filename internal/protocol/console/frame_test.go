package console

import (
	"strings"
	"testing"
)

func pushAll(f *Frame, s string) (completed int) {
	for i := 0; i < len(s); i++ {
		if f.Push(s[i]) {
			completed++
		}
	}
	return completed
}

func TestFrame_Basic(t *testing.T) {
	var f Frame
	if n := pushAll(&f, "<M 100 0>"); n != 1 {
		t.Fatalf("completed frames = %d, want 1", n)
	}
	if got := f.Take(); got != "M 100 0" {
		t.Errorf("Take() = %q", got)
	}
	if f.Ready() {
		t.Error("frame should not be ready after Take")
	}
}

func TestFrame_DiscardsStrayBytes(t *testing.T) {
	var f Frame
	pushAll(&f, "garbage>>  <V>trailing")
	if got := f.Take(); got != "V" {
		t.Errorf("Take() = %q, want V", got)
	}
	// "trailing" arrived outside a frame and must not start one.
	if pushAll(&f, ">") != 0 {
		t.Error("stray end marker must not complete a frame")
	}
}

func TestFrame_OverflowFreezesLastSlot(t *testing.T) {
	var f Frame
	body := strings.Repeat("a", FrameCapacity-2) + "XYZ"
	pushAll(&f, "<"+body+">")
	got := f.Take()
	if len(got) != FrameCapacity-1 {
		t.Fatalf("len = %d, want %d (got %q)", len(got), FrameCapacity-1, got)
	}
	// Y and Z landed on the frozen slot and the terminator replaced them.
	want := strings.Repeat("a", FrameCapacity-2) + "X"
	if got != want {
		t.Errorf("Take() = %q, want %q", got, want)
	}
}

func TestFrame_ExactlyCapacityMinusOne(t *testing.T) {
	var f Frame
	body := strings.Repeat("b", FrameCapacity-1)
	pushAll(&f, "<"+body+">")
	if got := f.Take(); got != body {
		t.Errorf("Take() = %q, want %q", got, body)
	}
}

func TestFrame_ResetsBetweenFrames(t *testing.T) {
	var f Frame
	pushAll(&f, "<HELLO>")
	f.Take()
	pushAll(&f, "<C>")
	if got := f.Take(); got != "C" {
		t.Errorf("Take() = %q, want C", got)
	}
}

func TestFrame_EmptyFrame(t *testing.T) {
	var f Frame
	if pushAll(&f, "<>") != 1 {
		t.Fatal("empty frame should still complete")
	}
	if got := f.Take(); got != "" {
		t.Errorf("Take() = %q, want empty", got)
	}
}

func TestFrame_Reset(t *testing.T) {
	var f Frame
	pushAll(&f, "<abc")
	f.Reset()
	if pushAll(&f, "def>") != 0 {
		t.Error("reset frame should ignore bytes until the next start marker")
	}
}

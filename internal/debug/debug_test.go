package debug

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(lvl)
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init(LevelOff)
	})
	return &buf
}

func TestLevelOffIsSilent(t *testing.T) {
	buf := capture(t, LevelOff)
	Info("hello")
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("level 0 wrote %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelLive)
	Info("startup")
	Transaction(3, "moved")
	Verbose("hidden")
	GPIO("WritePin", 17, true)

	out := buf.String()
	if !strings.Contains(out, "[INFO] startup") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "Bus: 3 byte write -> moved") {
		t.Errorf("missing transaction line in %q", out)
	}
	if strings.Contains(out, "hidden") || strings.Contains(out, "[GPIO]") {
		t.Errorf("levels above live leaked: %q", out)
	}
	if !IsEnabled(LevelLive) || IsEnabled(LevelVerbose) {
		t.Errorf("IsEnabled inconsistent with level %d", Level())
	}
}

func TestSetOutputBeforeInit(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(LevelInfo)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		Init(LevelOff)
	})
	Value("Mock GPIO", true)
	if !strings.Contains(buf.String(), "Mock GPIO = true") {
		t.Errorf("output not redirected: %q", buf.String())
	}
}

package console

import (
	"math"
	"testing"
)

func TestParse_SingleLetterCommands(t *testing.T) {
	for _, k := range []Kind{Calibrate, ToggleDebug, EraseCalibration, Home, SoftReboot, ToggleSensorTestMode, ShowInfo} {
		cmd, ok := Parse(string(k) + " ignored extra")
		if !ok {
			t.Errorf("%c: expected ok", k)
			continue
		}
		if cmd.Kind != k {
			t.Errorf("kind = %c, want %c", cmd.Kind, k)
		}
	}
}

func TestParse_QuotesAreOrdinary(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
	}{
		{"C it's", Calibrate},
		{`D"`, ToggleDebug},
		{`H "unbalanced`, Home},
		{"V # not a comment", ShowInfo},
	}
	for _, tc := range cases {
		cmd, ok := Parse(tc.in)
		if !ok || cmd.Kind != tc.want {
			t.Errorf("Parse(%q) = %+v, %v; want %c", tc.in, cmd, ok, tc.want)
		}
	}
}

func TestParse_FirstCharacterSelects(t *testing.T) {
	cmd, ok := Parse("Verbose")
	if !ok || cmd.Kind != ShowInfo {
		t.Errorf("Parse(Verbose) = %+v, %v", cmd, ok)
	}
}

func TestParse_Move(t *testing.T) {
	cases := []struct {
		in       string
		steps    int64
		activity uint8
	}{
		{"M 100 0", 100, 0},
		{"M   200    4", 200, 4},
		{"M -5 1", -5, 1},
		{"M 40000 0", 40000, 0},
		{"M 12abc 3x", 12, 3},
		{"M abc", 0, 0},
		{"M", 0, 0},
		{"M 10 300", 10, 44},
		{"M 100 4 don't", 100, 4},
		{`M "unterminated`, 0, 0},
		{"M\t7 1", 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			cmd, ok := Parse(tc.in)
			if !ok {
				t.Fatal("expected ok")
			}
			if cmd.Kind != Move || cmd.Steps != tc.steps || cmd.Activity != tc.activity {
				t.Errorf("Parse(%q) = %+v, want steps=%d activity=%d", tc.in, cmd, tc.steps, tc.activity)
			}
		})
	}
}

func TestParse_Rejected(t *testing.T) {
	for _, in := range []string{"", "   ", "X", "m 100 0", "c", `"C"`, "'H'", "\\V"} {
		if cmd, ok := Parse(in); ok {
			t.Errorf("Parse(%q) = %+v, want rejected", in, cmd)
		}
	}
}

func TestParseLong(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"+42", 42},
		{"-42", -42},
		{"007", 7},
		{"", 0},
		{"-", 0},
		{"99999999999999999999", math.MaxInt64},
		{"-99999999999999999999", math.MinInt64},
	}
	for _, tc := range cases {
		if got := parseLong(tc.in); got != tc.want {
			t.Errorf("parseLong(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

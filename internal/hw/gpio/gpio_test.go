package gpio

import "testing"

func TestMockDriver_ReadBackWrites(t *testing.T) {
	m := &MockDriver{}
	if lvl, _ := m.ReadPin(4); lvl != Low {
		t.Errorf("untouched pin = %v, want Low", lvl)
	}
	if err := m.WritePin(4, High); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := m.ReadPin(4); lvl != High {
		t.Errorf("pin after write = %v, want High", lvl)
	}
}

func TestMockDriver_PullUpIdlesHigh(t *testing.T) {
	m := &MockDriver{}
	if err := m.SetupPin(5, InputPullUp); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := m.ReadPin(5); lvl != High {
		t.Errorf("pull-up input = %v, want High", lvl)
	}
	m.SetInput(5, Low)
	if lvl, _ := m.ReadPin(5); lvl != Low {
		t.Errorf("injected input = %v, want Low", lvl)
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

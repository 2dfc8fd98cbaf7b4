package midi

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"seeknobs/knobs"
	"seeknobs/monitor"
)

func testInputBus(t *testing.T) *InputBus {
	t.Helper()
	b, err := NewInputBus("keys", InputConfig{
		Pins:       []uint8{7, 6},
		Controls:   []uint8{21, 22},
		ButtonMask: 1<<5 | 1<<9,
		NoteBase:   36,
		ValueMax:   1023,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestInputBusControls(t *testing.T) {
	b := testInputBus(t)
	ctx := context.Background()

	b.Handle(gomidi.ControlChange(0, 21, 64))
	b.Handle(gomidi.ControlChange(0, 22, 127))
	b.Handle(gomidi.ControlChange(0, 99, 10)) // unmapped

	v, err := b.ReadAnalog(ctx, 7)
	if err != nil || v != 64*8+7 {
		t.Errorf("pin 7 = %d, %v; want %d", v, err, 64*8+7)
	}
	v, _ = b.ReadAnalog(ctx, 6)
	if v != 1023 {
		t.Errorf("pin 6 = %d, want 1023", v)
	}
	if _, err := b.ReadAnalog(ctx, 3); err == nil {
		t.Errorf("unmapped pin read succeeded")
	}
	if b.Received() != 2 {
		t.Errorf("Received = %d, want 2", b.Received())
	}
}

func TestInputBusScalesBackExactly(t *testing.T) {
	b := testInputBus(t)
	cfg := knobs.DefaultConfig()
	gate, err := knobs.NewGate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for value := 0; value < 128; value++ {
		b.Handle(gomidi.ControlChange(0, 21, uint8(value)))
		raw, _ := b.ReadAnalog(context.Background(), 7)
		if got := gate.Scale(raw); got != uint8(value) {
			t.Fatalf("cc %d -> raw %d -> %d", value, raw, got)
		}
	}
}

func TestInputBusButtons(t *testing.T) {
	b := testInputBus(t)
	ctx := context.Background()
	mask := uint32(1<<5 | 1<<9)

	bits, _ := b.ReadDigitalBulk(ctx, mask)
	if bits != mask {
		t.Errorf("idle bits = %#b, want all lines high %#b", bits, mask)
	}

	b.Handle(gomidi.NoteOn(0, 36, 100))
	b.Handle(gomidi.NoteOn(0, 37, 100))
	bits, _ = b.ReadDigitalBulk(ctx, mask)
	if bits != 0 {
		t.Errorf("held bits = %#b, want 0", bits)
	}

	b.Handle(gomidi.NoteOff(0, 36))
	b.Handle(gomidi.NoteOn(0, 37, 0))
	bits, _ = b.ReadDigitalBulk(ctx, mask)
	if bits != mask {
		t.Errorf("bits after release = %#b, want %#b", bits, mask)
	}
}

func TestInputBusHeldNoteShowsPressed(t *testing.T) {
	b := testInputBus(t)
	mask := uint32(1<<5 | 1<<9)
	r := monitor.New(&bytes.Buffer{}, time.Second, nil, mask)

	b.Handle(gomidi.NoteOn(0, 36, 100))
	bits, _ := b.ReadDigitalBulk(context.Background(), mask)
	line := r.Format(knobs.Snapshot{Values: knobs.Values{Buttons: bits}})

	// note 36 holds bit 5, bit 9 stays released
	if !strings.Contains(line, " ● ·") {
		t.Errorf("held button not drawn pressed:\n%s", line)
	}
}

func TestInputBusClosed(t *testing.T) {
	b := testInputBus(t)
	b.Close()
	if _, err := b.ReadAnalog(context.Background(), 7); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadAnalog after Close = %v", err)
	}
	if _, err := b.ReadDigitalBulk(context.Background(), 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ReadDigitalBulk after Close = %v", err)
	}
}

func TestInputBusRejectsMismatch(t *testing.T) {
	if _, err := NewInputBus("x", InputConfig{Pins: []uint8{1}, ValueMax: 1023}); err == nil {
		t.Errorf("mismatched pins/controls accepted")
	}
}

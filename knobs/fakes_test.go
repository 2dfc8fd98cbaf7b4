package knobs

import (
	"context"
	"errors"
	"time"

	"seeknobs/theme"
)

var errNack = errors.New("nack")

// fakeBus records every transaction and returns canned values.
type fakeBus struct {
	analog  map[uint8]uint16
	buttons uint32
	failPin map[uint8]bool
	failDig bool
	calls   []string // "a<pin>" or "d"
}

func newFakeBus() *fakeBus {
	return &fakeBus{analog: map[uint8]uint16{}, failPin: map[uint8]bool{}}
}

func (b *fakeBus) ReadAnalog(ctx context.Context, pin uint8) (uint16, error) {
	b.calls = append(b.calls, "a"+string(rune('0'+pin)))
	if b.failPin[pin] {
		return 0, errNack
	}
	return b.analog[pin], nil
}

func (b *fakeBus) ReadDigitalBulk(ctx context.Context, mask uint32) (uint32, error) {
	b.calls = append(b.calls, "d")
	if b.failDig {
		return 0, errNack
	}
	return b.buttons, nil
}

type pixel struct {
	index int
	color theme.RGB
}

type fakeIndicator struct {
	pixels []pixel
	err    error
}

func (f *fakeIndicator) SetPixel(index int, c theme.RGB) error {
	f.pixels = append(f.pixels, pixel{index, c})
	return f.err
}

type fakeEmitter struct {
	sent []Emission
	err  error
}

func (f *fakeEmitter) Emit(control, value uint8) error {
	f.sent = append(f.sent, Emission{Control: control, Value: value})
	return f.err
}

type fakeReporter struct {
	due     bool
	asked   int
	reports []Snapshot
}

func (r *fakeReporter) Due(now time.Time) bool {
	r.asked++
	return r.due
}

func (r *fakeReporter) Report(s Snapshot) {
	r.reports = append(r.reports, s)
}

// testConfig is a K-knob config with pins 0..K-1 and controls 20+i.
func testConfig(k int) Config {
	cfg := DefaultConfig()
	cfg.ChannelCount = k
	cfg.Pins = make([]uint8, k)
	cfg.OutputIDs = make([]uint8, k)
	for i := 0; i < k; i++ {
		cfg.Pins[i] = uint8(i)
		cfg.OutputIDs[i] = uint8(20 + i)
	}
	return cfg
}

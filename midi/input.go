package midi

import (
	"context"
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// InputConfig maps an input port's messages onto expander pins
type InputConfig struct {
	Pins       []uint8 // Controls[i] drives Pins[i]
	Controls   []uint8
	ButtonMask uint32
	NoteBase   uint8 // NoteBase+k toggles the k-th set bit of ButtonMask
	ValueMax   uint16
}

// InputBus stands in for the expander: knob values follow incoming control
// changes and buttons follow note on/off. Button lines are active low like the
// pulled-up expander inputs: a held note clears its bit. Safe for concurrent use.
type InputBus struct {
	name     string
	stopFunc func()
	closed   atomic.Bool

	controls map[uint8]uint8 // cc -> pin
	values   map[uint8]*atomic.Uint32
	notes    map[uint8]uint32 // note -> button bit
	buttons  atomic.Uint32
	divisor  uint32
	received atomic.Uint64
}

// NewInputBus builds a bus that is fed through Handle
func NewInputBus(name string, cfg InputConfig) (*InputBus, error) {
	if len(cfg.Pins) != len(cfg.Controls) {
		return nil, fmt.Errorf("input bus: %d pins but %d controls", len(cfg.Pins), len(cfg.Controls))
	}
	if cfg.ValueMax < 127 {
		return nil, fmt.Errorf("input bus: value max %d below 127", cfg.ValueMax)
	}

	b := &InputBus{
		name:     name,
		controls: make(map[uint8]uint8, len(cfg.Controls)),
		values:   make(map[uint8]*atomic.Uint32, len(cfg.Pins)),
		notes:    make(map[uint8]uint32),
		divisor:  (uint32(cfg.ValueMax) + 1) / 128,
	}
	for i, pin := range cfg.Pins {
		b.controls[cfg.Controls[i]] = pin
		b.values[pin] = new(atomic.Uint32)
	}
	k := 0
	for bit := 0; bit < 32; bit++ {
		if cfg.ButtonMask&(1<<bit) == 0 {
			continue
		}
		b.notes[cfg.NoteBase+uint8(k)] = 1 << bit
		k++
	}
	b.buttons.Store(cfg.ButtonMask)
	return b, nil
}

// OpenInputBus listens on the first input port whose name contains portName
func OpenInputBus(ctx context.Context, portName string, cfg InputConfig) (*InputBus, error) {
	ports, err := Scan(ctx)
	if err != nil {
		return nil, err
	}
	in, err := FindIn(ports.Ins, portName)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", portName, err)
	}
	b, err := NewInputBus(in.String(), cfg)
	if err != nil {
		return nil, err
	}

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		b.Handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	b.stopFunc = stop
	return b, nil
}

func (b *InputBus) Name() string { return b.name }

// Received counts messages that changed a knob or button
func (b *InputBus) Received() uint64 { return b.received.Load() }

// Handle applies one incoming message
func (b *InputBus) Handle(msg gomidi.Message) {
	var channel, cc, value, note, velocity uint8

	switch {
	case msg.GetControlChange(&channel, &cc, &value):
		pin, ok := b.controls[cc]
		if !ok {
			return
		}
		// Centre each CC step in its raw bucket so scaling back is exact
		b.values[pin].Store(uint32(value)*b.divisor + b.divisor - 1)
	case msg.GetNoteOn(&channel, &note, &velocity):
		bit, ok := b.notes[note]
		if !ok {
			return
		}
		b.setButton(bit, velocity > 0)
	case msg.GetNoteOff(&channel, &note, &velocity):
		bit, ok := b.notes[note]
		if !ok {
			return
		}
		b.setButton(bit, false)
	default:
		return
	}
	b.received.Add(1)
}

func (b *InputBus) setButton(bit uint32, down bool) {
	for {
		old := b.buttons.Load()
		next := old | bit
		if down {
			next = old &^ bit
		}
		if b.buttons.CompareAndSwap(old, next) {
			return
		}
	}
}

func (b *InputBus) ReadAnalog(ctx context.Context, pin uint8) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.closed.Load() {
		return 0, ErrNotConnected
	}
	v, ok := b.values[pin]
	if !ok {
		return 0, fmt.Errorf("input bus: no control mapped to pin %d", pin)
	}
	return uint16(v.Load()), nil
}

func (b *InputBus) ReadDigitalBulk(ctx context.Context, mask uint32) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if b.closed.Load() {
		return 0, ErrNotConnected
	}
	return b.buttons.Load() & mask, nil
}

func (b *InputBus) Close() error {
	b.closed.Store(true)
	if b.stopFunc != nil {
		b.stopFunc()
	}
	return nil
}

// Package sim is a stand-in for the I/O expander: knobs drift in a random walk
// and buttons toggle occasionally, with optional transaction latency and
// failing pins.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrNoAck is returned for pins configured to fail.
var ErrNoAck = errors.New("sim: no acknowledgement")

// Options tunes the simulation.
type Options struct {
	Seed     int64
	Latency  time.Duration // per transaction
	ValueMax uint16
	Step     int     // largest random-walk step per read
	Press    float64 // chance per bulk read that one button toggles
	FailPins []uint8
}

// Bus implements knobs.Bus. Button lines idle high (pulled up) and read low
// while pressed. It is not safe for concurrent use.
type Bus struct {
	opts    Options
	rng     *rand.Rand
	values  map[uint8]int
	buttons uint32
	seeded  bool // buttons released on the first bulk read
	fail    map[uint8]bool
	reads   int
}

func New(opts Options) *Bus {
	if opts.ValueMax == 0 {
		opts.ValueMax = 1023
	}
	if opts.Step <= 0 {
		opts.Step = 12
	}
	if opts.Press <= 0 {
		opts.Press = 0.05
	}
	fail := make(map[uint8]bool, len(opts.FailPins))
	for _, p := range opts.FailPins {
		fail[p] = true
	}
	return &Bus{
		opts:   opts,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		values: make(map[uint8]int),
		fail:   fail,
	}
}

// SetFail makes pin fail (or stop failing) from the next read on.
func (b *Bus) SetFail(pin uint8, fail bool) {
	b.fail[pin] = fail
}

// Reads is the number of transactions served, failed ones included.
func (b *Bus) Reads() int { return b.reads }

func (b *Bus) wait(ctx context.Context) error {
	b.reads++
	if b.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Bus) ReadAnalog(ctx context.Context, pin uint8) (uint16, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	if b.fail[pin] {
		return 0, fmt.Errorf("analog pin %d: %w", pin, ErrNoAck)
	}

	v, ok := b.values[pin]
	if !ok {
		v = b.rng.Intn(int(b.opts.ValueMax) + 1)
	}
	v += b.rng.Intn(2*b.opts.Step+1) - b.opts.Step
	if v < 0 {
		v = 0
	}
	if v > int(b.opts.ValueMax) {
		v = int(b.opts.ValueMax)
	}
	b.values[pin] = v
	return uint16(v), nil
}

func (b *Bus) ReadDigitalBulk(ctx context.Context, mask uint32) (uint32, error) {
	if err := b.wait(ctx); err != nil {
		return 0, err
	}
	if mask == 0 {
		return 0, nil
	}
	if !b.seeded {
		b.buttons = mask
		b.seeded = true
	}
	if b.rng.Float64() < b.opts.Press {
		var lines []uint32
		for bit := 0; bit < 32; bit++ {
			if mask&(1<<bit) != 0 {
				lines = append(lines, 1<<bit)
			}
		}
		b.buttons ^= lines[b.rng.Intn(len(lines))]
	}
	return b.buttons & mask, nil
}

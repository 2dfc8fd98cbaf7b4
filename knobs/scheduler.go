package knobs

import (
	"context"
	"time"

	"seeknobs/theme"
)

// Reading is the outcome of one Tick.
type Reading struct {
	Channel int  // knob index, or the knob count for the digital bank
	Digital bool // true when the tick read the button bank
	Value   uint32
	Color   theme.RGB // indicator colour pushed for a knob read

	Err          error // *TransactionError, value left stale
	IndicatorErr error // indicator sink rejected the colour
}

// OK reports whether the bus transaction succeeded.
func (r Reading) OK() bool { return r.Err == nil }

// Scheduler reads one channel per Tick, round-robin over the knobs followed by
// a single bulk read of the button bank. A full refresh takes K+1 ticks but
// each tick costs exactly one bus transaction.
type Scheduler struct {
	bus       Bus
	pins      []uint8
	mask      uint32
	timeout   time.Duration
	feedback  FeedbackFunc
	indicator IndicatorSink

	store  Store
	cursor int
}

// NewScheduler validates cfg and builds a scheduler starting at knob 0.
// A nil feedback uses the hue wheel; a nil indicator disables colour output.
func NewScheduler(bus Bus, cfg Config, feedback FeedbackFunc, indicator IndicatorSink) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, configErrorf("no bus")
	}
	if feedback == nil {
		feedback = WheelFeedback(cfg.FeedbackDivisor)
	}
	pins := make([]uint8, len(cfg.Pins))
	copy(pins, cfg.Pins)
	return &Scheduler{
		bus:       bus,
		pins:      pins,
		mask:      cfg.ButtonMask,
		timeout:   cfg.BusTimeout,
		feedback:  feedback,
		indicator: indicator,
		store:     newStore(len(pins)),
	}, nil
}

// Cursor is the channel the next Tick will read; Len() means the button bank.
func (s *Scheduler) Cursor() int { return s.cursor }

// Len is the number of knobs.
func (s *Scheduler) Len() int { return len(s.pins) }

// Store exposes the value store for reading.
func (s *Scheduler) Store() *Store { return &s.store }

// Tick performs exactly one bus transaction and advances the cursor, whether
// or not the transaction succeeded.
func (s *Scheduler) Tick(ctx context.Context) Reading {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.cursor == len(s.pins) {
		return s.readButtons(ctx)
	}
	return s.readKnob(ctx)
}

func (s *Scheduler) readKnob(ctx context.Context) Reading {
	i := s.cursor
	s.cursor++

	r := Reading{Channel: i}
	val, err := s.bus.ReadAnalog(ctx, s.pins[i])
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.store.failed[i] = true
		r.Err = &TransactionError{Channel: i, Pin: s.pins[i], Err: err}
		r.Value = uint32(s.store.knobs[i])
		return r
	}

	s.store.failed[i] = false
	s.store.knobs[i] = val
	r.Value = uint32(val)

	r.Color = s.feedback(val)
	s.store.colors[i] = r.Color
	if s.indicator != nil {
		r.IndicatorErr = s.indicator.SetPixel(i, r.Color)
	}
	return r
}

func (s *Scheduler) readButtons(ctx context.Context) Reading {
	k := len(s.pins)
	s.cursor = 0

	r := Reading{Channel: k, Digital: true}
	bits, err := s.bus.ReadDigitalBulk(ctx, s.mask)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.store.failed[k] = true
		r.Err = &TransactionError{Channel: k, Digital: true, Err: err}
		r.Value = s.store.buttons
		return r
	}

	s.store.failed[k] = false
	s.store.buttons = bits
	r.Value = bits
	return r
}

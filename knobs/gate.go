package knobs

import (
	"fmt"
	"strings"
)

// InitialPolicy decides what a knob's first evaluation compares against.
type InitialPolicy int

const (
	// InitialZero treats "never emitted" as an emitted 0, so a knob resting at
	// the bottom of its travel stays silent until it moves.
	InitialZero InitialPolicy = iota
	// InitialAlways emits the first scaled value of every knob unconditionally.
	InitialAlways
)

func (p InitialPolicy) String() string {
	switch p {
	case InitialZero:
		return "zero"
	case InitialAlways:
		return "always"
	default:
		return fmt.Sprintf("InitialPolicy(%d)", int(p))
	}
}

// ParseInitialPolicy accepts the names produced by String.
func ParseInitialPolicy(s string) (InitialPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return InitialZero, nil
	case "always":
		return InitialAlways, nil
	default:
		return InitialZero, configErrorf("unknown initial policy %q", s)
	}
}

// Emission is one control change the gate let through.
type Emission struct {
	Channel int
	Control uint8
	Value   uint8
}

// Gate suppresses control changes whose scaled value has not moved. Integer
// division does the debouncing: neighbouring raw values share a bucket.
type Gate struct {
	outputIDs []uint8
	divisor   uint16
	policy    InitialPolicy

	last    []uint8
	emitted []bool
}

// NewGate validates cfg and builds a gate with nothing emitted yet.
func NewGate(cfg Config) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids := make([]uint8, len(cfg.OutputIDs))
	copy(ids, cfg.OutputIDs)
	return &Gate{
		outputIDs: ids,
		divisor:   cfg.ScaleDivisor(),
		policy:    cfg.InitialPolicy,
		last:      make([]uint8, len(ids)),
		emitted:   make([]bool, len(ids)),
	}, nil
}

// Len is the number of gated channels.
func (g *Gate) Len() int { return len(g.outputIDs) }

// Divisor is the raw-to-output scaling divisor.
func (g *Gate) Divisor() uint16 { return g.divisor }

// Scale maps a raw value into [0, 127].
func (g *Gate) Scale(raw uint16) uint8 {
	v := raw / g.divisor
	if v >= OutputRange {
		v = OutputRange - 1
	}
	return uint8(v)
}

// Evaluate returns the emission for channel if its scaled value differs from
// the last one emitted, recording it as emitted.
func (g *Gate) Evaluate(channel int, raw uint16) (Emission, bool) {
	if channel < 0 || channel >= len(g.outputIDs) {
		return Emission{}, false
	}
	scaled := g.Scale(raw)
	first := !g.emitted[channel]
	if scaled == g.last[channel] && !(first && g.policy == InitialAlways) {
		return Emission{}, false
	}
	g.last[channel] = scaled
	g.emitted[channel] = true
	return Emission{Channel: channel, Control: g.outputIDs[channel], Value: scaled}, true
}

// Last returns the last emitted value for channel and whether anything has
// been emitted on it.
func (g *Gate) Last(channel int) (uint8, bool) {
	if channel < 0 || channel >= len(g.last) {
		return 0, false
	}
	return g.last[channel], g.emitted[channel]
}

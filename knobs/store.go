package knobs

import (
	"seeknobs/theme"
)

// Store holds the last acquired raw value of every channel. Only the
// Scheduler writes to it.
type Store struct {
	knobs   []uint16
	colors  []theme.RGB
	failed  []bool // last transaction per knob, plus the bank at index K
	buttons uint32
}

func newStore(k int) Store {
	return Store{
		knobs:  make([]uint16, k),
		colors: make([]theme.RGB, k),
		failed: make([]bool, k+1),
	}
}

// Len is the number of analog channels.
func (s *Store) Len() int { return len(s.knobs) }

func (s *Store) Knob(i int) uint16 { return s.knobs[i] }

func (s *Store) Buttons() uint32 { return s.buttons }

// Values is a copy of the store suitable for handing outside the loop.
type Values struct {
	Knobs   []uint16
	Colors  []theme.RGB
	Failed  []bool
	Buttons uint32
}

// Snapshot copies the store.
func (s *Store) Snapshot() Values {
	v := Values{
		Knobs:   make([]uint16, len(s.knobs)),
		Colors:  make([]theme.RGB, len(s.colors)),
		Failed:  make([]bool, len(s.failed)),
		Buttons: s.buttons,
	}
	copy(v.Knobs, s.knobs)
	copy(v.Colors, s.colors)
	copy(v.Failed, s.failed)
	return v
}

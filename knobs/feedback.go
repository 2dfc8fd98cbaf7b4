package knobs

import (
	"seeknobs/theme"
)

// WheelPeriod is the number of positions in one turn of the hue wheel.
const WheelPeriod = 256

// FeedbackFunc maps a raw knob value to an indicator colour. Implementations
// must be pure.
type FeedbackFunc func(raw uint16) theme.RGB

// Wheel walks red -> green -> blue -> red over WheelPeriod positions.
// Positions wrap, so Wheel(p) == Wheel(p+WheelPeriod).
func Wheel(pos int) theme.RGB {
	pos %= WheelPeriod
	if pos < 0 {
		pos += WheelPeriod
	}
	switch {
	case pos < 85:
		return theme.RGB{uint8(255 - pos*3), uint8(pos * 3), 0}
	case pos < 170:
		pos -= 85
		return theme.RGB{0, uint8(255 - pos*3), uint8(pos * 3)}
	default:
		pos -= 170
		return theme.RGB{uint8(pos * 3), 0, uint8(255 - pos*3)}
	}
}

// WheelFeedback divides the raw value by divisor before turning the wheel.
func WheelFeedback(divisor uint16) FeedbackFunc {
	if divisor == 0 {
		divisor = 1
	}
	return func(raw uint16) theme.RGB {
		return Wheel(int(raw / divisor))
	}
}

// PaletteFeedback spreads [0, valueMax] across a palette ramp.
func PaletteFeedback(p *theme.Palette, valueMax uint16) FeedbackFunc {
	if valueMax == 0 {
		valueMax = 1
	}
	return func(raw uint16) theme.RGB {
		return p.Lookup(float64(raw) / float64(valueMax))
	}
}

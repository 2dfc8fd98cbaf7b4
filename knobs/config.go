package knobs

import (
	"time"
)

// OutputRange is the number of distinct values a control change can carry.
const OutputRange = 128

// Config is the validated, typed form of everything the core needs.
type Config struct {
	ChannelCount    int
	Pins            []uint8 // one bus pin per knob
	ButtonMask      uint32  // digital lines read in bulk
	OutputIDs       []uint8 // control number per knob
	ValueMax        uint16  // largest raw analog value
	FeedbackDivisor uint16  // raw value divisor before the hue wheel

	Emit          bool
	InitialPolicy InitialPolicy

	// BusTimeout bounds each transaction; zero means no deadline.
	BusTimeout time.Duration
}

// DefaultConfig matches the eight-knob, four-button seesaw board.
func DefaultConfig() Config {
	return Config{
		ChannelCount:    8,
		Pins:            []uint8{7, 6, 3, 2, 1, 0, 19, 18},
		ButtonMask:      1<<5 | 1<<9 | 1<<13 | 1<<14,
		OutputIDs:       []uint8{21, 22, 23, 24, 25, 26, 27, 28},
		ValueMax:        1023,
		FeedbackDivisor: 4,
		Emit:            true,
		InitialPolicy:   InitialZero,
	}
}

// Validate checks the table-length invariants and the scaling constants.
// ValueMax+1 need not be a multiple of OutputRange: the divisor rounds down and
// Gate.Scale clamps the top of the range to 127, so for those resolutions the
// highest raw values all emit 127.
func (c Config) Validate() error {
	if c.ChannelCount <= 0 {
		return configErrorf("channel count must be positive, got %d", c.ChannelCount)
	}
	if len(c.Pins) != c.ChannelCount {
		return configErrorf("%d pins for %d channels", len(c.Pins), c.ChannelCount)
	}
	if len(c.OutputIDs) != c.ChannelCount {
		return configErrorf("%d output ids for %d channels", len(c.OutputIDs), c.ChannelCount)
	}
	for i, id := range c.OutputIDs {
		if id >= OutputRange {
			return configErrorf("output id %d for knob %d exceeds 127", id, i)
		}
	}
	if int(c.ValueMax)+1 < OutputRange {
		return configErrorf("value max %d is below the output range", c.ValueMax)
	}
	if c.FeedbackDivisor == 0 {
		return configErrorf("feedback divisor must be positive")
	}
	if c.ButtonMask == 0 {
		return configErrorf("button mask selects no lines")
	}
	if c.BusTimeout < 0 {
		return configErrorf("negative bus timeout %s", c.BusTimeout)
	}
	return nil
}

// ScaleDivisor is the integer divisor mapping [0, ValueMax] onto [0, 127].
func (c Config) ScaleDivisor() uint16 {
	return uint16((uint32(c.ValueMax) + 1) / OutputRange)
}

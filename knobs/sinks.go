package knobs

import (
	"context"
	"time"

	"seeknobs/theme"
)

// Bus is the I/O expander transport. Both reads are synchronous and may fail.
type Bus interface {
	ReadAnalog(ctx context.Context, pin uint8) (uint16, error)
	ReadDigitalBulk(ctx context.Context, mask uint32) (uint32, error)
}

// IndicatorSink receives per-knob colour updates. Fire and forget.
type IndicatorSink interface {
	SetPixel(index int, c theme.RGB) error
}

// EmissionSink receives control-change events. Fire and forget.
type EmissionSink interface {
	Emit(control, value uint8) error
}

// Reporter samples loop state at its own wall-clock cadence. Due must be cheap:
// it is asked once per tick and no snapshot is built when it declines.
type Reporter interface {
	Due(now time.Time) bool
	Report(s Snapshot)
}

// BrightnessIndicator dims every colour before forwarding it.
type BrightnessIndicator struct {
	Sink       IndicatorSink
	Brightness float64
}

func (b BrightnessIndicator) SetPixel(index int, c theme.RGB) error {
	return b.Sink.SetPixel(index, theme.Dim(c, b.Brightness))
}

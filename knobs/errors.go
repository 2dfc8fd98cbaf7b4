package knobs

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every construction-time validation failure.
var ErrConfig = errors.New("invalid configuration")

// TransactionError reports a failed bus read for one channel during one tick.
// It never stops the schedule; the channel is retried on the next cycle.
type TransactionError struct {
	Channel int // knob index, or the knob count for the digital bank
	Digital bool
	Pin     uint8
	Err     error
}

func (e *TransactionError) Error() string {
	if e.Digital {
		return fmt.Sprintf("digital bank read: %v", e.Err)
	}
	return fmt.Sprintf("knob %d (pin %d) read: %v", e.Channel, e.Pin, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

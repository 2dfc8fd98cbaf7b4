package midi

import (
	"context"
	"errors"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrPortNotFound = errors.New("midi: port not found")
	ErrNotConnected = errors.New("midi: device not connected")
	ErrScanTimeout  = errors.New("midi: port scan timed out")
)

// Port scans can hang when the system MIDI service is wedged
const scanTimeout = 3 * time.Second

// SendFunc writes one message to an open output port
type SendFunc func(msg gomidi.Message) error

// Ports is one snapshot of the system's MIDI ports
type Ports struct {
	Ins  []drivers.In
	Outs []drivers.Out
}

// InNames returns the input port names in driver order
func (p Ports) InNames() []string {
	names := make([]string, len(p.Ins))
	for i, in := range p.Ins {
		names[i] = in.String()
	}
	return names
}

// OutNames returns the output port names in driver order
func (p Ports) OutNames() []string {
	names := make([]string, len(p.Outs))
	for i, out := range p.Outs {
		names[i] = out.String()
	}
	return names
}

// Scan lists the system ports, giving up after a few seconds.
func Scan(ctx context.Context) (Ports, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{Ins: gomidi.GetInPorts(), Outs: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Ports{}, ErrScanTimeout
		}
		return Ports{}, ctx.Err()
	}
}

// FindOut returns the first output whose name contains want (case-insensitive).
// An empty want selects the first output that is not a Launchpad.
func FindOut(outs []drivers.Out, want string) (drivers.Out, error) {
	for _, out := range outs {
		if matchName(out.String(), want) {
			return out, nil
		}
	}
	return nil, ErrPortNotFound
}

// FindIn is FindOut for inputs
func FindIn(ins []drivers.In, want string) (drivers.In, error) {
	for _, in := range ins {
		if matchName(in.String(), want) {
			return in, nil
		}
	}
	return nil, ErrPortNotFound
}

func matchName(name, want string) bool {
	if want == "" {
		return !isLaunchpad(name)
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(want))
}

func pickName(names []string, want string) (string, bool) {
	for _, n := range names {
		if matchName(n, want) {
			return n, true
		}
	}
	return "", false
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

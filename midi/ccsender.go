package midi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// CCSender emits control changes on one channel of an output port. Emit and
// Close may be called from different goroutines; once closed, Emit fails with
// ErrNotConnected.
type CCSender struct {
	name    string
	channel uint8
	send    SendFunc
	closer  func() error
	sent    atomic.Uint64

	mu     sync.Mutex // held across send and closer
	closed bool
}

// NewCCSender wraps an already-open send function
func NewCCSender(name string, channel uint8, send SendFunc) *CCSender {
	return &CCSender{name: name, channel: channel & 0x0F, send: send}
}

// OpenCCSender opens the first output port whose name contains portName
func OpenCCSender(ctx context.Context, portName string, channel uint8) (*CCSender, error) {
	ports, err := Scan(ctx)
	if err != nil {
		return nil, err
	}
	out, err := FindOut(ports.Outs, portName)
	if err != nil {
		return nil, fmt.Errorf("cc output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	s := NewCCSender(out.String(), channel, send)
	s.closer = out.Close
	return s, nil
}

func (s *CCSender) Name() string { return s.name }

func (s *CCSender) Channel() uint8 { return s.channel }

// Sent is the number of messages written successfully
func (s *CCSender) Sent() uint64 { return s.sent.Load() }

// Emit sends one control change
func (s *CCSender) Emit(control, value uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	if err := s.send(gomidi.ControlChange(s.channel, control&0x7F, value&0x7F)); err != nil {
		return fmt.Errorf("send cc %d on %s: %w", control, s.name, err)
	}
	s.sent.Add(1)
	return nil
}

func (s *CCSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

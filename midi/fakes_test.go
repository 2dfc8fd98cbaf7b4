package midi

import (
	"context"
	"errors"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// recorder captures messages from a SendFunc
type recorder struct {
	mu   sync.Mutex
	msgs []gomidi.Message
	err  error
}

func (r *recorder) send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) notesOn() map[uint8]uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint8]uint8)
	for _, m := range r.msgs {
		// raw bytes: velocity 0 must still read as a note on here
		if len(m) == 3 && m[0]&0xF0 == 0x90 {
			out[m[1]] = m[2]
		}
	}
	return out
}

// fakePorts is a portSource whose port list the test controls
type fakePorts struct {
	mu      sync.Mutex
	names   []string
	scanErr error
	sent    map[string]*recorder
	closed  map[string]int
}

func newFakePorts(names ...string) *fakePorts {
	return &fakePorts{names: names, sent: make(map[string]*recorder), closed: make(map[string]int)}
}

func (f *fakePorts) set(names ...string) {
	f.mu.Lock()
	f.names = names
	f.mu.Unlock()
}

func (f *fakePorts) OutNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return append([]string(nil), f.names...), nil
}

func (f *fakePorts) OpenOut(ctx context.Context, name string) (SendFunc, func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.names {
		if n == name {
			r := &recorder{}
			f.sent[name] = r
			return r.send, func() error {
				f.mu.Lock()
				f.closed[name]++
				f.mu.Unlock()
				return nil
			}, nil
		}
	}
	return nil, nil, errors.New("no such port")
}

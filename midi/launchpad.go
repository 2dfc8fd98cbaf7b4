package midi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"seeknobs/debug"
	"seeknobs/theme"

	gomidi "gitlab.com/gomidi/midi/v2"
)

var ledSendCount uint64

// PadCount is the number of grid pads a Launchpad can mirror
const PadCount = 64

// Launchpad mirrors knob colours onto a Novation Launchpad X grid, knob 0 at
// the bottom-left pad, eight knobs per row.
type Launchpad struct {
	name   string
	send   SendFunc
	closer func() error

	mu     sync.Mutex // held across every send and the close
	lit    map[uint8]bool
	closed bool
}

// NewLaunchpad switches the device to Programmer mode and returns the mirror.
func NewLaunchpad(name string, send SendFunc) (*Launchpad, error) {
	lp := &Launchpad{name: name, send: send, lit: make(map[uint8]bool)}

	// F0 00 20 29 02 0C 00 7F F7 - Programmer mode
	// F0 00 20 29 02 0C 08 <brightness> F7
	// F0 00 20 29 02 0C 0A 01 01 F7 - external LED feedback
	for _, data := range [][]byte{
		{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F},
		{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F},
		{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01},
	} {
		if err := send(gomidi.SysEx(data)); err != nil {
			return nil, fmt.Errorf("launchpad setup: %w", err)
		}
	}
	return lp, nil
}

// OpenLaunchpad finds a Launchpad output (or the port named portName) and opens it.
func OpenLaunchpad(ctx context.Context, portName string) (*Launchpad, error) {
	ports, err := Scan(ctx)
	if err != nil {
		return nil, err
	}
	name, ok := pickLaunchpad(ports.OutNames(), portName)
	if !ok {
		return nil, fmt.Errorf("launchpad %q: %w", portName, ErrPortNotFound)
	}
	out, err := FindOut(ports.Outs, name)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	lp, err := NewLaunchpad(name, send)
	if err != nil {
		out.Close()
		return nil, err
	}
	lp.closer = out.Close
	return lp, nil
}

func (lp *Launchpad) Name() string { return lp.name }

// SetPixel lights the pad for knob index with the nearest palette colour
func (lp *Launchpad) SetPixel(index int, c theme.RGB) error {
	if index < 0 || index >= PadCount {
		return fmt.Errorf("launchpad: pad %d out of range", index)
	}
	note := padNote(index)
	color := mapRGBToLaunchpad(c)

	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.closed {
		return ErrNotConnected
	}
	lp.lit[note] = color != ColorOff

	count := atomic.AddUint64(&ledSendCount, 1)
	debug.LogEvery(100, "lp-send", "count=%d", count)
	return lp.send(gomidi.NoteOn(ChannelStatic, note, color))
}

// Close turns off every pad this mirror lit and releases the port
func (lp *Launchpad) Close() error {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.closed {
		return nil
	}
	lp.closed = true

	for note, on := range lp.lit {
		if on {
			lp.send(gomidi.NoteOn(ChannelStatic, note, ColorOff))
		}
	}
	lp.lit = make(map[uint8]bool)

	if lp.closer != nil {
		return lp.closer()
	}
	return nil
}

func pickLaunchpad(names []string, want string) (string, bool) {
	for _, n := range names {
		if !isLaunchpad(n) {
			continue
		}
		if want == "" || matchName(n, want) {
			return n, true
		}
	}
	return "", false
}

const (
	ColorOff      uint8 = 0
	ChannelStatic uint8 = 0 // solid color; 1 flashes, 2 pulses
)

// mapRGBToLaunchpad finds the nearest Launchpad X palette color for an RGB value
func mapRGBToLaunchpad(rgb theme.RGB) uint8 {
	// Format: {velocity, R, G, B}
	palette := [][4]uint8{
		{0, 0, 0, 0},         // off
		{5, 255, 0, 0},       // red
		{6, 255, 80, 80},     // bright red
		{7, 180, 60, 60},     // dim red
		{9, 255, 100, 0},     // orange
		{11, 180, 80, 40},    // dim orange
		{13, 255, 200, 0},    // yellow
		{17, 0, 180, 0},      // green
		{19, 0, 100, 0},      // dim green
		{21, 0, 255, 0},      // bright green
		{37, 0, 200, 200},    // cyan
		{43, 40, 60, 120},    // dim blue
		{45, 0, 100, 255},    // blue
		{47, 80, 150, 255},   // bright blue
		{49, 150, 0, 200},    // purple
		{53, 255, 80, 180},   // pink
		{78, 100, 100, 255},  // light blue
		{84, 255, 150, 50},   // bright orange
		{87, 150, 255, 100},  // lime
		{97, 180, 180, 60},   // dim yellow
		{119, 255, 255, 255}, // white
	}

	bestMatch := uint8(0)
	bestDist := 999999

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])

	for _, p := range palette {
		pr, pg, pb := int(p[1]), int(p[2]), int(p[3])
		dist := (r-pr)*(r-pr) + (g-pg)*(g-pg) + (b-pb)*(b-pb)
		if dist < bestDist {
			bestDist = dist
			bestMatch = p[0]
		}
	}

	return bestMatch
}

// Launchpad X note mapping
// 8x8 Grid: Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
func padNote(index int) uint8 {
	row, col := index/8, index%8
	return uint8((row+1)*10 + col + 1)
}

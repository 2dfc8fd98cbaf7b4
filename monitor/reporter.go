// Package monitor prints a one-line diagnostics report of the polling loop.
package monitor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"seeknobs/knobs"
	"seeknobs/theme"
	"seeknobs/widgets"
)

// Reporter writes at most one line per interval. It is called from the loop
// goroutine only.
type Reporter struct {
	w          io.Writer
	interval   time.Duration
	theme      *theme.Theme
	buttonMask uint32

	last      time.Time
	prev      time.Time
	lastTicks uint64
	rate      float64

	valueStyle lipgloss.Style
	failStyle  lipgloss.Style
	mutedStyle lipgloss.Style
}

// New returns a reporter writing to w no more often than interval
func New(w io.Writer, interval time.Duration, th *theme.Theme, buttonMask uint32) *Reporter {
	if th == nil {
		th = theme.New(nil)
	}
	return &Reporter{
		w:          w,
		interval:   interval,
		theme:      th,
		buttonMask: buttonMask,
		valueStyle: lipgloss.NewStyle().Foreground(th.FG()),
		failStyle:  lipgloss.NewStyle().Foreground(th.Warning()).Bold(true),
		mutedStyle: lipgloss.NewStyle().Foreground(th.Muted()),
	}
}

// Due reports whether a line should be written at now, and if so starts the
// next interval.
func (r *Reporter) Due(now time.Time) bool {
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return false
	}
	r.prev, r.last = r.last, now
	return true
}

// Report writes one line for s
func (r *Reporter) Report(s knobs.Snapshot) {
	if !r.prev.IsZero() {
		if secs := r.last.Sub(r.prev).Seconds(); secs > 0 {
			r.rate = float64(s.Stats.Ticks-r.lastTicks) / secs
		}
	}
	r.lastTicks = s.Stats.Ticks
	fmt.Fprintln(r.w, r.Format(s))
}

// Format renders s without writing it
func (r *Reporter) Format(s knobs.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%8s ", s.LastTick.Round(time.Microsecond))

	for i, v := range s.Knobs {
		cell := fmt.Sprintf("%4d", v)
		if i < len(s.Failed) && s.Failed[i] {
			b.WriteString(r.failStyle.Render(cell + string(r.theme.Symbols.Failed)))
		} else {
			b.WriteString(r.valueStyle.Render(cell + " "))
		}
	}

	b.WriteString(" ")
	b.WriteString(widgets.RenderPadRow(s.Colors))
	b.WriteString(" ")

	digitalFailed := len(s.Failed) > 0 && s.Failed[len(s.Failed)-1]
	bits := fmt.Sprintf("0b%016b", s.Buttons)
	if digitalFailed {
		b.WriteString(r.failStyle.Render(bits + string(r.theme.Symbols.Failed)))
	} else {
		b.WriteString(bits + " ")
	}
	b.WriteString(r.buttons(s.Buttons))

	st := s.Stats
	b.WriteString(r.mutedStyle.Render(fmt.Sprintf(
		"  ticks=%d cycles=%d fail=%d led=%d emit=%d drop=%d %.0f/s",
		st.Ticks, st.Cycles, st.BusFailures, st.IndicatorFails, st.Emissions, st.EmitFails, r.rate)))

	return b.String()
}

// buttons draws one symbol per masked line; a low line is a pressed button
func (r *Reporter) buttons(bits uint32) string {
	var b strings.Builder
	for bit := 0; bit < 32; bit++ {
		if r.buttonMask&(1<<bit) == 0 {
			continue
		}
		b.WriteRune(' ')
		if bits&(1<<bit) == 0 {
			b.WriteRune(r.theme.Symbols.Pressed)
		} else {
			b.WriteRune(r.theme.Symbols.Released)
		}
	}
	return b.String()
}

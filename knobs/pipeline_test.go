package knobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestPipeline(t *testing.T, k int, bus Bus, opts ...PipelineOption) *Pipeline {
	t.Helper()
	s, err := NewScheduler(bus, testConfig(k), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPipeline(s, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPipelineEmitsOnlyOnChange(t *testing.T) {
	bus := newFakeBus()
	bus.analog[0] = 100
	bus.analog[1] = 0
	gate, _ := NewGate(testConfig(2))
	out := &fakeEmitter{}
	p := newTestPipeline(t, 2, bus, WithEmission(gate, out))

	for i := 0; i < 3; i++ {
		p.Step(context.Background())
	}
	bus.analog[0] = 103
	for i := 0; i < 3; i++ {
		p.Step(context.Background())
	}
	bus.analog[0] = 108
	st := p.Step(context.Background())

	if st.Emission == nil || st.Emission.Value != 13 {
		t.Fatalf("last step emission = %+v, want value 13", st.Emission)
	}
	want := []Emission{{Control: 20, Value: 12}, {Control: 20, Value: 13}}
	if len(out.sent) != len(want) {
		t.Fatalf("sent %+v, want %+v", out.sent, want)
	}
	for i := range want {
		if out.sent[i] != want[i] {
			t.Errorf("sent[%d] = %+v, want %+v", i, out.sent[i], want[i])
		}
	}
	if p.Stats().Emissions != 2 || p.Stats().Ticks != 7 || p.Stats().Cycles != 2 {
		t.Errorf("stats = %+v", p.Stats())
	}
}

func TestPipelineEmitFailureIsNotRetried(t *testing.T) {
	bus := newFakeBus()
	bus.analog[0] = 300
	gate, _ := NewGate(testConfig(1))
	out := &fakeEmitter{err: errors.New("port gone")}
	p := newTestPipeline(t, 1, bus, WithEmission(gate, out))

	st := p.Step(context.Background())
	if st.EmitErr == nil {
		t.Fatalf("emit error not reported")
	}
	p.Step(context.Background())
	p.Step(context.Background())

	if len(out.sent) != 1 {
		t.Errorf("emitted %d times, want 1 (no retry)", len(out.sent))
	}
	if v, ok := gate.Last(0); !ok || v != 37 {
		t.Errorf("gate last = %d, %v; want 37 recorded", v, ok)
	}
	if p.Stats().EmitFails != 1 {
		t.Errorf("EmitFails = %d", p.Stats().EmitFails)
	}
}

func TestPipelineNoEmissionOnFailedRead(t *testing.T) {
	bus := newFakeBus()
	bus.analog[0] = 900
	bus.failPin[0] = true
	gate, _ := NewGate(testConfig(1))
	out := &fakeEmitter{}
	p := newTestPipeline(t, 1, bus, WithEmission(gate, out))

	st := p.Step(context.Background())

	if st.OK() || st.Emission != nil || len(out.sent) != 0 {
		t.Errorf("failed read produced %+v / %+v", st, out.sent)
	}
	if p.Stats().BusFailures != 1 {
		t.Errorf("BusFailures = %d", p.Stats().BusFailures)
	}
}

func TestPipelineWithoutEmission(t *testing.T) {
	bus := newFakeBus()
	bus.analog[0] = 900
	p := newTestPipeline(t, 1, bus)

	if st := p.Step(context.Background()); st.Emission != nil {
		t.Errorf("emission without a gate: %+v", st.Emission)
	}
	if p.Gate() != nil {
		t.Errorf("Gate() = %v, want nil", p.Gate())
	}
}

func TestNewPipelineRejectsMismatchedGate(t *testing.T) {
	s, _ := NewScheduler(newFakeBus(), testConfig(2), nil, nil)
	gate, _ := NewGate(testConfig(3))
	if _, err := NewPipeline(s, WithEmission(gate, &fakeEmitter{})); !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want ErrConfig", err)
	}
	gate, _ = NewGate(testConfig(2))
	if _, err := NewPipeline(s, WithEmission(gate, nil)); !errors.Is(err, ErrConfig) {
		t.Errorf("nil sink: err = %v, want ErrConfig", err)
	}
}

type cancelAfter struct {
	fakeBus
	n      int
	cancel context.CancelFunc
}

func (b *cancelAfter) ReadAnalog(ctx context.Context, pin uint8) (uint16, error) {
	b.n--
	if b.n == 0 {
		b.cancel()
	}
	return 10, nil
}

func TestPipelineRunStopsBetweenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := &cancelAfter{n: 5, cancel: cancel}
	rep := &fakeReporter{due: true}
	p := newTestPipeline(t, 2, bus, WithReporter(rep))

	err := p.Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	// The tick that observed cancellation still completed.
	if p.Stats().Ticks == 0 || rep.asked != int(p.Stats().Ticks) {
		t.Errorf("ticks %d, reporter asked %d", p.Stats().Ticks, rep.asked)
	}
	if len(rep.reports) != rep.asked {
		t.Errorf("%d reports for %d due checks", len(rep.reports), rep.asked)
	}
}

func TestPipelineReporterDeclines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := &cancelAfter{n: 3, cancel: cancel}
	rep := &fakeReporter{}
	p := newTestPipeline(t, 4, bus, WithReporter(rep))

	_ = p.Run(ctx)

	if rep.asked == 0 || len(rep.reports) != 0 {
		t.Errorf("asked %d, reports %d", rep.asked, len(rep.reports))
	}
}

func TestPipelineSnapshotAndElapsed(t *testing.T) {
	bus := newFakeBus()
	bus.analog[0] = 77
	bus.buttons = 0b100
	clock := time.Unix(0, 0)
	p := newTestPipeline(t, 1, bus, WithClock(func() time.Time {
		clock = clock.Add(2 * time.Millisecond)
		return clock
	}))

	st := p.Step(context.Background())
	p.Step(context.Background())
	snap := p.Snapshot()

	if st.Elapsed != 2*time.Millisecond {
		t.Errorf("elapsed = %s, want 2ms", st.Elapsed)
	}
	if snap.Knobs[0] != 77 || snap.Buttons != 0b100 || snap.Cursor != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	snap.Knobs[0] = 1
	if p.Scheduler().Store().Knob(0) != 77 {
		t.Errorf("snapshot aliases the store")
	}
}

func TestPipelineRateLimitsFailureLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	bus := newFakeBus()
	bus.failPin[1] = true
	p := newTestPipeline(t, 2, bus, WithLogger(zap.New(core).Sugar()))

	// three ticks per cycle, pin 1 fails once per cycle
	for i := 0; i < 300; i++ {
		p.Step(context.Background())
	}

	if p.Stats().BusFailures != 100 {
		t.Fatalf("failures = %d, want 100", p.Stats().BusFailures)
	}
	n := logs.FilterMessage("transaction failed").Len()
	if n < 1 || n > 3 {
		t.Errorf("logged %d of 100 failures, want the first plus at most a second-boundary repeat", n)
	}
}

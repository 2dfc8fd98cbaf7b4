package knobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StepResult is the outcome of one loop iteration.
type StepResult struct {
	Reading
	Emission *Emission // nil when the gate held the value back or emission is off
	EmitErr  error     // emission sink rejected the event
	Elapsed  time.Duration
}

// Stats counts loop activity since construction.
type Stats struct {
	Ticks          uint64
	Cycles         uint64
	BusFailures    uint64
	IndicatorFails uint64
	Emissions      uint64
	EmitFails      uint64
}

// Snapshot is what a Reporter sees.
type Snapshot struct {
	Values
	Cursor   int
	LastTick time.Duration
	Stats    Stats
}

// Pipeline composes the scheduler with the optional gate and emission stage.
// It is driven from a single goroutine and holds no locks.
type Pipeline struct {
	sched  *Scheduler
	gate   *Gate
	sink   EmissionSink
	report Reporter
	logger *zap.SugaredLogger

	now   func() time.Time
	stats Stats
	last  time.Duration
}

// PipelineOption configures optional collaborators.
type PipelineOption func(*Pipeline)

// WithEmission enables the change gate and routes its output to sink.
func WithEmission(gate *Gate, sink EmissionSink) PipelineOption {
	return func(p *Pipeline) {
		p.gate = gate
		p.sink = sink
	}
}

// WithReporter attaches a diagnostics reporter.
func WithReporter(r Reporter) PipelineOption {
	return func(p *Pipeline) {
		p.report = r
	}
}

// WithLogger sets the logger used for sink and transaction failures.
func WithLogger(l *zap.SugaredLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline wires a scheduler with the given options.
func NewPipeline(sched *Scheduler, opts ...PipelineOption) (*Pipeline, error) {
	if sched == nil {
		return nil, configErrorf("no scheduler")
	}
	p := &Pipeline{
		sched:  sched,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = sampled(p.logger)
	if p.gate != nil && p.gate.Len() != sched.Len() {
		return nil, configErrorf("gate has %d channels, scheduler %d", p.gate.Len(), sched.Len())
	}
	if p.gate != nil && p.sink == nil {
		return nil, configErrorf("emission enabled without a sink")
	}
	return p, nil
}

// sampled keeps the first failure message of each kind per second and every
// 100th after that; a dead pin fails once per cycle.
func sampled(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.Desugar().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewSamplerWithOptions(c, time.Second, 1, 100)
	})).Sugar()
}

// Step runs one tick and, for a good knob read, the gate and emission.
func (p *Pipeline) Step(ctx context.Context) StepResult {
	start := p.now()
	st := StepResult{Reading: p.sched.Tick(ctx)}

	p.stats.Ticks++
	if st.Digital {
		p.stats.Cycles++
	}

	switch {
	case st.Err != nil:
		p.stats.BusFailures++
		p.logger.Debugw("transaction failed", "channel", st.Channel, "digital", st.Digital, "error", st.Err)
	case st.IndicatorErr != nil:
		p.stats.IndicatorFails++
		p.logger.Debugw("indicator rejected update", "channel", st.Channel, "error", st.IndicatorErr)
	}

	if st.Err == nil && !st.Digital && p.gate != nil {
		if e, ok := p.gate.Evaluate(st.Channel, uint16(st.Value)); ok {
			st.Emission = &e
			p.stats.Emissions++
			if err := p.sink.Emit(e.Control, e.Value); err != nil {
				st.EmitErr = err
				p.stats.EmitFails++
				p.logger.Debugw("emission dropped", "control", e.Control, "value", e.Value, "error", err)
			}
		}
	}

	st.Elapsed = p.now().Sub(start)
	p.last = st.Elapsed
	return st
}

// Run steps as fast as the bus allows until ctx is cancelled. Cancellation
// is only observed between ticks.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.Step(ctx)

		if p.report != nil && p.report.Due(p.now()) {
			p.report.Report(p.Snapshot())
		}
	}
}

// Snapshot copies the current loop state.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Values:   p.sched.Store().Snapshot(),
		Cursor:   p.sched.Cursor(),
		LastTick: p.last,
		Stats:    p.stats,
	}
}

func (p *Pipeline) Stats() Stats { return p.stats }

func (p *Pipeline) Scheduler() *Scheduler { return p.sched }

// Gate is nil when emission is disabled.
func (p *Pipeline) Gate() *Gate { return p.gate }

package render

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/push"
	"github.com/vango-dev/pushserve/pkg/stream"
)

const tracerName = "github.com/vango-dev/pushserve/pkg/render"

// State is a pipeline state.
type State int

const (
	StateStart State = iota
	StatePhase
	StateClosing
	StateEnded
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePhase:
		return "phase"
	case StateClosing:
		return "closing"
	case StateEnded:
		return "ended"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is StateEnded or StateAborted.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateAborted
}

// Phase is one delayed step of a staged response.
type Phase struct {
	// Delay is waited before the phase runs.
	Delay time.Duration

	// Fragment is written to the parent stream.
	Fragment []byte

	// Push lists assets pushed after Fragment is written.
	Push []assets.Descriptor

	// Final ends the parent stream after this phase.
	Final bool
}

// Clock schedules phase delays.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// After calls time.After.
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Pusher fires pushes for a phase.
type Pusher interface {
	Push(ctx context.Context, parent stream.Stream, d assets.Descriptor) <-chan push.Outcome
}

// Observer is notified once per Run with the terminal state.
type Observer interface {
	ObservePipeline(s State)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver sets the terminal state observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithTracer sets the tracer. Default: the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// Pipeline drives a parent stream through a sequence of phases.
// A Pipeline holds no per-request state and is safe for concurrent use;
// each Run is one independent state machine.
type Pipeline struct {
	pusher   Pusher
	clock    Clock
	logger   *slog.Logger
	observer Observer
	tracer   trace.Tracer
}

// New creates a pipeline that pushes through p. A nil p skips pushes.
func New(p Pusher, opts ...Option) *Pipeline {
	pl := &Pipeline{
		pusher: p,
		clock:  SystemClock{},
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(pl)
	}
	pl.logger = pl.logger.With("component", "pipeline")
	return pl
}

// Run executes phases against parent, which must already have responded.
//
// Each phase waits its delay, then checks the parent: a closed parent aborts
// the run with no further writes or pushes. Otherwise the fragment is written
// and the phase's pushes are fired. The parent is ended exactly once, after
// the first Final phase or after the last phase if none is final.
//
// Run blocks the calling goroutine for the sum of the delays. ctx only wakes
// the wait early; the parent's state decides what happens next.
func (p *Pipeline) Run(ctx context.Context, parent stream.Stream, phases []Phase) State {
	ctx, span := p.tracer.Start(ctx, "render.pipeline",
		trace.WithAttributes(
			attribute.Int64("stream.id", int64(parent.ID())),
			attribute.Int("render.phases", len(phases)),
		),
	)
	log := p.logger.With("stream_id", parent.ID(), "path", parent.Path())

	state := p.run(ctx, log, parent, phases)

	span.SetAttributes(attribute.String("render.state", state.String()))
	span.End()
	log.Debug("pipeline finished", "state", state.String())
	if p.observer != nil {
		p.observer.ObservePipeline(state)
	}
	return state
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, parent stream.Stream, phases []Phase) State {
	for i, ph := range phases {
		if ph.Delay > 0 {
			select {
			case <-p.clock.After(ph.Delay):
			case <-parent.Done():
			case <-ctx.Done():
			}
		}

		if parent.Closed() {
			log.Debug("parent closed, aborting", "phase", i)
			return StateAborted
		}
		if !p.runPhase(ctx, log, parent, i, ph) {
			return StateAborted
		}
		if ph.Final {
			break
		}
	}

	// Closing
	if err := parent.End(nil); err != nil {
		log.Debug("parent closed before end", "error", err)
		return StateAborted
	}
	return StateEnded
}

func (p *Pipeline) runPhase(ctx context.Context, log *slog.Logger, parent stream.Stream, i int, ph Phase) bool {
	ctx, span := p.tracer.Start(ctx, "render.phase "+strconv.Itoa(i),
		trace.WithAttributes(
			attribute.Int("render.phase", i),
			attribute.Int("render.fragment_bytes", len(ph.Fragment)),
			attribute.Int("render.pushes", len(ph.Push)),
			attribute.Bool("render.final", ph.Final),
		),
	)
	defer span.End()

	if len(ph.Fragment) > 0 {
		if err := parent.Write(ph.Fragment); err != nil {
			log.Debug("phase write failed", "phase", i, "error", err)
			span.SetAttributes(attribute.Bool("render.aborted", true))
			return false
		}
	}
	if p.pusher != nil {
		for _, d := range ph.Push {
			p.pusher.Push(ctx, parent, d)
		}
	}
	return true
}

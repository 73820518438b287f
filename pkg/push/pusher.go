package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/storage"
	"github.com/vango-dev/pushserve/pkg/stream"
)

const tracerName = "github.com/vango-dev/pushserve/pkg/push"

// Outcome is the final result of one push.
type Outcome int

const (
	// OutcomeDelivered means the asset was sent and the sub-stream ended.
	OutcomeDelivered Outcome = iota
	// OutcomeRefused means the client or transport declined the push, or the
	// sub-stream went away during delivery.
	OutcomeRefused
	// OutcomeNotFound means the asset does not exist; the sub-stream got 404.
	OutcomeNotFound
	// OutcomeServerError means delivery failed; the sub-stream got 500.
	OutcomeServerError
	// OutcomeAbandoned means the sub-stream could not be created.
	OutcomeAbandoned
)

// String returns the outcome name used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRefused:
		return "refused"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeServerError:
		return "server_error"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Observer is notified once per push with its outcome.
type Observer interface {
	ObservePush(d assets.Descriptor, o Outcome)
}

// Option configures a Pusher.
type Option func(*Pusher)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pusher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(p *Pusher) {
		p.observer = o
	}
}

// WithTracer sets the tracer. Default: the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pusher) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithStatCheck toggles the Last-Modified header on pushed assets.
// Enabled by default.
func WithStatCheck(enabled bool) Option {
	return func(p *Pusher) {
		p.statCheck = enabled
	}
}

// Pusher opens push sub-streams and delivers stored assets on them.
// It is safe for concurrent use.
type Pusher struct {
	source     storage.Source
	classifier *Classifier
	logger     *slog.Logger
	observer   Observer
	tracer     trace.Tracer
	statCheck  bool

	wg sync.WaitGroup
}

// NewPusher creates a pusher reading assets from src.
func NewPusher(src storage.Source, opts ...Option) *Pusher {
	p := &Pusher{
		source:    src,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
		statCheck: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.classifier = NewClassifier(p.logger)
	p.logger = p.logger.With("component", "pusher")
	return p
}

// Push promises d on parent and delivers it in the background.
//
// The sub-stream is created before Push returns, so the promise precedes any
// later write on parent. The returned channel receives exactly one Outcome
// and may be ignored. Push never blocks on asset bytes and never retries.
func (p *Pusher) Push(ctx context.Context, parent stream.Stream, d assets.Descriptor) <-chan Outcome {
	out := make(chan Outcome, 1)

	ctx, span := p.tracer.Start(ctx, "push",
		trace.WithAttributes(
			attribute.String("push.path", d.PublicPath()),
			attribute.Int64("stream.parent_id", int64(parent.ID())),
		),
	)

	log := p.logger.With("stream_id", parent.ID(), "push_path", d.PublicPath())

	sub, err := parent.PushStream(d.PublicPath(), nil)
	if err != nil {
		outcome := OutcomeAbandoned
		if errors.Is(err, stream.ErrPushRefused) {
			outcome = OutcomeRefused
			log.Debug("push refused", "error", err)
		} else {
			log.Warn("push stream creation failed", "error", err)
		}
		p.finish(span, d, outcome, err, out)
		return out
	}

	log.Debug("pushing")

	header := http.Header{}
	if ct := d.ContentType(); ct != "" {
		header.Set("Content-Type", ct)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// The parent's request context ends with its handler; delivery may
		// outlive it.
		ctx := context.WithoutCancel(ctx)

		err := storage.SendFile(ctx, sub, p.source, d.StoragePath(), header,
			storage.Options{StatCheck: p.statCheck})

		outcome := OutcomeDelivered
		if err != nil {
			switch p.classifier.Apply(err, sub) {
			case ActionNotFound:
				outcome = OutcomeNotFound
			case ActionServerError:
				outcome = OutcomeServerError
			default:
				outcome = OutcomeRefused
			}
		}
		log.Debug("push finished", "outcome", outcome.String())
		p.finish(span, d, outcome, err, out)
	}()

	return out
}

// Wait blocks until every delivery started by Push has finished.
func (p *Pusher) Wait() {
	p.wg.Wait()
}

func (p *Pusher) finish(span trace.Span, d assets.Descriptor, o Outcome, err error, out chan<- Outcome) {
	span.SetAttributes(attribute.String("push.outcome", o.String()))
	if err != nil && o != OutcomeRefused {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	if p.observer != nil {
		p.observer.ObservePush(d, o)
	}
	out <- o
}

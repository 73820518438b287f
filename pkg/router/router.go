package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/push"
	"github.com/vango-dev/pushserve/pkg/render"
	"github.com/vango-dev/pushserve/pkg/storage"
	"github.com/vango-dev/pushserve/pkg/stream"
)

// Default asset names for the root document.
var (
	DefaultEarly = []string{"style.css", "style1.css"}
	DefaultLate  = []string{"script.js"}
)

// DefaultRenderDelay separates the head of the root document from its body.
const DefaultRenderDelay = time.Second

// Route is the branch a request path takes.
type Route int

const (
	// RouteDocument is the staged root document.
	RouteDocument Route = iota
	// RouteStatic is a direct file transfer.
	RouteStatic
)

// String returns the route name used in logs and metric labels.
func (r Route) String() string {
	if r == RouteDocument {
		return "document"
	}
	return "static"
}

// Match returns the route for path.
func Match(path string) Route {
	if path == "/" {
		return RouteDocument
	}
	return RouteStatic
}

// Option configures a Router.
type Option func(*Router)

// WithEarlyAssets sets the assets pushed before the document head.
func WithEarlyAssets(names ...string) Option {
	return func(r *Router) {
		r.early = append([]string(nil), names...)
	}
}

// WithLateAssets sets the assets referenced after the render delay and
// pushed with the body.
func WithLateAssets(names ...string) Option {
	return func(r *Router) {
		r.late = append([]string(nil), names...)
	}
}

// WithDocument sets the title, lang, greeting and render delay of the root
// document. Its Early and Late fields are ignored.
func WithDocument(doc render.Document) Option {
	return func(r *Router) {
		r.doc = doc
	}
}

// WithCatalog sets the catalog that describes asset names.
func WithCatalog(c *assets.Catalog) Option {
	return func(r *Router) {
		if c != nil {
			r.catalog = c
		}
	}
}

// WithPusher sets the pusher used for early assets and by the default
// pipeline.
func WithPusher(p render.Pusher) Option {
	return func(r *Router) {
		r.pusher = p
	}
}

// WithPipeline sets the render pipeline.
func WithPipeline(p *render.Pipeline) Option {
	return func(r *Router) {
		r.pipeline = p
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Router dispatches a stream by path: "/" gets the staged document with
// pushes, anything else a file from the source.
//
// Descriptors and phases are built for every request; the Router itself
// holds only configuration and is safe for concurrent use.
type Router struct {
	source     storage.Source
	catalog    *assets.Catalog
	pusher     render.Pusher
	pipeline   *render.Pipeline
	classifier *push.Classifier
	logger     *slog.Logger

	early []string
	late  []string
	doc   render.Document
}

// New creates a router serving files from src.
func New(src storage.Source, opts ...Option) *Router {
	r := &Router{
		source:  src,
		catalog: assets.NewCatalog(nil),
		logger:  slog.Default(),
		early:   DefaultEarly,
		late:    DefaultLate,
		doc: render.Document{
			Greeting:    render.DefaultGreeting,
			RenderDelay: DefaultRenderDelay,
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.pusher == nil {
		r.pusher = push.NewPusher(src, push.WithLogger(r.logger))
	}
	if r.pipeline == nil {
		r.pipeline = render.New(r.pusher, render.WithLogger(r.logger))
	}
	r.classifier = push.NewClassifier(r.logger)
	r.logger = r.logger.With("component", "router")
	return r
}

// Handle serves one request stream. It returns once the response is
// complete or abandoned; pushes may still be in flight.
func (r *Router) Handle(ctx context.Context, path, method string, parent stream.Stream) {
	r.logger.Debug("request", "stream_id", parent.ID(), "path", path, "method", method)

	switch Match(path) {
	case RouteDocument:
		r.serveDocument(ctx, parent)
	default:
		r.serveStatic(ctx, path, method, parent)
	}
}

// Describe resolves the configured early and late assets.
func (r *Router) Describe() (early, late []assets.Descriptor, err error) {
	early, err = r.catalog.Describe(r.early...)
	if err != nil {
		return nil, nil, err
	}
	late, err = r.catalog.Describe(r.late...)
	if err != nil {
		return nil, nil, err
	}
	return early, late, nil
}

func (r *Router) serveDocument(ctx context.Context, parent stream.Stream) {
	if parent.Closed() {
		return
	}

	early, late, err := r.Describe()
	if err != nil {
		r.classifier.Apply(err, parent)
		return
	}

	header := http.Header{}
	header.Set("Content-Type", "text/html")
	if err := parent.Respond(http.StatusOK, header); err != nil {
		r.logger.Debug("document respond failed", "stream_id", parent.ID(), "error", err)
		return
	}

	for _, d := range early {
		r.pusher.Push(ctx, parent, d)
	}

	doc := r.doc
	doc.Early = early
	doc.Late = late
	r.pipeline.Run(ctx, parent, doc.Phases())
}

func (r *Router) serveStatic(ctx context.Context, path, method string, parent stream.Stream) {
	if parent.Closed() {
		return
	}
	if method != http.MethodGet && method != http.MethodHead {
		header := http.Header{}
		header.Set("Allow", "GET, HEAD")
		if err := parent.Respond(http.StatusMethodNotAllowed, header); err == nil {
			_ = parent.End(nil)
		}
		return
	}

	name, ok := assets.CleanName(path)
	if !ok {
		r.classifier.Apply(fmt.Errorf("%w: rejected path %q", storage.ErrNotFound, path), parent)
		return
	}

	header := http.Header{}
	if ct := assets.LookupMIME(name); ct != "" {
		header.Set("Content-Type", ct)
	}

	err := storage.SendFile(ctx, parent, r.source, name, header, storage.Options{
		HeadOnly: method == http.MethodHead,
	})
	if err != nil {
		r.classifier.Apply(err, parent)
	}
}

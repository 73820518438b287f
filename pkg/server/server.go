package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/vango-dev/pushserve/pkg/stream"
)

// Handler serves one parent stream. *router.Router implements Handler.
type Handler interface {
	Handle(ctx context.Context, path, method string, parent stream.Stream)
}

// Middleware is a function that wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMiddleware appends HTTP middleware, applied after request IDs and
// panic recovery.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithStreamObserver sets the active stream observer.
func WithStreamObserver(o StreamObserver) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// Server is the HTTP/2 server. It wraps every request in a stream.Stream,
// hands promised requests to the push table, and tracks parent streams.
type Server struct {
	config     *ServerConfig
	handler    Handler
	pushes     *stream.PushTable
	active     *streamTable
	middleware []Middleware
	observer   StreamObserver
	logger     *slog.Logger

	mux        http.Handler
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server dispatching parent streams to h.
func New(config *ServerConfig, h Handler, opts ...Option) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		config = config.Clone()
		config.fillDefaults()
	}

	s := &Server{
		config:  config,
		handler: h,
		pushes:  stream.NewPushTable(config.PushAttachTimeout),
		active:  newStreamTable(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	for _, mw := range s.middleware {
		r.Use(mw)
	}
	r.HandleFunc("/*", s.serveStream)
	s.mux = r

	s.httpServer = s.newHTTPServer()
	return s
}

func (s *Server) newHTTPServer() *http.Server {
	h2s := &http2.Server{
		MaxConcurrentStreams: s.config.MaxConcurrentStreams,
		IdleTimeout:          s.config.IdleTimeout,
	}

	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.mux,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ConnState:         s.logConnState,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	if s.config.H2C && !s.config.TLSEnabled() {
		srv.Handler = h2c.NewHandler(s.mux, h2s)
		return srv
	}
	if err := http2.ConfigureServer(srv, h2s); err != nil {
		s.logger.Error("http2 configuration failed", "error", err)
	}
	return srv
}

// ServeHTTP dispatches r through the middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the request handler, for mounting in httptest or another
// server. It does not include h2c.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	if stream.IsPromise(r) && s.pushes.Claim(w, r) {
		return
	}

	parent := stream.NewHTTPStream(w, r, s.pushes)
	s.track(parent)
	defer s.untrack(parent.ID())

	s.handler.Handle(r.Context(), r.URL.Path, r.Method, parent)
	if parent.Aborted() {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) track(parent *stream.HTTPStream) {
	n := s.active.add(ActiveStream{
		ID:      parent.ID(),
		Path:    parent.Path(),
		Method:  parent.Method(),
		Started: time.Now(),
	})
	if s.observer != nil {
		s.observer.ObserveActiveStreams(n)
	}
}

func (s *Server) untrack(id uint64) {
	n := s.active.remove(id)
	if s.observer != nil {
		s.observer.ObserveActiveStreams(n)
	}
}

// ActiveStreams returns the parent streams being served, oldest first.
// The result is a snapshot for diagnostics.
func (s *Server) ActiveStreams() []ActiveStream {
	return s.active.snapshot()
}

// PeakStreams returns the largest number of parent streams served at once.
func (s *Server) PeakStreams() int {
	return s.active.peakCount()
}

// PendingPushes returns the number of promised streams not yet claimed.
func (s *Server) PendingPushes() int {
	return s.pushes.Len()
}

func (s *Server) logConnState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateIdle:
		s.logger.Debug("connection idle", "remote", c.RemoteAddr().String())
	case http.StateClosed:
		s.logger.Debug("connection closed", "remote", c.RemoteAddr().String())
	}
}

// Serve accepts connections on ln until Shutdown. With TLS configured the
// listener is wrapped and HTTP/2 is negotiated with ALPN.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	if s.config.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.config.CertFile, s.config.KeyFile)
		if err != nil {
			return &TLSError{CertFile: s.config.CertFile, KeyFile: s.config.KeyFile, Err: err}
		}
		cfg := s.httpServer.TLSConfig.Clone()
		cfg.Certificates = []tls.Certificate{cert}
		ln = tls.NewListener(ln, cfg)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("server starting",
		"address", ln.Addr().String(),
		"tls", s.config.TLSEnabled(),
		"h2c", s.config.H2C && !s.config.TLSEnabled())
	return s.httpServer.Serve(ln)
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on the configured address and serves until ctx is cancelled
// or the process receives SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return &ListenError{Address: s.config.Address, Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server, waiting for in-flight streams
// up to ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

package stream

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
)

// HTTPStream adapts an HTTP/2 response to the Stream interface.
//
// Writes are serialized under a mutex because http.ResponseWriter is not safe
// for concurrent use. Liveness checks are lock-free so that pushes and timers
// can poll Closed without queueing behind a slow write.
type HTTPStream struct {
	id     uint64
	w      http.ResponseWriter
	r      *http.Request
	pushes *PushTable

	mu        sync.Mutex
	responded bool

	ended    atomic.Bool
	aborted  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	stop     func() bool
}

// NewHTTPStream wraps w and r. pushes may be nil, in which case every
// PushStream call is refused.
func NewHTTPStream(w http.ResponseWriter, r *http.Request, pushes *PushTable) *HTTPStream {
	return newHTTPStream(NextID(), w, r, pushes)
}

func newHTTPStream(id uint64, w http.ResponseWriter, r *http.Request, pushes *PushTable) *HTTPStream {
	s := &HTTPStream{
		id:     id,
		w:      w,
		r:      r,
		pushes: pushes,
		done:   make(chan struct{}),
	}
	s.stop = context.AfterFunc(r.Context(), s.markDone)
	return s
}

// ID returns the stream identifier.
func (s *HTTPStream) ID() uint64 { return s.id }

// Path returns the request path.
func (s *HTTPStream) Path() string { return s.r.URL.Path }

// Method returns the request method.
func (s *HTTPStream) Method() string { return s.r.Method }

// Request returns the underlying request.
func (s *HTTPStream) Request() *http.Request { return s.r }

// Closed reports whether the stream ended or the client went away.
func (s *HTTPStream) Closed() bool {
	return s.ended.Load() || s.r.Context().Err() != nil
}

// Done is closed when the stream ends or the request context is cancelled.
func (s *HTTPStream) Done() <-chan struct{} {
	return s.done
}

func (s *HTTPStream) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Respond writes the status and headers.
func (s *HTTPStream) Respond(status int, header http.Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed() {
		return &StreamError{StreamID: s.id, Op: "respond", Err: ErrStreamClosed}
	}
	if s.responded {
		return &StreamError{StreamID: s.id, Op: "respond", Err: ErrAlreadyResponded}
	}

	dst := s.w.Header()
	for k, vv := range header {
		dst[k] = append([]string(nil), vv...)
	}
	s.w.WriteHeader(status)
	s.responded = true
	s.flush()
	return nil
}

// Write sends p as a body fragment and flushes it to the client.
func (s *HTTPStream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed() {
		return &StreamError{StreamID: s.id, Op: "write", Err: ErrStreamClosed}
	}
	return s.writeLocked(p)
}

func (s *HTTPStream) writeLocked(p []byte) error {
	s.responded = true
	if len(p) == 0 {
		return nil
	}
	if _, err := s.w.Write(p); err != nil {
		return &StreamError{StreamID: s.id, Op: "write", Err: err}
	}
	s.flush()
	return nil
}

// End writes p, if any, and marks the stream closed. The HTTP handler
// owning the stream finishes the response when it returns.
func (s *HTTPStream) End(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed() {
		return &StreamError{StreamID: s.id, Op: "end", Err: ErrStreamClosed}
	}
	err := s.writeLocked(p)
	s.ended.Store(true)
	s.stop()
	s.markDone()
	return err
}

// Abort closes the stream without completing the response. The handler
// owning the stream resets it on return when Aborted reports true.
func (s *HTTPStream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed() {
		return &StreamError{StreamID: s.id, Op: "abort", Err: ErrStreamClosed}
	}
	s.aborted.Store(true)
	s.ended.Store(true)
	s.stop()
	s.markDone()
	return nil
}

// Aborted reports whether Abort was called.
func (s *HTTPStream) Aborted() bool {
	return s.aborted.Load()
}

// PushStream promises path to the client and returns the sub-stream that
// will carry the response once the promised request is claimed.
func (s *HTTPStream) PushStream(path string, header http.Header) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Closed() {
		return nil, &PushError{ParentID: s.id, Path: path, Err: refusal(ErrStreamClosed)}
	}
	pusher, ok := s.w.(http.Pusher)
	if !ok || s.pushes == nil {
		return nil, &PushError{ParentID: s.id, Path: path, Err: refusal(http.ErrNotSupported)}
	}

	sub := s.pushes.register(s.id, path)

	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(PushTokenHeader, sub.token)

	if err := pusher.Push(path, &http.PushOptions{Method: http.MethodGet, Header: h}); err != nil {
		s.pushes.forget(sub.token)
		return nil, &PushError{ParentID: s.id, Path: path, Err: classifyPushError(err)}
	}
	return sub, nil
}

func (s *HTTPStream) flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

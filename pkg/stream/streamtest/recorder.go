// Package streamtest provides an in-memory stream.Stream for tests.
//
// A Recorder keeps an ordered log of every operation the code under test
// performs on it, including pushes, which are themselves Recorders. Tests can
// refuse pushes, reset streams mid-flight, and inspect what reached the
// client without running an HTTP/2 server.
package streamtest

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/vango-dev/pushserve/pkg/stream"
)

// Kind identifies a recorded operation.
type Kind int

const (
	KindRespond Kind = iota
	KindWrite
	KindEnd
	KindPush
	KindAbort
)

// String returns the operation name.
func (k Kind) String() string {
	switch k {
	case KindRespond:
		return "respond"
	case KindWrite:
		return "write"
	case KindEnd:
		return "end"
	case KindPush:
		return "push"
	case KindAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Event is one accepted operation.
type Event struct {
	Kind   Kind
	Status int
	Header http.Header
	Data   []byte
	Path   string
}

// Recorder is an in-memory stream. The zero value is not usable; use
// NewRecorder.
type Recorder struct {
	id   uint64
	path string
	log  *eventLog

	mu        sync.Mutex
	events    []Event
	pushes    []*Recorder
	responded bool
	closed    bool
	rejected  int
	refuse    error
	onPush    func(*Recorder)

	done     chan struct{}
	doneOnce sync.Once
}

// eventLog orders events across a parent and all of its pushes.
type eventLog struct {
	mu     sync.Mutex
	events []LogEntry
}

// LogEntry is an Event tagged with the stream it happened on.
type LogEntry struct {
	StreamPath string
	Event
}

func (l *eventLog) add(path string, ev Event) {
	l.mu.Lock()
	l.events = append(l.events, LogEntry{StreamPath: path, Event: ev})
	l.mu.Unlock()
}

// NewRecorder creates a live stream answering path.
func NewRecorder(path string) *Recorder {
	return newRecorder(path, &eventLog{})
}

func newRecorder(path string, log *eventLog) *Recorder {
	return &Recorder{
		id:   stream.NextID(),
		path: path,
		log:  log,
		done: make(chan struct{}),
	}
}

// ID returns the stream identifier.
func (r *Recorder) ID() uint64 { return r.id }

// Path returns the path the stream answers.
func (r *Recorder) Path() string { return r.path }

// Respond records the status and headers.
func (r *Recorder) Respond(status int, header http.Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.rejected++
		return &stream.StreamError{StreamID: r.id, Op: "respond", Err: stream.ErrStreamClosed}
	}
	if r.responded {
		r.rejected++
		return &stream.StreamError{StreamID: r.id, Op: "respond", Err: stream.ErrAlreadyResponded}
	}
	r.responded = true
	r.record(Event{Kind: KindRespond, Status: status, Header: header.Clone()})
	return nil
}

// Write records a body fragment.
func (r *Recorder) Write(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.rejected++
		return &stream.StreamError{StreamID: r.id, Op: "write", Err: stream.ErrStreamClosed}
	}
	r.implicitRespond()
	r.record(Event{Kind: KindWrite, Data: bytes.Clone(p)})
	return nil
}

// End records the end of the stream and closes it.
func (r *Recorder) End(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.rejected++
		return &stream.StreamError{StreamID: r.id, Op: "end", Err: stream.ErrStreamClosed}
	}
	r.implicitRespond()
	r.record(Event{Kind: KindEnd, Data: bytes.Clone(p)})
	r.closeLocked()
	return nil
}

// Abort records a reset after the response started and closes the stream.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.rejected++
		return &stream.StreamError{StreamID: r.id, Op: "abort", Err: stream.ErrStreamClosed}
	}
	r.record(Event{Kind: KindAbort})
	r.closeLocked()
	return nil
}

// PushStream opens a child Recorder unless the parent is closed or pushes are
// being refused.
func (r *Recorder) PushStream(path string, header http.Header) (stream.Stream, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, &stream.PushError{ParentID: r.id, Path: path, Err: stream.ErrPushRefused}
	}
	if r.refuse != nil {
		err := r.refuse
		r.mu.Unlock()
		return nil, &stream.PushError{ParentID: r.id, Path: path, Err: err}
	}
	child := newRecorder(path, r.log)
	r.pushes = append(r.pushes, child)
	r.record(Event{Kind: KindPush, Path: path, Header: header.Clone()})
	hook := r.onPush
	r.mu.Unlock()

	if hook != nil {
		hook(child)
	}
	return child, nil
}

// Closed reports whether the stream ended or was reset.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Done is closed once the stream is closed.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Reset simulates the client cancelling the stream.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

// RefusePushes makes later PushStream calls fail with err. A nil err restores
// normal behavior.
func (r *Recorder) RefusePushes(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refuse = err
}

// OnPush registers a hook run for each accepted push, after the child exists.
func (r *Recorder) OnPush(fn func(child *Recorder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPush = fn
}

// Events returns a copy of the operations accepted on this stream.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Log returns the operations accepted on this stream and every stream pushed
// from it, in the order they happened.
func (r *Recorder) Log() []LogEntry {
	r.log.mu.Lock()
	defer r.log.mu.Unlock()
	return append([]LogEntry(nil), r.log.events...)
}

// Pushes returns the sub-streams opened on this stream.
func (r *Recorder) Pushes() []*Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Recorder(nil), r.pushes...)
}

// Count returns the number of accepted operations of kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}

// Rejected returns the number of operations refused because the stream was
// closed or had already responded.
func (r *Recorder) Rejected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rejected
}

// Status returns the responded status, or 0.
func (r *Recorder) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == KindRespond {
			return ev.Status
		}
	}
	return 0
}

// Header returns the responded headers.
func (r *Recorder) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == KindRespond {
			return ev.Header
		}
	}
	return nil
}

// Body returns the concatenated written bytes.
func (r *Recorder) Body() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var buf bytes.Buffer
	for _, ev := range r.events {
		if ev.Kind == KindWrite || ev.Kind == KindEnd {
			buf.Write(ev.Data)
		}
	}
	return buf.Bytes()
}

func (r *Recorder) implicitRespond() {
	if !r.responded {
		r.responded = true
		r.record(Event{Kind: KindRespond, Status: http.StatusOK})
	}
}

func (r *Recorder) record(ev Event) {
	r.events = append(r.events, ev)
	r.log.add(r.path, ev)
}

func (r *Recorder) closeLocked() {
	r.closed = true
	r.doneOnce.Do(func() { close(r.done) })
}

var (
	_ stream.Stream  = (*Recorder)(nil)
	_ stream.Aborter = (*Recorder)(nil)
)

package stream

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

// PushTokenHeader carries the one-shot token that ties a promised request
// back to the sub-stream returned by PushStream.
const PushTokenHeader = "X-Pushserve-Promise"

// DefaultAttachTimeout bounds how long a sub-stream waits for its promised
// request to reach the handler.
const DefaultAttachTimeout = 10 * time.Second

// PushTable tracks promised streams that have not been claimed yet.
// It is safe for concurrent use.
type PushTable struct {
	attachTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pushStream
}

// NewPushTable creates an empty table. A non-positive timeout selects
// DefaultAttachTimeout.
func NewPushTable(attachTimeout time.Duration) *PushTable {
	if attachTimeout <= 0 {
		attachTimeout = DefaultAttachTimeout
	}
	return &PushTable{
		attachTimeout: attachTimeout,
		pending:       make(map[string]*pushStream),
	}
}

// Len returns the number of promised streams waiting to be claimed.
func (t *PushTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// IsPromise reports whether r carries a push token.
func IsPromise(r *http.Request) bool {
	return r.Header.Get(PushTokenHeader) != ""
}

// Claim attaches w to the sub-stream promised for r and blocks until that
// sub-stream ends or the client resets it. It returns false when r carries
// no token, an unknown one, or one whose sub-stream already expired, in
// which case the caller serves r normally. An aborted delivery resets the
// promised stream by panicking with http.ErrAbortHandler.
func (t *PushTable) Claim(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get(PushTokenHeader)
	if token == "" {
		return false
	}

	t.mu.Lock()
	sub, ok := t.pending[token]
	if ok {
		delete(t.pending, token)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}

	inner := sub.attach(w, r)
	if inner == nil {
		return false
	}
	<-inner.Done()
	if inner.Aborted() {
		panic(http.ErrAbortHandler)
	}
	return true
}

func (t *PushTable) register(parentID uint64, path string) *pushStream {
	sub := &pushStream{
		id:       NextID(),
		parentID: parentID,
		path:     path,
		token:    newToken(),
		table:    t,
		attached: make(chan struct{}),
		expired:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	t.mu.Lock()
	t.pending[sub.token] = sub
	t.mu.Unlock()
	return sub
}

// forget drops a pending token and reports whether it was still unclaimed.
func (t *PushTable) forget(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[token]
	delete(t.pending, token)
	return ok
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// pushStream is the sub-stream handed out by HTTPStream.PushStream. Its
// operations block until the promised request is claimed, then delegate to
// an HTTPStream wrapping the promised request's writer.
type pushStream struct {
	id       uint64
	parentID uint64
	path     string
	token    string
	table    *PushTable

	mu        sync.Mutex
	inner     *HTTPStream
	attached  chan struct{}
	expired   chan struct{}
	isExpired bool

	done     chan struct{}
	doneOnce sync.Once
}

func (p *pushStream) ID() uint64   { return p.id }
func (p *pushStream) Path() string { return p.path }

func (p *pushStream) attach(w http.ResponseWriter, r *http.Request) *HTTPStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isExpired {
		return nil
	}
	p.inner = newHTTPStream(p.id, w, r, nil)
	close(p.attached)
	go func() {
		<-p.inner.Done()
		p.markDone()
	}()
	return p.inner
}

// wait blocks until the promised request is claimed. A promise that is never
// claimed within the attach timeout is expired and reports closed from then on.
func (p *pushStream) wait() (*HTTPStream, error) {
	timer := time.NewTimer(p.table.attachTimeout)
	defer timer.Stop()

	select {
	case <-p.attached:
		return p.inner, nil
	case <-p.expired:
		return nil, ErrPushUnclaimed
	case <-timer.C:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner != nil {
		return p.inner, nil
	}
	if !p.isExpired {
		p.isExpired = true
		close(p.expired)
		p.table.forget(p.token)
		p.markDone()
	}
	return nil, ErrPushUnclaimed
}

func (p *pushStream) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *pushStream) Respond(status int, header http.Header) error {
	inner, err := p.wait()
	if err != nil {
		return &StreamError{StreamID: p.id, Op: "respond", Err: err}
	}
	return inner.Respond(status, header)
}

func (p *pushStream) Write(b []byte) error {
	inner, err := p.wait()
	if err != nil {
		return &StreamError{StreamID: p.id, Op: "write", Err: err}
	}
	return inner.Write(b)
}

func (p *pushStream) End(b []byte) error {
	inner, err := p.wait()
	if err != nil {
		return &StreamError{StreamID: p.id, Op: "end", Err: err}
	}
	return inner.End(b)
}

func (p *pushStream) Abort() error {
	inner, err := p.wait()
	if err != nil {
		return &StreamError{StreamID: p.id, Op: "abort", Err: err}
	}
	return inner.Abort()
}

// PushStream always refuses: HTTP/2 forbids pushes on pushed streams.
func (p *pushStream) PushStream(path string, _ http.Header) (Stream, error) {
	return nil, &PushError{ParentID: p.id, Path: path, Err: ErrPushRefused}
}

func (p *pushStream) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isExpired {
		return true
	}
	if p.inner != nil {
		return p.inner.Closed()
	}
	return false
}

func (p *pushStream) Done() <-chan struct{} {
	return p.done
}

var (
	_ Stream  = (*HTTPStream)(nil)
	_ Stream  = (*pushStream)(nil)
	_ Aborter = (*HTTPStream)(nil)
	_ Aborter = (*pushStream)(nil)
)

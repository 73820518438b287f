package stream

import (
	"net/http"
	"sync/atomic"
)

// Stream is one response stream on a multiplexed connection.
//
// Implementations must be safe for concurrent use: pushes triggered by a
// request may deliver on their own goroutines while the parent is still
// being written.
type Stream interface {
	// ID returns a process-unique identifier for diagnostics.
	ID() uint64

	// Path returns the request path the stream answers.
	Path() string

	// Respond sends the status line and headers. It may be called once.
	Respond(status int, header http.Header) error

	// Write sends a body fragment. Writing before Respond implies a 200.
	Write(p []byte) error

	// End optionally writes p and closes the stream for writing.
	End(p []byte) error

	// PushStream opens a server-initiated sub-stream promising path.
	// header holds additional request headers for the promise.
	PushStream(path string, header http.Header) (Stream, error)

	// Closed reports whether the stream has ended or was reset.
	Closed() bool

	// Done is closed once Closed starts reporting true.
	Done() <-chan struct{}
}

// Aborter is implemented by streams that can be reset after their headers
// were sent.
type Aborter interface {
	// Abort closes the stream without completing the response.
	Abort() error
}

var lastID atomic.Uint64

// NextID allocates a stream identifier.
func NextID() uint64 {
	return lastID.Add(1)
}

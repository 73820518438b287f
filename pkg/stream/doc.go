// Package stream defines the transport boundary used by the push delivery core.
//
// A Stream is a single HTTP/2 stream: the parent response created for a client
// request, or a push sub-stream opened by the server against a parent. The
// core only ever talks to Streams; the HTTP/2 machinery lives behind
// HTTPStream, which adapts an http.ResponseWriter (plus http.Flusher and
// http.Pusher) to the interface.
//
// # Lifecycle
//
// Parent streams move through open → responded → writing* → closed. A stream
// is closed once End has been called, or when the client resets it (the
// request context is cancelled). Every operation on a closed stream returns
// ErrStreamClosed instead of touching the transport.
//
// Push sub-streams move through requested → (accepted | refused) → responded
// → ended. A refusal is reported by PushStream as an error matching
// ErrPushRefused. Refusals are expected whenever the parent is closing, the
// client disabled push, or the peer's concurrent stream limit is reached.
//
// # Push rendezvous
//
// net/http does not hand the server a writer for a promised stream. It
// synthesizes a GET for the promised path and runs the server handler for it.
// HTTPStream.PushStream therefore tags the promise with a one-shot token
// (PushTokenHeader) registered in a PushTable. When the promised request
// reaches the handler, PushTable.Claim attaches its ResponseWriter to the
// sub-stream returned from PushStream. The claimed handler then blocks until
// the sub-stream ends.
//
//	pushes := stream.NewPushTable(10 * time.Second)
//
//	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//	    if pushes.Claim(w, r) {
//	        return
//	    }
//	    parent := stream.NewHTTPStream(w, r, pushes)
//	    sub, err := parent.PushStream("/style.css", nil)
//	    ...
//	})
package stream

// Package push delivers auxiliary assets on HTTP/2 push sub-streams and
// recovers from the stream errors that delivery runs into.
//
// A Pusher opens the sub-stream synchronously, so the promise is ordered
// before whatever the caller writes next on the parent, then transfers the
// asset from a storage.Source on its own goroutine. Every push ends in
// exactly one Outcome.
//
// Failures go through the Classifier:
//
//	refused push          -> ignored
//	target already closed -> ignored
//	missing object        -> 404, end
//	anything else         -> 500, end
//
// Nothing is retried.
package push

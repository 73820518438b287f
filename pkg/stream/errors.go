package stream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http2"
)

// Sentinel errors for stream operations.
var (
	// ErrPushRefused is returned when a push sub-stream could not be opened
	// because the parent is closing, the client disabled push, or the peer's
	// concurrent stream limit was reached. It is never fatal.
	ErrPushRefused = errors.New("stream: push refused")

	// ErrStreamClosed is returned when an operation targets a stream that has
	// already ended or was reset by the client.
	ErrStreamClosed = errors.New("stream: stream closed")

	// ErrAlreadyResponded is returned when Respond is called twice.
	ErrAlreadyResponded = errors.New("stream: already responded")

	// ErrPushUnclaimed is returned when a promised stream was never picked up
	// by the handler within the attach timeout.
	ErrPushUnclaimed = errors.New("stream: push stream never claimed")
)

// StreamError wraps a transport failure with the stream and operation.
type StreamError struct {
	StreamID uint64
	Op       string
	Err      error
}

// Error returns the error message with stream context.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream: %d: %s: %v", e.StreamID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// PushError reports a failure to open a push sub-stream.
// Err matches ErrPushRefused when the failure is a refusal.
type PushError struct {
	ParentID uint64
	Path     string
	Err      error
}

// Error returns the error message.
func (e *PushError) Error() string {
	return fmt.Sprintf("stream: push %s on %d: %v", e.Path, e.ParentID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *PushError) Unwrap() error {
	return e.Err
}

// Refused reports whether the push failed with a refusal.
func (e *PushError) Refused() bool {
	return errors.Is(e.Err, ErrPushRefused)
}

// refusal marks cause as a push refusal while keeping it inspectable.
func refusal(cause error) error {
	if cause == nil || errors.Is(cause, ErrPushRefused) {
		return ErrPushRefused
	}
	return fmt.Errorf("%w: %w", ErrPushRefused, cause)
}

// classifyPushError maps an http.Pusher failure onto the refusal condition.
// Failures that mean "the peer will not take this stream" are refusals; the
// rest are creation failures.
func classifyPushError(err error) error {
	switch {
	case errors.Is(err, http.ErrNotSupported),
		errors.Is(err, http2.ErrPushLimitReached):
		return refusal(err)
	}

	// The bundled net/http HTTP/2 server does not export its push errors.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "client disconnected"),
		strings.Contains(msg, "stream closed"),
		strings.Contains(msg, "SETTINGS_MAX_CONCURRENT_STREAMS"):
		return refusal(err)
	}
	return err
}

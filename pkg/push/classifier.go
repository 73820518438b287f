package push

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/vango-dev/pushserve/pkg/storage"
	"github.com/vango-dev/pushserve/pkg/stream"
)

// Action is the recovery decided for a failed stream operation.
type Action int

const (
	// ActionIgnore leaves the stream untouched.
	ActionIgnore Action = iota
	// ActionNotFound answers 404 and ends the stream.
	ActionNotFound
	// ActionServerError answers 500 and ends the stream.
	ActionServerError
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionIgnore:
		return "ignore"
	case ActionNotFound:
		return "not_found"
	case ActionServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Status returns the HTTP status the action responds with, or 0 for
// ActionIgnore.
func (a Action) Status() int {
	switch a {
	case ActionNotFound:
		return http.StatusNotFound
	case ActionServerError:
		return http.StatusInternalServerError
	default:
		return 0
	}
}

// Classify decides how to recover from err on target. Rules apply in order:
// refusals are ignored, errors on a closed target are ignored, missing
// objects are 404 and everything else is 500.
//
// Classify has no side effects.
func Classify(err error, target stream.Stream) Action {
	switch {
	case err == nil:
		return ActionIgnore
	case errors.Is(err, stream.ErrPushRefused):
		return ActionIgnore
	case target == nil || target.Closed() || errors.Is(err, stream.ErrStreamClosed):
		return ActionIgnore
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ActionNotFound
	default:
		return ActionServerError
	}
}

// Classifier applies Classify and performs the recovery on the target.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a classifier. A nil logger uses slog.Default.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger.With("component", "classifier")}
}

// Apply classifies err and, for ActionNotFound and ActionServerError,
// responds with the status and ends target. When target already responded
// the status cannot change: a stream.Aborter is aborted so the client sees a
// reset instead of a short body, and any other stream is only ended. Apply
// never retries.
func (c *Classifier) Apply(err error, target stream.Stream) Action {
	action := Classify(err, target)
	if action == ActionIgnore {
		if err != nil {
			c.logger.Debug("stream error ignored", attrs(target, "error", err)...)
		}
		return action
	}

	status := action.Status()
	if rerr := target.Respond(status, http.Header{}); rerr != nil {
		if !errors.Is(rerr, stream.ErrAlreadyResponded) {
			c.logger.Debug("stream closed before error response", attrs(target, "error", rerr)...)
			return action
		}
		if a, ok := target.(stream.Aborter); ok {
			if aerr := a.Abort(); aerr != nil {
				c.logger.Debug("stream closed before abort", attrs(target, "error", aerr)...)
			}
			c.logger.Log(context.Background(), slog.LevelWarn, "stream aborted after response started",
				attrs(target, "status", status, "error", err)...)
			return action
		}
		c.logger.Debug("stream already responded, ending without status",
			attrs(target, "status", status)...)
	}
	if eerr := target.End(nil); eerr != nil {
		c.logger.Debug("stream closed before end", attrs(target, "error", eerr)...)
	}

	level := slog.LevelWarn
	if action == ActionNotFound {
		level = slog.LevelInfo
	}
	c.logger.Log(context.Background(), level, "stream error answered",
		attrs(target, "status", status, "error", err)...)
	return action
}

func attrs(target stream.Stream, kv ...any) []any {
	if target == nil {
		return kv
	}
	return append([]any{"stream_id", target.ID(), "path", target.Path()}, kv...)
}

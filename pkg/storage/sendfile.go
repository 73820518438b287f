package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vango-dev/pushserve/pkg/stream"
)

// DefaultBufferSize is the chunk size used to copy objects onto a stream.
const DefaultBufferSize = 32 * 1024

// Options configures SendFile.
type Options struct {
	// StatCheck adds a Last-Modified header from the object's modification time.
	StatCheck bool

	// HeadOnly sends the headers and ends the stream without a body.
	HeadOnly bool

	// BufferSize is the copy chunk size. Default: DefaultBufferSize.
	BufferSize int
}

// SendFile transfers the object stored as name as the body of s, with header
// as the response headers. It responds 200, writes the body in chunks and
// ends the stream.
//
// The returned error is meant for push.Classifier: it matches ErrNotFound
// when the object does not exist, stream.ErrStreamClosed when s went away,
// and is a *TransferError when reading failed mid-flight. SendFile never
// responds with an error status itself.
func SendFile(ctx context.Context, s stream.Stream, src Source, name string, header http.Header, opts Options) error {
	if s.Closed() {
		return &stream.StreamError{StreamID: s.ID(), Op: "sendfile", Err: stream.ErrStreamClosed}
	}

	obj, err := src.Open(ctx, name)
	if err != nil {
		return err
	}
	defer obj.Body.Close()

	h := header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if opts.StatCheck && !obj.ModTime.IsZero() {
		h.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	if obj.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}

	if err := s.Respond(http.StatusOK, h); err != nil {
		return err
	}
	if opts.HeadOnly {
		return s.End(nil)
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	buf := make([]byte, size)

	for {
		n, rerr := obj.Body.Read(buf)
		if n > 0 {
			if werr := s.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return &TransferError{Name: name, Err: rerr}
		}
	}

	return s.End(nil)
}

// Package storage is the byte-delivery boundary: it opens stored assets and
// transfers them as the body of a stream.
//
// A Source resolves names relative to a fixed root. Two sources are provided:
// FSSource over an afero filesystem (a read-only, root-confined view of the
// local disk in production, an in-memory filesystem in tests) and S3Source
// over an S3 bucket prefix. Both report missing objects as ErrNotFound so
// that callers can answer 404 without knowing where the bytes live.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("storage: not found")
)

// TransferError reports a failure while reading an object that was found.
type TransferError struct {
	Name string
	Err  error
}

// Error returns the error message.
func (e *TransferError) Error() string {
	return fmt.Sprintf("storage: transfer %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Object is an opened stored asset.
type Object struct {
	Body    io.ReadCloser
	ModTime time.Time
	// Size is the body length, or -1 when unknown.
	Size int64
}

// Source opens stored assets by name relative to its root.
type Source interface {
	Open(ctx context.Context, name string) (*Object, error)
}

// FSSource serves objects from an afero filesystem.
type FSSource struct {
	fs afero.Fs
}

// NewFSSource wraps fsys. Names are resolved relative to the root of fsys.
func NewFSSource(fsys afero.Fs) *FSSource {
	return &FSSource{fs: fsys}
}

// NewDirSource serves objects from a directory on the local disk. The view is
// read-only and confined to root.
func NewDirSource(root string) *FSSource {
	return NewFSSource(afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), root)))
}

// Open opens name. Directories count as missing.
func (s *FSSource) Open(_ context.Context, name string) (*Object, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, notFoundOr(name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, notFoundOr(name, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}

	return &Object{
		Body:    f,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

func notFoundOr(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, name, err)
	}
	return &TransferError{Name: name, Err: err}
}

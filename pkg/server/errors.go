package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for server configuration and lifecycle.
var (
	// ErrIncompleteTLS is returned when only one of CertFile and KeyFile is set.
	ErrIncompleteTLS = errors.New("server: certificate and key must be set together")

	// ErrNoTransport is returned when neither TLS nor h2c is configured.
	ErrNoTransport = errors.New("server: TLS certificate required unless h2c is enabled")
)

// ListenError wraps a failure to bind the listen address.
type ListenError struct {
	Address string
	Err     error
}

// Error returns the error message with the address.
func (e *ListenError) Error() string {
	return fmt.Sprintf("server: listen %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ListenError) Unwrap() error {
	return e.Err
}

// TLSError wraps a failure to load the certificate pair.
type TLSError struct {
	CertFile string
	KeyFile  string
	Err      error
}

// Error returns the error message.
func (e *TLSError) Error() string {
	return fmt.Sprintf("server: load certificate %s / %s: %v", e.CertFile, e.KeyFile, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *TLSError) Unwrap() error {
	return e.Err
}

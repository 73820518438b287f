package server

import (
	"time"

	"github.com/vango-dev/pushserve/pkg/stream"
)

// ServerConfig holds configuration for the HTTP/2 server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8443" or "localhost:4430").
	// Default: ":8443".
	Address string

	// TLS

	// CertFile and KeyFile hold the PEM certificate and key. Both or neither
	// must be set; without them H2C must be enabled.
	CertFile string
	KeyFile  string

	// H2C serves HTTP/2 over cleartext (prior knowledge or Upgrade).
	// Browsers only speak HTTP/2 over TLS; use this behind a proxy or for
	// local testing.
	H2C bool

	// HTTP/2

	// MaxConcurrentStreams caps the streams a client may open on one
	// connection. Pushes beyond the peer's limit are refused.
	// Default: 250.
	MaxConcurrentStreams uint32

	// PushAttachTimeout bounds how long a promised stream waits for its
	// request to reach the handler.
	// Default: stream.DefaultAttachTimeout.
	PushAttachTimeout time.Duration

	// Timeouts

	// ReadHeaderTimeout is the time allowed to read request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// IdleTimeout closes connections with no active streams.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:              ":8443",
		MaxConcurrentStreams: 250,
		PushAttachTimeout:    stream.DefaultAttachTimeout,
		ReadHeaderTimeout:    10 * time.Second,
		IdleTimeout:          120 * time.Second,
		ShutdownTimeout:      30 * time.Second,
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *ServerConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Validate checks the transport settings.
func (c *ServerConfig) Validate() error {
	if (c.CertFile == "") != (c.KeyFile == "") {
		return ErrIncompleteTLS
	}
	if !c.TLSEnabled() && !c.H2C {
		return ErrNoTransport
	}
	return nil
}

func (c *ServerConfig) fillDefaults() {
	defaults := DefaultServerConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = defaults.MaxConcurrentStreams
	}
	if c.PushAttachTimeout == 0 {
		c.PushAttachTimeout = defaults.PushAttachTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

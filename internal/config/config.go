package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/vango-dev/pushserve/internal/errors"
	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/render"
	"github.com/vango-dev/pushserve/pkg/server"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "pushserve.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8443"

	// DefaultStorageRoot is the directory served when no storage is configured.
	DefaultStorageRoot = "public"

	// DefaultTitle is the default document title.
	DefaultTitle = "HTTP/2 project"

	// DefaultLang is the default document language.
	DefaultLang = "ru"

	// DefaultRenderDelay is the default pause before the late head fragment.
	DefaultRenderDelay = "1s"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "pushserve"
)

// Config represents the complete pushserve.json configuration.
type Config struct {
	// Server contains listener and HTTP/2 settings.
	Server ServerConfig `json:"server"`

	// Storage selects where assets are read from.
	Storage StorageConfig `json:"storage"`

	// Document configures the staged root document.
	Document DocumentConfig `json:"document"`

	// Assets contains asset name resolution settings.
	Assets AssetsConfig `json:"assets"`

	// Metrics contains the Prometheus endpoint settings.
	Metrics MetricsConfig `json:"metrics"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains listener settings. Durations are Go duration strings.
type ServerConfig struct {
	Address              string `json:"address,omitempty"`
	CertFile             string `json:"certFile,omitempty"`
	KeyFile              string `json:"keyFile,omitempty"`
	H2C                  bool   `json:"h2c,omitempty"`
	MaxConcurrentStreams uint32 `json:"maxConcurrentStreams,omitempty"`
	IdleTimeout          string `json:"idleTimeout,omitempty"`
	ShutdownTimeout      string `json:"shutdownTimeout,omitempty"`
	PushAttachTimeout    string `json:"pushAttachTimeout,omitempty"`
}

// StorageConfig selects a local directory or an S3 bucket.
type StorageConfig struct {
	// Root is a directory, relative to the config file.
	Root string `json:"root,omitempty"`

	// S3 serves objects from a bucket instead of Root.
	S3 *S3Config `json:"s3,omitempty"`
}

// S3Config contains S3 bucket settings.
type S3Config struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// DocumentConfig configures the root document.
type DocumentConfig struct {
	Title       string   `json:"title,omitempty"`
	Lang        string   `json:"lang,omitempty"`
	Greeting    string   `json:"greeting,omitempty"`
	RenderDelay string   `json:"renderDelay,omitempty"`
	Early       []string `json:"early,omitempty"`
	Late        []string `json:"late,omitempty"`
}

// AssetsConfig contains asset resolution settings.
type AssetsConfig struct {
	// Manifest is a JSON file mapping logical names to fingerprinted names,
	// relative to the storage root.
	Manifest string `json:"manifest,omitempty"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	// Address serves /metrics when set.
	Address   string `json:"address,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads pushserve.json from dir.
func Load(fsys afero.Fs, dir string) (*Config, error) {
	return LoadFile(fsys, filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(fsys afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("E100").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, parseError(path, data, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func parseError(path string, data []byte, err error) error {
	e := errors.New("E101").Wrap(err)

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syntaxErr):
		e.WithSource(path, data, syntaxErr.Offset-1)
	case stderrors.As(err, &typeErr):
		e.WithSource(path, data, typeErr.Offset-1).
			WithSuggestion(fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
	default:
		e.WithLocation(path, 1, 0)
	}
	return e
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}

	if c.Storage.Root == "" && c.Storage.S3 == nil {
		c.Storage.Root = DefaultStorageRoot
	}

	if c.Document.Title == "" {
		c.Document.Title = DefaultTitle
	}
	if c.Document.Lang == "" {
		c.Document.Lang = DefaultLang
	}
	if c.Document.Greeting == "" {
		c.Document.Greeting = render.DefaultGreeting
	}
	if c.Document.RenderDelay == "" {
		c.Document.RenderDelay = DefaultRenderDelay
	}
	if c.Document.Early == nil {
		c.Document.Early = []string{"style.css", "style1.css"}
	}
	if c.Document.Late == nil {
		c.Document.Late = []string{"script.js"}
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return errors.New("E104")
	}
	if c.Server.CertFile == "" && !c.Server.H2C {
		return errors.New("E107")
	}

	if _, err := c.ServerConfig(); err != nil {
		return err
	}
	if _, err := c.RenderDocument(); err != nil {
		return err
	}

	if c.Storage.Root != "" && c.Storage.S3 != nil {
		return errors.New("E103").WithDetail("storage.root and storage.s3 are both set.")
	}
	if c.Storage.S3 != nil && c.Storage.S3.Bucket == "" {
		return errors.New("E103").WithDetail("storage.s3.bucket is empty.")
	}

	for _, name := range c.AssetNames() {
		if _, ok := assets.CleanName(name); !ok {
			return errors.New("E105").Wrap(fmt.Errorf("asset %q", name))
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return errors.New("E106").Wrap(fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return nil
}

// AssetNames returns the early then late asset names.
func (c *Config) AssetNames() []string {
	names := make([]string, 0, len(c.Document.Early)+len(c.Document.Late))
	names = append(names, c.Document.Early...)
	return append(names, c.Document.Late...)
}

// ServerConfig converts the server section. Unset durations keep the
// server defaults.
func (c *Config) ServerConfig() (*server.ServerConfig, error) {
	sc := server.DefaultServerConfig()
	sc.Address = c.Server.Address
	sc.CertFile = c.resolve(c.Server.CertFile)
	sc.KeyFile = c.resolve(c.Server.KeyFile)
	sc.H2C = c.Server.H2C
	if c.Server.MaxConcurrentStreams > 0 {
		sc.MaxConcurrentStreams = c.Server.MaxConcurrentStreams
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"server.idleTimeout", c.Server.IdleTimeout, &sc.IdleTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout, &sc.ShutdownTimeout},
		{"server.pushAttachTimeout", c.Server.PushAttachTimeout, &sc.PushAttachTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := parseDuration(d.field, d.value)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}
	return sc, nil
}

// RenderDocument converts the document section. Early and Late are left for
// the router to resolve.
func (c *Config) RenderDocument() (render.Document, error) {
	delay, err := parseDuration("document.renderDelay", c.Document.RenderDelay)
	if err != nil {
		return render.Document{}, err
	}
	return render.Document{
		Title:       c.Document.Title,
		Lang:        c.Document.Lang,
		Greeting:    c.Document.Greeting,
		RenderDelay: delay,
	}, nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E106").Wrap(fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return level, nil
}

// StorageRoot returns the storage directory, relative paths resolved
// against the config file's directory.
func (c *Config) StorageRoot() string {
	return c.resolve(c.Storage.Root)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err == nil && d < 0 {
		err = fmt.Errorf("negative duration %q", value)
	}
	if err != nil {
		return 0, errors.New("E102").
			WithDetail(field + " is not a valid duration.").
			Wrap(err)
	}
	return d, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(fsys afero.Fs, dir string) bool {
	ok, err := afero.Exists(fsys, filepath.Join(dir, ConfigFileName))
	return err == nil && ok
}

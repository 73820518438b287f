package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vango-dev/pushserve/internal/config"
	"github.com/vango-dev/pushserve/internal/errors"
)

// serveFlags holds command-line overrides for pushserve.json.
type serveFlags struct {
	addr        string
	root        string
	cert        string
	key         string
	h2c         bool
	renderDelay time.Duration
	logLevel    string
	logFormat   string
}

func serveCmd(configPath *string) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/2 server",
		Long: `Start the HTTP/2 server.

Settings come from pushserve.json; flags override them. Without a
certificate the server needs --h2c, which speaks cleartext HTTP/2
(prior knowledge only, browsers will not connect).

Examples:
  pushserve serve --cert server.crt --key server.key
  pushserve serve --h2c --addr :8080 --root ./public
  pushserve serve -c deploy/pushserve.json --log-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := afero.NewOsFs()
			cfg, err := loadConfig(fsys, *configPath)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runServe(cmd.Context(), fsys, cfg)
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

func (f *serveFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.addr, "addr", "", "Listen address (default from pushserve.json, :8443)")
	fs.StringVar(&f.root, "root", "", "Directory to serve (replaces storage settings)")
	fs.StringVar(&f.cert, "cert", "", "TLS certificate file")
	fs.StringVar(&f.key, "key", "", "TLS key file")
	fs.BoolVar(&f.h2c, "h2c", false, "Serve cleartext HTTP/2 when no certificate is set")
	fs.DurationVar(&f.renderDelay, "render-delay", 0, "Pause before the late head fragment")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
}

// apply copies the flags the user set onto cfg. Paths are made absolute
// against the working directory, not the config file.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	set := cmd.Flags().Changed

	abs := func(p string) (string, error) {
		if p == "" {
			return p, nil
		}
		return filepath.Abs(p)
	}

	if set("addr") {
		cfg.Server.Address = f.addr
	}
	if set("root") {
		root, err := abs(f.root)
		if err != nil {
			return errors.New("E160").Wrap(err)
		}
		cfg.Storage.Root = root
		cfg.Storage.S3 = nil
	}
	if set("cert") {
		cert, err := abs(f.cert)
		if err != nil {
			return errors.New("E160").Wrap(err)
		}
		cfg.Server.CertFile = cert
	}
	if set("key") {
		key, err := abs(f.key)
		if err != nil {
			return errors.New("E160").Wrap(err)
		}
		cfg.Server.KeyFile = key
	}
	if set("h2c") {
		cfg.Server.H2C = f.h2c
	}
	if set("render-delay") {
		cfg.Document.RenderDelay = f.renderDelay.String()
	}
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return nil
}

func runServe(ctx context.Context, fsys afero.Fs, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, fsys, cfg, logger)
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if addr := cfg.Metrics.Address; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

		go func() {
			logger.Info("metrics listening", "address", addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	err = a.server.Run(ctx)

	// Deliveries already started finish on their own sub-streams.
	a.pusher.Wait()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	return serverError(err)
}

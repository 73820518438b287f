package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"

	"github.com/vango-dev/pushserve/internal/config"
	"github.com/vango-dev/pushserve/internal/errors"
	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/middleware"
	"github.com/vango-dev/pushserve/pkg/push"
	"github.com/vango-dev/pushserve/pkg/render"
	"github.com/vango-dev/pushserve/pkg/router"
	"github.com/vango-dev/pushserve/pkg/server"
	"github.com/vango-dev/pushserve/pkg/storage"
)

// app holds every component built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	source   storage.Source
	catalog  *assets.Catalog
	registry *prometheus.Registry
	metrics  *middleware.Metrics
	pusher   *push.Pusher
	router   *router.Router
	server   *server.Server
}

// loadConfig reads path, or ./pushserve.json when path is empty and the
// file exists, or falls back to defaults.
func loadConfig(fsys afero.Fs, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(fsys, path)
	}
	if config.Exists(fsys, ".") {
		return config.Load(fsys, ".")
	}
	return config.New(), nil
}

func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newSource(fsys afero.Fs, cfg *config.Config) (storage.Source, error) {
	if s3cfg := cfg.Storage.S3; s3cfg != nil {
		client := storage.NewS3Client(storage.S3Options{
			Region:   s3cfg.Region,
			Endpoint: s3cfg.Endpoint,
		})
		return storage.NewS3Source(client, s3cfg.Bucket, s3cfg.Prefix), nil
	}

	root := cfg.StorageRoot()
	ok, err := afero.DirExists(fsys, root)
	if err != nil || !ok {
		return nil, errors.New("E103").
			WithDetail("storage.root " + root + " is not a directory.").
			Wrap(err)
	}
	return storage.NewFSSource(afero.NewReadOnlyFs(afero.NewBasePathFs(fsys, root))), nil
}

// newCatalog reads the asset manifest through src, so a fingerprinted
// manifest works for both directory and bucket storage.
func newCatalog(ctx context.Context, src storage.Source, cfg *config.Config) (*assets.Catalog, error) {
	name := cfg.Assets.Manifest
	if name == "" {
		return assets.NewCatalog(nil), nil
	}

	obj, err := src.Open(ctx, name)
	if err != nil {
		return nil, errors.New("E120").WithDetail("assets.manifest " + name + " could not be opened.").Wrap(err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	manifest, err := assets.ParseManifest(data)
	if err != nil {
		return nil, errors.New("E120").Wrap(fmt.Errorf("%s: %w", name, err))
	}
	return assets.NewCatalog(manifest), nil
}

// newApp validates cfg and builds the delivery stack over fsys.
func newApp(ctx context.Context, fsys afero.Fs, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, err := cfg.ServerConfig()
	if err != nil {
		return nil, err
	}
	doc, err := cfg.RenderDocument()
	if err != nil {
		return nil, err
	}

	src, err := newSource(fsys, cfg)
	if err != nil {
		return nil, err
	}
	catalog, err := newCatalog(ctx, src, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(
		middleware.WithNamespace(cfg.Metrics.Namespace),
		middleware.WithRegistry(registry),
	)

	pusher := push.NewPusher(src,
		push.WithLogger(logger),
		push.WithObserver(metrics))
	pipeline := render.New(pusher,
		render.WithLogger(logger),
		render.WithObserver(metrics))

	rt := router.New(src,
		router.WithCatalog(catalog),
		router.WithPusher(pusher),
		router.WithPipeline(pipeline),
		router.WithDocument(doc),
		router.WithEarlyAssets(cfg.Document.Early...),
		router.WithLateAssets(cfg.Document.Late...),
		router.WithLogger(logger))

	if _, _, err := rt.Describe(); err != nil {
		return nil, errors.FromError(err, "E105")
	}

	srv := server.New(sc, rt,
		server.WithLogger(logger),
		server.WithMiddleware(middleware.Tracing(), metrics.Handler),
		server.WithStreamObserver(metrics))

	return &app{
		cfg:      cfg,
		logger:   logger,
		source:   src,
		catalog:  catalog,
		registry: registry,
		metrics:  metrics,
		pusher:   pusher,
		router:   rt,
		server:   srv,
	}, nil
}

// serverError attaches a code to lifecycle failures from server.Run.
func serverError(err error) error {
	var listenErr *server.ListenError
	var tlsErr *server.TLSError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &listenErr):
		return errors.New("E140").Wrap(err)
	case stderrors.As(err, &tlsErr):
		return errors.New("E141").Wrap(err)
	default:
		return errors.New("E142").Wrap(err)
	}
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/vango-dev/pushserve/internal/config"
	"github.com/vango-dev/pushserve/internal/errors"
	"github.com/vango-dev/pushserve/pkg/assets"
	"github.com/vango-dev/pushserve/pkg/storage"
)

func checkCmd(configPath *string) *cobra.Command {
	var stat bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and list pushed assets",
		Long: `Validate pushserve.json and print the assets the root document
pushes, with the names they are stored under.

With --stat every asset is opened in storage, and a missing asset
fails the check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := afero.NewOsFs()
			cfg, err := loadConfig(fsys, *configPath)
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), fsys, cfg, stat)
		},
	}

	cmd.Flags().BoolVar(&stat, "stat", false, "Open every asset in storage")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, fsys afero.Fs, cfg *config.Config, stat bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, err := newSource(fsys, cfg)
	if err != nil {
		return err
	}
	catalog, err := newCatalog(ctx, src, cfg)
	if err != nil {
		return err
	}

	groups := []struct {
		label string
		names []string
	}{
		{"early", cfg.Document.Early},
		{"late", cfg.Document.Late},
	}

	missing := 0
	for _, g := range groups {
		descs, err := catalog.Describe(g.names...)
		if err != nil {
			return errors.FromError(err, "E105")
		}
		for _, d := range descs {
			status := ""
			if stat {
				status = "ok"
				if err := probe(ctx, src, d); err != nil {
					status = "missing"
					missing++
				}
			}
			fmt.Fprintf(out, "%-6s %-32s %-28s %s\n", g.label, d.PublicPath(), d.ContentType(), status)
		}
	}

	if missing > 0 {
		return errors.New("E103").
			WithDetail(fmt.Sprintf("%d pushed asset(s) not found in storage.", missing)).
			WithSuggestion("Add the files to storage or remove them from document.early and document.late.")
	}
	return nil
}

func probe(ctx context.Context, src storage.Source, d assets.Descriptor) error {
	obj, err := src.Open(ctx, d.StoragePath())
	if err != nil {
		return err
	}
	return obj.Body.Close()
}

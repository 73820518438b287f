package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/pushserve/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pushserve",
		Short: "HTTP/2 server push content delivery",
		Long: `pushserve serves a staged HTML document over HTTP/2 and pushes
its stylesheets and scripts before the browser asks for them.

The document is written in phases: the head with stylesheet links,
late script tags after a render delay, then the body. Each phase
pushes the assets it references. Any other path is served as a
static file from a directory or an S3 bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to pushserve.json (default: ./pushserve.json if present)")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		checkCmd(&configPath),
		versionCmd(),
	)

	return rootCmd
}

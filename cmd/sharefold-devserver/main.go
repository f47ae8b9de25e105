// sharefold-devserver runs the sharefold file API in memory for local
// development. Objects are served by the devserver itself unless the config
// points it at an S3 bucket or an Azure container.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sharefold/sharefold/internal/devserver"
	"github.com/sharefold/sharefold/internal/logging"
	"github.com/sharefold/sharefold/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile   string
		addr      string
		publicURL string
		secret    string
		store     string
		blobDir   string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:     "sharefold-devserver",
		Short:   "Local sharefold API server",
		Version: version.Version + " (" + version.BuildTime + ")",
		Long: `Serves the sharefold file API from memory.

Users and folders are seeded from an INI file ([user:NAME], [folder:ID]).
An "admin" account is always created and must change its password on first login.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("server", nil)
			if debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}

			cfg, err := devserver.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if publicURL != "" {
				cfg.PublicURL = publicURL
			}
			if secret != "" {
				cfg.JWTSecret = secret
			}
			if cfg.JWTSecret == "" {
				cfg.JWTSecret = os.Getenv("SHAREFOLD_DEV_SECRET")
			}
			if store != "" {
				cfg.ObjectStore = store
			}
			if blobDir != "" {
				cfg.BlobDir = blobDir
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv, err := devserver.New(ctx, cfg, devserver.Options{Logger: logger})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Devserver INI file")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "Base URL used in locally signed transfer locations")
	cmd.Flags().StringVar(&secret, "secret", "", "Token signing secret (or SHAREFOLD_DEV_SECRET)")
	cmd.Flags().StringVar(&store, "objects", "", "Object store: local, s3 or azure")
	cmd.Flags().StringVar(&blobDir, "blob-dir", "", "Directory for local objects (default: memory)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

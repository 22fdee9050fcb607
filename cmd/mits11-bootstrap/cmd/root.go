package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Arbin-com/mits11-release/internal/launch"
	"github.com/Arbin-com/mits11-release/internal/logger"
	"github.com/Arbin-com/mits11-release/internal/service/bootstrap"
	"github.com/Arbin-com/mits11-release/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// silent toggles non-interactive installer mode.
	silent bool
	// logLevel sets the logging verbosity.
	logLevel string

	// rootCmd represents the base command for bootstrapping a MITS 11 installation.
	rootCmd = &cobra.Command{
		Use:   "mits11-bootstrap [target]",
		Short: "Download, verify and launch the MITS 11 installer",
		Long: `Bootstrap for MITS 11 installations.

Resolves the requested target to a concrete release version, downloads the
platform archive (reusing a checksum-verified cache where possible), verifies
its SHA-256 against the release manifest, extracts it, and launches the
installer shipped inside the archive, elevating privileges when required.

The target is either a channel name (stable, latest, alpha, nightly) or an
explicit version such as 5.0.1. The default is stable. The bootstrap's exit
code is the installer's own exit code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var target string
			if len(args) > 0 {
				target = args[0]
			}

			options := &bootstrap.Options{
				ConfigPath: configPath,
				Target:     target,
				Silent:     silent,
			}

			return bootstrap.Run(ctx, options)
		},
	}

	// elevatedRunCmd is the hidden helper executed by the elevated child
	// process during the privilege handshake. It runs the installer, writes
	// the exit code sentinel, and exits with the installer's code.
	elevatedRunCmd = &cobra.Command{
		Use:    launch.HelperCommandName + " <installer> <sentinel>",
		Hidden: true,
		Args:   cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := logger.WithName(cmd.Context(), "elevated-run")
			os.Exit(launch.RunHelper(ctx, args[0], args[1], silent))
		},
	}
)

// Execute runs the mits11-bootstrap CLI and exits with the installer's exit
// code on installer failure, or 1 on any other fatal condition.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *launch.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}

		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().BoolVarP(&silent, "silent", "s", false, "run the installer non-interactively")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")

	elevatedRunCmd.Flags().BoolVar(&silent, "silent", false, "run the installer non-interactively")

	rootCmd.AddCommand(elevatedRunCmd)
}

package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Arbin-com/mits11-release/internal/archive"
	"github.com/Arbin-com/mits11-release/internal/artifact"
	"github.com/Arbin-com/mits11-release/internal/config"
	"github.com/Arbin-com/mits11-release/internal/launch"
	"github.com/Arbin-com/mits11-release/internal/logger"
	"github.com/Arbin-com/mits11-release/internal/manifest"
	"github.com/Arbin-com/mits11-release/internal/platform"
	"github.com/Arbin-com/mits11-release/internal/resolver"
)

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Target is the version selector: a channel name or an explicit version.
	Target string
	// Silent requests non-interactive installer mode.
	Silent bool

	// Controller overrides the launch controller; tests substitute one with
	// a stubbed privilege probe. Nil picks platform defaults.
	Controller *launch.Controller
}

// Run executes the bootstrap lifecycle and is the public entry point for the CLI.
// It resolves the version, fetches and verifies the platform artifact, extracts
// it, and launches the nested installer, propagating its exit status.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "mits11-bootstrap")

	// Target validation is purely local and precedes all network activity.
	target, err := resolver.ParseTarget(opts.Target)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	platformID, err := platform.Detect()
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Detected platform", "platform", platformID)

	ws, err := newWorkspace(cfg.KeepTemp)
	if err != nil {
		return fmt.Errorf("create temporary workspace: %w", err)
	}

	// Cleanup wraps the whole pipeline, not just the tail.
	defer ws.cleanup(ctx)

	if err = run(ctx, cfg, ws, target, platformID, opts); err != nil {
		logger.ErrorKV(ctx, "Bootstrap failed", "error", err)
		return err
	}

	logger.Info(ctx, "Installer finished successfully")

	return nil
}

// run walks the pipeline: resolve, fetch manifest, verify artifact, extract,
// locate, launch.
func run(
	ctx context.Context,
	cfg *config.Config,
	ws *workspace,
	target resolver.Target,
	platformID string,
	opts *Options,
) error {
	client := &http.Client{Timeout: cfg.Timeout}

	logger.InfoKV(ctx, "Resolving version", "target", target.Value)

	version, err := resolver.Resolve(ctx, client, cfg.BaseURL, target)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Resolved version", "version", version)

	// The manifest is fetched fresh every run so channel pointers always
	// reflect current data.
	parser := manifest.SelectParser()

	entry, err := manifest.PlatformEntry(ctx, client, parser, cfg.BaseURL, version, platformID)
	if err != nil {
		return err
	}

	logger.Info(ctx, "Fetching release archive")

	cache := artifact.NewCache(cfg.CacheDir, client)

	archivePath, fromCache, err := cache.Ensure(ctx, entry, version, platformID)
	if err != nil {
		return err
	}

	if fromCache {
		logger.Info(ctx, "Archive reused from cache")
	}

	extractDir, err := ws.extractDir()
	if err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	logger.InfoKV(ctx, "Extracting archive", "path", archivePath)

	if err = archive.Extract(archivePath, extractDir); err != nil {
		return err
	}

	installerPath, err := archive.LocateInstaller(extractDir, platform.InstallerName())
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Launching installer", "installer", installerPath)

	controller := opts.Controller
	if controller == nil {
		controller = launch.NewController(opts.Silent)
	}

	controller.Silent = opts.Silent

	return controller.Run(ctx, installerPath, ws.sentinelPath())
}

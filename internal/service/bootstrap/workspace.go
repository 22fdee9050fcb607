package bootstrap

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/Arbin-com/mits11-release/internal/logger"
)

const (
	// extractSubdirectory holds the unpacked release tree.
	extractSubdirectory = "extracted"

	// sentinelFilename is where an elevated child reports the installer
	// exit code.
	sentinelFilename = "exit-code.txt"
)

// workspace owns every piece of ephemeral on-disk state for one run: the
// process-private temporary root, the extracted tree inside it, and the
// elevation sentinel. The verified cache file is deliberately not part of the
// workspace; it survives the run for future reuse.
type workspace struct {
	root     string
	keepTemp bool
}

// newWorkspace creates the temporary root with process-unique naming so
// concurrent invocations never collide.
func newWorkspace(keepTemp bool) (*workspace, error) {
	root, err := os.MkdirTemp("", "mits11-bootstrap-")
	if err != nil {
		return nil, err
	}

	return &workspace{
		root:     root,
		keepTemp: keepTemp,
	}, nil
}

// extractDir returns the directory receiving the unpacked archive, creating it.
func (w *workspace) extractDir() (string, error) {
	dir := filepath.Join(w.root, extractSubdirectory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	return dir, nil
}

// sentinelPath returns the sentinel location inside the temporary root.
func (w *workspace) sentinelPath() string {
	return filepath.Join(w.root, sentinelFilename)
}

// cleanup releases all ephemeral state. It runs deferred on every exit path;
// the keep-temp override retains everything for post-mortem inspection.
// Removal failures are aggregated and logged, never masking the run's own error.
func (w *workspace) cleanup(ctx context.Context) {
	if w.keepTemp {
		logger.InfoKV(ctx, "Keeping temporary state as requested", "path", w.root)
		return
	}

	var errs error

	// Remove the pieces individually before the root so a busy extracted
	// tree does not shadow a removable sentinel, then take the root down.
	errs = multierr.Append(errs, os.RemoveAll(filepath.Join(w.root, extractSubdirectory)))
	errs = multierr.Append(errs, removeIfExists(w.sentinelPath()))
	errs = multierr.Append(errs, os.RemoveAll(w.root))

	if errs != nil {
		logger.WarnKV(ctx, "Temporary state could not be fully removed",
			"path", w.root, "error", errs)

		return
	}

	logger.Debug(ctx, "Temporary state removed")
}

// removeIfExists removes a file, treating absence as success.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	return err
}

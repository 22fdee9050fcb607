package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Arbin-com/mits11-release/internal/logger"
	"github.com/Arbin-com/mits11-release/internal/manifest"
)

const (
	// archiveFileMode is the permission for cached release archives.
	archiveFileMode os.FileMode = 0o644

	// cacheDirMode is the permission for the cache directory tree.
	cacheDirMode os.FileMode = 0o755

	// partialSuffix marks an in-flight download next to its final path.
	partialSuffix = ".partial"
)

var (
	errBadHTTPStatus    = errors.New("unexpected http status")
	errChecksumMismatch = errors.New("checksum verification failed")
)

// Cache is a content-addressed store of verified release archives.
// Files are keyed by (version, platform) and valid only while their SHA-256
// equals the manifest-declared hash; there is no TTL.
type Cache struct {
	dir    string
	client *http.Client
}

// NewCache returns a cache rooted at dir, downloading through client.
func NewCache(dir string, client *http.Client) *Cache {
	return &Cache{
		dir:    dir,
		client: client,
	}
}

// FilePath returns the deterministic cache location for a release archive.
func (c *Cache) FilePath(version, platformID string) string {
	return filepath.Join(c.dir, fmt.Sprintf("mits11-%s-%s.zip", version, platformID))
}

// Ensure returns the path of a verified local archive for the entry, reusing
// the cached file when its hash still matches and downloading otherwise.
// A stale cached file triggers exactly one download; a fresh download that
// fails verification is deleted and terminal.
func (c *Cache) Ensure(
	ctx context.Context,
	entry *manifest.Entry,
	version, platformID string,
) (path string, fromCache bool, err error) {
	path = c.FilePath(version, platformID)

	if _, statErr := os.Stat(path); statErr == nil {
		var sum string

		sum, err = fileSHA256(path)
		if err != nil {
			return "", false, fmt.Errorf("hash cached archive: %w", err)
		}

		if checksumsEqual(sum, entry.SHA256) {
			logger.InfoKV(ctx, "Using cached archive", "path", path)
			return path, true, nil
		}

		logger.WarnKV(ctx, "Cached archive failed verification, refetching",
			"path", path, "have", sum, "want", entry.SHA256)

		if err = os.Remove(path); err != nil {
			return "", false, fmt.Errorf("remove stale archive: %w", err)
		}
	}

	if err = c.download(ctx, entry, path); err != nil {
		return "", false, err
	}

	return path, false, nil
}

// download fetches the artifact into the cache, hashing the stream as it is
// written. The file lands at its final path only after the hash matches, so a
// concurrent run can never pick up unverified bytes.
func (c *Cache) download(ctx context.Context, entry *manifest.Entry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), cacheDirMode); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.URL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", entry.URL, response.Status, errBadHTTPStatus)
	}

	partialPath := path + partialSuffix

	partial, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, archiveFileMode)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	hasher := sha256.New()

	_, copyErr := io.Copy(io.MultiWriter(partial, hasher), response.Body)
	closeErr := partial.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partialPath)

		if copyErr != nil {
			return fmt.Errorf("download artifact: %w", copyErr)
		}

		return fmt.Errorf("write archive file: %w", closeErr)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if !checksumsEqual(sum, entry.SHA256) {
		_ = os.Remove(partialPath)

		return fmt.Errorf("%w: got %s, want %s", errChecksumMismatch, sum, entry.SHA256)
	}

	if err = os.Rename(partialPath, path); err != nil {
		_ = os.Remove(partialPath)

		return fmt.Errorf("finalize archive file: %w", err)
	}

	logger.InfoKV(ctx, "Downloaded and verified archive", "path", path, "sha256", sum)

	return nil
}

// fileSHA256 streams a file through SHA-256 and returns the lower-case hex digest.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// checksumsEqual compares digests case-insensitively; the canonical manifest
// form is lower-case hex.
func checksumsEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

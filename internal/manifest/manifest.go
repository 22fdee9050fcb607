package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const (
	// manifestFilename is the per-version manifest resource name.
	manifestFilename = "manifest.json"

	// maxManifestBytes bounds the manifest body read from the server.
	maxManifestBytes = 4 << 20
)

var (
	errBadHTTPStatus   = errors.New("unexpected http status")
	errPlatformMissing = errors.New("manifest has no entry for platform")
	errURLMissing      = errors.New("manifest entry has no url")
	errChecksumMissing = errors.New("manifest entry has no sha256")
	errChecksumFormat  = errors.New("manifest sha256 is not 64 lower-case hex characters")

	// checksumPattern is the canonical form of a manifest checksum.
	checksumPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// Entry is the per-platform artifact descriptor extracted from a manifest.
type Entry struct {
	// URL is the download location of the release archive.
	URL string
	// SHA256 is the lower-case hex content hash of the archive.
	SHA256 string
}

// PlatformEntry fetches the manifest for a version and extracts the entry for
// the given platform using the provided parser. Every failure names the
// platform and version involved.
func PlatformEntry(
	ctx context.Context,
	client *http.Client,
	parser Parser,
	baseURL, version, platformID string,
) (*Entry, error) {
	document, err := fetch(ctx, client, baseURL, version)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest for version %s: %w", version, err)
	}

	entry, err := parser.Extract(document, platformID)
	if err != nil {
		return nil, fmt.Errorf("manifest for version %s, platform %s: %w", version, platformID, err)
	}

	return entry, nil
}

// fetch downloads the manifest document at {baseURL}/{version}/manifest.json.
// Manifests are always fetched fresh so channel pointers resolve to current data.
func fetch(ctx context.Context, client *http.Client, baseURL, version string) ([]byte, error) {
	manifestURL := baseURL + "/" + version + "/" + manifestFilename

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", manifestURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(io.LimitReader(response.Body, maxManifestBytes))
}

// validateEntry applies the field rules shared by both parser backends.
func validateEntry(entry *Entry) error {
	if entry.URL == "" {
		return errURLMissing
	}

	if entry.SHA256 == "" {
		return errChecksumMissing
	}

	if !checksumPattern.MatchString(entry.SHA256) {
		return fmt.Errorf("%w: %q", errChecksumFormat, entry.SHA256)
	}

	return nil
}

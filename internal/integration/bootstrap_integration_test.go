//go:build !windows

package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Arbin-com/mits11-release/internal/config"
	"github.com/Arbin-com/mits11-release/internal/launch"
	"github.com/Arbin-com/mits11-release/internal/platform"
	"github.com/Arbin-com/mits11-release/internal/service/bootstrap"
)

// releaseArchive builds a zip shipping an installer script that records its
// execution by touching markerPath and exits with exitCode.
func releaseArchive(t *testing.T, markerPath string, exitCode int) []byte {
	t.Helper()

	script := "#!/bin/sh\ntouch " + markerPath + "\nexit " + strconv.Itoa(exitCode) + "\n"

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	f, err := w.Create("mits11-5.0.1/script/" + platform.InstallerName())
	require.NoError(t, err)

	_, err = f.Write([]byte(script))
	require.NoError(t, err)

	f, err = w.Create("mits11-5.0.1/README.txt")
	require.NoError(t, err)

	_, err = f.Write([]byte("MITS 11 release"))
	require.NoError(t, err)

	require.NoError(t, w.Close())

	return buf.Bytes()
}

// distServer serves a channel pointer, a manifest, and the release archive,
// counting archive downloads.
func distServer(t *testing.T, archiveBody []byte, declaredSHA string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	platformID, err := platform.Detect()
	require.NoError(t, err)

	var downloads atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/stable", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("5.0.1\n"))
	})
	mux.HandleFunc("/artifact.zip", func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		_, _ = w.Write(archiveBody)
	})

	var ts *httptest.Server

	mux.HandleFunc("/5.0.1/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		body := `{"platforms":{"` + platformID + `":{"url":"` + ts.URL + `/artifact.zip","sha256":"` + declaredSHA + `"}}}`
		_, _ = w.Write([]byte(body))
	})

	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts, &downloads
}

// privilegedController bypasses the platform privilege probe so the installer
// runs directly under the test process.
func privilegedController() *launch.Controller {
	controller := launch.NewController(false)
	controller.Privileged = func() bool { return true }

	return controller
}

// TestBootstrap_EndToEndSuccess runs the full pipeline twice: the first run
// downloads, verifies, extracts and launches; the second reuses the cache and
// performs no additional artifact download.
func TestBootstrap_EndToEndSuccess(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "installer-ran")

	archiveBody := releaseArchive(t, marker, 0)
	sum := sha256.Sum256(archiveBody)

	ts, downloads := distServer(t, archiveBody, hex.EncodeToString(sum[:]))

	cacheDir := filepath.Join(dir, "cache")
	t.Setenv(config.EnvBaseURL, ts.URL)
	t.Setenv(config.EnvCacheDir, cacheDir)

	opts := &bootstrap.Options{
		Target:     "5.0.1",
		Controller: privilegedController(),
	}

	require.NoError(t, bootstrap.Run(context.Background(), opts))
	require.FileExists(t, marker)
	require.Equal(t, int64(1), downloads.Load())

	// Cache file retained after success.
	platformID, err := platform.Detect()
	require.NoError(t, err)

	cachePath := filepath.Join(cacheDir, "mits11-5.0.1-"+platformID+".zip")
	require.FileExists(t, cachePath)

	// Second run: cache hit, no further download.
	require.NoError(t, os.Remove(marker))
	require.NoError(t, bootstrap.Run(context.Background(), opts))
	require.FileExists(t, marker)
	require.Equal(t, int64(1), downloads.Load())
}

// TestBootstrap_ChannelResolution exercises the stable channel pointer path.
func TestBootstrap_ChannelResolution(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "installer-ran")

	archiveBody := releaseArchive(t, marker, 0)
	sum := sha256.Sum256(archiveBody)

	ts, _ := distServer(t, archiveBody, hex.EncodeToString(sum[:]))

	t.Setenv(config.EnvBaseURL, ts.URL)
	t.Setenv(config.EnvCacheDir, filepath.Join(dir, "cache"))

	opts := &bootstrap.Options{
		Target:     "stable",
		Controller: privilegedController(),
	}

	require.NoError(t, bootstrap.Run(context.Background(), opts))
	require.FileExists(t, marker)
}

// TestBootstrap_ChecksumMismatch ensures a bad manifest hash stops the run
// before extraction, deletes the artifact, and fails the pipeline.
func TestBootstrap_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "installer-ran")

	archiveBody := releaseArchive(t, marker, 0)
	wrong := sha256.Sum256([]byte("some other bytes"))

	ts, downloads := distServer(t, archiveBody, hex.EncodeToString(wrong[:]))

	cacheDir := filepath.Join(dir, "cache")
	t.Setenv(config.EnvBaseURL, ts.URL)
	t.Setenv(config.EnvCacheDir, cacheDir)

	opts := &bootstrap.Options{
		Target:     "5.0.1",
		Controller: privilegedController(),
	}

	err := bootstrap.Run(context.Background(), opts)
	require.Error(t, err)
	require.ErrorContains(t, err, "checksum verification failed")

	// No extraction or launch happened and no cache file survived.
	require.NoFileExists(t, marker)

	platformID, err := platform.Detect()
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(cacheDir, "mits11-5.0.1-"+platformID+".zip"))
	require.Equal(t, int64(1), downloads.Load())
}

// TestBootstrap_InstallerExitCode ensures a failing installer surfaces its
// exit code through the pipeline.
func TestBootstrap_InstallerExitCode(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "installer-ran")

	archiveBody := releaseArchive(t, marker, 2)
	sum := sha256.Sum256(archiveBody)

	ts, _ := distServer(t, archiveBody, hex.EncodeToString(sum[:]))

	t.Setenv(config.EnvBaseURL, ts.URL)
	t.Setenv(config.EnvCacheDir, filepath.Join(dir, "cache"))

	opts := &bootstrap.Options{
		Target:     "5.0.1",
		Controller: privilegedController(),
	}

	err := bootstrap.Run(context.Background(), opts)

	var exitErr *launch.ExitError

	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.FileExists(t, marker)
}

// TestBootstrap_InvalidTarget fails locally before any network activity.
func TestBootstrap_InvalidTarget(t *testing.T) {
	// A server that fails the test if anything reaches it.
	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s", r.URL.Path)
	}))
	t.Cleanup(ts.Close)

	t.Setenv(config.EnvBaseURL, ts.URL)

	err := bootstrap.Run(context.Background(), &bootstrap.Options{Target: "not-a-version"})
	require.Error(t, err)
}

package platform

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	errUnsupportedOS   = errors.New("unsupported operating system")
	errUnsupportedArch = errors.New("unsupported CPU architecture")
)

// osTokens maps Go OS names to the short tokens used in release manifests.
// The set is closed: anything absent is rejected outright.
//
//nolint:gochecknoglobals // Static lookup table.
var osTokens = map[string]string{
	"linux":   "linux",
	"darwin":  "osx",
	"windows": "win",
}

// archTokens maps Go architecture names to manifest tokens.
// Releases are 64-bit only, so 32-bit architectures are deliberately absent.
//
//nolint:gochecknoglobals // Static lookup table.
var archTokens = map[string]string{
	"amd64": "x64",
	"arm64": "arm64",
}

// Detect maps the running host to its canonical platform identifier
// of the form "{os}-{arch}", e.g. "linux-x64" or "win-arm64".
// It fails for any host outside the closed support matrix.
func Detect() (string, error) {
	return identifier(runtime.GOOS, runtime.GOARCH)
}

// identifier builds the platform identifier from explicit OS and architecture
// names. Split out from Detect so the whole matrix is testable on any host.
func identifier(goos, goarch string) (string, error) {
	osToken, ok := osTokens[goos]
	if !ok {
		return "", fmt.Errorf("%w: %s", errUnsupportedOS, goos)
	}

	archToken, ok := archTokens[goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s (64-bit only)", errUnsupportedArch, goarch)
	}

	return osToken + "-" + archToken, nil
}

// InstallerName returns the relative file name of the nested installer
// shipped inside a release archive for the current OS.
func InstallerName() string {
	if runtime.GOOS == "windows" {
		return "install.bat"
	}

	return "install.sh"
}

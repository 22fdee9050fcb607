package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/Arbin-com/mits11-release/internal/logger"
)

// Channel names accepted as floating targets. Their pointer resources are
// mutable server-side; explicit versions are deterministic and never fetched.
const (
	ChannelStable  = "stable"
	ChannelLatest  = "latest"
	ChannelAlpha   = "alpha"
	ChannelNightly = "nightly"
)

const (
	// maxPointerBytes bounds the channel pointer body; a version string
	// should never be anywhere near this size.
	maxPointerBytes = 4 << 10
)

var (
	errInvalidTarget   = errors.New("target is neither a channel name nor a valid version")
	errEmptyResolution = errors.New("channel pointer resolved to an empty version")
	errBadHTTPStatus   = errors.New("unexpected http status")

	// explicitVersionPattern matches MAJOR.MINOR.PATCH with an optional
	// pre-release or build suffix.
	explicitVersionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.+-]+)?$`)
)

// Target is a validated version selector: either one of the floating
// channels or a pinned explicit version.
type Target struct {
	// Value is the normalized selector string.
	Value string
	// Explicit reports whether Value is a pinned version rather than a channel.
	Explicit bool
}

// ParseTarget validates a raw user-supplied selector. An empty selector
// defaults to the stable channel. Validation is purely local: no network
// activity happens for invalid input.
func ParseTarget(raw string) (Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Target{Value: ChannelStable}, nil
	}

	switch strings.ToLower(s) {
	case ChannelStable, ChannelLatest, ChannelAlpha, ChannelNightly:
		return Target{Value: strings.ToLower(s)}, nil
	}

	if !explicitVersionPattern.MatchString(s) {
		return Target{}, fmt.Errorf("%w: %q", errInvalidTarget, raw)
	}

	// The pattern is the gate; go-version catches the odd stragglers
	// (e.g. a lone trailing dot inside a suffix) the regexp lets through.
	if _, err := goversion.NewSemver(s); err != nil {
		return Target{}, fmt.Errorf("%w: %q", errInvalidTarget, raw)
	}

	return Target{Value: s, Explicit: true}, nil
}

// Resolve maps a validated target to a concrete version string.
// Explicit targets are returned unchanged without touching the network.
// Channel targets fetch the plain-text pointer at {baseURL}/{channel} and
// return its trimmed body.
func Resolve(ctx context.Context, client *http.Client, baseURL string, target Target) (string, error) {
	if target.Explicit {
		return target.Value, nil
	}

	channel := target.Value
	if channel == ChannelLatest {
		// "latest" and "stable" are one channel; the server publishes a
		// single pointer for both.
		channel = ChannelStable
	}

	pointerURL := baseURL + "/" + channel

	resolved, err := fetchPointer(ctx, client, pointerURL)
	if err != nil {
		return "", fmt.Errorf("resolve target %q: %w", target.Value, err)
	}

	if resolved == "" {
		return "", fmt.Errorf("resolve target %q: %w", target.Value, errEmptyResolution)
	}

	if _, err = goversion.NewSemver(resolved); err != nil {
		// The pointer body is treated as opaque; an unparsable version is
		// worth a warning but not a failure.
		logger.WarnKV(ctx, "Channel pointer is not a semantic version",
			"channel", channel, "version", resolved)
	}

	return resolved, nil
}

// fetchPointer downloads and trims a channel pointer body.
func fetchPointer(ctx context.Context, client *http.Client, pointerURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pointerURL, http.NoBody)
	if err != nil {
		return "", err
	}

	response, err := client.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", pointerURL, response.Status, errBadHTTPStatus)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxPointerBytes))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

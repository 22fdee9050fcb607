package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseTarget covers channel names, explicit versions and junk input.
func TestParseTarget(t *testing.T) {
	t.Parallel()

	// Empty defaults to stable.
	target, err := ParseTarget("")
	require.NoError(t, err)
	require.Equal(t, Target{Value: ChannelStable}, target)

	// Channels, case-insensitively.
	for _, s := range []string{"stable", "latest", "alpha", "nightly", "Stable", "NIGHTLY"} {
		target, err = ParseTarget(s)
		require.NoError(t, err)
		require.False(t, target.Explicit)
	}

	// Explicit versions.
	for _, s := range []string{"5.0.1", "1.2.3-rc.1", "10.20.30+build.7"} {
		target, err = ParseTarget(s)
		require.NoError(t, err)
		require.True(t, target.Explicit)
		require.Equal(t, s, target.Value)
	}

	// Junk.
	for _, s := range []string{"5.0", "v5.0.1", "beta", "5.0.1 extra", "../etc"} {
		_, err = ParseTarget(s)
		require.Error(t, err, "input %q", s)
	}
}

// failingTransport fails every request, proving no network call is made.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("unexpected network call")
}

// TestResolveExplicitSkipsNetwork ensures a pinned version never hits the network.
func TestResolveExplicitSkipsNetwork(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: failingTransport{}}

	target, err := ParseTarget("5.0.1")
	require.NoError(t, err)

	resolved, err := Resolve(context.Background(), client, "https://unused.invalid", target)
	require.NoError(t, err)
	require.Equal(t, "5.0.1", resolved)
}

// TestResolveChannels checks that channel pointers resolve to their trimmed
// bodies and that "latest" aliases the stable pointer.
func TestResolveChannels(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/stable", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("  5.0.1\n"))
	})
	mux.HandleFunc("/alpha", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("5.1.0-alpha.3"))
	})
	mux.HandleFunc("/nightly", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("\t5.1.0-nightly.20260823 \r\n"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()

	cases := map[string]string{
		"stable":  "5.0.1",
		"latest":  "5.0.1",
		"alpha":   "5.1.0-alpha.3",
		"nightly": "5.1.0-nightly.20260823",
	}
	for selector, want := range cases {
		target, err := ParseTarget(selector)
		require.NoError(t, err)

		resolved, err := Resolve(ctx, ts.Client(), ts.URL, target)
		require.NoError(t, err)
		require.Equal(t, want, resolved)
	}
}

// TestResolveFailures ensures fetch errors and empty bodies are fatal
// and name the original target.
func TestResolveFailures(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/stable", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("   \n"))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()

	// Empty body after trimming.
	target, err := ParseTarget("stable")
	require.NoError(t, err)

	_, err = Resolve(ctx, ts.Client(), ts.URL, target)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stable")

	// Missing pointer resource.
	target, err = ParseTarget("nightly")
	require.NoError(t, err)

	_, err = Resolve(ctx, ts.Client(), ts.URL, target)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nightly")
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings the bootstrap resolves once at startup.
// Everything derived from environment variables is folded in here so the
// rest of the program never reads ambient state.
type Config struct {
	// BaseURL is the distribution endpoint hosting channel pointers,
	// version manifests and release artifacts.
	BaseURL string `yaml:"base_url"`
	// CacheDir is where verified release archives are kept between runs.
	CacheDir string `yaml:"cache_dir"`
	// Timeout is the duration for individual HTTP requests.
	Timeout time.Duration `yaml:"timeout"`
	// KeepTemp retains the temporary working directory after the run
	// for post-mortem debugging. Environment-only, never persisted.
	KeepTemp bool `yaml:"-"`
}

const (
	// DefaultConfigFilename is the default filename for bootstrap settings.
	DefaultConfigFilename = "mits11-bootstrap.yaml"

	// DefaultBaseURL is the production distribution endpoint.
	DefaultBaseURL = "https://dist.arbin.com/mits11"

	// DefaultTimeout is the default duration for HTTP requests.
	// Artifact downloads can be large, so this is generous.
	DefaultTimeout = 10 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// EnvBaseURL overrides the distribution endpoint.
	EnvBaseURL = "MITS11_BASE_URL"

	// EnvCacheDir overrides the artifact cache directory.
	EnvCacheDir = "MITS11_CACHE_DIR"

	// EnvKeepTemp, when set to a non-empty value, retains temporary state.
	EnvKeepTemp = "MITS11_KEEP_TMP"

	// cacheSubdirectory is appended to the user cache root.
	cacheSubdirectory = "mits11-bootstrap"
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Load reads configuration from the provided path, applies environment
// overrides and validates the result. A missing file at the default path is
// not an error: built-in defaults apply.
func Load(path string) (*Config, error) {
	usingDefaultPath := path == ""
	if usingDefaultPath {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && usingDefaultPath:
		// No settings file is the common case for a bootstrap.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	applyEnvironment(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// applyEnvironment folds environment overrides into the configuration.
func applyEnvironment(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		cfg.CacheDir = v
	}

	if v := strings.TrimSpace(os.Getenv(EnvKeepTemp)); v != "" {
		cfg.KeepTemp = true
	}
}

// Validate checks the configuration for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid distribution base URL: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.CacheDir == "" {
		root, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("resolve user cache directory: %w", err)
		}

		cfg.CacheDir = filepath.Join(root, cacheSubdirectory)
	}

	return nil
}

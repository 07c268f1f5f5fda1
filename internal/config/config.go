package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FeedURLEnv overrides Config.FeedURL when set. The feed URL embeds an
// access token, so deployments typically keep it out of the config file and
// supply it via the environment (or a .env file).
const FeedURLEnv = "DAYVIEW_FEED_URL"

// BasicAuthConfig holds HTTP Basic Auth credentials for the JSON API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// FeedURL is the iCalendar subscription endpoint. Treated as a secret:
	// it is never logged in full.
	FeedURL string `yaml:"feed_url" json:"feed_url"`

	// Listen is the HTTP listen address for the JSON API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Berlin"). Day
	// boundaries and "today" are computed in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// StateDir is where the cached feed snapshot lives.
	StateDir string `yaml:"state_dir" json:"state_dir"`

	// RefreshCron is a cron-style schedule (e.g. "*/30 * * * *") for the
	// daemon's forced-refresh loop.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// FetchTimeoutSeconds bounds a single feed request.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" json:"fetch_timeout_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:             "",
		Listen:              "127.0.0.1:8080",
		Timezone:            "Local",
		StateDir:            "/var/lib/dayview",
		RefreshCron:         "*/30 * * * *",
		FetchTimeoutSeconds: 15,
		LogLevel:            "info",
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.StateDir == "" {
		c.StateDir = "/var/lib/dayview"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = 15
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overlays environment overrides onto the loaded config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(FeedURLEnv); v != "" {
		c.FeedURL = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides (ApplyEnv) are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the feed URL is a secret).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".dayview-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Package config handles loading the daemon configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/tabgroups/config.yaml
//   - State:   ~/.local/state/tabgroups/ (default state snapshot location)
//
// Environment variables override file values; flags override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BridgeConfig points the daemon at the browser bridge.
type BridgeConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Token   string `yaml:"token,omitempty"`
}

// PollConfig controls the event pump.
type PollConfig struct {
	Interval time.Duration `yaml:"interval,omitempty"`
	Jitter   float64       `yaml:"jitter,omitempty"` // ratio, 0.0-1.0
	Limit    int           `yaml:"limit,omitempty"`  // events per page
}

// Config is the top-level configuration for tabgroupd.
type Config struct {
	Listen       string        `yaml:"listen,omitempty"`
	Token        string        `yaml:"token,omitempty"` // API bearer token, empty disables auth
	StateDSN     string        `yaml:"state_dsn,omitempty"`
	BookmarkFile string        `yaml:"bookmark_file,omitempty"` // file-backed store instead of the bridge
	Debounce     time.Duration `yaml:"debounce,omitempty"`      // bookmark file watcher debounce
	Bridge       BridgeConfig  `yaml:"bridge,omitempty"`
	Poll         PollConfig    `yaml:"poll,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:   "127.0.0.1:8390",
		StateDSN: filepath.Join(StateDir(), "state.json"),
		Bridge: BridgeConfig{
			BaseURL: "http://127.0.0.1:8377",
		},
		Poll: PollConfig{
			Interval: 2 * time.Second,
			Jitter:   0.2,
			Limit:    100,
		},
		Debounce: 250 * time.Millisecond,
	}
}

// ConfigDir returns the XDG config directory for tabgroups.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tabgroups")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tabgroups")
}

// StateDir returns the XDG state directory for tabgroups.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tabgroups")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "tabgroups")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		applyEnv(&cfg)
		return cfg, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path and applies environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.BookmarkFile = expandHome(cfg.BookmarkFile)
	if !strings.Contains(cfg.StateDSN, "://") {
		cfg.StateDSN = expandHome(cfg.StateDSN)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Validate rejects combinations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.BookmarkFile == "" && c.Bridge.BaseURL == "" {
		return fmt.Errorf("either bridge.base_url or bookmark_file is required")
	}
	if c.Poll.Jitter < 0 || c.Poll.Jitter > 1 {
		return fmt.Errorf("poll.jitter must be between 0.0 and 1.0")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Listen = envOrDefault("TABGROUPS_LISTEN", cfg.Listen)
	cfg.Token = envOrDefault("TABGROUPS_TOKEN", cfg.Token)
	cfg.StateDSN = envOrDefault("TABGROUPS_STATE_DSN", cfg.StateDSN)
	cfg.BookmarkFile = envOrDefault("TABGROUPS_BOOKMARK_FILE", cfg.BookmarkFile)
	cfg.Bridge.BaseURL = envOrDefault("TABGROUPS_BRIDGE_URL", cfg.Bridge.BaseURL)
	cfg.Bridge.Token = envOrDefault("TABGROUPS_BRIDGE_TOKEN", cfg.Bridge.Token)
	cfg.Poll.Interval = durationEnv("TABGROUPS_POLL_INTERVAL", cfg.Poll.Interval)
	cfg.Poll.Jitter = floatEnv("TABGROUPS_POLL_JITTER", cfg.Poll.Jitter)
	cfg.Debounce = durationEnv("TABGROUPS_DEBOUNCE", cfg.Debounce)
}

func envOrDefault(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func floatEnv(name string, fallback float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bridge settings. Values come from config.yaml under the
// bridge home directory, overridden by environment variables.
type Config struct {
	// APIBaseURL is the base URL of the Mirra SDK API.
	APIBaseURL string `yaml:"api_base_url"`
	// RealtimeURL is the base URL for the realtime updates channel. Defaults
	// to the API origin.
	RealtimeURL string `yaml:"realtime_url"`
	// GroupID is the default messaging group new sessions report to.
	GroupID string `yaml:"group_id"`

	// BridgeHome is the directory where the bridge stores local state
	// (markers, progress files, credentials, logs).
	BridgeHome string `yaml:"-"`

	// ClaudeBin is the Claude Code CLI binary to spawn.
	ClaudeBin string `yaml:"claude_bin"`
	// Interactive attaches the spawned CLI to a pseudo-terminal when the
	// bridge itself runs on a TTY.
	Interactive bool `yaml:"interactive"`

	// ProgressInterval is the minimum delay between two progress
	// notifications for the same session.
	ProgressInterval time.Duration `yaml:"progress_interval"`

	// MetricsListen enables the Prometheus endpoint when non-empty
	// (e.g. "127.0.0.1:9465").
	MetricsListen string `yaml:"metrics_listen"`

	// NotesEnabled controls the per-session activity note in Mirra memory.
	NotesEnabled bool `yaml:"notes_enabled"`

	// PushoverToken and PushoverUser enable out-of-band push notifications
	// for session failures when both are set.
	PushoverToken string `yaml:"pushover_token"`
	PushoverUser  string `yaml:"pushover_user"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
}

const (
	defaultAPIBaseURL       = "https://api.fxn.world/api/sdk/v1"
	defaultClaudeBin        = "claude"
	defaultProgressInterval = 30 * time.Second
)

// Load reads config.yaml from the bridge home (if present), applies defaults
// and environment overrides, and ensures the home directory exists.
func Load() (*Config, error) {
	home, err := bridgeHome()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create bridge home: %w", err)
	}

	cfg := &Config{
		APIBaseURL:       defaultAPIBaseURL,
		ClaudeBin:        defaultClaudeBin,
		ProgressInterval: defaultProgressInterval,
		NotesEnabled:     true,
		BridgeHome:       home,
	}

	path := filepath.Join(home, "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg.BridgeHome = home

	applyEnv(cfg)

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.RealtimeURL == "" {
		cfg.RealtimeURL = apiOrigin(cfg.APIBaseURL)
	}
	cfg.RealtimeURL = strings.TrimRight(cfg.RealtimeURL, "/")
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = defaultProgressInterval
	}
	return cfg, nil
}

// bridgeHome resolves the bridge state directory.
func bridgeHome() (string, error) {
	if dir := os.Getenv("MIRRA_BRIDGE_HOME"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".mirra-bridge"), nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MIRRA_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("MIRRA_REALTIME_URL"); v != "" {
		cfg.RealtimeURL = v
	}
	if v := os.Getenv("MIRRA_GROUP_ID"); v != "" {
		cfg.GroupID = v
	}
	if v := os.Getenv("MIRRA_CLAUDE_BIN"); v != "" {
		cfg.ClaudeBin = v
	}
	if v := os.Getenv("MIRRA_METRICS_LISTEN"); v != "" {
		cfg.MetricsListen = v
	}
	if v := os.Getenv("MIRRA_PROGRESS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ProgressInterval = d
		}
	}
	if v := os.Getenv("MIRRA_PUSHOVER_TOKEN"); v != "" {
		cfg.PushoverToken = v
	}
	if v := os.Getenv("MIRRA_PUSHOVER_USER"); v != "" {
		cfg.PushoverUser = v
	}
	if isTruthy(os.Getenv("MIRRA_INTERACTIVE")) {
		cfg.Interactive = true
	}
	if isTruthy(os.Getenv("DEBUG")) || isTruthy(os.Getenv("MIRRA_DEBUG")) {
		cfg.Debug = true
	}
}

func isTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

// apiOrigin strips the API path from a base URL, leaving scheme://host.
func apiOrigin(baseURL string) string {
	rest := baseURL
	scheme := ""
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme = rest[:i+3]
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return scheme + rest
}

// MarkersDir is where session marker files live.
func (c *Config) MarkersDir() string { return filepath.Join(c.BridgeHome, "markers") }

// ProgressDir is where per-session progress state lives.
func (c *Config) ProgressDir() string { return filepath.Join(c.BridgeHome, "progress") }

// LogsDir is where bridge log files live.
func (c *Config) LogsDir() string { return filepath.Join(c.BridgeHome, "logs") }

// CredentialsPath is the sealed API key file.
func (c *Config) CredentialsPath() string { return filepath.Join(c.BridgeHome, "credentials.sealed") }

// MachineKeyPath is the machine secret key file.
func (c *Config) MachineKeyPath() string { return filepath.Join(c.BridgeHome, "machine.key") }

// MachineIDPath is the stable machine identifier file.
func (c *Config) MachineIDPath() string { return filepath.Join(c.BridgeHome, "machine.id") }

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations used by the sync engine and the development remotes.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	BlobDir    string `toml:"blob_dir"`
	RecordsDir string `toml:"records_dir"`
}

// Sync contains timing and sizing knobs for the upload queue, reconciliation, and hydration.
type Sync struct {
	DrainIntervalSeconds      int `toml:"drain_interval_seconds"`
	BatchSize                 int `toml:"batch_size"`
	MaxRetries                int `toml:"max_retries"`
	BackoffBaseSeconds        int `toml:"backoff_base_seconds"`
	BackoffMaxSeconds         int `toml:"backoff_max_seconds"`
	TaskTimeoutSeconds        int `toml:"task_timeout_seconds"`
	QuiescentDelayMS          int `toml:"quiescent_delay_ms"`
	ClockSkewToleranceSeconds int `toml:"clock_skew_tolerance_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Uploads        bool   `toml:"uploads"`
	Reconcile      bool   `toml:"reconcile"`
	Hydration      bool   `toml:"hydration"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shotsync.
//
// Configuration sections by subsystem:
//   - Paths: local store, logs, and development remote directories
//   - Sync: drain cadence, batch size, retry budget, and timeouts
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sync          Sync          `toml:"sync"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shotsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.BlobDir, c.Paths.RecordsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the SQLite database backing the local durable store.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "shotsync.db")
}

// LockPath returns the single-instance lock file for the data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shotsync.lock")
}

// DrainInterval returns the upload queue drain period.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Sync.DrainIntervalSeconds) * time.Second
}

// BackoffBase returns the delay applied after the first failed transfer.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Sync.BackoffBaseSeconds) * time.Second
}

// BackoffMax caps the exponential retry delay.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Sync.BackoffMaxSeconds) * time.Second
}

// TaskTimeout bounds a single transfer.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Sync.TaskTimeoutSeconds) * time.Second
}

// QuiescentDelay is the pause between replaying deferred writes and resuming asset drains.
func (c *Config) QuiescentDelay() time.Duration {
	return time.Duration(c.Sync.QuiescentDelayMS) * time.Millisecond
}

// ClockSkewTolerance is the window within which two timestamps compare equal.
func (c *Config) ClockSkewTolerance() time.Duration {
	return time.Duration(c.Sync.ClockSkewToleranceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

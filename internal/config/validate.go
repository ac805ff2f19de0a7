package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.BlobDir == c.Paths.RecordsDir {
		return errors.New("paths.blob_dir and paths.records_dir must differ")
	}
	return nil
}

func (c *Config) validateSync() error {
	s := c.Sync
	if s.DrainIntervalSeconds <= 0 {
		return errors.New("sync.drain_interval_seconds must be positive")
	}
	if s.BatchSize <= 0 {
		return errors.New("sync.batch_size must be positive")
	}
	if s.MaxRetries <= 0 {
		return errors.New("sync.max_retries must be positive")
	}
	if s.BackoffBaseSeconds <= 0 {
		return errors.New("sync.backoff_base_seconds must be positive")
	}
	if s.BackoffMaxSeconds < s.BackoffBaseSeconds {
		return fmt.Errorf("sync.backoff_max_seconds (%d) must be >= sync.backoff_base_seconds (%d)", s.BackoffMaxSeconds, s.BackoffBaseSeconds)
	}
	if s.TaskTimeoutSeconds <= 0 {
		return errors.New("sync.task_timeout_seconds must be positive")
	}
	if s.QuiescentDelayMS < 0 {
		return errors.New("sync.quiescent_delay_ms must be >= 0")
	}
	if s.ClockSkewToleranceSeconds < 0 {
		return errors.New("sync.clock_skew_tolerance_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

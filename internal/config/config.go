package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default values
const (
	DefaultConcurrency    = 2
	DefaultTimeoutSeconds = 600
	DefaultRetryCount     = 3

	MinConcurrency = 1
	MaxConcurrency = 10
)

// Config carries the settings the download manager reads at construction.
// Callers build it from flags or their own settings layer; this package
// never parses files.
type Config struct {
	Concurrency    int    // maximum simultaneously running tasks
	TimeoutSeconds int    // per-probe and per-attempt time budget, 0 means no limit
	RetryCount     int    // retries for transient network failures
	DownloadRoot   string // directory new destination paths are resolved against
}

// Default returns a Config populated with the application defaults.
// The download root falls back to /tmp/downloads when the home
// directory cannot be resolved.
func Default() Config {
	return Config{
		Concurrency:    DefaultConcurrency,
		TimeoutSeconds: DefaultTimeoutSeconds,
		RetryCount:     DefaultRetryCount,
		DownloadRoot:   defaultDownloadRoot(),
	}
}

// Validate checks every field and reports all problems at once
func (c Config) Validate() error {
	var errs []error

	if c.Concurrency < MinConcurrency || c.Concurrency > MaxConcurrency {
		errs = append(errs, fmt.Errorf("concurrency must be between %d and %d, got %d",
			MinConcurrency, MaxConcurrency, c.Concurrency))
	}
	if c.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("timeout_seconds must not be negative, got %d", c.TimeoutSeconds))
	}
	if c.RetryCount < 0 {
		errs = append(errs, fmt.Errorf("retry_count must not be negative, got %d", c.RetryCount))
	}
	if c.DownloadRoot == "" {
		errs = append(errs, errors.New("download_root must not be empty"))
	}

	return errors.Join(errs...)
}

func defaultDownloadRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/downloads"
	}
	return filepath.Join(homeDir, "Downloads")
}

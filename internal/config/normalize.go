package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProvider(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.AmbiguousDir, err = expandPath(c.Paths.AmbiguousDir); err != nil {
		return fmt.Errorf("paths.ambiguous_dir: %w", err)
	}
	if c.Paths.FailedDir, err = expandPath(c.Paths.FailedDir); err != nil {
		return fmt.Errorf("paths.failed_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DBPath) == "" {
		c.Paths.DBPath = filepath.Join(c.Paths.LogDir, "scenematch.db")
	}
	if c.Paths.DBPath, err = expandPath(c.Paths.DBPath); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() error {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name == "" {
		c.Provider.Name = defaultProviderName
	}
	if c.Provider.APIKey == "" {
		if value, ok := os.LookupEnv("SCENEMATCH_API_KEY"); ok {
			c.Provider.APIKey = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Provider.Endpoint) == "" {
		switch c.Provider.Name {
		case "theporndb":
			c.Provider.Endpoint = defaultThePornDBEndpoint
		default:
			c.Provider.Endpoint = defaultStashDBEndpoint
		}
	}
	if c.Provider.RequestTimeout <= 0 {
		c.Provider.RequestTimeout = defaultRequestTimeout
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.TopNCandidates < 0 {
		c.Workflow.TopNCandidates = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

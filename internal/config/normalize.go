package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	if err := c.normalizeOverrides(); err != nil {
		return err
	}
	c.normalizeINaturalist()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeCatalog() error {
	if value, ok := os.LookupEnv("CRITTERSYNC_DATABASE"); ok && strings.TrimSpace(value) != "" {
		c.Catalog.DatabasePath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Catalog.DatabasePath) == "" {
		c.Catalog.DatabasePath = defaultDatabasePath()
	}
	var err error
	if c.Catalog.DatabasePath, err = expandPath(strings.TrimSpace(c.Catalog.DatabasePath)); err != nil {
		return fmt.Errorf("catalog.database_path: %w", err)
	}
	if strings.TrimSpace(c.Catalog.LockPath) == "" {
		c.Catalog.LockPath = c.Catalog.DatabasePath + ".lock"
	}
	if c.Catalog.LockPath, err = expandPath(strings.TrimSpace(c.Catalog.LockPath)); err != nil {
		return fmt.Errorf("catalog.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeOverrides() error {
	if value, ok := os.LookupEnv("CRITTERSYNC_OVERRIDES"); ok && strings.TrimSpace(value) != "" {
		c.Overrides.Path = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Overrides.Path) == "" {
		c.Overrides.Path = defaultOverridesPath
	}
	var err error
	if c.Overrides.Path, err = expandPath(strings.TrimSpace(c.Overrides.Path)); err != nil {
		return fmt.Errorf("overrides.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeINaturalist() {
	c.INaturalist.BaseURL = strings.TrimRight(strings.TrimSpace(c.INaturalist.BaseURL), "/")
	if c.INaturalist.BaseURL == "" {
		c.INaturalist.BaseURL = defaultINatBaseURL
	}
	c.INaturalist.Locale = strings.TrimSpace(c.INaturalist.Locale)
	if c.INaturalist.TimeoutSeconds <= 0 {
		c.INaturalist.TimeoutSeconds = defaultINatTimeoutSeconds
	}
	if c.INaturalist.Burst <= 0 {
		c.INaturalist.Burst = defaultINatBurst
	}
	c.INaturalist.GroupRank = strings.ToLower(strings.TrimSpace(c.INaturalist.GroupRank))
	if c.INaturalist.GroupRank == "" {
		c.INaturalist.GroupRank = defaultGroupRank
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

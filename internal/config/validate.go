package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateINaturalist(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.DatabasePath == "" {
		return errors.New("catalog.database_path must be set")
	}
	if c.Catalog.LockPath == c.Catalog.DatabasePath {
		return errors.New("catalog.lock_path must differ from catalog.database_path")
	}
	return nil
}

func (c *Config) validateINaturalist() error {
	parsed, err := url.Parse(c.INaturalist.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("inaturalist.base_url %q must be an absolute URL", c.INaturalist.BaseURL)
	}
	if c.INaturalist.RequestsPerSecond <= 0 {
		return errors.New("inaturalist.requests_per_second must be positive")
	}
	if c.INaturalist.Concurrency < 1 {
		return errors.New("inaturalist.concurrency must be at least 1")
	}
	if !slices.Contains(GroupRanks, c.INaturalist.GroupRank) {
		return fmt.Errorf("inaturalist.group_rank %q is not a supported rank", c.INaturalist.GroupRank)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

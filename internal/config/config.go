package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Catalog locates the MacDive database and controls how changes are written to it.
type Catalog struct {
	DatabasePath string `toml:"database_path"`
	// ReviewPrefix is prepended to names written by the name reconciler so they
	// can be found and checked in MacDive afterwards.
	ReviewPrefix string `toml:"review_prefix"`
	LockPath     string `toml:"lock_path"`
}

// Overrides points at the user-authored critter category override file.
type Overrides struct {
	Path string `toml:"path"`
}

// INaturalist contains configuration for the iNaturalist taxa API.
type INaturalist struct {
	BaseURL           string  `toml:"base_url"`
	Locale            string  `toml:"locale"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	// Concurrency caps the number of lookups in flight while priming the taxon cache.
	Concurrency int    `toml:"concurrency"`
	GroupRank   string `toml:"group_rank"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crittersync.
//
// Configuration sections by subsystem:
//   - Catalog: MacDive database location, review prefix, writer lock
//   - Overrides: critter category override file
//   - INaturalist: taxonomy lookups, rate limits, grouping rank
//   - Logging: log format and level
type Config struct {
	Catalog     Catalog     `toml:"catalog"`
	Overrides   Overrides   `toml:"overrides"`
	INaturalist INaturalist `toml:"inaturalist"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/crittersync/config.toml")
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crittersync.toml")
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

// ApplyFlags overrides file values with command line flags. Empty values are ignored.
// Paths are expanded the same way as values read from the file.
func (c *Config) ApplyFlags(databasePath, overridesPath string) error {
	var err error
	if strings.TrimSpace(databasePath) != "" {
		if c.Catalog.DatabasePath, err = expandPath(strings.TrimSpace(databasePath)); err != nil {
			return fmt.Errorf("--database: %w", err)
		}
		c.Catalog.LockPath = c.Catalog.DatabasePath + ".lock"
	}
	if strings.TrimSpace(overridesPath) != "" {
		if c.Overrides.Path, err = expandPath(strings.TrimSpace(overridesPath)); err != nil {
			return fmt.Errorf("--overrides: %w", err)
		}
	}
	return nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.SetIndentTables(true)
	return encoder.Encode(c)
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

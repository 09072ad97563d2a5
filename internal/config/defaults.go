package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultOverridesPath         = "~/.config/crittersync/overrides.yaml"
	defaultReviewPrefix          = "Review: "
	defaultINatBaseURL           = "https://api.inaturalist.org/v1"
	defaultINatLocale            = "en"
	defaultINatTimeoutSeconds    = 10
	defaultINatRequestsPerSecond = 1.0
	defaultINatBurst             = 1
	defaultINatConcurrency       = 4
	defaultGroupRank             = "class"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	macDiveDatabase              = "MacDive/MacDive.sqlite"
)

// GroupRanks lists the taxonomic ranks accepted for inaturalist.group_rank,
// ordered from most general to most specific.
var GroupRanks = []string{"kingdom", "phylum", "subphylum", "class", "subclass", "superorder", "order", "suborder", "superfamily", "family", "subfamily", "genus"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Catalog: Catalog{
			DatabasePath: defaultDatabasePath(),
			ReviewPrefix: defaultReviewPrefix,
		},
		Overrides: Overrides{
			Path: defaultOverridesPath,
		},
		INaturalist: INaturalist{
			BaseURL:           defaultINatBaseURL,
			Locale:            defaultINatLocale,
			TimeoutSeconds:    defaultINatTimeoutSeconds,
			RequestsPerSecond: defaultINatRequestsPerSecond,
			Burst:             defaultINatBurst,
			Concurrency:       defaultINatConcurrency,
			GroupRank:         defaultGroupRank,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// defaultDatabasePath mirrors the platform data directory MacDive writes to.
func defaultDatabasePath() string {
	if runtime.GOOS == "darwin" {
		return filepath.Join("~", "Library", "Application Support", macDiveDatabase)
	}
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, macDiveDatabase)
	}
	return filepath.Join("~", ".local", "share", macDiveDatabase)
}

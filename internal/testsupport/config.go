package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"crittersync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose paths all live in a per-test temp
// directory. No files are created unless an option asks for them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Catalog.DatabasePath = filepath.Join(base, "MacDive.sqlite")
	cfgVal.Catalog.LockPath = filepath.Join(base, "MacDive.sqlite.lock")
	cfgVal.Overrides.Path = filepath.Join(base, "overrides.yaml")
	cfgVal.INaturalist.RequestsPerSecond = 1000
	cfgVal.INaturalist.Burst = 10
	cfgVal.INaturalist.TimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDatabase points the config at an existing database file.
func WithDatabase(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.DatabasePath = path
		b.cfg.Catalog.LockPath = path + ".lock"
	}
}

// WithOverrides writes content to the configured override file.
func WithOverrides(content string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.WriteFile(b.cfg.Overrides.Path, []byte(content), 0o644); err != nil {
			b.t.Fatalf("write overrides: %v", err)
		}
	}
}

// WithINaturalist points taxonomy lookups at baseURL, typically an httptest server.
func WithINaturalist(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.INaturalist.BaseURL = baseURL
	}
}

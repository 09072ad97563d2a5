package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"crittersync/internal/catalog"
	"crittersync/internal/classify"
	"crittersync/internal/config"
	"crittersync/internal/inaturalist"
	"crittersync/internal/logging"
	"crittersync/internal/overrides"
	"crittersync/internal/reconcile"
	"crittersync/internal/taxonomy"
)

type commandContext struct {
	configFlag    *string
	databaseFlag  *string
	overridesFlag *string
	verbosity     *int

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, databaseFlag, overridesFlag *string, verbosity *int) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		databaseFlag:  databaseFlag,
		overridesFlag: overridesFlag,
		verbosity:     verbosity,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.ApplyFlags(flagValue(c.databaseFlag), flagValue(c.overridesFlag)); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	verbosity := 0
	if c.verbosity != nil {
		verbosity = *c.verbosity
	}
	stderr := cmd.ErrOrStderr()
	return logging.NewFromConfig(cfg, verbosity, shouldColorize(stderr), stderr)
}

// session bundles what a reconciliation command needs.
type session struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *catalog.Store
	runner     *reconcile.Runner
	resolver   *taxonomy.Resolver
	classifier *classify.Classifier
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openSession loads overrides, builds the taxonomy stack, and opens the
// catalog when mode is not nil.
func (c *commandContext) openSession(cmd *cobra.Command, mode *catalog.Mode) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return nil, err
	}

	rules, err := overrides.Load(cfg.Overrides.Path, logger)
	if err != nil {
		return nil, err
	}
	client, err := inaturalist.New(cfg.INaturalist.BaseURL, cfg.INaturalist.Locale,
		inaturalist.WithTimeout(time.Duration(cfg.INaturalist.TimeoutSeconds)*time.Second),
		inaturalist.WithRateLimit(cfg.INaturalist.RequestsPerSecond, cfg.INaturalist.Burst),
	)
	if err != nil {
		return nil, err
	}
	resolver := taxonomy.NewResolver(taxonomy.INaturalistLookuper{Client: client}, cfg.INaturalist.Concurrency, logger)
	classifier := classify.New(rules, cfg.INaturalist.GroupRank)

	s := &session{
		cfg:        cfg,
		logger:     logger,
		resolver:   resolver,
		classifier: classifier,
		runner:     reconcile.NewRunner(resolver, classifier, logger),
	}
	if mode == nil {
		return s, nil
	}
	if *mode == catalog.ReadWrite {
		if err := catalog.CheckWritable(cfg.Catalog.DatabasePath); err != nil {
			return nil, err
		}
	}
	store, err := catalog.Open(cfg.Catalog.DatabasePath, *mode)
	if err != nil {
		return nil, err
	}
	s.store = store
	return s, nil
}

// writer returns an executor already holding the catalog lock when confirm is
// set, so the plan is computed against the catalog the executor will write.
// Without confirm it returns a nil executor and a no-op release.
func (s *session) writer(ctx context.Context, confirm bool) (*catalog.Executor, func(), error) {
	if !confirm {
		return nil, func() {}, nil
	}
	executor := catalog.NewExecutor(s.store, s.cfg.Catalog.LockPath, s.cfg.Catalog.ReviewPrefix, s.logger)
	release, err := executor.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	return executor, release, nil
}

func flagValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func modePtr(mode catalog.Mode) *catalog.Mode {
	return &mode
}

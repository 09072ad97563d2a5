package taxonomy

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"crittersync/internal/logging"
)

// DefaultWorkers is the priming concurrency used when none is configured.
const DefaultWorkers = 4

var errEmptyName = errors.New("scientific name is empty")

type outcome struct {
	record Record
	err    error
}

// Stats summarizes resolver activity for a run.
type Stats struct {
	Cached   int   `json:"cached"`
	Lookups  int64 `json:"lookups"`
	Failures int64 `json:"failures"`
	Hits     int64 `json:"hits"`
}

// Resolver memoizes taxonomy lookups by normalized scientific name. It is safe
// for concurrent use; each key is looked up at most once per Resolver.
type Resolver struct {
	lookuper Lookuper
	workers  int
	logger   *slog.Logger

	flight singleflight.Group

	mu       sync.RWMutex
	outcomes map[string]outcome

	lookups  atomic.Int64
	failures atomic.Int64
	hits     atomic.Int64
}

// NewResolver builds a resolver in front of lookuper. workers bounds the number
// of concurrent lookups during Prime.
func NewResolver(lookuper Lookuper, workers int, logger *slog.Logger) *Resolver {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Resolver{
		lookuper: lookuper,
		workers:  workers,
		logger:   logging.NewComponentLogger(logger, "taxonomy"),
		outcomes: make(map[string]outcome),
	}
}

// Prime resolves every distinct name in names with at most r.workers lookups
// in flight, and returns once all issued lookups have finished. Lookup
// failures are cached, not returned. Cancelling ctx stops new lookups from
// being issued; lookups already issued run to completion and are cached, and
// Prime then returns the context error.
func (r *Resolver) Prime(ctx context.Context, names []string) error {
	pending := r.distinctUncached(names)
	if len(pending) == 0 {
		return nil
	}

	started := time.Now()
	r.logger.Info("priming taxon cache",
		logging.Int("distinct_species", len(pending)),
		logging.Int("workers", r.workers))

	var group errgroup.Group
	group.SetLimit(r.workers)
	for _, name := range pending {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			_, _ = r.Resolve(ctx, name)
			return nil
		})
	}
	_ = group.Wait()

	stats := r.Stats()
	r.logger.Info("taxon cache primed",
		logging.Int("cached", stats.Cached),
		logging.Int64("lookups", stats.Lookups),
		logging.Int64("failures", stats.Failures),
		logging.Duration("duration", time.Since(started)))

	return ctx.Err()
}

// Resolve returns the record for name, looking it up on first use. Failures are
// reported as *LookupError and are cached like successes.
func (r *Resolver) Resolve(ctx context.Context, name string) (Record, error) {
	key := Key(name)
	if key == "" {
		return Record{}, &LookupError{Name: name, Err: errEmptyName}
	}
	if cached, ok := r.cached(key); ok {
		r.hits.Add(1)
		return cached.record, cached.err
	}

	value, _, _ := r.flight.Do(key, func() (any, error) {
		// A caller that missed the cache may arrive after the previous flight
		// for this key has already stored its outcome.
		if cached, ok := r.cached(key); ok {
			return cached, nil
		}
		return r.lookup(ctx, key, strings.TrimSpace(name)), nil
	})
	result := value.(outcome)
	return result.record, result.err
}

// Stats reports cache size and call counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	cached := len(r.outcomes)
	r.mu.RUnlock()
	return Stats{
		Cached:   cached,
		Lookups:  r.lookups.Load(),
		Failures: r.failures.Load(),
		Hits:     r.hits.Load(),
	}
}

func (r *Resolver) lookup(ctx context.Context, key, name string) outcome {
	r.lookups.Add(1)
	started := time.Now()
	// Once issued, a lookup is allowed to finish even if the run is cancelled.
	record, err := r.lookuper.LookupByScientificName(context.WithoutCancel(ctx), name)

	result := outcome{record: record}
	if err != nil {
		r.failures.Add(1)
		result = outcome{err: &LookupError{Name: name, Err: err}}
		logging.WarnWithContext(r.logger, "taxon lookup failed", "taxon_lookup_failed",
			logging.String("scientific_name", name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the spelling of the species in MacDive or add an override"),
			logging.String(logging.FieldImpact, "critters with this species are skipped for this run"))
	} else {
		r.logger.Debug("taxon resolved",
			logging.String("scientific_name", name),
			logging.String("taxon_name", record.ScientificName),
			logging.Duration("latency", time.Since(started)))
	}

	r.mu.Lock()
	r.outcomes[key] = result
	r.mu.Unlock()
	return result
}

func (r *Resolver) cached(key string) (outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.outcomes[key]
	return result, ok
}

// distinctUncached keeps the first spelling of every key, in input order.
func (r *Resolver) distinctUncached(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	pending := make([]string, 0, len(names))
	for _, name := range names {
		key := Key(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := r.cached(key); ok {
			continue
		}
		pending = append(pending, name)
	}
	return pending
}

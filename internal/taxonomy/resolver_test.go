package taxonomy_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crittersync/internal/logging"
	"crittersync/internal/services"
	"crittersync/internal/taxonomy"
)

type countingLookuper struct {
	mu       sync.Mutex
	calls    map[string]int
	records  map[string]taxonomy.Record
	failures map[string]error
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newCountingLookuper() *countingLookuper {
	return &countingLookuper{
		calls:    make(map[string]int),
		records:  make(map[string]taxonomy.Record),
		failures: make(map[string]error),
	}
}

func (c *countingLookuper) LookupByScientificName(ctx context.Context, name string) (taxonomy.Record, error) {
	current := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		seen := c.maxInFlight.Load()
		if current <= seen || c.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	if err, ok := c.failures[name]; ok {
		return taxonomy.Record{}, err
	}
	if record, ok := c.records[name]; ok {
		return record, nil
	}
	return taxonomy.Record{ScientificName: name}, nil
}

func (c *countingLookuper) totalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

func (c *countingLookuper) callsFor(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func TestResolverPrimeLooksUpEachDistinctNameOnce(t *testing.T) {
	fake := newCountingLookuper()
	fake.delay = 5 * time.Millisecond
	resolver := taxonomy.NewResolver(fake, 3, logging.NewNop())

	var names []string
	for i := 0; i < 40; i++ {
		names = append(names, fmt.Sprintf("Genus species%d", i%8))
	}
	names = append(names, "GENUS  SPECIES0", "genus_species1")

	if err := resolver.Prime(context.Background(), names); err != nil {
		t.Fatalf("Prime returned error: %v", err)
	}
	if got := fake.totalCalls(); got != 8 {
		t.Fatalf("expected 8 lookups, got %d", got)
	}
	if peak := fake.maxInFlight.Load(); peak > 3 {
		t.Fatalf("expected at most 3 concurrent lookups, saw %d", peak)
	}

	for _, name := range names {
		if _, err := resolver.Resolve(context.Background(), name); err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", name, err)
		}
	}
	if got := fake.totalCalls(); got != 8 {
		t.Fatalf("expected no additional lookups after priming, got %d total", got)
	}
	stats := resolver.Stats()
	if stats.Cached != 8 || stats.Lookups != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestResolverConcurrentResolveSharesOneLookup(t *testing.T) {
	fake := newCountingLookuper()
	fake.delay = 20 * time.Millisecond
	resolver := taxonomy.NewResolver(fake, 2, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve(context.Background(), "Chromis viridis"); err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := fake.callsFor("Chromis viridis"); got != 1 {
		t.Fatalf("expected exactly one lookup, got %d", got)
	}
}

func TestResolverCachesFailures(t *testing.T) {
	fake := newCountingLookuper()
	fake.failures["Nonexistus fakeus"] = services.Wrap(services.ErrNotFound, "inaturalist", "lookup", "no taxon", nil)
	resolver := taxonomy.NewResolver(fake, 2, logging.NewNop())

	if err := resolver.Prime(context.Background(), []string{"Nonexistus fakeus", "Chromis viridis"}); err != nil {
		t.Fatalf("Prime must not fail on lookup errors: %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve(context.Background(), "Nonexistus fakeus")
		if err == nil {
			t.Fatal("expected cached lookup failure")
		}
		var lookupErr *taxonomy.LookupError
		if !errors.As(err, &lookupErr) {
			t.Fatalf("expected *LookupError, got %T", err)
		}
		if lookupErr.Name != "Nonexistus fakeus" {
			t.Fatalf("unexpected name on error: %q", lookupErr.Name)
		}
		if !errors.Is(err, services.ErrLookup) || !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("expected lookup and not-found markers, got %v", err)
		}
	}
	if got := fake.callsFor("Nonexistus fakeus"); got != 1 {
		t.Fatalf("failed lookups must not be retried, got %d calls", got)
	}
	if stats := resolver.Stats(); stats.Failures != 1 {
		t.Fatalf("expected one failure, got %+v", stats)
	}
}

func TestResolverReturnsRecordForEquivalentSpellings(t *testing.T) {
	fake := newCountingLookuper()
	fake.records["Chromis viridis"] = taxonomy.Record{
		ID:                  12345,
		ScientificName:      "Chromis viridis",
		PreferredCommonName: "Blue-green Chromis",
		Ancestors:           []taxonomy.Ancestor{{Name: "Pomacentridae", Rank: "family", CommonName: "damselfishes"}},
	}
	resolver := taxonomy.NewResolver(fake, 1, logging.NewNop())

	record, err := resolver.Resolve(context.Background(), "Chromis viridis")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if record.ID != 12345 || record.PreferredCommonName != "Blue-green Chromis" {
		t.Fatalf("unexpected record: %+v", record)
	}
	family, ok := record.AncestorAt("family")
	if !ok || family.Name != "Pomacentridae" {
		t.Fatalf("expected family ancestor, got %+v (ok=%v)", family, ok)
	}

	again, err := resolver.Resolve(context.Background(), " chromis  VIRIDIS ")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if again.ID != 12345 {
		t.Fatalf("expected cached record for equivalent spelling, got %+v", again)
	}
	if got := fake.totalCalls(); got != 1 {
		t.Fatalf("expected one lookup, got %d", got)
	}
	if stats := resolver.Stats(); stats.Hits != 1 {
		t.Fatalf("expected one cache hit, got %+v", stats)
	}
}

func TestResolverRejectsEmptyName(t *testing.T) {
	fake := newCountingLookuper()
	resolver := taxonomy.NewResolver(fake, 1, logging.NewNop())

	if _, err := resolver.Resolve(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := resolver.Prime(context.Background(), []string{"", "  "}); err != nil {
		t.Fatalf("Prime returned error: %v", err)
	}
	if got := fake.totalCalls(); got != 0 {
		t.Fatalf("expected no lookups for empty names, got %d", got)
	}
}

func TestResolverPrimeStopsIssuingAfterCancel(t *testing.T) {
	fake := newCountingLookuper()
	fake.delay = 10 * time.Millisecond
	resolver := taxonomy.NewResolver(fake, 1, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var names []string
	for i := 0; i < 10; i++ {
		names = append(names, fmt.Sprintf("Genus species%d", i))
	}
	err := resolver.Prime(ctx, names)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := fake.totalCalls(); got != 0 {
		t.Fatalf("expected no lookups after cancellation, got %d", got)
	}
}

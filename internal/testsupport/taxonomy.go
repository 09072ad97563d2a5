package testsupport

import (
	"context"
	"fmt"
	"sync"

	"crittersync/internal/services"
	"crittersync/internal/taxonomy"
	"crittersync/internal/textutil"
)

// FakeLookuper is an in-memory taxonomy service that counts calls per name.
// Unknown names fail with services.ErrNotFound.
type FakeLookuper struct {
	mu       sync.Mutex
	records  map[string]taxonomy.Record
	failures map[string]error
	calls    map[string]int
}

// NewFakeLookuper returns an empty fake.
func NewFakeLookuper() *FakeLookuper {
	return &FakeLookuper{
		records:  make(map[string]taxonomy.Record),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Add registers a record under its scientific name.
func (f *FakeLookuper) Add(record taxonomy.Record) *FakeLookuper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[textutil.Key(record.ScientificName)] = record
	return f
}

// AddInClass registers a species whose class ancestor carries the given common name.
func (f *FakeLookuper) AddInClass(scientificName, commonName, className, classCommonName string) *FakeLookuper {
	return f.Add(taxonomy.Record{
		ScientificName:      scientificName,
		PreferredCommonName: commonName,
		Rank:                "species",
		Ancestors: []taxonomy.Ancestor{
			{Name: "Animalia", Rank: "kingdom", CommonName: "Animals"},
			{Name: className, Rank: "class", CommonName: classCommonName},
		},
	})
}

// Fail makes lookups of name return err.
func (f *FakeLookuper) Fail(name string, err error) *FakeLookuper {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[textutil.Key(name)] = err
	return f
}

// Calls reports how often name was looked up.
func (f *FakeLookuper) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[textutil.Key(name)]
}

// TotalCalls reports the number of lookups across all names.
func (f *FakeLookuper) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// LookupByScientificName implements taxonomy.Lookuper.
func (f *FakeLookuper) LookupByScientificName(_ context.Context, name string) (taxonomy.Record, error) {
	key := textutil.Key(name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err, ok := f.failures[key]; ok {
		return taxonomy.Record{}, err
	}
	if record, ok := f.records[key]; ok {
		return record, nil
	}
	return taxonomy.Record{}, services.Wrap(services.ErrNotFound, "fake", "lookup", fmt.Sprintf("no taxon for %q", name), nil)
}

package taxonomy

import (
	"context"
	"errors"
	"fmt"

	"crittersync/internal/inaturalist"
	"crittersync/internal/services"
)

// Ancestor is one rank of a taxon's lineage.
type Ancestor struct {
	Name       string
	Rank       string
	CommonName string
}

// Record is the taxonomy answer for one scientific name. Records are immutable
// once cached.
type Record struct {
	ID                  int64
	ScientificName      string
	PreferredCommonName string
	Rank                string
	IconicTaxonName     string
	// Ancestors run from kingdom to the direct parent.
	Ancestors []Ancestor
}

// AncestorAt returns the ancestor with the given rank, if the lineage has one.
func (r Record) AncestorAt(rank string) (Ancestor, bool) {
	for _, ancestor := range r.Ancestors {
		if ancestor.Rank == rank {
			return ancestor, true
		}
	}
	return Ancestor{}, false
}

// Lookuper is the external taxonomy service contract.
type Lookuper interface {
	LookupByScientificName(ctx context.Context, name string) (Record, error)
}

// LookupError reports that no record could be obtained for Name.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("taxon lookup %q: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, services.ErrLookup) match every lookup failure.
func (e *LookupError) Is(target error) bool {
	return target == services.ErrLookup
}

// INaturalistLookuper adapts the iNaturalist client to Lookuper.
type INaturalistLookuper struct {
	Client inaturalist.Searcher
}

// LookupByScientificName implements Lookuper.
func (l INaturalistLookuper) LookupByScientificName(ctx context.Context, name string) (Record, error) {
	taxon, err := l.Client.LookupByScientificName(ctx, name)
	if err != nil {
		if errors.Is(err, inaturalist.ErrNoMatch) {
			return Record{}, services.Wrap(services.ErrNotFound, "inaturalist", "lookup", "no taxon matches the name", err)
		}
		return Record{}, err
	}
	return FromTaxon(*taxon), nil
}

// FromTaxon converts an API taxon into a Record.
func FromTaxon(taxon inaturalist.Taxon) Record {
	record := Record{
		ID:                  taxon.ID,
		ScientificName:      taxon.Name,
		PreferredCommonName: taxon.PreferredCommonName,
		Rank:                taxon.Rank,
		IconicTaxonName:     taxon.IconicTaxonName,
	}
	if len(taxon.Ancestors) > 0 {
		record.Ancestors = make([]Ancestor, 0, len(taxon.Ancestors))
		for _, a := range taxon.Ancestors {
			record.Ancestors = append(record.Ancestors, Ancestor{Name: a.Name, Rank: a.Rank, CommonName: a.PreferredCommonName})
		}
	}
	return record
}

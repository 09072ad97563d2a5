// Package classify derives the desired category name for a taxon.
package classify

import (
	"crittersync/internal/overrides"
	"crittersync/internal/taxonomy"
	"crittersync/internal/textutil"
)

// Unclassified is the group assigned when nothing else applies. Entities placed
// here are reported as classification gaps.
const Unclassified = "Unclassified"

// DefaultRank is the lineage rank used when none is configured.
const DefaultRank = "class"

// Source records which rule produced a group name.
type Source string

const (
	SourceSpeciesOverride Source = "species_override"
	SourceGroupOverride   Source = "group_override"
	SourceRank            Source = "rank"
	SourceIconicTaxon     Source = "iconic_taxon"
	SourceFallback        Source = "fallback"
)

// Result is the outcome of classifying one taxon.
type Result struct {
	Group  string `json:"group"`
	Source Source `json:"source"`
	// Matched is the override key or taxon name that decided the group.
	Matched string `json:"matched,omitempty"`
}

// Gap reports whether no group could be derived and the fallback was used.
func (r Result) Gap() bool {
	return r.Source == SourceFallback
}

// Classifier applies override rules ahead of the taxonomy's own grouping.
type Classifier struct {
	rules *overrides.Rules
	rank  string
}

// New returns a classifier grouping by rank, with rules taking priority.
func New(rules *overrides.Rules, rank string) *Classifier {
	if rank == "" {
		rank = DefaultRank
	}
	return &Classifier{rules: rules, rank: rank}
}

// Classify never fails; without any usable data it returns Unclassified.
func (c *Classifier) Classify(record taxonomy.Record) Result {
	if group, ok := c.rules.Species(record.ScientificName); ok {
		return result(group, SourceSpeciesOverride, record.ScientificName)
	}

	for _, candidate := range groupCandidates(record) {
		if group, ok := c.rules.Group(candidate); ok {
			return result(group, SourceGroupOverride, candidate)
		}
	}

	if name := c.rankName(record); name != "" {
		return result(name, SourceRank, name)
	}
	if record.IconicTaxonName != "" {
		return result(record.IconicTaxonName, SourceIconicTaxon, record.IconicTaxonName)
	}
	return Result{Group: Unclassified, Source: SourceFallback}
}

// rankName prefers the common name of the ancestor at the grouping rank.
func (c *Classifier) rankName(record taxonomy.Record) string {
	if record.Rank == c.rank {
		return firstNonEmpty(record.PreferredCommonName, record.ScientificName)
	}
	ancestor, ok := record.AncestorAt(c.rank)
	if !ok {
		return ""
	}
	return firstNonEmpty(ancestor.CommonName, ancestor.Name)
}

// groupCandidates lists the names a group rule may match, most specific
// first: the taxon itself, its ancestors from the leaf up, then the iconic taxon.
func groupCandidates(record taxonomy.Record) []string {
	candidates := make([]string, 0, 2*len(record.Ancestors)+3)
	add := func(names ...string) {
		for _, name := range names {
			if name != "" {
				candidates = append(candidates, name)
			}
		}
	}
	add(record.ScientificName, record.PreferredCommonName)
	for i := len(record.Ancestors) - 1; i >= 0; i-- {
		add(record.Ancestors[i].Name, record.Ancestors[i].CommonName)
	}
	add(record.IconicTaxonName)
	return candidates
}

func result(group string, source Source, matched string) Result {
	title := textutil.TitleCase(group)
	if title == "" {
		return Result{Group: Unclassified, Source: SourceFallback}
	}
	return Result{Group: title, Source: source, Matched: matched}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

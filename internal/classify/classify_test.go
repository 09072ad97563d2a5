package classify_test

import (
	"testing"

	"crittersync/internal/classify"
	"crittersync/internal/overrides"
	"crittersync/internal/taxonomy"
)

func octopus() taxonomy.Record {
	return taxonomy.Record{
		ScientificName:      "Octopus vulgaris",
		PreferredCommonName: "Common Octopus",
		Rank:                "species",
		IconicTaxonName:     "Mollusca",
		Ancestors: []taxonomy.Ancestor{
			{Name: "Animalia", Rank: "kingdom", CommonName: "Animals"},
			{Name: "Mollusca", Rank: "phylum", CommonName: "Molluscs"},
			{Name: "Cephalopoda", Rank: "class", CommonName: "cephalopods"},
			{Name: "Octopoda", Rank: "order", CommonName: "Octopuses"},
			{Name: "Octopus", Rank: "genus"},
		},
	}
}

func TestClassifyUsesCommonNameAtRank(t *testing.T) {
	got := classify.New(nil, "class").Classify(octopus())
	if got.Group != "Cephalopods" || got.Source != classify.SourceRank {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Gap() {
		t.Fatal("rank-derived group must not be a gap")
	}
}

func TestClassifyFallsBackToAncestorNameWithoutCommonName(t *testing.T) {
	got := classify.New(nil, "genus").Classify(octopus())
	if got.Group != "Octopus" {
		t.Fatalf("expected genus name, got %+v", got)
	}
}

func TestClassifySpeciesOverrideWins(t *testing.T) {
	rules := overrides.New(overrides.Section{
		Species: map[string]string{"octopus  VULGARIS": "my favourites"},
		Groups:  map[string]string{"Cephalopoda": "Squid & Kin"},
	})
	got := classify.New(rules, "class").Classify(octopus())
	if got.Group != "My Favourites" || got.Source != classify.SourceSpeciesOverride {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyGroupOverridePrefersMostSpecificAncestor(t *testing.T) {
	rules := overrides.New(overrides.Section{
		Groups: map[string]string{
			"Mollusca":  "Molluscs",
			"octopuses": "Octopus",
		},
	})
	got := classify.New(rules, "class").Classify(octopus())
	if got.Group != "Octopus" || got.Source != classify.SourceGroupOverride || got.Matched != "Octopuses" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyGroupOverrideOnIconicTaxon(t *testing.T) {
	record := taxonomy.Record{ScientificName: "Mystery species", IconicTaxonName: "Actinopterygii"}
	rules := overrides.New(overrides.Section{Groups: map[string]string{"actinopterygii": "fish"}})
	got := classify.New(rules, "class").Classify(record)
	if got.Group != "Fish" || got.Source != classify.SourceGroupOverride {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyRecordAtGroupRank(t *testing.T) {
	record := taxonomy.Record{ScientificName: "Anthozoa", Rank: "class", PreferredCommonName: "corals and sea anemones"}
	got := classify.New(nil, "class").Classify(record)
	if got.Group != "Corals And Sea Anemones" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyGroupOverrideOnTaxonItself(t *testing.T) {
	record := taxonomy.Record{ScientificName: "Actinopterygii", PreferredCommonName: "Ray-finned Fishes", Rank: "class"}
	rules := overrides.New(overrides.Section{Groups: map[string]string{"Actinopterygii": "Fish"}})
	got := classify.New(rules, "class").Classify(record)
	if got.Group != "Fish" || got.Source != classify.SourceGroupOverride || got.Matched != "Actinopterygii" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyGroupOverrideOnTaxonCommonName(t *testing.T) {
	record := octopus()
	record.Ancestors = record.Ancestors[:len(record.Ancestors)-1]
	record.ScientificName = "Octopus"
	record.Rank = "genus"
	record.PreferredCommonName = "Octopuses"
	rules := overrides.New(overrides.Section{Groups: map[string]string{
		"octopuses":   "Eight Arms",
		"Cephalopoda": "Cephalopods",
	}})
	got := classify.New(rules, "class").Classify(record)
	if got.Group != "Eight Arms" || got.Matched != "Octopuses" {
		t.Fatalf("taxon's own common name should beat ancestors, got %+v", got)
	}
}

func TestClassifyIconicTaxonWhenRankMissing(t *testing.T) {
	record := taxonomy.Record{ScientificName: "Odd thing", IconicTaxonName: "Mollusca"}
	got := classify.New(nil, "class").Classify(record)
	if got.Group != "Mollusca" || got.Source != classify.SourceIconicTaxon {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClassifyFallbackIsGap(t *testing.T) {
	got := classify.New(overrides.Empty(), "").Classify(taxonomy.Record{ScientificName: "Nothing known"})
	if got.Group != classify.Unclassified || !got.Gap() {
		t.Fatalf("expected unclassified gap, got %+v", got)
	}
}

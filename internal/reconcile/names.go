package reconcile

import (
	"fmt"
	"strings"

	"crittersync/internal/taxonomy"
	"crittersync/internal/textutil"
)

// NameChange lists the name corrections for one critter. Empty fields mean no
// change.
type NameChange struct {
	Entity         Entity `json:"entity"`
	ScientificName string `json:"scientific_name,omitempty"`
	CommonName     string `json:"common_name,omitempty"`
	// NewCommonName is set when the critter had no common name before.
	NewCommonName bool `json:"new_common_name,omitempty"`
}

// HasChanges reports whether the change updates anything.
func (c NameChange) HasChanges() bool {
	return c.ScientificName != "" || c.CommonName != ""
}

// NamePlan is the output of one name reconciliation.
type NamePlan struct {
	Changes     []NameChange `json:"changes"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// DiffNames compares a critter's names with its taxon. Scientific names are
// compared in sentence case and common names in title case.
func DiffNames(entity Entity, record taxonomy.Record) (NameChange, *Diagnostic) {
	change := NameChange{Entity: entity}

	if preferred := textutil.SentenceCase(record.ScientificName); preferred != "" {
		if textutil.SentenceCase(entity.SpeciesName) != preferred {
			change.ScientificName = preferred
		}
	}

	current := textutil.TitleCase(strings.TrimSpace(entity.DisplayName))
	preferred := textutil.TitleCase(strings.TrimSpace(record.PreferredCommonName))
	switch {
	case preferred == "" && current == "":
		return change, &Diagnostic{
			Kind:     DiagMissingCommonName,
			EntityID: entity.ID,
			Species:  entity.SpeciesName,
			Message:  fmt.Sprintf("no common name for %s in the catalog or the taxonomy", textutil.SentenceCase(entity.SpeciesName)),
		}
	case preferred == "":
	case current == "":
		change.CommonName = preferred
		change.NewCommonName = true
	case current != preferred:
		change.CommonName = preferred
	}
	return change, nil
}

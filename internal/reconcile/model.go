package reconcile

import (
	"fmt"

	"crittersync/internal/services"
)

// Entity is a catalog critter as seen by the reconciler.
type Entity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"name,omitempty"`
	SpeciesName string `json:"species,omitempty"`
	// CategoryID is zero when the critter has no category.
	CategoryID int64 `json:"category_id,omitempty"`
}

// Category is a local critter category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Action names the kind of a plan entry.
type Action string

const (
	ActionNoOp           Action = "noop"
	ActionReassign       Action = "reassign"
	ActionRenameAndReuse Action = "rename_and_reuse"
	ActionCreateCategory Action = "create_category"
)

// Entry is one step of a category plan.
//
//   - NoOp: To is the current category.
//   - Reassign: From is the current category (nil when unassigned), To the target.
//   - RenameAndReuse: To carries the reused id and its new name, OldName the name before.
//   - CreateCategory: NewName is the category to create; To is nil.
type Entry struct {
	Action  Action    `json:"action"`
	Entity  Entity    `json:"entity"`
	Group   string    `json:"group"`
	From    *Category `json:"from,omitempty"`
	To      *Category `json:"to,omitempty"`
	OldName string    `json:"old_name,omitempty"`
	NewName string    `json:"new_name,omitempty"`
}

// ReusedCategoryID returns the renamed category for RenameAndReuse entries.
func (e Entry) ReusedCategoryID() (int64, bool) {
	if e.Action != ActionRenameAndReuse || e.To == nil {
		return 0, false
	}
	return e.To.ID, true
}

// Changes reports whether applying the entry mutates the catalog.
func (e Entry) Changes() bool {
	return e.Action != ActionNoOp
}

// Describe renders the entry as a one-line summary.
func (e Entry) Describe() string {
	switch e.Action {
	case ActionNoOp:
		return fmt.Sprintf("keep in %q", e.Group)
	case ActionReassign:
		if e.From == nil {
			return fmt.Sprintf("assign to %q", e.To.Name)
		}
		return fmt.Sprintf("move %q => %q", e.From.Name, e.To.Name)
	case ActionRenameAndReuse:
		return fmt.Sprintf("rename category %d %q => %q and assign", e.To.ID, e.OldName, e.NewName)
	case ActionCreateCategory:
		return fmt.Sprintf("create category %q and assign", e.NewName)
	default:
		return string(e.Action)
	}
}

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	DiagLookupError        DiagnosticKind = "lookup_error"
	DiagClassificationGap  DiagnosticKind = "classification_gap"
	DiagMissingSpecies     DiagnosticKind = "missing_species"
	DiagPoolExhausted      DiagnosticKind = "pool_exhausted"
	DiagExtraneousCategory DiagnosticKind = "extraneous_category"
	DiagMissingCommonName  DiagnosticKind = "missing_common_name"
)

// Diagnostic records why an entity was skipped or needs attention.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	EntityID   int64          `json:"entity_id,omitempty"`
	Species    string         `json:"species,omitempty"`
	CategoryID int64          `json:"category_id,omitempty"`
	Message    string         `json:"message"`
	Reason     string         `json:"reason,omitempty"`
	Err        error          `json:"-"`
}

func lookupDiagnostic(entity Entity, err error) Diagnostic {
	return Diagnostic{
		Kind:     DiagLookupError,
		EntityID: entity.ID,
		Species:  entity.SpeciesName,
		Message:  err.Error(),
		Reason:   services.Reason(err),
		Err:      err,
	}
}

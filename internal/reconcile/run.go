package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crittersync/internal/classify"
	"crittersync/internal/logging"
	"crittersync/internal/services"
	"crittersync/internal/taxonomy"
)

// Report is the result of a category run.
type Report struct {
	RunID string         `json:"run_id"`
	Plan  *Plan          `json:"plan"`
	Stats taxonomy.Stats `json:"taxonomy"`
}

// NameReport is the result of a name run.
type NameReport struct {
	RunID string         `json:"run_id"`
	Plan  *NamePlan      `json:"plan"`
	Stats taxonomy.Stats `json:"taxonomy"`
}

// Runner drives reconciliation runs over a loaded catalog.
type Runner struct {
	resolver   *taxonomy.Resolver
	classifier *classify.Classifier
	engine     *Engine
	logger     *slog.Logger
}

// NewRunner wires the resolver and classifier used by every run.
func NewRunner(resolver *taxonomy.Resolver, classifier *classify.Classifier, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		resolver:   resolver,
		classifier: classifier,
		engine:     NewEngine(logger),
		logger:     logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Categories computes the category plan for entities, processed in the given
// order. A cancelled context yields the partial report and the context error.
func (r *Runner) Categories(ctx context.Context, entities []Entity, categories []Category) (*Report, error) {
	ctx, logger := r.begin(ctx)
	report := &Report{RunID: runID(ctx), Plan: &Plan{}}
	started := time.Now()

	if err := r.prime(ctx, entities); err != nil {
		report.Stats = r.resolver.Stats()
		return report, err
	}

	assignments := make([]Assignment, 0, len(entities))
	diagnostics, err := r.resolveEach(ctx, entities, func(entity Entity, record taxonomy.Record) *Diagnostic {
		result := r.classifier.Classify(record)
		assignments = append(assignments, Assignment{Entity: entity, Group: result.Group})
		if !result.Gap() {
			return nil
		}
		logging.WarnWithContext(logger, "no group derivable for taxon", "classification_gap",
			logging.Int64(logging.FieldEntityID, entity.ID),
			logging.String("scientific_name", record.ScientificName),
			logging.String(logging.FieldErrorHint, "add a species or group override"),
			logging.String(logging.FieldImpact, fmt.Sprintf("critter is placed in %q", classify.Unclassified)))
		return &Diagnostic{
			Kind:     DiagClassificationGap,
			EntityID: entity.ID,
			Species:  entity.SpeciesName,
			Message:  fmt.Sprintf("no group derivable for %s, using %q", record.ScientificName, classify.Unclassified),
		}
	})
	if err != nil {
		report.Plan.Diagnostics = diagnostics
		report.Stats = r.resolver.Stats()
		return report, err
	}

	plan, err := r.engine.Compute(ctx, categories, assignments)
	plan.Diagnostics = append(diagnostics, plan.Diagnostics...)
	report.Plan = plan
	report.Stats = r.resolver.Stats()

	logger.Info("category plan computed",
		logging.Int("critters", len(entities)),
		logging.Int("noop", plan.Count(ActionNoOp)),
		logging.Int("reassign", plan.Count(ActionReassign)),
		logging.Int("rename_and_reuse", plan.Count(ActionRenameAndReuse)),
		logging.Int("create_category", plan.Count(ActionCreateCategory)),
		logging.Int("extraneous", len(plan.Extraneous)),
		logging.Int("diagnostics", len(plan.Diagnostics)),
		logging.Duration("duration", time.Since(started)))
	return report, err
}

// Names computes scientific and common name corrections.
func (r *Runner) Names(ctx context.Context, entities []Entity) (*NameReport, error) {
	ctx, logger := r.begin(ctx)
	report := &NameReport{RunID: runID(ctx), Plan: &NamePlan{}}

	if err := r.prime(ctx, entities); err != nil {
		report.Stats = r.resolver.Stats()
		return report, err
	}

	var changes []NameChange
	diagnostics, err := r.resolveEach(ctx, entities, func(entity Entity, record taxonomy.Record) *Diagnostic {
		change, diagnostic := DiffNames(entity, record)
		if change.HasChanges() {
			changes = append(changes, change)
		}
		return diagnostic
	})
	report.Plan = &NamePlan{Changes: changes, Diagnostics: diagnostics}
	report.Stats = r.resolver.Stats()
	if err != nil {
		return report, err
	}

	logger.Info("name plan computed",
		logging.Int("critters", len(entities)),
		logging.Int("changes", len(changes)),
		logging.Int("diagnostics", len(diagnostics)))
	return report, nil
}

func (r *Runner) begin(ctx context.Context) (context.Context, *slog.Logger) {
	if _, ok := services.RunIDFromContext(ctx); !ok {
		ctx = services.WithRunID(ctx, uuid.NewString())
	}
	return ctx, logging.WithContext(ctx, r.logger)
}

func (r *Runner) prime(ctx context.Context, entities []Entity) error {
	species := make([]string, 0, len(entities))
	for _, entity := range entities {
		if entity.SpeciesName != "" {
			species = append(species, entity.SpeciesName)
		}
	}
	if err := r.resolver.Prime(ctx, species); err != nil {
		return fmt.Errorf("prime taxon cache: %w", err)
	}
	return nil
}

// resolveEach hands every entity with a resolvable species to fn, in order,
// and collects diagnostics for the rest.
func (r *Runner) resolveEach(ctx context.Context, entities []Entity, fn func(Entity, taxonomy.Record) *Diagnostic) ([]Diagnostic, error) {
	var diagnostics []Diagnostic
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return diagnostics, err
		}
		if entity.SpeciesName == "" {
			diagnostics = append(diagnostics, Diagnostic{
				Kind:     DiagMissingSpecies,
				EntityID: entity.ID,
				Message:  "critter has no species name",
			})
			continue
		}
		record, err := r.resolver.Resolve(ctx, entity.SpeciesName)
		if err != nil {
			diagnostics = append(diagnostics, lookupDiagnostic(entity, err))
			continue
		}
		if diagnostic := fn(entity, record); diagnostic != nil {
			diagnostics = append(diagnostics, *diagnostic)
		}
	}
	return diagnostics, nil
}

func runID(ctx context.Context) string {
	id, _ := services.RunIDFromContext(ctx)
	return id
}

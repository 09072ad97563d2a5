package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"crittersync/internal/logging"
	"crittersync/internal/textutil"
)

// Assignment pairs an entity with the group it should belong to.
type Assignment struct {
	Entity Entity
	Group  string
}

// Plan is the output of one category reconciliation.
type Plan struct {
	Entries     []Entry      `json:"entries"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	// Extraneous lists categories still unused after the pass, ascending by id.
	Extraneous []Category `json:"extraneous"`
	// PoolSize is the number of reusable categories before the pass.
	PoolSize int `json:"pool_size"`
}

// Count returns the number of entries with the given action.
func (p *Plan) Count(action Action) int {
	n := 0
	for _, entry := range p.Entries {
		if entry.Action == action {
			n++
		}
	}
	return n
}

// Engine computes category plans.
type Engine struct {
	logger *slog.Logger
}

// NewEngine builds an engine that logs decisions at debug level.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "reconcile")}
}

// state is the mutable value carried through the fold. Nothing else touches it.
type state struct {
	arena   map[int64]*Category
	index   map[string]int64
	pool    []int64
	pending map[string]struct{}
}

func newState(categories []Category, assignments []Assignment) *state {
	s := &state{
		arena:   make(map[int64]*Category, len(categories)),
		index:   make(map[string]int64, len(categories)),
		pending: make(map[string]struct{}),
	}
	for _, category := range categories {
		key := textutil.Key(category.Name)
		if key == "" {
			continue
		}
		stored := category
		s.arena[category.ID] = &stored
		// Duplicate names collapse onto the last category seen.
		s.index[key] = category.ID
	}

	desired := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		desired[textutil.Key(assignment.Group)] = struct{}{}
	}
	for key, id := range s.index {
		if _, ok := desired[key]; !ok {
			s.pool = append(s.pool, id)
		}
	}
	slices.Sort(s.pool)
	return s
}

func (s *state) category(id int64) *Category {
	if id == 0 {
		return nil
	}
	return s.arena[id]
}

func (s *state) lookup(key string) *Category {
	id, ok := s.index[key]
	if !ok {
		return nil
	}
	return s.arena[id]
}

// take removes the lowest-id category from the pool.
func (s *state) take() (*Category, bool) {
	if len(s.pool) == 0 {
		return nil, false
	}
	id := s.pool[0]
	s.pool = s.pool[1:]
	return s.arena[id], true
}

func (s *state) rename(category *Category, name string) {
	oldKey := textutil.Key(category.Name)
	if s.index[oldKey] == category.ID {
		delete(s.index, oldKey)
	}
	category.Name = name
	s.index[textutil.Key(name)] = category.ID
}

func (s *state) remaining() []Category {
	out := make([]Category, 0, len(s.pool))
	for _, id := range s.pool {
		out = append(out, *s.arena[id])
	}
	return out
}

// Compute folds assignments, in order, into a plan. Context cancellation is
// checked between entities; on cancellation the partial plan is returned with
// the context error.
func (e *Engine) Compute(ctx context.Context, categories []Category, assignments []Assignment) (*Plan, error) {
	s := newState(categories, assignments)
	plan := &Plan{
		Entries:  make([]Entry, 0, len(assignments)),
		PoolSize: len(s.pool),
	}

	for _, assignment := range assignments {
		if err := ctx.Err(); err != nil {
			plan.Extraneous = s.remaining()
			return plan, err
		}
		entry, diagnostic := e.decide(s, assignment)
		plan.Entries = append(plan.Entries, entry)
		if diagnostic != nil {
			plan.Diagnostics = append(plan.Diagnostics, *diagnostic)
		}
	}

	plan.Extraneous = s.remaining()
	for _, category := range plan.Extraneous {
		plan.Diagnostics = append(plan.Diagnostics, Diagnostic{
			Kind:       DiagExtraneousCategory,
			CategoryID: category.ID,
			Message:    fmt.Sprintf("category %q is not used by any critter's group", category.Name),
		})
	}
	return plan, nil
}

func (e *Engine) decide(s *state, assignment Assignment) (Entry, *Diagnostic) {
	entity := assignment.Entity
	key := textutil.Key(assignment.Group)
	entry := Entry{Entity: entity, Group: assignment.Group}
	current := s.category(entity.CategoryID)

	if desired := s.lookup(key); desired != nil {
		target := *desired
		entry.To = &target
		if current != nil && current.ID == desired.ID {
			entry.Action = ActionNoOp
			e.log(entry, "category already matches group")
			return entry, nil
		}
		entry.Action = ActionReassign
		if current != nil {
			from := *current
			entry.From = &from
			e.log(entry, "group category exists")
		} else {
			e.log(entry, "critter has no category")
		}
		return entry, nil
	}

	if current != nil {
		from := *current
		entry.From = &from
	}
	var diagnostic *Diagnostic
	if _, pending := s.pending[key]; !pending {
		if reused, ok := s.take(); ok {
			entry.Action = ActionRenameAndReuse
			entry.OldName = reused.Name
			entry.NewName = assignment.Group
			s.rename(reused, assignment.Group)
			renamed := *reused
			entry.To = &renamed
			e.log(entry, "reusing extraneous category")
			return entry, nil
		}
		diagnostic = &Diagnostic{
			Kind:     DiagPoolExhausted,
			EntityID: entity.ID,
			Species:  entity.SpeciesName,
			Message:  fmt.Sprintf("no unused category left to rename for %q", assignment.Group),
		}
	}

	// A group already scheduled for creation is created once by the executor,
	// so later critters wanting it join that creation.
	s.pending[key] = struct{}{}
	entry.Action = ActionCreateCategory
	entry.NewName = assignment.Group
	e.log(entry, "no category to reuse")
	return entry, diagnostic
}

func (e *Engine) log(entry Entry, reason string) {
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := append(logging.DecisionAttrs("category_plan", string(entry.Action), reason),
		logging.Int64(logging.FieldEntityID, entry.Entity.ID),
		logging.String("species", entry.Entity.SpeciesName),
		logging.String("group", entry.Group))
	e.logger.Debug("category decision", logging.Args(attrs...)...)
}

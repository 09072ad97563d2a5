package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"crittersync/internal/logging"
	"crittersync/internal/reconcile"
	"crittersync/internal/services"
	"crittersync/internal/textutil"
)

const lockRetryDelay = 250 * time.Millisecond

// ErrLocked is returned when another process holds the catalog lock.
var ErrLocked = errors.New("catalog is locked by another crittersync run")

// ApplyResult reports the outcome of one category plan entry.
type ApplyResult struct {
	Entry reconcile.Entry `json:"entry"`
	// CategoryID is the category the critter ended up in.
	CategoryID int64 `json:"category_id,omitempty"`
	Skipped    bool  `json:"skipped,omitempty"`
	// Reason explains why a changing entry was skipped.
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// HeldBack reports whether a changing entry was skipped because an entry it
// depends on failed.
func (r ApplyResult) HeldBack() bool {
	return r.Skipped && r.Reason != ""
}

// NameResult reports the outcome of one name change.
type NameResult struct {
	Change reconcile.NameChange `json:"change"`
	Err    error                `json:"-"`
	Error  string               `json:"error,omitempty"`
}

// Executor writes plans to a read-write Store.
type Executor struct {
	store        *Store
	lockPath     string
	reviewPrefix string
	logger       *slog.Logger

	mu    sync.Mutex
	held  int
	flock *flock.Flock
}

// NewExecutor builds an executor. Names written by ApplyNames are prefixed
// with reviewPrefix so they can be found and checked in MacDive.
func NewExecutor(store *Store, lockPath, reviewPrefix string, logger *slog.Logger) *Executor {
	if strings.TrimSpace(lockPath) == "" {
		lockPath = store.Path() + ".lock"
	}
	return &Executor{
		store:        store,
		lockPath:     lockPath,
		reviewPrefix: reviewPrefix,
		logger:       logging.NewComponentLogger(logger, "catalog"),
	}
}

// Apply executes entries in order, each in its own transaction. A failed
// entry does not stop the others and is never retried. Categories created by
// the run are created once per normalized name and shared by later entries.
// The returned error is set only when the run could not start.
func (e *Executor) Apply(ctx context.Context, entries []reconcile.Entry) ([]ApplyResult, error) {
	if e.store.mode != ReadWrite {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "apply", "store opened read-only", nil)
	}
	unlock, err := e.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := logging.WithContext(ctx, e.logger)
	created := make(map[string]int64)
	// failedRenames holds reused categories whose rename failed; entries
	// targeting them would land in a category still carrying the old name.
	failedRenames := make(map[int64]string)
	results := make([]ApplyResult, 0, len(entries))
	failed, heldBack := 0, 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := ApplyResult{Entry: entry}
		if !entry.Changes() {
			result.Skipped = true
			if entry.To != nil {
				result.CategoryID = entry.To.ID
			}
			results = append(results, result)
			continue
		}

		if entry.To != nil {
			if name, ok := failedRenames[entry.To.ID]; ok {
				heldBack++
				result.Skipped = true
				result.Reason = fmt.Sprintf("category %d was not renamed to %q", entry.To.ID, name)
				logging.WarnWithContext(logger, "plan entry held back", "catalog_entry_held_back",
					logging.Int64(logging.FieldEntityID, entry.Entity.ID),
					logging.String("action", string(entry.Action)),
					logging.String("reason", result.Reason),
					logging.String(logging.FieldImpact, "critter keeps its current category"))
				results = append(results, result)
				continue
			}
		}

		categoryID, applyErr := e.applyEntry(ctx, entry, created)
		result.CategoryID = categoryID
		if applyErr != nil {
			failed++
			if id, ok := entry.ReusedCategoryID(); ok {
				failedRenames[id] = entry.NewName
			}
			result.Err = applyErr
			result.Error = applyErr.Error()
			logging.WarnWithContext(logger, "plan entry failed", "catalog_write_failed",
				logging.Int64(logging.FieldEntityID, entry.Entity.ID),
				logging.String("action", string(entry.Action)),
				logging.Error(applyErr),
				logging.String(logging.FieldErrorHint, "close MacDive and rerun the command"),
				logging.String(logging.FieldImpact, "critter keeps its current category"))
		} else {
			logger.Debug("plan entry applied",
				logging.Int64(logging.FieldEntityID, entry.Entity.ID),
				logging.String("action", string(entry.Action)),
				logging.Int64("category_id", categoryID))
		}
		results = append(results, result)
	}

	logger.Info("category plan applied",
		logging.Int("entries", len(entries)),
		logging.Int("failed", failed),
		logging.Int("held_back", heldBack),
		logging.Int("created_categories", len(created)))
	return results, nil
}

func (e *Executor) applyEntry(ctx context.Context, entry reconcile.Entry, created map[string]int64) (int64, error) {
	var categoryID int64
	err := e.store.withTx(ctx, func(tx *sql.Tx) error {
		switch entry.Action {
		case reconcile.ActionReassign:
			if entry.To == nil {
				return fmt.Errorf("reassign without target category")
			}
			categoryID = entry.To.ID
		case reconcile.ActionRenameAndReuse:
			if entry.To == nil {
				return fmt.Errorf("rename without reused category")
			}
			categoryID = entry.To.ID
			if err := renameCategory(ctx, tx, categoryID, textutil.TitleCase(entry.NewName)); err != nil {
				return err
			}
		case reconcile.ActionCreateCategory:
			key := textutil.Key(entry.NewName)
			if id, ok := created[key]; ok {
				categoryID = id
				break
			}
			id, err := insertCategory(ctx, tx, textutil.TitleCase(entry.NewName))
			if err != nil {
				return err
			}
			categoryID = id
		default:
			return fmt.Errorf("unknown action %q", entry.Action)
		}
		return assignCategory(ctx, tx, entry.Entity.ID, categoryID)
	})
	if err != nil {
		return 0, services.Wrap(services.ErrCatalog, "catalog", string(entry.Action), fmt.Sprintf("critter %d", entry.Entity.ID), err)
	}
	if entry.Action == reconcile.ActionCreateCategory {
		created[textutil.Key(entry.NewName)] = categoryID
	}
	return categoryID, nil
}

// ApplyNames writes name corrections, each prefixed with the review prefix.
func (e *Executor) ApplyNames(ctx context.Context, changes []reconcile.NameChange) ([]NameResult, error) {
	if e.store.mode != ReadWrite {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "apply names", "store opened read-only", nil)
	}
	unlock, err := e.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger := logging.WithContext(ctx, e.logger)
	results := make([]NameResult, 0, len(changes))
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result := NameResult{Change: change}
		if change.HasChanges() {
			err := e.store.withTx(ctx, func(tx *sql.Tx) error {
				return updateNames(ctx, tx, change.Entity.ID, e.prefixed(change.CommonName), e.prefixed(change.ScientificName))
			})
			if err != nil {
				result.Err = services.Wrap(services.ErrCatalog, "catalog", "update names", fmt.Sprintf("critter %d", change.Entity.ID), err)
				result.Error = result.Err.Error()
				logging.WarnWithContext(logger, "name update failed", "catalog_write_failed",
					logging.Int64(logging.FieldEntityID, change.Entity.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "close MacDive and rerun the command"),
					logging.String(logging.FieldImpact, "critter keeps its current names"))
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Executor) prefixed(value string) string {
	if value == "" {
		return ""
	}
	return e.reviewPrefix + value
}

// Lock takes the catalog writer lock and returns its release function.
// Callers hold it across planning and Apply so no other run writes in between.
// The lock is reentrant within one Executor; Apply and ApplyNames take it too.
func (e *Executor) Lock(ctx context.Context) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held > 0 {
		e.held++
		return e.release, nil
	}

	lock := flock.New(e.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "lock", e.lockPath, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "lock", e.lockPath, ErrLocked)
	}
	e.flock = lock
	e.held = 1
	return e.release, nil
}

func (e *Executor) release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.held == 0 {
		return
	}
	e.held--
	if e.held > 0 {
		return
	}
	if err := e.flock.Unlock(); err != nil {
		e.logger.Warn("failed to release catalog lock", logging.String("lock", e.lockPath), logging.Error(err))
	}
	e.flock = nil
}

func assignCategory(ctx context.Context, tx *sql.Tx, critterID, categoryID int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ZCRITTER
		 SET ZRELATIONSHIPCRITTERTOCRITTERCATEGORY = ?, Z_OPT = COALESCE(Z_OPT, 0) + 1
		 WHERE Z_PK = ?`, categoryID, critterID)
	if err != nil {
		return fmt.Errorf("assign category: %w", err)
	}
	return expectOneRow(res, "critter", critterID)
}

func renameCategory(ctx context.Context, tx *sql.Tx, categoryID int64, name string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ZCRITTERCATEGORY SET ZNAME = ?, Z_OPT = COALESCE(Z_OPT, 0) + 1 WHERE Z_PK = ?`,
		name, categoryID)
	if err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return expectOneRow(res, "category", categoryID)
}

// insertCategory allocates the next primary key from Z_PRIMARYKEY the way Core
// Data does and inserts the category row.
func insertCategory(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var entity, maxID int64
	err := tx.QueryRowContext(ctx,
		`SELECT Z_ENT, Z_MAX FROM Z_PRIMARYKEY WHERE Z_NAME = ?`, categoryEntity,
	).Scan(&entity, &maxID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no Z_PRIMARYKEY entry for %s", categoryEntity)
	}
	if err != nil {
		return 0, fmt.Errorf("read primary key counter: %w", err)
	}

	var highest sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(Z_PK) FROM ZCRITTERCATEGORY`).Scan(&highest); err != nil {
		return 0, fmt.Errorf("read highest category id: %w", err)
	}
	next := max(maxID, highest.Int64) + 1

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ZCRITTERCATEGORY (Z_PK, Z_ENT, Z_OPT, ZNAME) VALUES (?, ?, 1, ?)`,
		next, entity, name); err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_ENT = ?`, next, entity); err != nil {
		return 0, fmt.Errorf("update primary key counter: %w", err)
	}
	return next, nil
}

func updateNames(ctx context.Context, tx *sql.Tx, critterID int64, commonName, scientificName string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ZCRITTER
		 SET ZNAME = COALESCE(NULLIF(?, ''), ZNAME),
		     ZSPECIES = COALESCE(NULLIF(?, ''), ZSPECIES),
		     Z_OPT = COALESCE(Z_OPT, 0) + 1
		 WHERE Z_PK = ?`, commonName, scientificName, critterID)
	if err != nil {
		return fmt.Errorf("update names: %w", err)
	}
	return expectOneRow(res, "critter", critterID)
}

func expectOneRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return services.Wrap(services.ErrNotFound, "catalog", "update", fmt.Sprintf("%s %d", what, id), nil)
	}
	return nil
}

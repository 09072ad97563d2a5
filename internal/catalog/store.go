package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"crittersync/internal/reconcile"
	"crittersync/internal/services"
)

const (
	critterTable  = "ZCRITTER"
	categoryTable = "ZCRITTERCATEGORY"
	// categoryEntity is the Core Data entity name for categories in Z_PRIMARYKEY.
	categoryEntity = "CritterCategory"
)

// Mode selects how the database is opened.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// Store wraps a MacDive database.
type Store struct {
	db   *sql.DB
	path string
	mode Mode
}

// Open connects to the MacDive database at path. The file must already exist;
// Open never creates a database.
func Open(path string, mode Mode) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open", "database path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "catalog", "open", path, err)
		}
		return nil, services.Wrap(services.ErrCatalog, "catalog", "open", path, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "catalog", "open", path+" is a directory", nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "open", path, err)
	}
	// One connection keeps per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if mode == ReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, services.Wrap(services.ErrCatalog, "catalog", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path, mode: mode}
	if err := store.checkSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) checkSchema(ctx context.Context) error {
	for _, table := range []string{critterTable, categoryTable} {
		var count int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		if err != nil {
			return services.Wrap(services.ErrCatalog, "catalog", "check schema", table, err)
		}
		if count == 0 {
			return services.Wrap(services.ErrCatalog, "catalog", "check schema",
				fmt.Sprintf("table %s missing; is %s a MacDive database?", table, s.path), nil)
		}
	}
	return nil
}

// Entities returns every critter ordered by primary key, the stable catalog order.
func (s *Store) Entities(ctx context.Context) ([]reconcile.Entity, error) {
	var entities []reconcile.Entity
	err := retryOnBusy(ctx, func() error {
		entities = entities[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT Z_PK, ZNAME, ZSPECIES, ZRELATIONSHIPCRITTERTOCRITTERCATEGORY
			FROM ZCRITTER
			ORDER BY Z_PK`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				entity   reconcile.Entity
				name     sql.NullString
				species  sql.NullString
				category sql.NullInt64
			)
			if err := rows.Scan(&entity.ID, &name, &species, &category); err != nil {
				return err
			}
			entity.DisplayName = strings.TrimSpace(name.String)
			entity.SpeciesName = strings.TrimSpace(species.String)
			entity.CategoryID = category.Int64
			entities = append(entities, entity)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "load critters", "", err)
	}
	return entities, nil
}

// Categories returns every named category ordered by primary key. Categories
// without a name are left out.
func (s *Store) Categories(ctx context.Context) ([]reconcile.Category, error) {
	var categories []reconcile.Category
	err := retryOnBusy(ctx, func() error {
		categories = categories[:0]
		rows, err := s.db.QueryContext(ctx, `
			SELECT Z_PK, ZNAME
			FROM ZCRITTERCATEGORY
			WHERE ZNAME IS NOT NULL AND TRIM(ZNAME) <> ''
			ORDER BY Z_PK`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var category reconcile.Category
			if err := rows.Scan(&category.ID, &category.Name); err != nil {
				return err
			}
			categories = append(categories, category)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, services.Wrap(services.ErrCatalog, "catalog", "load categories", "", err)
	}
	return categories, nil
}

// Category fetches one category by id.
func (s *Store) Category(ctx context.Context, id int64) (reconcile.Category, error) {
	var name sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT ZNAME FROM ZCRITTERCATEGORY WHERE Z_PK = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Category{}, services.Wrap(services.ErrNotFound, "catalog", "get category", fmt.Sprintf("id %d", id), nil)
	}
	if err != nil {
		return reconcile.Category{}, services.Wrap(services.ErrCatalog, "catalog", "get category", fmt.Sprintf("id %d", id), err)
	}
	return reconcile.Category{ID: id, Name: name.String}, nil
}

package testsupport

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const macDiveSchema = `
CREATE TABLE Z_PRIMARYKEY (Z_ENT INTEGER PRIMARY KEY, Z_NAME VARCHAR, Z_SUPER INTEGER, Z_MAX INTEGER);
CREATE TABLE ZCRITTERCATEGORY (
	Z_PK INTEGER PRIMARY KEY,
	Z_ENT INTEGER,
	Z_OPT INTEGER,
	ZIMAGE VARCHAR,
	ZNAME VARCHAR,
	ZUUID VARCHAR
);
CREATE TABLE ZCRITTER (
	Z_PK INTEGER PRIMARY KEY,
	Z_ENT INTEGER,
	Z_OPT INTEGER,
	ZRELATIONSHIPCRITTERTOCRITTERCATEGORY INTEGER,
	ZSIZE FLOAT,
	ZIMAGE VARCHAR,
	ZNAME VARCHAR,
	ZNOTES VARCHAR,
	ZSPECIES VARCHAR,
	ZUUID VARCHAR
);
INSERT INTO Z_PRIMARYKEY (Z_ENT, Z_NAME, Z_SUPER, Z_MAX) VALUES (7, 'Critter', 0, 0), (8, 'CritterCategory', 0, 0);
`

// FixtureCritter seeds a ZCRITTER row. Zero CategoryID stores NULL.
type FixtureCritter struct {
	ID         int64
	Name       string
	Species    string
	CategoryID int64
}

// FixtureCategory seeds a ZCRITTERCATEGORY row.
type FixtureCategory struct {
	ID   int64
	Name string
}

// MacDive is a temporary database shaped like MacDive's Core Data store.
type MacDive struct {
	Path string
	db   *sql.DB
	t    testing.TB
}

// NewMacDive creates the fixture database in a temp dir and seeds it.
func NewMacDive(t testing.TB, categories []FixtureCategory, critters []FixtureCritter) *MacDive {
	t.Helper()

	path := filepath.Join(t.TempDir(), "MacDive.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(macDiveSchema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	var maxCategory, maxCritter int64
	for _, c := range categories {
		if _, err := db.Exec(`INSERT INTO ZCRITTERCATEGORY (Z_PK, Z_ENT, Z_OPT, ZNAME) VALUES (?, 8, 1, ?)`, c.ID, nullString(c.Name)); err != nil {
			t.Fatalf("seed category %d: %v", c.ID, err)
		}
		maxCategory = max(maxCategory, c.ID)
	}
	for _, c := range critters {
		var category any
		if c.CategoryID != 0 {
			category = c.CategoryID
		}
		if _, err := db.Exec(
			`INSERT INTO ZCRITTER (Z_PK, Z_ENT, Z_OPT, ZRELATIONSHIPCRITTERTOCRITTERCATEGORY, ZNAME, ZSPECIES) VALUES (?, 7, 1, ?, ?, ?)`,
			c.ID, category, nullString(c.Name), nullString(c.Species)); err != nil {
			t.Fatalf("seed critter %d: %v", c.ID, err)
		}
		maxCritter = max(maxCritter, c.ID)
	}
	if _, err := db.Exec(`UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_ENT = 8`, maxCategory); err != nil {
		t.Fatalf("seed category counter: %v", err)
	}
	if _, err := db.Exec(`UPDATE Z_PRIMARYKEY SET Z_MAX = ? WHERE Z_ENT = 7`, maxCritter); err != nil {
		t.Fatalf("seed critter counter: %v", err)
	}
	return &MacDive{Path: path, db: db, t: t}
}

// CategoryName returns the stored name of a category.
func (m *MacDive) CategoryName(id int64) string {
	m.t.Helper()
	var name sql.NullString
	if err := m.db.QueryRow(`SELECT ZNAME FROM ZCRITTERCATEGORY WHERE Z_PK = ?`, id).Scan(&name); err != nil {
		m.t.Fatalf("read category %d: %v", id, err)
	}
	return name.String
}

// CategoryCount returns the number of category rows.
func (m *MacDive) CategoryCount() int {
	m.t.Helper()
	var n int
	if err := m.db.QueryRow(`SELECT COUNT(1) FROM ZCRITTERCATEGORY`).Scan(&n); err != nil {
		m.t.Fatalf("count categories: %v", err)
	}
	return n
}

// CategoryCounter returns Z_MAX for the category entity.
func (m *MacDive) CategoryCounter() int64 {
	m.t.Helper()
	var n int64
	if err := m.db.QueryRow(`SELECT Z_MAX FROM Z_PRIMARYKEY WHERE Z_NAME = 'CritterCategory'`).Scan(&n); err != nil {
		m.t.Fatalf("read category counter: %v", err)
	}
	return n
}

// Critter returns the stored row for a critter.
func (m *MacDive) Critter(id int64) FixtureCritter {
	m.t.Helper()
	var (
		name, species sql.NullString
		category      sql.NullInt64
	)
	err := m.db.QueryRow(
		`SELECT ZNAME, ZSPECIES, ZRELATIONSHIPCRITTERTOCRITTERCATEGORY FROM ZCRITTER WHERE Z_PK = ?`, id,
	).Scan(&name, &species, &category)
	if err != nil {
		m.t.Fatalf("read critter %d: %v", id, err)
	}
	return FixtureCritter{ID: id, Name: name.String, Species: species.String, CategoryID: category.Int64}
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

package testsupport

import (
	"testing"

	"crittersync/internal/catalog"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, path string, mode catalog.Mode) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(path, mode)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

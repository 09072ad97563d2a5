package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"crittersync/internal/services"
)

// CheckWritable verifies the database file and its directory can be written.
// SQLite needs the directory for its journal.
func CheckWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "catalog", "preflight", path, err)
		}
		return services.Wrap(services.ErrCatalog, "catalog", "preflight", path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "catalog", "preflight", path+" is a directory", nil)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "preflight", fmt.Sprintf("%s is not writable", path), err)
	}
	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrCatalog, "catalog", "preflight", fmt.Sprintf("directory %s is not writable", dir), err)
	}
	return nil
}

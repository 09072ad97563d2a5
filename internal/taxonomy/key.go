package taxonomy

import "crittersync/internal/textutil"

// Key is the cache key for a scientific name.
func Key(name string) string {
	return textutil.Key(name)
}

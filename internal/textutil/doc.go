// Package textutil provides the text normalization shared by the catalog, the
// taxonomy resolver, and the reconcilers.
//
// Key folds a display name into the comparison key used for category and
// species matching. TitleCase and SentenceCase produce the display forms that
// are written back to MacDive.
package textutil

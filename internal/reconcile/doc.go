// Package reconcile computes the corrective actions that bring a critter
// catalog in line with its taxonomy.
//
// The category engine is a single-threaded fold over entities in catalog
// order. Categories are kept in an arena keyed by id with a separate
// normalized-name index, and categories no entity wants form a reuse pool
// consumed in ascending id order. Renames update the index immediately, so
// later entities wanting the same group collapse onto the renamed category.
// Given the same catalog, the same plan is produced on every run.
//
// Runner drives a full run: priming the taxonomy cache, classifying each
// entity, and handing the desired groups to the engine. Per-entity problems
// become diagnostics; only a failure to prime the cache is returned as an
// error.
package reconcile

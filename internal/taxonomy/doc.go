// Package taxonomy resolves scientific names to taxon records through a
// process-wide, concurrency-safe memo cache.
//
// A Resolver is primed once per run with every distinct species referenced by
// the catalog. Priming fans out to a bounded number of workers; concurrent
// requests for the same normalized name share one in-flight lookup, and the
// outcome (record or failure) is cached for the rest of the run without
// retries. After priming, Resolve answers from the cache without touching the
// network.
package taxonomy

// Package inaturalist provides the minimal iNaturalist taxa API client used to
// look up critter species.
//
// It exposes taxon search, taxon detail retrieval (including the ancestor
// chain used to derive critter categories), and LookupByScientificName, which
// combines both into a single exact-name lookup. Every request waits on a
// shared rate limiter because the public API asks clients to stay around one
// request per second. Options allow tests to supply custom HTTP clients and
// limits without modifying production code.
package inaturalist

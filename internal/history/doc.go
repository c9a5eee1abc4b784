// Package history persists per-file analysis iteration histories.
//
// The engine treats histories as caller-owned input: this package stores
// the iterations the analysis engine submits and hands them back for
// evaluation. Convergence results are never persisted here; they live only
// in the engine's in-memory cache.
//
// Two backends are provided behind the Store interface: an embedded
// BadgerDB store for deployments that must survive restarts, and an
// in-memory store for tests and ephemeral use. Select one via New and the
// provider string from configuration.
package history

// Package store provides TaskStore implementations. The in-memory store is
// the default for tests and single-process runs; the SQLite store persists
// task state across restarts. Both enforce the optimistic write protocol
// defined by core.TaskStore.
package store

// Package registry provides the in-memory, read-mostly implementations of
// the capability and intent catalogs plus the runtime agent registry. All
// three follow the same pattern: RWMutex-guarded snapshots for request-time
// readers, whole-catalog replacement for out-of-band updates.
package registry

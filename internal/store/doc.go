// Package store holds the process-wide registries: graph definitions in an
// in-memory SQLite table and live runs in a mutex-guarded map.
package store

// Package store defines interfaces for persistence dependencies (hysteresis
// state, allowlist paths, published blobs, event notifications).
// Implementations live in internal/storage and internal/publisher; this
// package must not import database drivers or concrete clients.
package store

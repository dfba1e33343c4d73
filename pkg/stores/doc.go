// Package stores provides persistent storage for the runtime engine.
//
// The only store today is the assembly metadata cache: inspecting an
// assembly binary for its name and version is comparatively expensive, so
// results are cached keyed by path and modification time. A stale mtime
// simply misses the cache; rows for old mtimes are pruned opportunistically.
//
// The SQLite implementation uses modernc.org/sqlite (pure Go, no cgo) with
// WAL mode, and schema migrations embedded in the binary via
// golang-migrate's iofs source.
package stores

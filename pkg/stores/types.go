package stores

import (
	"context"
	"time"
)

// AssemblyRecord is one cached inspection result, keyed by the assembly's
// path and modification time.
type AssemblyRecord struct {
	// Path is the absolute path of the inspected assembly.
	Path string `json:"path"`

	// ModTime is the file's modification time at inspection, unix nanos.
	ModTime int64 `json:"mod_time"`

	// Name is the assembly's simple name.
	Name string `json:"name"`

	// Version is the assembly's version string.
	Version string `json:"version"`

	// InspectedAt is when the inspection ran.
	InspectedAt time.Time `json:"inspected_at"`
}

// AssemblyStore persists assembly inspection results across runs.
type AssemblyStore interface {
	// Init initializes the underlying storage.
	Init(ctx context.Context) error

	// Migrate brings the schema up to date.
	Migrate(ctx context.Context) error

	// GetAssembly returns the cached record for (path, modTime), or
	// (nil, nil) on a cache miss.
	GetAssembly(ctx context.Context, path string, modTime int64) (*AssemblyRecord, error)

	// PutAssembly stores a record, replacing any previous entry for the
	// same (path, modTime) and pruning entries for older mtimes of the
	// same path.
	PutAssembly(ctx context.Context, rec *AssemblyRecord) error

	// DeleteAssembly removes all cached records for a path.
	DeleteAssembly(ctx context.Context, path string) error

	// PruneBefore removes records whose inspection time is older than the
	// cutoff and returns the number of rows removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

package inspector

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
	"github.com/koichiyamashita/monodevelop/pkg/stores"
	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// CachingInspector wraps another inspector with a persistent cache keyed by
// (path, mtime). Cache errors are logged and treated as misses; the cache
// never makes inspection fail.
type CachingInspector struct {
	next   engine.AssemblyInspector
	store  stores.AssemblyStore
	logger *telemetry.Logger
}

// NewCachingInspector creates a caching wrapper around next.
func NewCachingInspector(next engine.AssemblyInspector, store stores.AssemblyStore, logger *telemetry.Logger) *CachingInspector {
	return &CachingInspector{
		next:   next,
		store:  store,
		logger: logger.NewComponentLogger("assembly-inspector"),
	}
}

// Inspect returns cached metadata when the file's mtime matches a stored
// record, otherwise delegates to the wrapped inspector and stores the
// result.
func (c *CachingInspector) Inspect(ctx context.Context, path string) (engine.AssemblyInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return engine.AssemblyInfo{}, fmt.Errorf("failed to stat assembly: %w", err)
	}
	modTime := stat.ModTime().UnixNano()

	if rec, err := c.store.GetAssembly(ctx, path, modTime); err != nil {
		c.logger.WithError(err).WithAssembly(path).Warn("assembly cache lookup failed")
	} else if rec != nil {
		return engine.AssemblyInfo{Name: rec.Name, Version: rec.Version}, nil
	}

	info, err := c.next.Inspect(ctx, path)
	if err != nil {
		return engine.AssemblyInfo{}, err
	}

	rec := &stores.AssemblyRecord{
		Path:        path,
		ModTime:     modTime,
		Name:        info.Name,
		Version:     info.Version,
		InspectedAt: time.Now().UTC(),
	}
	if err := c.store.PutAssembly(ctx, rec); err != nil {
		c.logger.WithError(err).WithAssembly(path).Warn("failed to cache assembly metadata")
	}

	return info, nil
}

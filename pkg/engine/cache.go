package engine

import (
	"sync"

	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// BackendCache is a thread-safe lazy map from framework identity to an
// initialized backend. A single lock covers the whole cache: backend creation
// is rare and cheap relative to runtime lifetime, so correctness wins over
// throughput. Concurrent first-time requests for the same framework
// serialize on the lock and all observe the one cached backend.
type BackendCache struct {
	mu       sync.Mutex
	rt       *Runtime
	backends map[FrameworkID]Backend
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
}

// NewBackendCache creates an empty cache bound to one runtime instance.
func NewBackendCache(rt *Runtime, logger *telemetry.Logger, metrics *telemetry.Metrics) *BackendCache {
	return &BackendCache{
		rt:       rt,
		backends: make(map[FrameworkID]Backend),
		logger:   logger.NewComponentLogger("backend-cache"),
		metrics:  metrics,
	}
}

// Get returns the backend for the framework, creating and initializing it on
// first request. Creation order: the framework's own factory, then the
// runtime's default factory, then the not-supported fallback. Initialize is
// called exactly once, before the backend is stored and becomes visible; no
// caller ever observes a partially-initialized backend. Get never fails.
func (c *BackendCache) Get(fw *Framework) Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[fw.ID]; ok {
		return b
	}

	b := c.create(fw)
	if err := b.Initialize(c.rt, fw); err != nil {
		c.logger.WithError(err).WithFramework(fw.ID.String()).
			Warn("backend initialization failed, treating framework as not supported")
		b = unsupportedBackend{}
	}
	c.backends[fw.ID] = b
	c.metrics.BackendCreated(b.Installed())
	return b
}

func (c *BackendCache) create(fw *Framework) Backend {
	if fw.BackendFactory != nil {
		if b := fw.BackendFactory(c.rt, fw); b != nil {
			return b
		}
	}
	if factory := c.rt.DefaultBackendFactory(); factory != nil {
		if b := factory(c.rt, fw); b != nil {
			return b
		}
	}
	return unsupportedBackend{}
}

// Len returns the number of cached backends.
func (c *BackendCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.backends)
}

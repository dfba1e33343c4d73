package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koichiyamashita/monodevelop/pkg/telemetry"
)

// ShutdownCheck reports whether a process-wide shutdown is in progress. The
// coordinator reads it at every step boundary of the initialization
// sequence; work observed after it returns true is skipped, which bounds
// worst-case shutdown latency to the duration of one step.
type ShutdownCheck func() bool

// neverShutdown is the default when no accessor is injected.
func neverShutdown() bool { return false }

// subscription is one pending initialization listener.
type subscription struct {
	id uuid.UUID
	fn func()
}

// InitializationCoordinator drives the one-shot, background, cancellable
// initialization of a runtime instance and delivers completion events with
// fire-or-queue semantics.
//
// Two locks are deliberate: mu guards the state machine and backs the
// condition variable for blocking waiters, subMu guards subscriber
// bookkeeping. Arbitrary listener code is never invoked while mu is held.
type InitializationCoordinator struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state InitState

	subMu   sync.Mutex
	pending []subscription
	drained bool

	shuttingDown ShutdownCheck
	logger       *telemetry.Logger
}

// NewInitializationCoordinator creates a coordinator in the NotStarted
// state. A nil shutdown accessor means shutdown is never observed.
func NewInitializationCoordinator(logger *telemetry.Logger, shuttingDown ShutdownCheck) *InitializationCoordinator {
	if shuttingDown == nil {
		shuttingDown = neverShutdown
	}
	c := &InitializationCoordinator{
		state:        InitNotStarted,
		shuttingDown: shuttingDown,
		logger:       logger.NewComponentLogger("init-coordinator"),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// State returns the current initialization state.
func (c *InitializationCoordinator) State() InitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShuttingDown reports the injected process-wide shutdown flag.
func (c *InitializationCoordinator) ShuttingDown() bool {
	return c.shuttingDown()
}

// Start launches the initialization sequence on a background goroutine and
// returns immediately. Only the first call transitions NotStarted -> Running
// and runs the sequence; later calls are no-ops. Any error or panic escaping
// the sequence is logged as fatal diagnostics but never propagates to
// waiters: the coordinator still transitions to Done and wakes everyone,
// because a stuck initialization must never deadlock the rest of the system.
func (c *InitializationCoordinator) Start(ctx context.Context, sequence func(ctx context.Context) error) {
	c.mu.Lock()
	if c.state != InitNotStarted {
		c.mu.Unlock()
		return
	}
	c.state = InitRunning
	c.mu.Unlock()

	go c.run(ctx, sequence)
}

func (c *InitializationCoordinator) run(ctx context.Context, sequence func(ctx context.Context) error) {
	started := time.Now()
	defer c.finish(started)

	defer func() {
		if rec := recover(); rec != nil {
			c.logger.WithField("panic", rec).
				Error("panic during runtime initialization, completing anyway")
		}
	}()

	if sequence == nil {
		return
	}
	if err := sequence(ctx); err != nil {
		c.logger.WithError(err).
			Error("runtime initialization failed, completing anyway")
	}
}

// finish transitions to Done, wakes all waiters, then drains the pending
// subscriber queue exactly once. Each listener is guarded individually so
// one misbehaving subscriber cannot prevent the others from running. The
// subscriber list is released afterwards; nothing accumulates once Done.
func (c *InitializationCoordinator) finish(started time.Time) {
	c.mu.Lock()
	c.state = InitDone
	c.cond.Broadcast()
	c.mu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, sub := range c.pending {
		invokeGuarded(c.logger, sub.fn)
	}
	c.pending = nil
	c.drained = true

	c.logger.WithField("duration", time.Since(started).String()).
		Debug("runtime initialization complete")
}

// Wait blocks the calling goroutine until initialization reaches Done. It
// is safe to call from any number of goroutines, before, during or after
// Start, and returns immediately when already Done.
func (c *InitializationCoordinator) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.state != InitDone {
		c.cond.Wait()
	}
}

// Subscribe registers a listener for initialization completion. When
// initialization is already Done and the process is not shutting down, the
// listener is invoked synchronously before Subscribe returns; otherwise it
// is queued and fired exactly once at the Done transition. The returned id
// can be passed to Unsubscribe while the listener is still queued.
func (c *InitializationCoordinator) Subscribe(fn func()) uuid.UUID {
	c.subMu.Lock()
	if c.drained {
		c.subMu.Unlock()
		if !c.shuttingDown() {
			invokeGuarded(c.logger, fn)
		}
		return uuid.Nil
	}
	id := uuid.New()
	c.pending = append(c.pending, subscription{id: id, fn: fn})
	c.subMu.Unlock()
	return id
}

// Unsubscribe removes a still-pending listener. It is a no-op for listeners
// that already fired or were never registered.
func (c *InitializationCoordinator) Unsubscribe(id uuid.UUID) {
	if id == uuid.Nil {
		return
	}
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, sub := range c.pending {
		if sub.id == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func invokeGuarded(logger *telemetry.Logger, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("panic", rec).Error("initialization listener panicked")
		}
	}()
	fn()
}

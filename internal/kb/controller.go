package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/embedding"
	"github.com/kotobalab/honyaku/internal/vectorstore"
)

const (
	// deleteAttempts is the total number of tries for removing a store
	// directory whose database file may still be locked.
	deleteAttempts = 3

	defaultRetryDelay = time.Second
)

// Controller owns the active knowledge-base store and mediates every open,
// switch, and delete against the underlying directories. The active handle is
// shared across requests; stores for other knowledge bases are opened
// per-operation and closed when the operation finishes.
//
// Lock order: storeLocks entry, then lifecycle, then mu. The keyword index
// holds an exclusive file lock on its directory, so opens of the same store
// must never overlap: storeLocks serializes per-store opens, and lifecycle
// keeps the active handle alive while operations run against it. Delete is
// the only path holding two store locks at once (the target's, then the
// default's via the switch-away); the default store is never deleted, so no
// cycle exists.
type Controller struct {
	registry *Registry
	embedder embedding.Embedder
	logger   *zap.Logger

	// lifecycle is read-held while an operation uses the active handle and
	// write-held to swap or close it.
	lifecycle sync.RWMutex

	mu       sync.Mutex
	active   *vectorstore.Handle
	activeID string
	locks    map[string]*sync.Mutex

	remove     func(path string) error
	retryDelay time.Duration
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRemoveFunc overrides the function used to remove store files and
// directories during deletion.
func WithRemoveFunc(remove func(path string) error) ControllerOption {
	return func(c *Controller) {
		c.remove = remove
	}
}

// WithRetryDelay overrides the delay between deletion attempts.
func WithRetryDelay(delay time.Duration) ControllerOption {
	return func(c *Controller) {
		c.retryDelay = delay
	}
}

// NewController creates a controller. The default store is opened lazily on
// first use.
func NewController(registry *Registry, embedder embedding.Embedder, logger *zap.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry:   registry,
		embedder:   embedder,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
		remove:     os.RemoveAll,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActiveID returns the id of the active knowledge base. Before the first
// open or switch this is the default knowledge base.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == "" {
		return DefaultID
	}
	return c.activeID
}

// ensureDefault activates the default store if no store is active yet. The
// open runs under the default store's lock so it cannot collide with a
// concurrent switch or temporary open of the same directory.
func (c *Controller) ensureDefault(ctx context.Context) error {
	c.mu.Lock()
	hasActive := c.active != nil
	c.mu.Unlock()
	if hasActive {
		return nil
	}

	lock := c.storeLock(DefaultID)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	hasActive = c.active != nil
	c.mu.Unlock()
	if hasActive {
		return nil
	}

	base, err := c.registry.Get(DefaultID)
	if err != nil {
		return err
	}
	handle, err := vectorstore.Open(base.Path, c.embedder)
	if err != nil {
		return fmt.Errorf("failed to open default store: %w", err)
	}

	c.lifecycle.Lock()
	c.mu.Lock()
	if c.active != nil {
		// A switch won the race; drop the spare handle.
		c.mu.Unlock()
		c.lifecycle.Unlock()
		return handle.Close()
	}
	c.active = handle
	c.activeID = DefaultID
	c.mu.Unlock()
	c.lifecycle.Unlock()
	return nil
}

// storeLock returns the mutex serializing opens of one store directory.
func (c *Controller) storeLock(id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// SwitchTo makes the knowledge base with the given id the active one. The new
// store is opened and swapped in before the previous one is closed, so a
// failed open leaves the current store in place. Switching to the already
// active knowledge base is a no-op. Close failures on the old store are
// logged and ignored.
func (c *Controller) SwitchTo(ctx context.Context, id string) error {
	c.mu.Lock()
	alreadyActive := id == c.activeID && c.active != nil
	c.mu.Unlock()
	if alreadyActive {
		return nil
	}

	// Held through the swap so no temporary open of this store can race the
	// new handle's keyword lock, and so a concurrent delete of this store
	// cannot interleave with the open.
	lock := c.storeLock(id)
	lock.Lock()
	defer lock.Unlock()

	// The base may have been deleted while waiting for the lock.
	base, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	alreadyActive = id == c.activeID && c.active != nil
	c.mu.Unlock()
	if alreadyActive {
		return nil
	}

	handle, err := vectorstore.Open(base.Path, c.embedder)
	if err != nil {
		return fmt.Errorf("failed to open store for %q: %w", id, err)
	}

	// The write lock waits out every operation still using the old handle.
	c.lifecycle.Lock()
	c.mu.Lock()
	old := c.active
	oldID := c.activeID
	c.active = handle
	c.activeID = id
	c.mu.Unlock()
	if old != nil {
		if cerr := old.Close(); cerr != nil {
			c.logger.Warn("failed to close previous store",
				zap.String("knowledge_base_id", oldID),
				zap.Error(cerr))
		}
	}
	c.lifecycle.Unlock()
	return nil
}

// WithHandle runs fn against the store for the given knowledge base. An empty
// id targets the active knowledge base. If the target is not the active one,
// a temporary handle is opened and closed when fn returns, whatever the
// outcome.
func (c *Controller) WithHandle(ctx context.Context, id string, fn func(h *vectorstore.Handle) error) error {
	if id == "" {
		id = c.ActiveID()
	}
	// First use of the default store activates it instead of opening a
	// temporary handle.
	if id == DefaultID {
		if err := c.ensureDefault(ctx); err != nil {
			return err
		}
	}

	if handle, ok := c.tryActive(id); ok {
		defer c.lifecycle.RUnlock()
		return fn(handle)
	}

	// Serialize temporary opens of the same store; the keyword index cannot
	// be opened twice.
	lock := c.storeLock(id)
	lock.Lock()
	defer lock.Unlock()

	// The store may have become active while waiting for the lock.
	if handle, ok := c.tryActive(id); ok {
		defer c.lifecycle.RUnlock()
		return fn(handle)
	}

	base, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	handle, err := vectorstore.Open(base.Path, c.embedder)
	if err != nil {
		return fmt.Errorf("failed to open store for %q: %w", id, err)
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			c.logger.Warn("failed to close temporary store",
				zap.String("knowledge_base_id", id),
				zap.Error(cerr))
		}
	}()
	return fn(handle)
}

// tryActive resolves id against the active store. On ok it returns the active
// handle with the lifecycle read lock held; the caller must release it after
// use.
func (c *Controller) tryActive(id string) (*vectorstore.Handle, bool) {
	c.lifecycle.RLock()
	c.mu.Lock()
	if id == c.activeID && c.active != nil {
		handle := c.active
		c.mu.Unlock()
		return handle, true
	}
	c.mu.Unlock()
	c.lifecycle.RUnlock()
	return nil, false
}

// Delete removes a knowledge base and its on-disk store. If the target is
// active, the controller switches to the default knowledge base first so its
// files are released. Directory removal is retried a fixed number of times to
// ride out lingering file locks; if every attempt fails the registry entry is
// still removed and the leftover directory is picked up by the janitor later.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if id == DefaultID {
		return fmt.Errorf("%w: cannot delete the default knowledge base", ErrInvalidOperation)
	}

	// Held end to end: a concurrent switch to this base blocks here and then
	// fails its registry re-check instead of re-activating a removed store.
	lock := c.storeLock(id)
	lock.Lock()
	defer lock.Unlock()

	base, err := c.registry.Get(id)
	if err != nil {
		return err
	}

	if c.ActiveID() == id {
		if err := c.SwitchTo(ctx, DefaultID); err != nil {
			return fmt.Errorf("failed to release store before deletion: %w", err)
		}
	}

	if err := c.removeStoreDir(base.Path); err != nil {
		c.logger.Warn("knowledge base directory left on disk",
			zap.String("knowledge_base_id", id),
			zap.String("path", base.Path),
			zap.Error(err))
	}

	return c.registry.Delete(id)
}

// removeStoreDir removes a store directory, deleting the database file first
// so a lock on it surfaces before the recursive removal.
func (c *Controller) removeStoreDir(path string) error {
	operation := func() error {
		dbFile := filepath.Join(path, vectorstore.IndexFileName)
		if _, err := os.Stat(dbFile); err == nil {
			if err := c.remove(dbFile); err != nil {
				return err
			}
		}
		return c.remove(path)
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), deleteAttempts-1)
	return backoff.Retry(operation, policy)
}

// Reset removes every document from a knowledge base while keeping the
// knowledge base itself.
func (c *Controller) Reset(ctx context.Context, id string) error {
	return c.WithHandle(ctx, id, func(h *vectorstore.Handle) error {
		ids, err := h.Index().AllIDs(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := h.Index().Delete(ctx, ids); err != nil {
			return err
		}
		if err := h.Keyword().Delete(ctx, ids); err != nil {
			return err
		}
		return h.Index().Persist()
	})
}

// Close releases the active store. Used during shutdown.
func (c *Controller) Close() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	err := c.active.Close()
	c.active = nil
	c.activeID = ""
	return err
}

package kb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes store directories that no longer have a
// registry entry. Deletions that could not remove their directory leave such
// orphans behind once the lingering file lock is gone.
type Janitor struct {
	registry   *Registry
	controller *Controller
	interval   time.Duration
	logger     *zap.Logger
}

// NewJanitor creates a janitor sweeping the registry root at the given
// interval.
func NewJanitor(registry *Registry, controller *Controller, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		registry:   registry,
		controller: controller,
		interval:   interval,
		logger:     logger,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep removes every directory under the storage root that is not the store
// of a registered knowledge base. The registry is consulted per directory,
// right before removal, so a knowledge base created while the sweep is
// running is never mistaken for an orphan. The active store is never touched.
func (j *Janitor) Sweep(ctx context.Context) {
	entries, err := os.ReadDir(j.registry.Root())
	if err != nil {
		j.logger.Warn("janitor could not read storage root", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == j.controller.ActiveID() {
			continue
		}
		if _, err := j.registry.Get(entry.Name()); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			j.logger.Warn("janitor could not read registry", zap.Error(err))
			return
		}
		path := filepath.Join(j.registry.Root(), entry.Name())
		if err := os.RemoveAll(path); err != nil {
			j.logger.Warn("janitor could not remove orphan directory",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		j.logger.Info("removed orphan store directory", zap.String("path", path))
	}
}

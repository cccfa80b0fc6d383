package kb

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/embedding"
	"github.com/kotobalab/honyaku/internal/vectorstore"
)

func newTestController(t *testing.T, opts ...ControllerOption) (*Controller, *Registry) {
	t.Helper()
	registry := NewRegistry(t.TempDir())
	embedder := embedding.NewMockEmbedder(64)
	base := append([]ControllerOption{WithRetryDelay(time.Millisecond)}, opts...)
	c := NewController(registry, embedder, zap.NewNop(), base...)
	t.Cleanup(func() { _ = c.Close() })
	return c, registry
}

func TestControllerLazyDefault(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("expected default active id, got %s", got)
	}
	err := c.WithHandle(ctx, "", func(h *vectorstore.Handle) error {
		if h == nil {
			t.Error("expected an open handle")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("expected default still active, got %s", got)
	}
}

func TestControllerSwitch(t *testing.T) {
	c, registry := newTestController(t)
	ctx := context.Background()

	created, err := registry.Create("Legal", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SwitchTo(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if got := c.ActiveID(); got != created.ID {
		t.Errorf("expected %s active, got %s", created.ID, got)
	}
}

func TestControllerSwitchUnknownKeepsActive(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	if err := c.SwitchTo(ctx, DefaultID); err != nil {
		t.Fatal(err)
	}
	err := c.SwitchTo(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("failed switch must keep the active store, got %s", got)
	}
}

func TestControllerDeleteRemovesStore(t *testing.T) {
	c, registry := newTestController(t)
	ctx := context.Background()

	created, err := registry.Create("Temp", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("registry entry should be gone, got %v", err)
	}
	if _, err := os.Stat(created.Path); !os.IsNotExist(err) {
		t.Errorf("store directory should be removed, got %v", err)
	}
}

func TestControllerDeleteActiveSwitchesToDefault(t *testing.T) {
	c, registry := newTestController(t)
	ctx := context.Background()

	created, err := registry.Create("Temp", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SwitchTo(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("expected switch back to default, got %s", got)
	}
}

func TestControllerDeleteDefaultRejected(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.Delete(context.Background(), DefaultID); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestControllerDeleteUnknown(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.Delete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestControllerDeleteSucceedsWhenRemovalFails(t *testing.T) {
	attempts := 0
	c, registry := newTestController(t, WithRemoveFunc(func(path string) error {
		attempts++
		return errors.New("file locked")
	}))
	ctx := context.Background()

	created, err := registry.Create("Locked", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatalf("deletion must report success despite the locked directory, got %v", err)
	}
	if attempts != deleteAttempts {
		t.Errorf("expected %d removal attempts, got %d", deleteAttempts, attempts)
	}
	if _, err := registry.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("registry entry should be gone even when removal fails, got %v", err)
	}
	if _, err := os.Stat(created.Path); err != nil {
		t.Errorf("directory should be left on disk, got %v", err)
	}
}

func TestControllerDeleteRetriesTransientLock(t *testing.T) {
	attempts := 0
	c, registry := newTestController(t, WithRemoveFunc(func(path string) error {
		attempts++
		if attempts < 2 {
			return errors.New("file locked")
		}
		return os.RemoveAll(path)
	}))
	ctx := context.Background()

	created, err := registry.Create("Transient", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(created.Path); !os.IsNotExist(err) {
		t.Errorf("store directory should be removed after retry, got %v", err)
	}
}

func TestControllerWithHandleTemporaryClosed(t *testing.T) {
	c, registry := newTestController(t)
	ctx := context.Background()

	created, err := registry.Create("Other", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SwitchTo(ctx, DefaultID); err != nil {
		t.Fatal(err)
	}

	var temp *vectorstore.Handle
	wantErr := errors.New("operation failed")
	err = c.WithHandle(ctx, created.ID, func(h *vectorstore.Handle) error {
		temp = h
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the operation error, got %v", err)
	}
	if !temp.Closed() {
		t.Error("temporary handle should be closed after the operation fails")
	}
	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("active store should be untouched, got %s", got)
	}
}

func TestControllerSwitchDuringDeleteFails(t *testing.T) {
	removeStarted := make(chan struct{})
	removeRelease := make(chan struct{})
	var once sync.Once
	c, registry := newTestController(t, WithRemoveFunc(func(path string) error {
		once.Do(func() {
			close(removeStarted)
			<-removeRelease
		})
		return os.RemoveAll(path)
	}))
	ctx := context.Background()

	created, err := registry.Create("Doomed", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SwitchTo(ctx, created.ID); err != nil {
		t.Fatal(err)
	}

	deleteDone := make(chan error, 1)
	go func() { deleteDone <- c.Delete(ctx, created.ID) }()
	<-removeStarted

	// The delete is mid-removal; switching back must not re-activate the
	// store.
	switchDone := make(chan error, 1)
	go func() { switchDone <- c.SwitchTo(ctx, created.ID) }()
	close(removeRelease)

	if err := <-deleteDone; err != nil {
		t.Fatal(err)
	}
	if err := <-switchDone; !errors.Is(err, ErrNotFound) {
		t.Fatalf("switch during delete must fail with ErrNotFound, got %v", err)
	}
	if got := c.ActiveID(); got != DefaultID {
		t.Errorf("expected default active after delete, got %s", got)
	}
	if _, err := registry.Get(created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("registry entry should be gone, got %v", err)
	}
	if _, err := os.Stat(created.Path); !os.IsNotExist(err) {
		t.Errorf("store directory should be removed, got %v", err)
	}
	err = c.WithHandle(ctx, "", func(h *vectorstore.Handle) error { return nil })
	if err != nil {
		t.Fatalf("controller must stay usable after the interleaving: %v", err)
	}
}

func TestControllerFirstUseRacesSwitchToDefault(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c, _ := newTestController(t)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- c.WithHandle(ctx, "", func(h *vectorstore.Handle) error { return nil })
		}()
		go func() {
			defer wg.Done()
			errs <- c.SwitchTo(ctx, DefaultID)
		}()
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatal(err)
			}
		}
		if got := c.ActiveID(); got != DefaultID {
			t.Fatalf("expected default active, got %s", got)
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestControllerResetClearsStore(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	err := c.WithHandle(ctx, "", func(h *vectorstore.Handle) error {
		return h.Index().Add(ctx,
			[]string{"some content"},
			testMetas("doc1"),
			[]string{"doc1"})
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Reset(ctx, DefaultID); err != nil {
		t.Fatal(err)
	}
	err = c.WithHandle(ctx, "", func(h *vectorstore.Handle) error {
		count, cerr := h.Index().Count(ctx)
		if cerr != nil {
			return cerr
		}
		if count != 0 {
			t.Errorf("expected empty store after reset, got %d entries", count)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

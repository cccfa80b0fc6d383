package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestAddAndSearch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, "d1", "the quick brown fox", "fox.txt"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add(ctx, "d2", "a slow green turtle", "turtle.txt"); err != nil {
		t.Fatal(err)
	}

	results, err := ix.Search(ctx, "fox", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].ID != "d1" || results[0].Source != "fox.txt" {
		t.Errorf("got %+v", results[0])
	}
	if results[0].Score <= 0 {
		t.Errorf("expected a positive score, got %f", results[0].Score)
	}
}

func TestSearchNoMatch(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, "d1", "some indexed text", "a.txt"); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(ctx, "zzzzz", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no hits, got %d", len(results))
	}
}

func TestDelete(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()

	if err := ix.Add(ctx, "d1", "removable entry", "a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Delete(ctx, []string{"d1"}); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(ctx, "removable", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no hits after delete, got %d", len(results))
	}

	if err := ix.Delete(ctx, nil); err != nil {
		t.Fatal(err)
	}
}

func TestReopenExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	ix, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Add(context.Background(), "d1", "durable entry", "a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	results, err := reopened.Search(context.Background(), "durable", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected the entry to survive reopen, got %d hits", len(results))
	}
}

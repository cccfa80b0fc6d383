package kb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kotobalab/honyaku/internal/models"
)

func testMetas(docID string) []models.DocumentMeta {
	return []models.DocumentMeta{{
		Source:          docID + ".txt",
		KnowledgeBaseID: DefaultID,
		DocID:           docID,
		AddedAt:         time.Now().UTC(),
	}}
}

// fakeModel answers with a fixed string and records the prompts it saw.
type fakeModel struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
	models  []string
}

func (m *fakeModel) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	return m.CompleteWithModel(ctx, "", systemMessage, prompt)
}

func (m *fakeModel) CompleteWithModel(ctx context.Context, model, systemMessage, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func newTestService(t *testing.T, model *fakeModel) (*Service, *Registry) {
	t.Helper()
	c, registry := newTestController(t)
	return NewService(c, model, zap.NewNop(), 3, 0.7), registry
}

func TestEmbedAndQueryRoundtrip(t *testing.T) {
	model := &fakeModel{answer: "the answer"}
	svc, _ := newTestService(t, model)
	ctx := context.Background()

	content := "The capital of France is Paris."
	docID, err := svc.Embed(ctx, content, "geo.txt", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if docID == "" {
		t.Fatal("expected a generated doc id")
	}

	// Identical text embeds to an identical vector, so the stored chunk
	// scores 1.0 and clears the threshold.
	result, err := svc.Query(ctx, content, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Answer != "the answer" {
		t.Errorf("expected the model answer, got %q", result.Answer)
	}
	if len(result.RelevantChunks) != 1 {
		t.Fatalf("expected 1 relevant chunk, got %d", len(result.RelevantChunks))
	}
	if result.RelevantChunks[0].Content != content {
		t.Errorf("unexpected chunk content: %q", result.RelevantChunks[0].Content)
	}
	if len(model.prompts) != 1 || !strings.Contains(model.prompts[0], content) {
		t.Error("query prompt should carry the retrieved chunk")
	}
}

func TestEmbedEmptyContent(t *testing.T) {
	svc, _ := newTestService(t, &fakeModel{})
	if _, err := svc.Embed(context.Background(), "  ", "a.txt", "", ""); !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("expected ErrInvalidOperation, got %v", err)
	}
}

func TestEmbedUnknownKnowledgeBase(t *testing.T) {
	svc, _ := newTestService(t, &fakeModel{})
	if _, err := svc.Embed(context.Background(), "text", "a.txt", "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestQueryThresholdFiltersChunks(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	svc, _ := newTestService(t, model)
	ctx := context.Background()

	if _, err := svc.Embed(ctx, "completely unrelated material about cooking", "cook.txt", "", ""); err != nil {
		t.Fatal(err)
	}

	// Hash embeddings for different texts are effectively orthogonal, so
	// nothing clears the 0.7 threshold and the context is empty.
	result, err := svc.Query(ctx, "quantum chromodynamics binding energy", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.RelevantChunks) != 0 {
		t.Errorf("expected no relevant chunks, got %d", len(result.RelevantChunks))
	}
	if result.Answer != "ok" {
		t.Errorf("empty context must still produce an answer, got %q", result.Answer)
	}
}

func TestQueryParameterOverrides(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	svc, _ := newTestService(t, model)
	ctx := context.Background()

	content := "shared knowledge entry"
	if _, err := svc.Embed(ctx, content, "kb.txt", "", ""); err != nil {
		t.Fatal(err)
	}

	topK := 1
	threshold := 0.0
	settings := &models.QuerySettings{
		ModelName: "gpt-4o",
		Parameters: models.QueryParameters{
			TopK:                &topK,
			SimilarityThreshold: &threshold,
		},
	}
	result, err := svc.Query(ctx, "anything else entirely", "", settings)
	if err != nil {
		t.Fatal(err)
	}
	// Zero threshold keeps even unrelated chunks.
	if len(result.RelevantChunks) != 1 {
		t.Errorf("expected 1 chunk with zero threshold, got %d", len(result.RelevantChunks))
	}
	if len(model.models) != 1 || model.models[0] != "gpt-4o" {
		t.Errorf("expected per-request model override, got %v", model.models)
	}
}

func TestQueryModelFailure(t *testing.T) {
	wantErr := errors.New("model down")
	svc, _ := newTestService(t, &fakeModel{err: wantErr})
	ctx := context.Background()

	if _, err := svc.Query(ctx, "any question", "", nil); !errors.Is(err, wantErr) {
		t.Errorf("expected the model error, got %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	svc, _ := newTestService(t, &fakeModel{answer: "ok"})
	ctx := context.Background()

	docID, err := svc.Embed(ctx, "to be removed", "gone.txt", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteDocument(ctx, "", docID); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.Documents(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no documents after deletion, got %d", len(entries))
	}

	if err := svc.DeleteDocument(ctx, "", docID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a second delete, got %v", err)
	}
}

func TestDocumentsListing(t *testing.T) {
	svc, registry := newTestService(t, &fakeModel{})
	ctx := context.Background()

	created, err := registry.Create("Side", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Embed(ctx, "first file", "one.txt", created.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Embed(ctx, "second file", "two.txt", created.ID, ""); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.Documents(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files, got %d", len(entries))
	}

	// The default knowledge base stays empty.
	entries, err = svc.Documents(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected the default store empty, got %d", len(entries))
	}
}

func TestSearchKeyword(t *testing.T) {
	svc, _ := newTestService(t, &fakeModel{})
	ctx := context.Background()

	if _, err := svc.Embed(ctx, "the quick brown fox jumps", "fox.txt", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Embed(ctx, "slow green turtle crawls", "turtle.txt", "", ""); err != nil {
		t.Fatal(err)
	}

	results, err := svc.SearchKeyword(ctx, "", "fox", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword hit, got %d", len(results))
	}
	if results[0].Source != "fox.txt" {
		t.Errorf("expected fox.txt, got %s", results[0].Source)
	}
}

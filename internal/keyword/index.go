// Package keyword provides the per-knowledge-base Bleve keyword index.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// Result is a single keyword search hit. ID is the embedded chunk id.
type Result struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// entry is the indexed document shape.
type entry struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Index wraps one Bleve index living inside a knowledge-base directory.
type Index struct {
	index bleve.Index
}

// Open creates or opens the Bleve index at path. An existing index is reused
// so entries survive restarts and knowledge-base switches.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so exact words match.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Add indexes one chunk under id.
func (b *Index) Add(ctx context.Context, id, content, source string) error {
	return b.index.Index(id, &entry{Content: content, Source: source})
}

// Search runs a match query over content and source and returns up to limit hits.
func (b *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"source"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		source, _ := hit.Fields["source"].(string)
		out[i] = &Result{ID: hit.ID, Source: source, Score: hit.Score}
	}
	return out, nil
}

// Delete removes the given ids in one batch.
func (b *Index) Delete(ctx context.Context, ids []string) error {
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// Close releases the index's file locks.
func (b *Index) Close() error {
	return b.index.Close()
}

// Package vectorstore provides the file-backed embedding index and store
// handles for knowledge bases.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kotobalab/honyaku/internal/embedding"
	"github.com/kotobalab/honyaku/internal/models"
)

// IndexFileName is the SQLite file backing an embedding index inside a
// knowledge-base directory. It is the file most likely to hold OS-level locks,
// so directory deletion removes it first.
const IndexFileName = "vectors.sqlite3"

// Index is a file-backed embedding index: one SQLite database holding chunk
// text, metadata, and embeddings, searched by brute-force cosine similarity.
type Index struct {
	db       *sql.DB
	embedder embedding.Embedder
	path     string
}

// OpenIndex opens or creates the embedding index inside dir. The directory is
// created if needed.
func OpenIndex(dir string, embedder embedding.Embedder) (*Index, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	dbPath := filepath.Join(dir, IndexFileName)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Index{db: db, embedder: embedder, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT,
		kb_id TEXT,
		doc_id TEXT,
		added_at TIMESTAMP,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_doc_id ON embeddings(doc_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Add embeds texts and inserts them with their metadata under the given ids.
func (ix *Index) Add(ctx context.Context, texts []string, metas []models.DocumentMeta, ids []string) error {
	if len(texts) != len(metas) || len(texts) != len(ids) {
		return fmt.Errorf("texts, metas, and ids length mismatch")
	}
	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (id, content, source, kb_id, doc_id, added_at, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range texts {
		addedAt := metas[i].AddedAt
		if addedAt.IsZero() {
			addedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			ids[i], texts[i], metas[i].Source, metas[i].KnowledgeBaseID, metas[i].DocID,
			addedAt, float32SliceToBytes(embeddings[i]),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SearchWithScore embeds query and returns the top-k chunks by cosine
// similarity (descending). Fewer than k results are returned when the store
// holds fewer entries.
func (ix *Index) SearchWithScore(ctx context.Context, query string, k int) ([]*models.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	queryVec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT content, source, embedding FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []*models.ScoredChunk
	for rows.Next() {
		var content, source string
		var blob []byte
		if err := rows.Scan(&content, &source, &blob); err != nil {
			return nil, err
		}
		vec := bytesToFloat32Slice(blob)
		scored = append(scored, &models.ScoredChunk{
			Content: content,
			Source:  source,
			Score:   cosineSimilarity(queryVec, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// IDsByDocID returns the ids of all entries whose doc_id matches.
func (ix *Index) IDsByDocID(ctx context.Context, docID string) ([]string, error) {
	return ix.queryIDs(ctx, `SELECT id FROM embeddings WHERE doc_id = ?`, docID)
}

// AllIDs returns every entry id in the store.
func (ix *Index) AllIDs(ctx context.Context) ([]string, error) {
	return ix.queryIDs(ctx, `SELECT id FROM embeddings`)
}

func (ix *Index) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Files returns the distinct source files in the store, first-seen order by
// insertion time, deduplicated by source name.
func (ix *Index) Files(ctx context.Context) ([]*models.FileEntry, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT doc_id, source, added_at FROM embeddings ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var files []*models.FileEntry
	for rows.Next() {
		var docID, source string
		var addedAt time.Time
		if err := rows.Scan(&docID, &source, &addedAt); err != nil {
			return nil, err
		}
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		files = append(files, &models.FileEntry{ID: docID, Filename: source, AddedAt: addedAt})
	}
	return files, rows.Err()
}

// Delete removes the given ids.
func (ix *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM embeddings WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Count returns the number of entries in the store.
func (ix *Index) Count(ctx context.Context) (int64, error) {
	var count int64
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}

// Persist flushes the WAL into the main database file so the on-disk state is
// current.
func (ix *Index) Persist() error {
	_, err := ix.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close closes the database connection. The OS may keep the backing file
// locked briefly after Close returns.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(0, math.Min(1, dot))
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

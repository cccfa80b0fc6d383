package models

import "time"

// DocumentMeta is the metadata stored alongside each embedded chunk.
type DocumentMeta struct {
	Source          string    `json:"source"`
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	DocID           string    `json:"doc_id"`
	AddedAt         time.Time `json:"added_at"`
}

// StoredDocument is one embedded entry as returned by store listings.
type StoredDocument struct {
	ID      string       `json:"id"`
	Content string       `json:"content"`
	Meta    DocumentMeta `json:"meta"`
}

// FileEntry is a distinct source file inside a knowledge base, deduplicated
// from per-chunk metadata.
type FileEntry struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	AddedAt  time.Time `json:"addedAt"`
}

// ScoredChunk is a retrieval hit with its similarity score (cosine, 0-1 for
// normalized embeddings).
type ScoredChunk struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

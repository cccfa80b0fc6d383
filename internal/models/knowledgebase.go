// Package models defines core data structures for knowledge bases, documents, and queries.
package models

// KnowledgeBase is the registry entry for one independently persisted store.
// Path is the on-disk directory holding the store's index files; it is unique
// per id and never reused.
type KnowledgeBase struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"-"`
}

// KnowledgeBaseRecord is the persisted form of a knowledge base, keyed by id
// inside knowledge_bases.json.
type KnowledgeBaseRecord struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

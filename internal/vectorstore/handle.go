package vectorstore

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/kotobalab/honyaku/internal/embedding"
	"github.com/kotobalab/honyaku/internal/keyword"
)

// KeywordDirName is the Bleve index directory inside a knowledge-base directory.
const KeywordDirName = "keyword.bleve"

// Handle owns the open indices of one knowledge base: the embedding index and
// the keyword index, both bound to one on-disk directory. Exactly one handle
// is active process-wide; temporary handles are request-scoped and must be
// closed by the request that opened them on every exit path.
type Handle struct {
	dir     string
	index   *Index
	keyword *keyword.Index

	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) the store at dir.
func Open(dir string, embedder embedding.Embedder) (*Handle, error) {
	index, err := OpenIndex(dir, embedder)
	if err != nil {
		return nil, err
	}
	kw, err := keyword.Open(keywordPath(dir))
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	return &Handle{dir: dir, index: index, keyword: kw}, nil
}

func keywordPath(dir string) string {
	return filepath.Join(dir, KeywordDirName)
}

// Dir returns the knowledge-base directory this handle is bound to.
func (h *Handle) Dir() string {
	return h.dir
}

// Index returns the embedding index.
func (h *Handle) Index() *Index {
	return h.index
}

// Keyword returns the keyword index.
func (h *Handle) Keyword() *keyword.Index {
	return h.keyword
}

// Close closes both indices. Safe to call more than once; closing does not
// guarantee the OS releases the backing files immediately.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return errors.Join(h.index.Close(), h.keyword.Close())
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

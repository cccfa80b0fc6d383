package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kotobalab/honyaku/internal/models"
)

const (
	// DefaultID is the id of the built-in knowledge base. It always exists
	// and cannot be deleted.
	DefaultID = "default"

	registryFileName = "knowledge_bases.json"
)

// Registry persists knowledge-base metadata as a JSON file under the storage
// root. The default entry is seeded on first load. Every operation is a full
// read-modify-write of the file, so a single mutex serializes all access.
type Registry struct {
	root string

	mu sync.Mutex
}

// NewRegistry creates a registry rooted at the given storage directory.
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the storage directory that holds all knowledge-base stores.
func (r *Registry) Root() string {
	return r.root
}

func (r *Registry) registryPath() string {
	return filepath.Join(r.root, registryFileName)
}

func (r *Registry) defaultRecord() models.KnowledgeBaseRecord {
	return models.KnowledgeBaseRecord{
		Name:        "Default Knowledge Base",
		Description: "The default knowledge base",
		Path:        filepath.Join(r.root, DefaultID),
	}
}

func (r *Registry) load() (map[string]models.KnowledgeBaseRecord, error) {
	data, err := os.ReadFile(r.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]models.KnowledgeBaseRecord{
				DefaultID: r.defaultRecord(),
			}, nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	records := make(map[string]models.KnowledgeBaseRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if _, ok := records[DefaultID]; !ok {
		records[DefaultID] = r.defaultRecord()
	}
	return records, nil
}

func (r *Registry) save(records map[string]models.KnowledgeBaseRecord) error {
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	if err := os.WriteFile(r.registryPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// List returns all knowledge bases, default first, then sorted by name.
func (r *Registry) List() ([]*models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}

	bases := make([]*models.KnowledgeBase, 0, len(records))
	for id, rec := range records {
		bases = append(bases, &models.KnowledgeBase{
			ID:          id,
			Name:        rec.Name,
			Description: rec.Description,
			Path:        rec.Path,
		})
	}
	sort.Slice(bases, func(i, j int) bool {
		if bases[i].ID == DefaultID {
			return true
		}
		if bases[j].ID == DefaultID {
			return false
		}
		if bases[i].Name != bases[j].Name {
			return bases[i].Name < bases[j].Name
		}
		return bases[i].ID < bases[j].ID
	})
	return bases, nil
}

// Get returns the knowledge base with the given id.
func (r *Registry) Get(id string) (*models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := records[id]
	if !ok {
		return nil, fmt.Errorf("%w: knowledge base %q", ErrNotFound, id)
	}
	return &models.KnowledgeBase{
		ID:          id,
		Name:        rec.Name,
		Description: rec.Description,
		Path:        rec.Path,
	}, nil
}

// Create registers a new knowledge base with a generated id and creates its
// store directory. The entry is persisted before the directory is made so a
// concurrent orphan sweep never sees a live directory without a registry
// entry.
func (r *Registry) Create(name, description string) (*models.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	path := filepath.Join(r.root, id)
	records[id] = models.KnowledgeBaseRecord{
		Name:        name,
		Description: description,
		Path:        path,
	}
	if err := r.save(records); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		delete(records, id)
		_ = r.save(records)
		return nil, fmt.Errorf("failed to create knowledge base directory: %w", err)
	}
	return &models.KnowledgeBase{ID: id, Name: name, Description: description, Path: path}, nil
}

// Delete removes a knowledge base from the registry. The default knowledge
// base cannot be deleted.
func (r *Registry) Delete(id string) error {
	if id == DefaultID {
		return fmt.Errorf("%w: cannot delete the default knowledge base", ErrInvalidOperation)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := records[id]; !ok {
		return fmt.Errorf("%w: knowledge base %q", ErrNotFound, id)
	}
	delete(records, id)
	return r.save(records)
}

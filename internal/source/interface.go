package source

import (
	"context"
	"fmt"
	"sync"
)

// Document is one source record: an arbitrary field-value mapping with a
// unique id and an optional modification timestamp.
type Document map[string]interface{}

// ID returns the document's unique identifier as a string.
func (d Document) ID() string {
	if v, ok := d["_id"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// ModifiedAt returns the document's last-modified marker used for
// fingerprinting: _upload_timestamp with updated_at as the fallback field.
func (d Document) ModifiedAt() string {
	if v, ok := d["_upload_timestamp"]; ok {
		return fmt.Sprintf("%v", v)
	}
	if v, ok := d["updated_at"]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// DocumentSource defines the read-only interface for one source database.
type DocumentSource interface {
	// Name returns the human-readable database name.
	Name() string

	// ListCollections returns the collection names in the database.
	ListCollections(ctx context.Context) ([]string, error)

	// CountDocuments returns the number of documents in a collection.
	CountDocuments(ctx context.Context, collection string) (int64, error)

	// FindDocuments returns documents in natural storage order.
	// A non-positive limit returns every document.
	FindDocuments(ctx context.Context, collection string, limit int64) ([]Document, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Registry maps source-database keys to their document sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]DocumentSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]DocumentSource)}
}

// Register adds or replaces the source for a db key.
func (r *Registry) Register(dbKey string, src DocumentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[dbKey] = src
}

// Get returns the source for a db key.
func (r *Registry) Get(dbKey string) (DocumentSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[dbKey]
	return src, ok
}

// Keys returns all registered db keys.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sources))
	for k := range r.sources {
		keys = append(keys, k)
	}
	return keys
}

// Remove deregisters a db key and returns its source, if any.
func (r *Registry) Remove(dbKey string) (DocumentSource, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[dbKey]
	if ok {
		delete(r.sources, dbKey)
	}
	return src, ok
}

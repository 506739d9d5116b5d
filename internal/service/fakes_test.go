package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/repository"
	"github.com/synapse-db/synapse/internal/source"
	"gorm.io/gorm"
)

// fakeEmbedder returns a deterministic vector per text and counts API calls.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text, task string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	// Deterministic, text-dependent, non-normalized.
	var sum float32
	for _, r := range text {
		sum += float32(r)
	}
	return []float32{sum, 1, 2}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSource serves fixed documents from memory.
type fakeSource struct {
	name        string
	collections map[string][]source.Document
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *fakeSource) CountDocuments(ctx context.Context, collection string) (int64, error) {
	return int64(len(f.collections[collection])), nil
}

func (f *fakeSource) FindDocuments(ctx context.Context, collection string, limit int64) ([]source.Document, error) {
	docs := f.collections[collection]
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	out := make([]source.Document, len(docs))
	copy(out, docs)
	return out, nil
}

func (f *fakeSource) Close(ctx context.Context) error { return nil }

// fakeIndex is an in-memory vector index.
type fakeCollection struct {
	dimension int
	points    map[string]domain.VectorPoint
}

type fakeIndex struct {
	mu          sync.Mutex
	collections map[string]*fakeCollection
	upsertErrs  int // next N upserts fail
	upsertCalls int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{collections: make(map[string]*fakeCollection)}
}

func (f *fakeIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeIndex) CollectionInfo(ctx context.Context, name string) (*repository.CollectionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", name)
	}
	return &repository.CollectionStats{
		Dimension:  col.dimension,
		PointCount: int64(len(col.points)),
	}, nil
}

func (f *fakeIndex) CreateCollection(ctx context.Context, name string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = &fakeCollection{
		dimension: dimension,
		points:    make(map[string]domain.VectorPoint),
	}
	return nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

func (f *fakeIndex) UpsertBatch(ctx context.Context, collection string, points []domain.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.upsertErrs > 0 {
		f.upsertErrs--
		return fmt.Errorf("transient upsert failure")
	}
	col, ok := f.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s not found", collection)
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

func (f *fakeIndex) ScrollPairPointIDs(ctx context.Context, collection, dbKey, sourceCollection string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return nil, nil
	}
	var ids []string
	for id, p := range col.points {
		if p.Payload.DBKey == dbKey && p.Payload.SourceCollection == sourceCollection {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeIndex) DeletePoints(ctx context.Context, collection string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s not found", collection)
	}
	for _, id := range ids {
		delete(col.points, id)
	}
	return nil
}

func (f *fakeIndex) pointCount(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return 0
	}
	return len(col.points)
}

func (f *fakeIndex) pairPoints(collection, dbKey, sourceCollection string) []domain.VectorPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	col, ok := f.collections[collection]
	if !ok {
		return nil
	}
	var out []domain.VectorPoint
	for _, p := range col.points {
		if p.Payload.DBKey == dbKey && p.Payload.SourceCollection == sourceCollection {
			out = append(out, p)
		}
	}
	return out
}

// fakeStateStore keeps vectorization state in a map.
type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.VectorizationState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*domain.VectorizationState)}
}

func stateKey(dbKey, collection string) string { return dbKey + "/" + collection }

func (f *fakeStateStore) Get(ctx context.Context, dbKey, collection string) (*domain.VectorizationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[stateKey(dbKey, collection)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *state
	return &copied, nil
}

func (f *fakeStateStore) Upsert(ctx context.Context, state *domain.VectorizationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *state
	f.states[stateKey(state.DBKey, state.Collection)] = &copied
	return nil
}

func (f *fakeStateStore) Delete(ctx context.Context, dbKey, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, stateKey(dbKey, collection))
	return nil
}

func (f *fakeStateStore) DeleteByDBKey(ctx context.Context, dbKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, state := range f.states {
		if state.DBKey == dbKey {
			delete(f.states, key)
		}
	}
	return nil
}

func (f *fakeStateStore) DeleteAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = make(map[string]*domain.VectorizationState)
	return nil
}

func (f *fakeStateStore) List(ctx context.Context, dbKey string) ([]domain.VectorizationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.VectorizationState
	for _, state := range f.states {
		if dbKey == "" || state.DBKey == dbKey {
			out = append(out, *state)
		}
	}
	return out, nil
}

// fakeShardStore keeps shard mappings in a map.
type fakeShardStore struct {
	mu       sync.Mutex
	mappings map[string]*domain.ShardMapping
}

func newFakeShardStore() *fakeShardStore {
	return &fakeShardStore{mappings: make(map[string]*domain.ShardMapping)}
}

func (f *fakeShardStore) Get(ctx context.Context, dbKey string) (*domain.ShardMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mapping, ok := f.mappings[dbKey]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *mapping
	return &copied, nil
}

func (f *fakeShardStore) Create(ctx context.Context, mapping *domain.ShardMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *mapping
	f.mappings[mapping.DBKey] = &copied
	return nil
}

func (f *fakeShardStore) Upsert(ctx context.Context, mapping *domain.ShardMapping) error {
	return f.Create(ctx, mapping)
}

func (f *fakeShardStore) UpdateVectorCount(ctx context.Context, dbKey string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mapping, ok := f.mappings[dbKey]; ok {
		mapping.VectorCount = count
	}
	return nil
}

func (f *fakeShardStore) List(ctx context.Context) ([]domain.ShardMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ShardMapping
	for _, mapping := range f.mappings {
		out = append(out, *mapping)
	}
	return out, nil
}

func (f *fakeShardStore) Delete(ctx context.Context, dbKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mappings, dbKey)
	return nil
}

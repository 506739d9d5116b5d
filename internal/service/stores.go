package service

import (
	"context"

	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/repository"
)

// VectorIndex is the subset of vector-index operations the engine uses.
// Implemented by repository.QdrantRepository.
type VectorIndex interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CollectionInfo(ctx context.Context, name string) (*repository.CollectionStats, error)
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
	UpsertBatch(ctx context.Context, collection string, points []domain.VectorPoint) error
	ScrollPairPointIDs(ctx context.Context, collection, dbKey, sourceCollection string) ([]string, error)
	DeletePoints(ctx context.Context, collection string, ids []string) error
}

// ShardStore persists shard mappings. Implemented by repository.ShardRepository.
type ShardStore interface {
	Get(ctx context.Context, dbKey string) (*domain.ShardMapping, error)
	Create(ctx context.Context, mapping *domain.ShardMapping) error
	Upsert(ctx context.Context, mapping *domain.ShardMapping) error
	UpdateVectorCount(ctx context.Context, dbKey string, count int64) error
	List(ctx context.Context) ([]domain.ShardMapping, error)
	Delete(ctx context.Context, dbKey string) error
}

// StateStore persists vectorization state. Implemented by repository.StateRepository.
type StateStore interface {
	Get(ctx context.Context, dbKey, collection string) (*domain.VectorizationState, error)
	Upsert(ctx context.Context, state *domain.VectorizationState) error
	Delete(ctx context.Context, dbKey, collection string) error
	DeleteByDBKey(ctx context.Context, dbKey string) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context, dbKey string) ([]domain.VectorizationState, error)
}

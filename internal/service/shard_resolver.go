package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/logger"
	"gorm.io/gorm"
)

// ShardResolver maps a source-database key to its dedicated vector-index
// collection. Mappings are created lazily on first reference and memoized in
// the shard store; the index collection always exists (with the right
// dimension) by the time Resolve returns.
type ShardResolver struct {
	shards    ShardStore
	index     VectorIndex
	prefix    string
	dimension int
}

// NewShardResolver creates a new ShardResolver.
func NewShardResolver(shards ShardStore, index VectorIndex, prefix string, dimension int) *ShardResolver {
	return &ShardResolver{
		shards:    shards,
		index:     index,
		prefix:    prefix,
		dimension: dimension,
	}
}

// ShardName derives the deterministic index-collection name for a db key.
func (r *ShardResolver) ShardName(dbKey string) string {
	return r.prefix + dbKey
}

// Dimension returns the embedding dimension shards are created with.
func (r *ShardResolver) Dimension() int {
	return r.dimension
}

// Resolve returns the shard collection name for a db key, creating the index
// collection and the persisted mapping on first reference. Idempotent.
//
// The mapping row is only written after the index collection exists, so a
// creation failure never leaves a mapping referencing a missing collection.
func (r *ShardResolver) Resolve(ctx context.Context, dbKey string) (string, error) {
	name := r.ShardName(dbKey)

	recreated, err := r.ensureCollection(ctx, name)
	if err != nil {
		return "", err
	}

	_, err = r.shards.Get(ctx, dbKey)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		mapping := &domain.ShardMapping{
			DBKey:      dbKey,
			Collection: name,
			Dimension:  r.dimension,
			CreatedAt:  time.Now(),
		}
		if err := r.shards.Create(ctx, mapping); err != nil {
			return "", fmt.Errorf("failed to persist shard mapping for %s: %w", dbKey, err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to load shard mapping for %s: %w", dbKey, err)
	case recreated:
		if err := r.shards.UpdateVectorCount(ctx, dbKey, 0); err != nil {
			return "", fmt.Errorf("failed to reset shard vector count for %s: %w", dbKey, err)
		}
	}

	return name, nil
}

// ensureCollection makes sure the named collection exists with the configured
// dimension. A dimension mismatch deletes and recreates the collection empty:
// every point previously stored for that database is lost and must be
// resynced.
func (r *ShardResolver) ensureCollection(ctx context.Context, name string) (bool, error) {
	exists, err := r.index.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}

	recreated := false
	if exists {
		info, err := r.index.CollectionInfo(ctx, name)
		if err != nil {
			return false, err
		}
		if info.Dimension != r.dimension {
			logger.CtxWarn(ctx,
				"Shard %s dimension mismatch: expected %d, got %d — deleting and recreating, all existing vectors are lost",
				name, r.dimension, info.Dimension)
			if err := r.index.DeleteCollection(ctx, name); err != nil {
				return false, err
			}
			exists = false
			recreated = true
		}
	}

	if !exists {
		if err := r.index.CreateCollection(ctx, name, r.dimension); err != nil {
			return recreated, err
		}
	}

	return recreated, nil
}

// RecreateShard drops the shard for a db key and recreates it empty,
// resetting the cached vector count. Used by database-scoped vector clearing.
func (r *ShardResolver) RecreateShard(ctx context.Context, dbKey string) (string, error) {
	name := r.ShardName(dbKey)

	exists, err := r.index.CollectionExists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists {
		if err := r.index.DeleteCollection(ctx, name); err != nil {
			return "", err
		}
	}
	if err := r.index.CreateCollection(ctx, name, r.dimension); err != nil {
		return "", err
	}
	if err := r.shards.UpdateVectorCount(ctx, dbKey, 0); err != nil {
		return "", err
	}

	return name, nil
}

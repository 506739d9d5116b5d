package repository

import (
	"context"

	"github.com/synapse-db/synapse/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShardRepository persists the mapping from source-database keys to their
// dedicated vector-index collections.
type ShardRepository struct {
	db *gorm.DB
}

// NewShardRepository creates a new ShardRepository.
func NewShardRepository(db *gorm.DB) *ShardRepository {
	return &ShardRepository{db: db}
}

// Get returns the shard mapping for a db key.
// Returns gorm.ErrRecordNotFound when no mapping exists yet.
func (r *ShardRepository) Get(ctx context.Context, dbKey string) (*domain.ShardMapping, error) {
	var mapping domain.ShardMapping
	err := r.db.WithContext(ctx).Where("db_key = ?", dbKey).First(&mapping).Error
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// Create persists a new shard mapping.
func (r *ShardRepository) Create(ctx context.Context, mapping *domain.ShardMapping) error {
	return r.db.WithContext(ctx).Create(mapping).Error
}

// UpdateVectorCount refreshes the cached vector count for a db key.
func (r *ShardRepository) UpdateVectorCount(ctx context.Context, dbKey string, count int64) error {
	return r.db.WithContext(ctx).
		Model(&domain.ShardMapping{}).
		Where("db_key = ?", dbKey).
		Update("vector_count", count).Error
}

// Upsert inserts or replaces the shard mapping for its db key.
func (r *ShardRepository) Upsert(ctx context.Context, mapping *domain.ShardMapping) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "db_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"collection", "dimension", "vector_count"}),
		}).
		Create(mapping).Error
}

// List returns all shard mappings ordered by db key.
func (r *ShardRepository) List(ctx context.Context) ([]domain.ShardMapping, error) {
	var mappings []domain.ShardMapping
	if err := r.db.WithContext(ctx).Order("db_key").Find(&mappings).Error; err != nil {
		return nil, err
	}
	return mappings, nil
}

// Delete removes the shard mapping for a db key.
func (r *ShardRepository) Delete(ctx context.Context, dbKey string) error {
	return r.db.WithContext(ctx).
		Where("db_key = ?", dbKey).
		Delete(&domain.ShardMapping{}).Error
}

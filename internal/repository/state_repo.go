package repository

import (
	"context"

	"github.com/synapse-db/synapse/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateRepository persists VectorizationState records in the metadata store.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the state record for a (db key, collection) pair.
// Returns gorm.ErrRecordNotFound when the collection has never been synced.
func (r *StateRepository) Get(ctx context.Context, dbKey, collection string) (*domain.VectorizationState, error) {
	var state domain.VectorizationState
	err := r.db.WithContext(ctx).
		Where("db_key = ? AND collection = ?", dbKey, collection).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Upsert inserts or replaces the state record for its (db key, collection) pair.
func (r *StateRepository) Upsert(ctx context.Context, state *domain.VectorizationState) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "db_key"}, {Name: "collection"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_count", "vector_count", "text_fields", "chunk_size",
				"overlap", "content_fingerprint", "last_synced", "status",
			}),
		}).
		Create(state).Error
}

// Delete removes the state record for a (db key, collection) pair.
func (r *StateRepository) Delete(ctx context.Context, dbKey, collection string) error {
	return r.db.WithContext(ctx).
		Where("db_key = ? AND collection = ?", dbKey, collection).
		Delete(&domain.VectorizationState{}).Error
}

// DeleteByDBKey removes all state records for one source database.
func (r *StateRepository) DeleteByDBKey(ctx context.Context, dbKey string) error {
	return r.db.WithContext(ctx).
		Where("db_key = ?", dbKey).
		Delete(&domain.VectorizationState{}).Error
}

// DeleteAll removes every state record.
func (r *StateRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&domain.VectorizationState{}).Error
}

// List returns state records, optionally filtered by db key.
func (r *StateRepository) List(ctx context.Context, dbKey string) ([]domain.VectorizationState, error) {
	var states []domain.VectorizationState
	query := r.db.WithContext(ctx)
	if dbKey != "" {
		query = query.Where("db_key = ?", dbKey)
	}
	if err := query.Order("db_key, collection").Find(&states).Error; err != nil {
		return nil, err
	}
	return states, nil
}

package repository

import (
	"context"
	"time"

	"github.com/synapse-db/synapse/internal/domain"
	"gorm.io/gorm"
)

// ConnectionRepository persists source-database connection records.
type ConnectionRepository struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Get returns the connection record for a key.
func (r *ConnectionRepository) Get(ctx context.Context, key string) (*domain.DatabaseConnection, error) {
	var conn domain.DatabaseConnection
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&conn).Error
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// List returns all connection records ordered by key.
func (r *ConnectionRepository) List(ctx context.Context) ([]domain.DatabaseConnection, error) {
	var conns []domain.DatabaseConnection
	if err := r.db.WithContext(ctx).Order("key").Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// Create persists a new connection record.
func (r *ConnectionRepository) Create(ctx context.Context, conn *domain.DatabaseConnection) error {
	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now
	return r.db.WithContext(ctx).Create(conn).Error
}

// Delete removes the connection record for a key.
func (r *ConnectionRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&domain.DatabaseConnection{}).Error
}

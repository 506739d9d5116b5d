package domain

import "time"

// ShardMapping assigns one vector-index collection to a source database.
// The dimension is fixed at creation time; a mismatch discovered later forces
// the shard to be recreated empty.
type ShardMapping struct {
	DBKey       string    `gorm:"type:text;primaryKey" json:"db_key"`
	Collection  string    `gorm:"type:text;not null;uniqueIndex:idx_shard_collection" json:"collection"`
	Dimension   int       `gorm:"not null" json:"dimension"`
	VectorCount int64     `gorm:"default:0" json:"vector_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ShardMapping.
func (ShardMapping) TableName() string {
	return "shard_mappings"
}

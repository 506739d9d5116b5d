package domain

import "time"

// DatabaseConnection is a persisted source-database connection record.
// Rows are loaded at startup to build the source registry and written when a
// caller registers a new database.
type DatabaseConnection struct {
	Key         string    `gorm:"type:text;primaryKey" json:"key"`
	URI         string    `gorm:"type:text;not null" json:"uri"`
	Database    string    `gorm:"type:text;not null" json:"database"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for DatabaseConnection.
func (DatabaseConnection) TableName() string {
	return "database_connections"
}

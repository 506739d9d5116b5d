package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SyncStatus represents the lifecycle status of a collection's vectorization.
// Values include SyncStatusCompleted and SyncStatusFailed.
type SyncStatus string

const (
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// VectorizationState records the last successful sync of one source collection.
// A row exists if and only if the (db_key, collection) pair has been synced at
// least once; it is upserted on every subsequent sync and deleted when the
// collection's vectors are explicitly cleared.
type VectorizationState struct {
	ID                 uint        `gorm:"primaryKey" json:"-"`
	DBKey              string      `gorm:"type:text;not null;uniqueIndex:idx_vector_state_key" json:"db_key"`
	Collection         string      `gorm:"type:text;not null;uniqueIndex:idx_vector_state_key" json:"collection"`
	DocumentCount      int         `json:"document_count"`
	VectorCount        int         `json:"vector_count"`
	TextFields         StringArray `gorm:"type:text" json:"text_fields"`
	ChunkSize          int         `json:"chunk_size"`
	Overlap            int         `json:"overlap"`
	ContentFingerprint string      `gorm:"type:text" json:"content_fingerprint"`
	LastSynced         time.Time   `json:"last_synced"`
	Status             SyncStatus  `gorm:"type:text;default:completed" json:"status"`
}

// TableName returns the database table name for VectorizationState.
func (VectorizationState) TableName() string {
	return "vector_state"
}

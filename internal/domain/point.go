package domain

import "time"

// PointPayload is the provenance payload stored alongside every vector.
// db_key + source_collection drive filtered deletion; source_doc_id and
// chunk_index tie a point back to its position in the source document.
type PointPayload struct {
	DBKey            string    `json:"db_key"`
	SourceCollection string    `json:"source_collection"`
	SourceDocID      string    `json:"source_doc_id"`
	ChunkIndex       int       `json:"chunk_index"`
	Text             string    `json:"text"`
	TextFields       []string  `json:"text_fields"`
	DBName           string    `json:"db_name"`
	CreatedAt        time.Time `json:"created_at"`
}

// VectorPoint is one embedding plus its payload, the atomic unit written to
// the vector index. IDs are freshly generated UUIDs and never reused.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload PointPayload
}

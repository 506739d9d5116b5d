package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/source"
	"gorm.io/gorm"
)

// fingerprintSampleSize bounds how many documents feed the content
// fingerprint. Edits confined to documents beyond the sample window in larger
// collections go undetected; a known limitation carried over deliberately.
const fingerprintSampleSize = 100

// SyncAction tells the orchestrator what kind of work a collection needs.
type SyncAction string

const (
	ActionVectorize  SyncAction = "vectorize"
	ActionFullResync SyncAction = "clear_and_revectorize"
	ActionAppend     SyncAction = "append_vectors"
)

// Decision reasons reported to callers.
const (
	ReasonForced          = "forced"
	ReasonEmptyCollection = "empty_collection"
	ReasonNeverVectorized = "never_vectorized"
	ReasonContentChanged  = "content_changed"
	ReasonNewDocuments    = "new_documents"
	ReasonUpToDate        = "up_to_date"
)

// SyncDecision is the outcome of a change-detection check.
type SyncDecision struct {
	Required      bool       `json:"needs_sync"`
	Reason        string     `json:"reason"`
	Action        SyncAction `json:"action,omitempty"`
	PreviousCount int        `json:"previous_count,omitempty"`
	CurrentCount  int        `json:"current_count,omitempty"`
	NewDocuments  int        `json:"new_documents,omitempty"`
}

// StateManager owns VectorizationState records and decides whether a
// collection needs a (re)sync.
type StateManager struct {
	states  StateStore
	sources *source.Registry
}

// NewStateManager creates a new StateManager.
func NewStateManager(states StateStore, sources *source.Registry) *StateManager {
	return &StateManager{states: states, sources: sources}
}

// GetState returns the state record for a pair, or nil when never synced.
func (m *StateManager) GetState(ctx context.Context, dbKey, collection string) (*domain.VectorizationState, error) {
	state, err := m.states.Get(ctx, dbKey, collection)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vectorization state: %w", err)
	}
	return state, nil
}

// SaveState upserts the state record for its (db key, collection) pair.
func (m *StateManager) SaveState(ctx context.Context, state *domain.VectorizationState) error {
	if err := m.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to save vectorization state: %w", err)
	}
	return nil
}

// ClearState deletes the state record for a pair.
func (m *StateManager) ClearState(ctx context.Context, dbKey, collection string) error {
	if err := m.states.Delete(ctx, dbKey, collection); err != nil {
		return fmt.Errorf("failed to clear vectorization state: %w", err)
	}
	return nil
}

// ComputeFingerprint hashes the identity and modification time of up to the
// first fingerprintSampleSize documents, in natural storage order.
func (m *StateManager) ComputeFingerprint(ctx context.Context, dbKey, collection string) (string, error) {
	src, ok := m.sources.Get(dbKey)
	if !ok {
		return "", ErrDatabaseNotFound
	}

	docs, err := src.FindDocuments(ctx, collection, fingerprintSampleSize)
	if err != nil {
		return "", fmt.Errorf("failed to sample documents for fingerprint: %w", err)
	}

	h := md5.New()
	for _, doc := range docs {
		h.Write([]byte(doc.ID()))
		h.Write([]byte(doc.ModifiedAt()))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NeedsSync decides whether a collection requires work, in fixed order:
// force wins; an empty source collection never needs work; a missing state
// record means an initial vectorize; a fingerprint change forces a full
// resync; a grown document count asks for an append; otherwise up to date.
func (m *StateManager) NeedsSync(ctx context.Context, dbKey, collection string, force bool) (*SyncDecision, error) {
	if force {
		return &SyncDecision{
			Required: true,
			Reason:   ReasonForced,
			Action:   ActionFullResync,
		}, nil
	}

	src, ok := m.sources.Get(dbKey)
	if !ok {
		return nil, ErrDatabaseNotFound
	}

	currentCount, err := src.CountDocuments(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if currentCount == 0 {
		return &SyncDecision{
			Required: false,
			Reason:   ReasonEmptyCollection,
		}, nil
	}

	state, err := m.GetState(ctx, dbKey, collection)
	if err != nil {
		return nil, err
	}

	if state == nil {
		return &SyncDecision{
			Required:     true,
			Reason:       ReasonNeverVectorized,
			Action:       ActionVectorize,
			CurrentCount: int(currentCount),
		}, nil
	}

	fingerprint, err := m.ComputeFingerprint(ctx, dbKey, collection)
	if err != nil {
		return nil, err
	}

	if state.ContentFingerprint != fingerprint {
		return &SyncDecision{
			Required:      true,
			Reason:        ReasonContentChanged,
			Action:        ActionFullResync,
			PreviousCount: state.DocumentCount,
			CurrentCount:  int(currentCount),
		}, nil
	}

	if int(currentCount) > state.DocumentCount {
		return &SyncDecision{
			Required:      true,
			Reason:        ReasonNewDocuments,
			Action:        ActionAppend,
			PreviousCount: state.DocumentCount,
			CurrentCount:  int(currentCount),
			NewDocuments:  int(currentCount) - state.DocumentCount,
		}, nil
	}

	return &SyncDecision{
		Required:     false,
		Reason:       ReasonUpToDate,
		CurrentCount: int(currentCount),
	}, nil
}

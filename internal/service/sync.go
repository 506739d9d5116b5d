package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/synapse-db/synapse/internal/config"
	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/logger"
	"github.com/synapse-db/synapse/internal/source"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Streaming stages emitted while a sync runs, in order of appearance.
const (
	StageInit          = "init"
	StageSkipped       = "skipped"
	StageClearing      = "clearing"
	StageCleared       = "cleared"
	StageLoaded        = "loaded"
	StageProcessing    = "processing"
	StageBatchUploaded = "batch_uploaded"
	StageFinalBatch    = "final_batch"
	StageSavingState   = "saving_state"
	StageComplete      = "complete"
	StageError         = "error"
)

// systemCollections never hold user content and are excluded from sync-all
// and change detection sweeps.
var systemCollections = map[string]struct{}{
	"vector_state": {},
	"query_memory": {},
	"dashboards":   {},
	"simulations":  {},
}

// IsSystemCollection reports whether a collection is engine-internal.
func IsSystemCollection(name string) bool {
	_, ok := systemCollections[name]
	return ok
}

// SyncRequest describes one collection sync. Zero-valued chunking and batch
// fields fall back to the engine defaults.
type SyncRequest struct {
	DBKey        string   `json:"db_key"`
	Collection   string   `json:"collection"`
	TextFields   []string `json:"text_fields,omitempty"`
	ChunkSize    int      `json:"chunk_size,omitempty"`
	Overlap      int      `json:"overlap,omitempty"`
	BatchSize    int      `json:"batch_size,omitempty"`
	MaxDocuments int      `json:"max_documents,omitempty"`
	Force        bool     `json:"force,omitempty"`
}

// SyncResult summarizes a finished (or skipped) sync.
type SyncResult struct {
	DBKey              string   `json:"db_key"`
	Collection         string   `json:"collection"`
	Shard              string   `json:"shard,omitempty"`
	Skipped            bool     `json:"skipped"`
	Reason             string   `json:"reason"`
	Action             string   `json:"action,omitempty"`
	TextFields         []string `json:"text_fields,omitempty"`
	DocumentsProcessed int      `json:"documents_processed"`
	ChunksWritten      int      `json:"chunks_written"`
	VectorsCleared     int      `json:"vectors_cleared"`
	DurationMs         int64    `json:"duration_ms"`
	Error              string   `json:"error,omitempty"`
}

// ProgressEvent is one streamed status update. Only fields relevant to the
// stage are populated.
type ProgressEvent struct {
	Stage         string `json:"stage"`
	Message       string `json:"message,omitempty"`
	DBKey         string `json:"db_key,omitempty"`
	Collection    string `json:"collection,omitempty"`
	Shard         string `json:"shard,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Total         int    `json:"total,omitempty"`
	Processed     int    `json:"processed,omitempty"`
	Progress      int    `json:"progress,omitempty"`
	BatchSize     int    `json:"batch_size,omitempty"`
	ChunksWritten int    `json:"chunks_written,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CollectionStatus pairs a collection's stored state with a fresh change
// detection decision.
type CollectionStatus struct {
	DBKey      string                     `json:"db_key"`
	Collection string                     `json:"collection"`
	State      *domain.VectorizationState `json:"state,omitempty"`
	Decision   *SyncDecision              `json:"decision"`
}

// SyncAllResult aggregates a full-database sweep.
type SyncAllResult struct {
	DBKey       string       `json:"db_key"`
	Collections []SyncResult `json:"collections"`
	Synced      int          `json:"synced"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
}

// ClearResult reports what a clear operation removed.
type ClearResult struct {
	Scope          string   `json:"scope"`
	DBKey          string   `json:"db_key,omitempty"`
	Collection     string   `json:"collection,omitempty"`
	VectorsCleared int      `json:"vectors_cleared"`
	ShardsReset    []string `json:"shards_reset,omitempty"`
}

// SyncService orchestrates the full vector lifecycle: change detection, text
// extraction, chunking, embedding, and batched index writes.
type SyncService struct {
	sources   *source.Registry
	index     VectorIndex
	embedding *EmbeddingService
	state     *StateManager
	resolver  *ShardResolver
	shards    ShardStore
	locks     *keyedLock

	chunkSize  int
	overlap    int
	batchSize  int
	workers    int
	retryCount int
}

// NewSyncService creates a new sync orchestrator.
func NewSyncService(sources *source.Registry, index VectorIndex, embedding *EmbeddingService, state *StateManager, resolver *ShardResolver, shards ShardStore, cfg *config.SyncConfig) *SyncService {
	return &SyncService{
		sources:    sources,
		index:      index,
		embedding:  embedding,
		state:      state,
		resolver:   resolver,
		shards:     shards,
		locks:      newKeyedLock(),
		chunkSize:  cfg.ChunkSize,
		overlap:    cfg.Overlap,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
		retryCount: cfg.RetryCount,
	}
}

// Embedding exposes the embedding service for query-side callers.
func (s *SyncService) Embedding() *EmbeddingService {
	return s.embedding
}

// Sync runs a single-collection sync to completion without streaming.
func (s *SyncService) Sync(ctx context.Context, req *SyncRequest) (*SyncResult, error) {
	return s.run(ctx, req, nil)
}

// SyncStream runs a single-collection sync, emitting progress events on ch.
// The channel is closed when the sync finishes, successfully or not.
func (s *SyncService) SyncStream(ctx context.Context, req *SyncRequest, ch chan<- ProgressEvent) (*SyncResult, error) {
	defer close(ch)
	return s.run(ctx, req, ch)
}

func (s *SyncService) run(ctx context.Context, req *SyncRequest, events chan<- ProgressEvent) (*SyncResult, error) {
	start := time.Now()
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldSyncID:     uuid.New().String(),
		logger.FieldDBKey:      req.DBKey,
		logger.FieldCollection: req.Collection,
	})

	chunkSize, overlap, batchSize := s.effectiveParams(req)
	if err := config.ValidateChunking(chunkSize, overlap); err != nil {
		s.emitError(ctx, events, req, err)
		return nil, err
	}

	lockKey := req.DBKey + "/" + req.Collection
	if !s.locks.TryAcquire(lockKey) {
		s.emitError(ctx, events, req, ErrSyncInProgress)
		return nil, ErrSyncInProgress
	}
	defer s.locks.Release(lockKey)

	s.emit(ctx, events, ProgressEvent{
		Stage:      StageInit,
		DBKey:      req.DBKey,
		Collection: req.Collection,
		Message:    "Checking vectorization state",
	})

	decision, err := s.state.NeedsSync(ctx, req.DBKey, req.Collection, req.Force)
	if err != nil {
		s.emitError(ctx, events, req, err)
		return nil, err
	}

	result := &SyncResult{
		DBKey:      req.DBKey,
		Collection: req.Collection,
		Reason:     decision.Reason,
		Action:     string(decision.Action),
	}

	if !decision.Required {
		result.Skipped = true
		result.DurationMs = time.Since(start).Milliseconds()
		logger.CtxInfo(ctx, "Sync skipped: %s", decision.Reason)
		s.emit(ctx, events, ProgressEvent{
			Stage:      StageSkipped,
			DBKey:      req.DBKey,
			Collection: req.Collection,
			Reason:     decision.Reason,
		})
		return result, nil
	}

	// The source must exist before any shard is materialized; an unknown db
	// key is a clean not-found, never a fresh empty shard.
	src, ok := s.sources.Get(req.DBKey)
	if !ok {
		s.emitError(ctx, events, req, ErrDatabaseNotFound)
		return nil, ErrDatabaseNotFound
	}

	shard, err := s.resolver.Resolve(ctx, req.DBKey)
	if err != nil {
		s.emitError(ctx, events, req, err)
		return nil, err
	}
	result.Shard = shard

	// Appends rebuild the pair from scratch too. Re-embedding every document
	// with fresh point IDs without clearing first would duplicate the
	// collection's existing vectors.
	if decision.Action == ActionFullResync || decision.Action == ActionAppend {
		s.emit(ctx, events, ProgressEvent{
			Stage:      StageClearing,
			DBKey:      req.DBKey,
			Collection: req.Collection,
			Shard:      shard,
			Message:    "Removing existing vectors",
		})
		cleared, err := s.clearPair(ctx, shard, req.DBKey, req.Collection)
		if err != nil {
			s.emitError(ctx, events, req, err)
			return nil, err
		}
		// The state record goes with the points: if the rebuild aborts,
		// the next check must see never-synced, not up-to-date with an
		// empty index.
		if err := s.state.ClearState(ctx, req.DBKey, req.Collection); err != nil {
			s.emitError(ctx, events, req, err)
			return nil, err
		}
		result.VectorsCleared = cleared
		s.emit(ctx, events, ProgressEvent{
			Stage:         StageCleared,
			DBKey:         req.DBKey,
			Collection:    req.Collection,
			Shard:         shard,
			ChunksWritten: cleared,
		})
	}

	docs, err := src.FindDocuments(ctx, req.Collection, int64(req.MaxDocuments))
	if err != nil {
		err = fmt.Errorf("failed to load documents: %w", err)
		s.emitError(ctx, events, req, err)
		return nil, err
	}
	if len(docs) == 0 {
		s.emitError(ctx, events, req, ErrCollectionEmpty)
		return nil, ErrCollectionEmpty
	}

	fields, err := s.resolveTextFields(ctx, req, docs[0])
	if err != nil {
		s.emitError(ctx, events, req, err)
		return nil, err
	}
	result.TextFields = fields

	s.emit(ctx, events, ProgressEvent{
		Stage:      StageLoaded,
		DBKey:      req.DBKey,
		Collection: req.Collection,
		Shard:      shard,
		Total:      len(docs),
	})
	logger.CtxInfo(ctx, "Loaded %d documents from %s, fields=%v", len(docs), req.Collection, fields)

	batch := make([]domain.VectorPoint, 0, batchSize)
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			s.emitError(ctx, events, req, err)
			return nil, err
		}

		text := BuildDocumentText(doc, fields)
		if strings.TrimSpace(text) == "" {
			// Nothing to embed for this document.
			continue
		}

		points, err := s.embedDocument(ctx, doc, text, req, src.Name(), chunkSize, overlap, fields)
		if err != nil {
			s.emitError(ctx, events, req, err)
			return nil, err
		}

		batch = append(batch, points...)
		result.DocumentsProcessed++

		s.emit(ctx, events, ProgressEvent{
			Stage:      StageProcessing,
			DBKey:      req.DBKey,
			Collection: req.Collection,
			Processed:  i + 1,
			Total:      len(docs),
			Progress:   (i + 1) * 100 / len(docs),
		})

		for len(batch) >= batchSize {
			flush := batch[:batchSize]
			if err := s.upsertWithRetry(ctx, shard, flush); err != nil {
				s.emitError(ctx, events, req, err)
				return nil, err
			}
			result.ChunksWritten += len(flush)
			batch = append(batch[:0], batch[batchSize:]...)
			s.emit(ctx, events, ProgressEvent{
				Stage:         StageBatchUploaded,
				DBKey:         req.DBKey,
				Collection:    req.Collection,
				Shard:         shard,
				BatchSize:     batchSize,
				ChunksWritten: result.ChunksWritten,
			})
		}
	}

	if len(batch) > 0 {
		if err := s.upsertWithRetry(ctx, shard, batch); err != nil {
			s.emitError(ctx, events, req, err)
			return nil, err
		}
		result.ChunksWritten += len(batch)
		s.emit(ctx, events, ProgressEvent{
			Stage:         StageFinalBatch,
			DBKey:         req.DBKey,
			Collection:    req.Collection,
			Shard:         shard,
			BatchSize:     len(batch),
			ChunksWritten: result.ChunksWritten,
		})
	}

	// State is only persisted once every batch is durable in the index, so a
	// failed run leaves the old state intact and the next check re-detects.
	s.emit(ctx, events, ProgressEvent{
		Stage:      StageSavingState,
		DBKey:      req.DBKey,
		Collection: req.Collection,
	})
	if err := s.persistState(ctx, req, shard, fields, chunkSize, overlap, len(docs), result.ChunksWritten); err != nil {
		s.emitError(ctx, events, req, err)
		return nil, err
	}

	result.DurationMs = time.Since(start).Milliseconds()
	logger.With(logger.Fields{
		logger.FieldCount:      result.ChunksWritten,
		logger.FieldDurationMs: result.DurationMs,
	}).Info(ctx, "Sync complete: %d documents, %d chunks", result.DocumentsProcessed, result.ChunksWritten)

	s.emit(ctx, events, ProgressEvent{
		Stage:         StageComplete,
		DBKey:         req.DBKey,
		Collection:    req.Collection,
		Shard:         shard,
		Processed:     result.DocumentsProcessed,
		ChunksWritten: result.ChunksWritten,
		Reason:        decision.Reason,
	})
	return result, nil
}

func (s *SyncService) effectiveParams(req *SyncRequest) (chunkSize, overlap, batchSize int) {
	chunkSize, overlap, batchSize = s.chunkSize, s.overlap, s.batchSize
	if req.ChunkSize > 0 {
		chunkSize = req.ChunkSize
	}
	if req.Overlap > 0 {
		overlap = req.Overlap
	}
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}
	return chunkSize, overlap, batchSize
}

// resolveTextFields picks the fields to embed: request override first, then
// the previously synced field list, then auto-detection on a sample document.
func (s *SyncService) resolveTextFields(ctx context.Context, req *SyncRequest, sample source.Document) ([]string, error) {
	if len(req.TextFields) > 0 {
		return req.TextFields, nil
	}

	state, err := s.state.GetState(ctx, req.DBKey, req.Collection)
	if err != nil {
		return nil, err
	}
	if state != nil && len(state.TextFields) > 0 {
		return state.TextFields, nil
	}

	fields := DetectTextFields(sample)
	if len(fields) == 0 {
		return nil, ErrNoTextFields
	}
	return fields, nil
}

// embedDocument chunks one document's text and embeds every chunk through a
// bounded worker pool. Results land in an indexed slice so point order always
// follows chunk order regardless of completion order, and the first failure
// cancels the remaining workers.
func (s *SyncService) embedDocument(ctx context.Context, doc source.Document, text string, req *SyncRequest, dbName string, chunkSize, overlap int, fields []string) ([]domain.VectorPoint, error) {
	chunks := ChunkText(text, chunkSize, overlap)

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := s.embedding.EmbedDocument(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d of document %s: %w", i, doc.ID(), err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	points := make([]domain.VectorPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = domain.VectorPoint{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: domain.PointPayload{
				DBKey:            req.DBKey,
				SourceCollection: req.Collection,
				SourceDocID:      doc.ID(),
				ChunkIndex:       i,
				Text:             chunk,
				TextFields:       fields,
				DBName:           dbName,
				CreatedAt:        now,
			},
		}
	}
	return points, nil
}

// upsertWithRetry writes one batch, retrying transient failures with
// exponential backoff up to the configured attempt count.
func (s *SyncService) upsertWithRetry(ctx context.Context, shard string, points []domain.VectorPoint) error {
	op := func() error {
		return s.index.UpsertBatch(ctx, shard, points)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.retryCount)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		logger.CtxWarn(ctx, "Batch upsert failed, retrying in %s: %v", wait, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("failed to upsert batch of %d points: %w", len(points), err)
	}
	return nil
}

// clearPair removes every point belonging to a (db key, collection) pair from
// the shard and returns how many were deleted.
func (s *SyncService) clearPair(ctx context.Context, shard, dbKey, collection string) (int, error) {
	ids, err := s.index.ScrollPairPointIDs(ctx, shard, dbKey, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate existing vectors: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.index.DeletePoints(ctx, shard, ids); err != nil {
		return 0, fmt.Errorf("failed to delete existing vectors: %w", err)
	}
	return len(ids), nil
}

func (s *SyncService) persistState(ctx context.Context, req *SyncRequest, shard string, fields []string, chunkSize, overlap, docCount, chunksWritten int) error {
	fingerprint, err := s.state.ComputeFingerprint(ctx, req.DBKey, req.Collection)
	if err != nil {
		return err
	}

	if err := s.state.SaveState(ctx, &domain.VectorizationState{
		DBKey:              req.DBKey,
		Collection:         req.Collection,
		DocumentCount:      docCount,
		VectorCount:        chunksWritten,
		TextFields:         fields,
		ChunkSize:          chunkSize,
		Overlap:            overlap,
		ContentFingerprint: fingerprint,
		LastSynced:         time.Now().UTC(),
		Status:             domain.SyncStatusCompleted,
	}); err != nil {
		return err
	}

	info, err := s.index.CollectionInfo(ctx, shard)
	if err != nil {
		return fmt.Errorf("failed to read shard stats: %w", err)
	}
	if err := s.shards.UpdateVectorCount(ctx, req.DBKey, info.PointCount); err != nil {
		return fmt.Errorf("failed to update shard vector count: %w", err)
	}
	return nil
}

// emit never blocks a cancelled sync: when the consumer stops draining the
// channel and the context dies, the send is abandoned so the run loop reaches
// its own cancellation check and releases the pair lock.
func (s *SyncService) emit(ctx context.Context, events chan<- ProgressEvent, ev ProgressEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func (s *SyncService) emitError(ctx context.Context, events chan<- ProgressEvent, req *SyncRequest, err error) {
	logger.CtxError(ctx, "Sync failed: %v", err)
	s.emit(ctx, events, ProgressEvent{
		Stage:      StageError,
		DBKey:      req.DBKey,
		Collection: req.Collection,
		Error:      err.Error(),
	})
}

// SyncAll sweeps every non-system collection of a database. Individual
// collection failures are recorded and the sweep continues.
func (s *SyncService) SyncAll(ctx context.Context, dbKey string, force bool) (*SyncAllResult, error) {
	src, ok := s.sources.Get(dbKey)
	if !ok {
		return nil, ErrDatabaseNotFound
	}

	collections, err := src.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	result := &SyncAllResult{DBKey: dbKey}
	for _, collection := range collections {
		if IsSystemCollection(collection) {
			continue
		}

		res, err := s.Sync(ctx, &SyncRequest{
			DBKey:      dbKey,
			Collection: collection,
			Force:      force,
		})
		switch {
		case err == ErrCollectionEmpty:
			result.Skipped++
			result.Collections = append(result.Collections, SyncResult{
				DBKey:      dbKey,
				Collection: collection,
				Skipped:    true,
				Reason:     ReasonEmptyCollection,
			})
		case err == ErrNoTextFields:
			result.Skipped++
			result.Collections = append(result.Collections, SyncResult{
				DBKey:      dbKey,
				Collection: collection,
				Skipped:    true,
				Reason:     "no_text_fields",
			})
		case err != nil:
			result.Failed++
			result.Collections = append(result.Collections, SyncResult{
				DBKey:      dbKey,
				Collection: collection,
				Reason:     "error",
				Error:      err.Error(),
			})
			logger.CtxError(ctx, "Sync of %s/%s failed: %v", dbKey, collection, err)
		case res.Skipped:
			result.Skipped++
			result.Collections = append(result.Collections, *res)
		default:
			result.Synced++
			result.Collections = append(result.Collections, *res)
		}
	}
	return result, nil
}

// CheckStatus reports change-detection decisions without doing any work.
// Scope narrows with the arguments: a (db key, collection) pair checks that
// one pair, a db key alone sweeps its non-system collections, and no db key
// sweeps every registered database.
func (s *SyncService) CheckStatus(ctx context.Context, dbKey, collection string) ([]CollectionStatus, error) {
	if dbKey == "" {
		var all []CollectionStatus
		for _, key := range s.sources.Keys() {
			statuses, err := s.CheckStatus(ctx, key, "")
			if err != nil {
				return nil, err
			}
			all = append(all, statuses...)
		}
		return all, nil
	}

	if collection != "" {
		status, err := s.checkPair(ctx, dbKey, collection)
		if err != nil {
			return nil, err
		}
		return []CollectionStatus{*status}, nil
	}

	src, ok := s.sources.Get(dbKey)
	if !ok {
		return nil, ErrDatabaseNotFound
	}
	collections, err := src.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	statuses := make([]CollectionStatus, 0, len(collections))
	for _, name := range collections {
		if IsSystemCollection(name) {
			continue
		}
		status, err := s.checkPair(ctx, dbKey, name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

func (s *SyncService) checkPair(ctx context.Context, dbKey, collection string) (*CollectionStatus, error) {
	decision, err := s.state.NeedsSync(ctx, dbKey, collection, false)
	if err != nil {
		return nil, err
	}
	state, err := s.state.GetState(ctx, dbKey, collection)
	if err != nil {
		return nil, err
	}
	return &CollectionStatus{
		DBKey:      dbKey,
		Collection: collection,
		State:      state,
		Decision:   decision,
	}, nil
}

// existingShard looks up the persisted shard for a db key without ever
// creating one. A db key with no mapping and no registered source is unknown;
// a registered source that was never synced has nothing indexed and returns
// the empty string.
func (s *SyncService) existingShard(ctx context.Context, dbKey string) (string, error) {
	mapping, err := s.shards.Get(ctx, dbKey)
	if err == nil {
		return mapping.Collection, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to load shard mapping for %s: %w", dbKey, err)
	}
	if _, ok := s.sources.Get(dbKey); !ok {
		return "", ErrDatabaseNotFound
	}
	return "", nil
}

// ClearVectors removes indexed vectors at one of three scopes: a single
// (db key, collection) pair, a whole database shard, or everything.
func (s *SyncService) ClearVectors(ctx context.Context, dbKey, collection string) (*ClearResult, error) {
	switch {
	case dbKey != "" && collection != "":
		shard, err := s.existingShard(ctx, dbKey)
		if err != nil {
			return nil, err
		}
		cleared := 0
		if shard != "" {
			if cleared, err = s.clearPair(ctx, shard, dbKey, collection); err != nil {
				return nil, err
			}
		}
		if err := s.state.ClearState(ctx, dbKey, collection); err != nil {
			return nil, err
		}
		logger.CtxInfo(ctx, "Cleared %d vectors for %s/%s", cleared, dbKey, collection)
		return &ClearResult{
			Scope:          "collection",
			DBKey:          dbKey,
			Collection:     collection,
			VectorsCleared: cleared,
		}, nil

	case dbKey != "":
		shard, err := s.existingShard(ctx, dbKey)
		if err != nil {
			return nil, err
		}
		var reset []string
		if shard != "" {
			if shard, err = s.resolver.RecreateShard(ctx, dbKey); err != nil {
				return nil, err
			}
			reset = append(reset, shard)
			logger.CtxInfo(ctx, "Reset shard %s", shard)
		}
		if err := s.state.states.DeleteByDBKey(ctx, dbKey); err != nil {
			return nil, fmt.Errorf("failed to clear vectorization state: %w", err)
		}
		return &ClearResult{
			Scope:       "database",
			DBKey:       dbKey,
			ShardsReset: reset,
		}, nil

	default:
		mappings, err := s.shards.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list shards: %w", err)
		}
		reset := make([]string, 0, len(mappings))
		for _, mapping := range mappings {
			shard, err := s.resolver.RecreateShard(ctx, mapping.DBKey)
			if err != nil {
				return nil, err
			}
			reset = append(reset, shard)
		}
		if err := s.state.states.DeleteAll(ctx); err != nil {
			return nil, fmt.Errorf("failed to clear vectorization state: %w", err)
		}
		logger.CtxInfo(ctx, "Reset %d shards", len(reset))
		return &ClearResult{Scope: "all", ShardsReset: reset}, nil
	}
}

// ShardOverview describes one shard for the stats surface.
type ShardOverview struct {
	DBKey      string `json:"db_key"`
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Vectors    int64  `json:"vectors"`
}

// ListShards returns every known shard with its live point count. Shards whose
// index collection has vanished report zero vectors.
func (s *SyncService) ListShards(ctx context.Context) ([]ShardOverview, error) {
	mappings, err := s.shards.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}

	out := make([]ShardOverview, 0, len(mappings))
	for _, mapping := range mappings {
		overview := ShardOverview{
			DBKey:      mapping.DBKey,
			Collection: mapping.Collection,
			Dimension:  mapping.Dimension,
		}
		exists, err := s.index.CollectionExists(ctx, mapping.Collection)
		if err != nil {
			return nil, err
		}
		if exists {
			info, err := s.index.CollectionInfo(ctx, mapping.Collection)
			if err != nil {
				return nil, err
			}
			overview.Vectors = info.PointCount
		}
		out = append(out, overview)
	}
	return out, nil
}

// ListStates returns stored vectorization state, optionally filtered by db key.
func (s *SyncService) ListStates(ctx context.Context, dbKey string) ([]domain.VectorizationState, error) {
	states, err := s.state.states.List(ctx, dbKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectorization state: %w", err)
	}
	return states, nil
}

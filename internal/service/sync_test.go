package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synapse-db/synapse/internal/config"
	"github.com/synapse-db/synapse/internal/source"
)

type syncHarness struct {
	svc    *SyncService
	index  *fakeIndex
	states *fakeStateStore
	shards *fakeShardStore
	src    *fakeSource
}

func newSyncHarness(t *testing.T, docs map[string][]source.Document) *syncHarness {
	t.Helper()

	registry := source.NewRegistry()
	src := &fakeSource{name: "testdb", collections: docs}
	registry.Register("db1", src)

	index := newFakeIndex()
	states := newFakeStateStore()
	shards := newFakeShardStore()

	embedding := newTestEmbeddingService(&fakeEmbedder{})
	manager := NewStateManager(states, registry)
	resolver := NewShardResolver(shards, index, "synapse_", 3)
	svc := NewSyncService(registry, index, embedding, manager, resolver, shards, &config.SyncConfig{
		ChunkSize:  500,
		Overlap:    50,
		BatchSize:  100,
		Workers:    2,
		RetryCount: 3,
	})

	return &syncHarness{svc: svc, index: index, states: states, shards: shards, src: src}
}

func threeShortDocs() map[string][]source.Document {
	return map[string][]source.Document{
		"articles": {
			{"_id": "a", "_upload_timestamp": "t1", "title": "first article"},
			{"_id": "b", "_upload_timestamp": "t1", "title": "second article"},
			{"_id": "c", "_upload_timestamp": "t1", "title": "third article"},
		},
	}
}

func TestSyncInitialVectorize(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	result, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, ReasonNeverVectorized, result.Reason)
	assert.Equal(t, "synapse_db1", result.Shard)
	assert.Equal(t, 3, result.DocumentsProcessed)
	// Short texts produce one chunk each.
	assert.Equal(t, 3, result.ChunksWritten)
	assert.Equal(t, 3, h.index.pointCount("synapse_db1"))

	// State was persisted with the outcome.
	state, err := h.states.Get(ctx, "db1", "articles")
	require.NoError(t, err)
	assert.Equal(t, 3, state.DocumentCount)
	assert.Equal(t, 3, state.VectorCount)
	assert.NotEmpty(t, state.ContentFingerprint)
	assert.Equal(t, []string{"title"}, []string(state.TextFields))

	// Shard vector count reflects the index.
	mapping, err := h.shards.Get(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mapping.VectorCount)
}

func TestSyncIsIdempotent(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	second, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, ReasonUpToDate, second.Reason)
	assert.Equal(t, 3, h.index.pointCount("synapse_db1"), "repeat sync must not change the index")
}

func TestSyncForceResyncReplacesPoints(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	before := h.pointIDs()

	result, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles", Force: true})
	require.NoError(t, err)
	assert.Equal(t, ReasonForced, result.Reason)
	assert.Equal(t, 3, result.VectorsCleared)
	assert.Equal(t, 3, h.index.pointCount("synapse_db1"), "no duplicates after forced resync")

	// Point IDs are regenerated, never reused.
	for id := range h.pointIDs() {
		_, existed := before[id]
		assert.False(t, existed, "point ID %s was reused", id)
	}
}

func TestSyncSkipsBlankDocuments(t *testing.T) {
	docs := map[string][]source.Document{
		"articles": {
			{"_id": "a", "_upload_timestamp": "t1", "title": "first article"},
			{"_id": "b", "_upload_timestamp": "t1", "title": "   "},
			{"_id": "c", "_upload_timestamp": "t1", "title": "third article"},
		},
	}
	h := newSyncHarness(t, docs)

	result, err := h.svc.Sync(context.Background(), &SyncRequest{
		DBKey:      "db1",
		Collection: "articles",
		TextFields: []string{"title"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.DocumentsProcessed, "whitespace-only documents produce no vectors")
	assert.Equal(t, 2, result.ChunksWritten)
	assert.Equal(t, 2, h.index.pointCount("synapse_db1"))
}

func (h *syncHarness) pointIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, p := range h.index.pairPoints("synapse_db1", "db1", "articles") {
		ids[p.ID] = struct{}{}
	}
	return ids
}

func TestSyncAppendRebuildsWithoutDuplicates(t *testing.T) {
	docs := threeShortDocs()
	h := newSyncHarness(t, docs)
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	// New documents appended after the fingerprint sample window's content is
	// unchanged: count grows, fingerprint matches only if the first docs are
	// untouched.
	docs["articles"] = append(docs["articles"],
		source.Document{"_id": "d", "_upload_timestamp": "t2", "title": "fourth article"},
	)
	h.src.collections = docs

	result, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	// All four documents indexed exactly once.
	assert.Equal(t, 4, result.DocumentsProcessed)
	assert.Equal(t, 4, h.index.pointCount("synapse_db1"))
}

func TestSyncChunksLongDocuments(t *testing.T) {
	long := strings.Repeat("sentence ", 200) // 1800 runes → 4 chunks at 500/50
	docs := map[string][]source.Document{
		"articles": {
			{"_id": "a", "_upload_timestamp": "t1", "title": long},
		},
	}
	h := newSyncHarness(t, docs)

	result, err := h.svc.Sync(context.Background(), &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsProcessed)
	assert.Equal(t, 4, result.ChunksWritten)

	// chunk_index values must be 0..n-1 exactly once each.
	seen := make(map[int]int)
	for _, p := range h.index.pairPoints("synapse_db1", "db1", "articles") {
		seen[p.Payload.ChunkIndex]++
		assert.Equal(t, "a", p.Payload.SourceDocID)
		assert.Equal(t, "testdb", p.Payload.DBName)
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, 1, seen[i], "chunk index %d", i)
	}
}

func TestSyncBatchBoundary(t *testing.T) {
	// batch size 2 with 3 documents: one full batch then a final batch of 1.
	docs := threeShortDocs()
	h := newSyncHarness(t, docs)

	events := make(chan ProgressEvent, 64)
	_, err := h.svc.SyncStream(context.Background(), &SyncRequest{
		DBKey:      "db1",
		Collection: "articles",
		BatchSize:  2,
	}, events)
	require.NoError(t, err)

	var batches, finals int
	var stages []string
	for ev := range events {
		stages = append(stages, ev.Stage)
		switch ev.Stage {
		case StageBatchUploaded:
			batches++
			assert.Equal(t, 2, ev.BatchSize)
		case StageFinalBatch:
			finals++
			assert.Equal(t, 1, ev.BatchSize)
		}
	}
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, finals)
	assert.Equal(t, 3, h.index.pointCount("synapse_db1"))

	// Stage ordering: init first, complete last.
	require.NotEmpty(t, stages)
	assert.Equal(t, StageInit, stages[0])
	assert.Equal(t, StageComplete, stages[len(stages)-1])
}

func TestSyncStreamEmitsProgress(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())

	events := make(chan ProgressEvent, 64)
	_, err := h.svc.SyncStream(context.Background(), &SyncRequest{
		DBKey:      "db1",
		Collection: "articles",
	}, events)
	require.NoError(t, err)

	var lastProgress int
	sawProcessing := false
	for ev := range events {
		if ev.Stage == StageProcessing {
			sawProcessing = true
			assert.GreaterOrEqual(t, ev.Progress, lastProgress, "progress must not go backwards")
			lastProgress = ev.Progress
		}
	}
	assert.True(t, sawProcessing)
	assert.Equal(t, 100, lastProgress)
}

func TestSyncStreamAbandonedConsumerReleasesLock(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan ProgressEvent) // unbuffered: sends block once unread
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.SyncStream(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"}, events)
		done <- err
	}()

	// Consume one event, then cancel and walk away without draining.
	<-events
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not terminate after its consumer stopped reading")
	}

	// The pair lock must be free again for the next caller.
	require.True(t, h.svc.locks.TryAcquire("db1/articles"), "pair lock still held after abandoned stream")
	h.svc.locks.Release("db1/articles")
}

func TestSyncRetriesTransientUpsertFailures(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	h.index.upsertErrs = 2 // first two attempts fail, third succeeds

	result, err := h.svc.Sync(context.Background(), &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ChunksWritten)
	assert.GreaterOrEqual(t, h.index.upsertCalls, 3)
}

func TestSyncFailsAfterRetriesExhaustedWithoutStateUpdate(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	h.index.upsertErrs = 100 // never succeeds

	_, err := h.svc.Sync(context.Background(), &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.Error(t, err)

	// No state row: the next check re-detects the collection as never synced.
	_, err = h.states.Get(context.Background(), "db1", "articles")
	require.Error(t, err)
}

func TestSyncRejectsInvalidChunking(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())

	_, err := h.svc.Sync(context.Background(), &SyncRequest{
		DBKey:      "db1",
		Collection: "articles",
		ChunkSize:  100,
		Overlap:    100,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestSyncRejectsConcurrentSamePair(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())

	require.True(t, h.svc.locks.TryAcquire("db1/articles"))
	defer h.svc.locks.Release("db1/articles")

	_, err := h.svc.Sync(context.Background(), &SyncRequest{DBKey: "db1", Collection: "articles"})
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSyncUnknownDatabase(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "nope", Collection: "articles"})
	assert.ErrorIs(t, err, ErrDatabaseNotFound)

	// Force bypasses change detection but must not materialize a shard for a
	// db key that has no source.
	_, err = h.svc.Sync(ctx, &SyncRequest{DBKey: "nope", Collection: "articles", Force: true})
	assert.ErrorIs(t, err, ErrDatabaseNotFound)

	_, err = h.shards.Get(ctx, "nope")
	assert.Error(t, err, "no shard mapping may be created for an unknown db")
	exists, err := h.index.CollectionExists(ctx, "synapse_nope")
	require.NoError(t, err)
	assert.False(t, exists, "no index collection may be created for an unknown db")
}

func TestClearVectorsUnknownDatabaseCreatesNothing(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.ClearVectors(ctx, "ghost", "articles")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)
	_, err = h.svc.ClearVectors(ctx, "ghost", "")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)

	_, err = h.shards.Get(ctx, "ghost")
	assert.Error(t, err, "clearing an unknown db must not create a shard mapping")
	exists, err := h.index.CollectionExists(ctx, "synapse_ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClearVectorsNeverSyncedDatabase(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	// Registered source, nothing indexed yet: a no-op, not an error — and
	// still no shard afterwards.
	result, err := h.svc.ClearVectors(ctx, "db1", "articles")
	require.NoError(t, err)
	assert.Equal(t, 0, result.VectorsCleared)

	result, err = h.svc.ClearVectors(ctx, "db1", "")
	require.NoError(t, err)
	assert.Empty(t, result.ShardsReset)

	_, err = h.shards.Get(ctx, "db1")
	assert.Error(t, err)
}

func TestSyncEmptyCollection(t *testing.T) {
	h := newSyncHarness(t, map[string][]source.Document{"articles": {}})

	result, err := h.svc.Sync(context.Background(), &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, ReasonEmptyCollection, result.Reason)
}

func TestSyncAllSkipsSystemCollections(t *testing.T) {
	docs := threeShortDocs()
	docs["vector_state"] = []source.Document{{"_id": "s", "title": "internal"}}
	docs["query_memory"] = []source.Document{{"_id": "q", "title": "internal"}}
	docs["numbers"] = []source.Document{{"_id": "n", "value": 42}} // no text fields
	h := newSyncHarness(t, docs)

	result, err := h.svc.SyncAll(context.Background(), "db1", false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Skipped) // numbers: no text fields
	assert.Equal(t, 0, result.Failed)
	for _, res := range result.Collections {
		assert.NotEqual(t, "vector_state", res.Collection)
		assert.NotEqual(t, "query_memory", res.Collection)
	}
	assert.Equal(t, 3, h.index.pointCount("synapse_db1"))
}

func TestClearVectorsPairScope(t *testing.T) {
	docs := threeShortDocs()
	docs["notes"] = []source.Document{{"_id": "n1", "_upload_timestamp": "t1", "title": "a note"}}
	h := newSyncHarness(t, docs)
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)
	_, err = h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "notes"})
	require.NoError(t, err)
	require.Equal(t, 4, h.index.pointCount("synapse_db1"))

	result, err := h.svc.ClearVectors(ctx, "db1", "articles")
	require.NoError(t, err)
	assert.Equal(t, 3, result.VectorsCleared)

	// Only the pair's points are gone; the other collection survives.
	assert.Equal(t, 1, h.index.pointCount("synapse_db1"))
	_, err = h.states.Get(ctx, "db1", "articles")
	assert.Error(t, err, "pair state must be deleted")
	_, err = h.states.Get(ctx, "db1", "notes")
	assert.NoError(t, err, "other pair state must survive")
}

func TestClearVectorsDatabaseScope(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	result, err := h.svc.ClearVectors(ctx, "db1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"synapse_db1"}, result.ShardsReset)
	assert.Equal(t, 0, h.index.pointCount("synapse_db1"))

	mapping, err := h.shards.Get(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mapping.VectorCount)

	states, err := h.states.List(ctx, "db1")
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestClearVectorsGlobalScope(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	result, err := h.svc.ClearVectors(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "all", result.Scope)
	assert.Equal(t, 0, h.index.pointCount("synapse_db1"))

	states, err := h.states.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestCheckStatusDoesNotModifyAnything(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	statuses, err := h.svc.CheckStatus(ctx, "db1", "articles")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Decision.Required)
	assert.Equal(t, ReasonNeverVectorized, statuses[0].Decision.Reason)

	// No shard, no points, no state were created by a check.
	assert.Equal(t, 0, h.index.pointCount("synapse_db1"))
	_, err = h.shards.Get(ctx, "db1")
	assert.Error(t, err)
}

func TestListShardsReportsLiveCounts(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())
	ctx := context.Background()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.NoError(t, err)

	shards, err := h.svc.ListShards(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, "db1", shards[0].DBKey)
	assert.Equal(t, "synapse_db1", shards[0].Collection)
	assert.Equal(t, int64(3), shards[0].Vectors)
}

func TestSyncRespectsMaxDocuments(t *testing.T) {
	h := newSyncHarness(t, threeShortDocs())

	result, err := h.svc.Sync(context.Background(), &SyncRequest{
		DBKey:        "db1",
		Collection:   "articles",
		MaxDocuments: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DocumentsProcessed)
	assert.Equal(t, 2, h.index.pointCount("synapse_db1"))
}

func TestSyncCancellationStopsWork(t *testing.T) {
	docs := map[string][]source.Document{"articles": {}}
	for i := 0; i < 50; i++ {
		docs["articles"] = append(docs["articles"], source.Document{
			"_id":               fmt.Sprintf("doc-%d", i),
			"_upload_timestamp": "t1",
			"title":             fmt.Sprintf("article %d", i),
		})
	}
	h := newSyncHarness(t, docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.Sync(ctx, &SyncRequest{DBKey: "db1", Collection: "articles"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

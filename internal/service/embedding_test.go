package service

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbeddingService(client EmbeddingClient) *EmbeddingService {
	return NewEmbeddingService(client, NewEmbeddingCache(100), NewUsageTracker(0), "test-model", 3)
}

func TestEmbedDocumentBlankTextReturnsZeroVector(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestEmbeddingService(embedder)

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := svc.EmbedDocument(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, vec, 3)
		for _, x := range vec {
			assert.Equal(t, float32(0), x)
		}
	}

	// Blank text must not hit the API or the usage counter.
	assert.Equal(t, 0, embedder.callCount())
	assert.Equal(t, int64(0), svc.Usage().EmbeddingCalls())
	assert.Equal(t, 0, svc.Cache().Stats().Size)
}

func TestEmbedDocumentNormalizesAndCaches(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestEmbeddingService(embedder)

	vec, err := svc.EmbedDocument(context.Background(), "hello world")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5, "embedding should be unit length")

	// Second call must come from the cache.
	again, err := svc.EmbedDocument(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, vec, again)
	assert.Equal(t, 1, embedder.callCount())
	assert.Equal(t, int64(1), svc.Usage().EmbeddingCalls())
}

func TestEmbedQueryUsesDistinctCacheKeySpace(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestEmbeddingService(embedder)
	ctx := context.Background()

	_, err := svc.EmbedDocument(ctx, "same text")
	require.NoError(t, err)
	_, err = svc.EmbedQuery(ctx, "same text")
	require.NoError(t, err)

	// Same literal text, two cache entries, two API calls.
	assert.Equal(t, 2, embedder.callCount())
	assert.Equal(t, 2, svc.Cache().Stats().Size)
}

func TestEmbedDocumentPropagatesClientError(t *testing.T) {
	embedder := &fakeEmbedder{err: assert.AnError}
	svc := newTestEmbeddingService(embedder)

	_, err := svc.EmbedDocument(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, int64(0), svc.Usage().EmbeddingCalls())
	assert.Equal(t, 0, svc.Cache().Stats().Size)
}

func TestNormalizeEmbedding(t *testing.T) {
	normalized := NormalizeEmbedding([]float32{3, 4})
	assert.InDelta(t, 0.6, normalized[0], 1e-6)
	assert.InDelta(t, 0.8, normalized[1], 1e-6)

	// Zero vector comes back unchanged rather than NaN.
	zero := NormalizeEmbedding([]float32{0, 0, 0})
	for _, x := range zero {
		assert.Equal(t, float32(0), x)
	}
}

package service

import (
	"sync"
	"time"
)

const defaultEmbeddingLimit = 1000

// UsageTracker counts external embedding calls for quota and observability
// tooling. Constructed per engine instance; no package-level state.
type UsageTracker struct {
	mu             sync.Mutex
	embeddingCalls int64
	embeddingLimit int64
	startTime      time.Time
}

// NewUsageTracker creates a tracker; a non-positive limit uses the default.
func NewUsageTracker(embeddingLimit int64) *UsageTracker {
	if embeddingLimit <= 0 {
		embeddingLimit = defaultEmbeddingLimit
	}
	return &UsageTracker{
		embeddingLimit: embeddingLimit,
		startTime:      time.Now(),
	}
}

// TrackEmbedding records one external embedding call.
func (t *UsageTracker) TrackEmbedding() {
	t.mu.Lock()
	t.embeddingCalls++
	t.mu.Unlock()
}

// EmbeddingCalls returns the number of external embedding calls so far.
func (t *UsageTracker) EmbeddingCalls() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.embeddingCalls
}

// CanEmbed reports whether the embedding quota still has headroom.
func (t *UsageTracker) CanEmbed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.embeddingCalls < t.embeddingLimit
}

// UsageStats is a point-in-time usage snapshot.
type UsageStats struct {
	EmbeddingCalls     int64 `json:"embedding_calls"`
	EmbeddingRemaining int64 `json:"embedding_remaining"`
	UptimeSeconds      int64 `json:"uptime_seconds"`
}

// Stats returns current usage statistics.
func (t *UsageTracker) Stats() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.embeddingLimit - t.embeddingCalls
	if remaining < 0 {
		remaining = 0
	}
	return UsageStats{
		EmbeddingCalls:     t.embeddingCalls,
		EmbeddingRemaining: remaining,
		UptimeSeconds:      int64(time.Since(t.startTime).Seconds()),
	}
}

// Reset zeroes the counters and restarts the uptime clock.
func (t *UsageTracker) Reset() {
	t.mu.Lock()
	t.embeddingCalls = 0
	t.startTime = time.Now()
	t.mu.Unlock()
}

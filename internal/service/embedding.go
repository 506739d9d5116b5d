package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Embedding task hints sent to the remote API. Passage embeddings index
// documents; query embeddings are optimized for search.
const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

// EmbeddingClient calls the remote embedding API and returns raw
// (unnormalized) vectors.
type EmbeddingClient interface {
	Embed(ctx context.Context, text, task string) ([]float32, error)
}

// JinaClient implements EmbeddingClient against a Jina-compatible HTTP API.
type JinaClient struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// JinaConfig holds configuration for the embedding API client.
type JinaConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewJinaClient creates a new embedding API client.
func NewJinaClient(cfg *JinaConfig) *JinaClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &JinaClient{
		client:     client,
		endpoint:   cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

type jinaRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates a raw embedding for a single text.
func (c *JinaClient) Embed(ctx context.Context, text, task string) ([]float32, error) {
	req := jinaRequest{
		Model:         c.model,
		Task:          task,
		Dimensions:    c.dimensions,
		Input:         []string{text},
		EmbeddingType: "float",
	}

	var resp jinaResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Data[0].Embedding, nil
}

// EmbeddingService produces unit-length embeddings of a fixed dimension,
// consulting the cache before calling the remote API.
type EmbeddingService struct {
	client     EmbeddingClient
	cache      *EmbeddingCache
	usage      *UsageTracker
	model      string
	dimensions int
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(client EmbeddingClient, cache *EmbeddingCache, usage *UsageTracker, model string, dimensions int) *EmbeddingService {
	return &EmbeddingService{
		client:     client,
		cache:      cache,
		usage:      usage,
		model:      model,
		dimensions: dimensions,
	}
}

// Dimensions returns the fixed embedding dimension.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// GetModel returns the model name being used.
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Cache exposes the embedding cache for stats and clearing.
func (s *EmbeddingService) Cache() *EmbeddingCache {
	return s.cache
}

// Usage exposes the usage tracker.
func (s *EmbeddingService) Usage() *UsageTracker {
	return s.usage
}

// EmbedDocument returns a unit-length embedding for document text. Blank text
// yields the zero vector sentinel without touching the cache or the API.
func (s *EmbeddingService) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, text, taskPassage)
}

// EmbedQuery returns a unit-length embedding for query text. Query embeddings
// are cached under a distinct key space from document embeddings.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, queryCachePrefix+text, text, taskQuery)
}

func (s *EmbeddingService) embed(ctx context.Context, cacheText, text, task string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, s.dimensions), nil
	}

	if cached := s.cache.Get(cacheText); cached != nil {
		return cached, nil
	}

	raw, err := s.client.Embed(ctx, text, task)
	if err != nil {
		return nil, err
	}

	normalized := NormalizeEmbedding(raw)
	s.cache.Put(cacheText, normalized)
	s.usage.TrackEmbedding()

	return normalized, nil
}

// NormalizeEmbedding scales the vector to unit length. A zero-norm vector is
// returned unchanged.
func NormalizeEmbedding(embedding []float32) []float32 {
	var sum float64
	for _, x := range embedding {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return embedding
	}

	normalized := make([]float32, len(embedding))
	for i, x := range embedding {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/synapse-db/synapse/internal/service"
)

// UsageHandler handles embedding usage and cache endpoints.
type UsageHandler struct {
	embedding *service.EmbeddingService
}

// NewUsageHandler creates a new usage handler.
func NewUsageHandler(embedding *service.EmbeddingService) *UsageHandler {
	return &UsageHandler{embedding: embedding}
}

// GetUsage handles GET /api/v1/usage.
func (h *UsageHandler) GetUsage(c *gin.Context) {
	c.JSON(http.StatusOK, h.embedding.Usage().Stats())
}

// ResetUsage handles POST /api/v1/usage/reset.
func (h *UsageHandler) ResetUsage(c *gin.Context) {
	h.embedding.Usage().Reset()
	c.JSON(http.StatusOK, gin.H{"message": "usage counters reset"})
}

// GetCacheStats handles GET /api/v1/cache.
func (h *UsageHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.embedding.Cache().Stats())
}

// ClearCache handles DELETE /api/v1/cache.
func (h *UsageHandler) ClearCache(c *gin.Context) {
	h.embedding.Cache().Clear()
	c.JSON(http.StatusOK, gin.H{"message": "embedding cache cleared"})
}

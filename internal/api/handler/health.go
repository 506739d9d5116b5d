package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	embeddingModel string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(embeddingModel string) *HealthHandler {
	return &HealthHandler{embeddingModel: embeddingModel}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"service":         "synapse",
		"embedding_model": h.embeddingModel,
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/synapse-db/synapse/internal/service"
)

// VectorHandler handles vector administration endpoints: clearing, shard
// listing, and stored state inspection.
type VectorHandler struct {
	syncService *service.SyncService
}

// NewVectorHandler creates a new vector handler.
func NewVectorHandler(syncService *service.SyncService) *VectorHandler {
	return &VectorHandler{
		syncService: syncService,
	}
}

// Clear handles DELETE /api/v1/vectors. Scope narrows with the query
// parameters: db_key+collection clears one pair, db_key alone resets that
// database's shard, neither resets every shard.
func (h *VectorHandler) Clear(c *gin.Context) {
	dbKey := c.Query("db_key")
	collection := c.Query("collection")

	if dbKey == "" && collection != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "collection requires db_key",
		})
		return
	}

	result, err := h.syncService.ClearVectors(c.Request.Context(), dbKey, collection)
	if err != nil {
		status, msg := syncErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListShards handles GET /api/v1/shards.
func (h *VectorHandler) ListShards(c *gin.Context) {
	shards, err := h.syncService.ListShards(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list shards: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shards": shards,
		"total":  len(shards),
	})
}

// ListStates handles GET /api/v1/states. An optional db_key query parameter
// filters to one database.
func (h *VectorHandler) ListStates(c *gin.Context) {
	states, err := h.syncService.ListStates(c.Request.Context(), c.Query("db_key"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list states: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"states": states,
		"total":  len(states),
	})
}

// GetStats handles GET /api/v1/stats: shard overview plus embedding cache and
// usage counters in one response.
func (h *VectorHandler) GetStats(c *gin.Context) {
	shards, err := h.syncService.ListShards(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get stats: " + err.Error(),
		})
		return
	}

	var totalVectors int64
	for _, shard := range shards {
		totalVectors += shard.Vectors
	}

	embedding := h.syncService.Embedding()
	c.JSON(http.StatusOK, gin.H{
		"shards":        shards,
		"total_vectors": totalVectors,
		"cache":         embedding.Cache().Stats(),
		"usage":         embedding.Usage().Stats(),
		"model":         embedding.GetModel(),
		"dimensions":    embedding.Dimensions(),
	})
}

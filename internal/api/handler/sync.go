package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/synapse-db/synapse/internal/service"
)

// SyncHandler handles vectorization sync endpoints.
type SyncHandler struct {
	syncService *service.SyncService
}

// NewSyncHandler creates a new sync handler.
// Parameters:
//   - syncService: sync orchestrator instance.
// Returns:
//   - *SyncHandler: initialized handler.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
	}
}

// Sync handles POST /api/v1/sync. With ?stream=true the response is a
// Server-Sent Events stream of progress updates; otherwise the request blocks
// until the sync finishes and returns the final result.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req service.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}
	if req.DBKey == "" || req.Collection == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "db_key and collection are required",
		})
		return
	}

	if c.Query("stream") == "true" {
		h.syncStream(c, &req)
		return
	}

	result, err := h.syncService.Sync(c.Request.Context(), &req)
	if err != nil {
		status, msg := syncErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// syncStream runs the sync in a goroutine and relays its progress events as
// SSE messages. The client disconnecting cancels the request context, which
// cancels the sync.
func (h *SyncHandler) syncStream(c *gin.Context, req *service.SyncRequest) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	events := make(chan service.ProgressEvent, 16)
	go func() {
		// Errors surface as a terminal "error" event on the channel.
		_, _ = h.syncService.SyncStream(c.Request.Context(), req, events)
	}()

	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("message", ev)
		return true
	})
}

// SyncAll handles POST /api/v1/sync/all/:dbKey. Sweeps every non-system
// collection of the database, continuing past per-collection failures.
func (h *SyncHandler) SyncAll(c *gin.Context) {
	dbKey := c.Param("dbKey")
	force := c.Query("force") == "true"

	result, err := h.syncService.SyncAll(c.Request.Context(), dbKey, force)
	if err != nil {
		status, msg := syncErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Check handles GET /api/v1/sync/check. Reports change-detection decisions
// without syncing anything; omitting db_key sweeps every registered database.
func (h *SyncHandler) Check(c *gin.Context) {
	dbKey := c.Query("db_key")
	statuses, err := h.syncService.CheckStatus(c.Request.Context(), dbKey, c.Query("collection"))
	if err != nil {
		status, msg := syncErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"db_key":      dbKey,
		"collections": statuses,
		"total":       len(statuses),
	})
}

// syncErrorStatus maps service errors to HTTP statuses.
func syncErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrDatabaseNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrSyncInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrCollectionEmpty), errors.Is(err, service.ErrNoTextFields):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "Sync failed: " + err.Error()
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/synapse-db/synapse/internal/domain"
	"github.com/synapse-db/synapse/internal/logger"
	"github.com/synapse-db/synapse/internal/repository"
	"github.com/synapse-db/synapse/internal/service"
	"github.com/synapse-db/synapse/internal/source"
	"github.com/synapse-db/synapse/internal/source/mongodb"
	"gorm.io/gorm"
)

// DatabaseHandler manages registered source databases: persisting connection
// records and keeping the live source registry in step with them.
type DatabaseHandler struct {
	connections *repository.ConnectionRepository
	sources     *source.Registry
}

// NewDatabaseHandler creates a new database handler.
func NewDatabaseHandler(connections *repository.ConnectionRepository, sources *source.Registry) *DatabaseHandler {
	return &DatabaseHandler{
		connections: connections,
		sources:     sources,
	}
}

// RegisterRequest represents the database registration request.
type RegisterRequest struct {
	Key         string `json:"key" binding:"required"`
	URI         string `json:"uri" binding:"required"`
	Database    string `json:"database" binding:"required"`
	Description string `json:"description"`
}

// databaseInfo is one registered database in list responses.
type databaseInfo struct {
	Key         string `json:"key"`
	Database    string `json:"database"`
	Description string `json:"description,omitempty"`
	Connected   bool   `json:"connected"`
}

// List handles GET /api/v1/databases.
func (h *DatabaseHandler) List(c *gin.Context) {
	conns, err := h.connections.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list databases: " + err.Error(),
		})
		return
	}

	infos := make([]databaseInfo, 0, len(conns))
	for _, conn := range conns {
		_, connected := h.sources.Get(conn.Key)
		infos = append(infos, databaseInfo{
			Key:         conn.Key,
			Database:    conn.Database,
			Description: conn.Description,
			Connected:   connected,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"databases": infos,
		"total":     len(infos),
	})
}

// Register handles POST /api/v1/databases. Connects to the source before
// persisting the record, so a bad URI is rejected up front.
func (h *DatabaseHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.connections.Get(ctx, req.Key); err == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Database key already registered: " + req.Key,
		})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to check database key: " + err.Error(),
		})
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	adapter, err := mongodb.NewAdapter(connectCtx, req.URI, req.Database)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to connect to source database: " + err.Error(),
		})
		return
	}

	if err := h.connections.Create(ctx, &domain.DatabaseConnection{
		Key:         req.Key,
		URI:         req.URI,
		Database:    req.Database,
		Description: req.Description,
	}); err != nil {
		_ = adapter.Close(ctx)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save database connection: " + err.Error(),
		})
		return
	}

	h.sources.Register(req.Key, adapter)
	logger.CtxInfo(ctx, "Registered source database %s (%s)", req.Key, req.Database)

	c.JSON(http.StatusCreated, gin.H{
		"key":      req.Key,
		"database": req.Database,
	})
}

// Unregister handles DELETE /api/v1/databases/:dbKey. Removes the connection
// record and the live adapter; indexed vectors and state survive until cleared
// explicitly.
func (h *DatabaseHandler) Unregister(c *gin.Context) {
	dbKey := c.Param("dbKey")
	ctx := c.Request.Context()

	if _, err := h.connections.Get(ctx, dbKey); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Database not found: " + dbKey,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load database connection: " + err.Error(),
		})
		return
	}

	if err := h.connections.Delete(ctx, dbKey); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete database connection: " + err.Error(),
		})
		return
	}

	if src, ok := h.sources.Get(dbKey); ok {
		_ = src.Close(ctx)
		h.sources.Remove(dbKey)
	}
	logger.CtxInfo(ctx, "Unregistered source database %s", dbKey)

	c.JSON(http.StatusOK, gin.H{"message": "database unregistered", "key": dbKey})
}

// ListCollections handles GET /api/v1/databases/:dbKey/collections. System
// collections are flagged but still listed.
func (h *DatabaseHandler) ListCollections(c *gin.Context) {
	dbKey := c.Param("dbKey")
	src, ok := h.sources.Get(dbKey)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Database not found: " + dbKey,
		})
		return
	}

	ctx := c.Request.Context()
	names, err := src.ListCollections(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to list collections: " + err.Error(),
		})
		return
	}

	type collectionInfo struct {
		Name   string `json:"name"`
		Count  int64  `json:"count"`
		System bool   `json:"system"`
	}
	infos := make([]collectionInfo, 0, len(names))
	for _, name := range names {
		count, err := src.CountDocuments(ctx, name)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Failed to count documents: " + err.Error(),
			})
			return
		}
		infos = append(infos, collectionInfo{
			Name:   name,
			Count:  count,
			System: service.IsSystemCollection(name),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"db_key":      dbKey,
		"collections": infos,
		"total":       len(infos),
	})
}

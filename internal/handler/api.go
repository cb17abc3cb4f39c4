package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"replypilot/internal/models"
	"replypilot/internal/report"
	"replypilot/internal/store"
)

// Handler exposes a read-only HTTP view of the lifecycle store.
type Handler struct {
	store        *store.Store
	recentWindow time.Duration
	logger       *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(st *store.Store, recentWindow time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		store:        st,
		recentWindow: recentWindow,
		logger:       logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/stats", h.GetStats)
		api.GET("/comments", h.GetComments)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// GetStats returns the lifecycle summary.
func (h *Handler) GetStats(c *gin.Context) {
	summary, err := report.Summarize(h.store, h.recentWindow, time.Now().UTC(), h.logger)
	if err != nil {
		h.logger.Error("Failed to summarize store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize store"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetComments lists one status partition (?status=pending by default).
func (h *Handler) GetComments(c *gin.Context) {
	status := models.Status(c.DefaultQuery("status", string(models.StatusPending)))
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	comments, err := h.store.List(status)
	if err != nil {
		h.logger.Error("Failed to list comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"count":    len(comments),
		"comments": comments,
	})
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

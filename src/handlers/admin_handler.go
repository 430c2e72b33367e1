package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maecare/airouter/src/models"
)

// AdminHandler exposes operator actions on the cache and A/B groups.
type AdminHandler struct {
	cache  models.ResponseCache
	flags  models.FlagService
	logger *slog.Logger
}

func NewAdminHandler(cache models.ResponseCache, flags models.FlagService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{cache: cache, flags: flags, logger: logger}
}

func (h *AdminHandler) AssignGroup(c *gin.Context) {
	var req models.AssignGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Group.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown group"})
		return
	}

	ctx := c.Request.Context()
	userID := c.Param("user_id")
	if !h.flags.AssignToGroup(ctx, userID, req.Group) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assign group"})
		return
	}

	h.logger.Info("user assigned to group", "user_id", userID, "group", req.Group)
	c.JSON(http.StatusOK, h.flags.GetFlags(ctx, userID))
}

func (h *AdminHandler) Distribution(c *gin.Context) {
	c.JSON(http.StatusOK, h.flags.Distribution(c.Request.Context()))
}

func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats(c.Request.Context()))
}

func (h *AdminHandler) SweepCache(c *gin.Context) {
	deleted := h.cache.ClearExpired(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *AdminHandler) ClearProvider(c *gin.Context) {
	provider, err := models.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.cache.ClearProvider(c.Request.Context(), provider) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared", "provider": provider})
}

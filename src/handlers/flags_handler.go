package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maecare/airouter/src/middleware"
	"github.com/maecare/airouter/src/models"
)

type FlagsHandler struct {
	flags models.FlagService
}

func NewFlagsHandler(flags models.FlagService) *FlagsHandler {
	return &FlagsHandler{flags: flags}
}

// GetFlags returns the caller's flags and A/B group
func (h *FlagsHandler) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, h.flags.GetFlags(c.Request.Context(), middleware.UserID(c)))
}

// UpdateFlags merges the given flags into the caller's row
func (h *FlagsHandler) UpdateFlags(c *gin.Context) {
	var req models.UpdateFlagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ABTestGroup != nil && !req.ABTestGroup.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown ab_test_group"})
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	if !h.flags.Update(ctx, userID, req.Flags, req.ABTestGroup) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update flags"})
		return
	}

	c.JSON(http.StatusOK, h.flags.GetFlags(ctx, userID))
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maecare/airouter/src/middleware"
	"github.com/maecare/airouter/src/models"
	"github.com/maecare/airouter/src/router"
)

// ProviderLister reports which providers have a client.
type ProviderLister interface {
	Providers() []models.Provider
}

type RouteHandler struct {
	queryRouter *router.QueryRouter
	providers   ProviderLister
}

func NewRouteHandler(queryRouter *router.QueryRouter, providers ProviderLister) *RouteHandler {
	return &RouteHandler{queryRouter: queryRouter, providers: providers}
}

// HandleRoute previews the routing decision without calling a provider.
// An unavailable decision is returned as-is with available=false.
func (h *RouteHandler) HandleRoute(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.HistoryLength < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "history_length must not be negative"})
		return
	}

	decision, err := h.queryRouter.Route(c.Request.Context(), middleware.UserID(c), req.Message, req.HistoryLength)
	if err != nil && !errors.Is(err, router.ErrNoProviderAvailable) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Routing failed"})
		return
	}

	c.JSON(http.StatusOK, decision)
}

func (h *RouteHandler) HealthCheck(c *gin.Context) {
	var providers []models.Provider
	if h.providers != nil {
		providers = h.providers.Providers()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"providers": providers,
		"timestamp": time.Now(),
	})
}

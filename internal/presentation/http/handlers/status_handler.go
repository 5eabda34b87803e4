package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// StatusHandler serves operational health endpoints.
type StatusHandler struct {
	shops   *shop.Manager
	tracker *performance.Tracker
}

func NewStatusHandler(shops *shop.Manager, tracker *performance.Tracker) *StatusHandler {
	return &StatusHandler{shops: shops, tracker: tracker}
}

// DBStatus handles GET /api/v1/db/status.
func (h *StatusHandler) DBStatus(c *gin.Context) {
	pools := shop.GetPoolStats()

	healthy := pools["total"] == 0 || pools["active"] == pools["total"]
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"healthy":     healthy,
		"shops":       len(h.shops.Domains()),
		"connections": pools,
		"tracker":     h.tracker.GetOverallStats(),
	})
}

// Health handles GET /health.
func (h *StatusHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

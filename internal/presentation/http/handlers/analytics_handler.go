package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// AnalyticsHandler serves step-view event ingestion.
type AnalyticsHandler struct {
	shops  *shop.Manager
	events *services.EventService
}

func NewAnalyticsHandler(shops *shop.Manager, events *services.EventService) *AnalyticsHandler {
	return &AnalyticsHandler{shops: shops, events: events}
}

type stepViewRequest struct {
	ShopDomain   string `json:"shopDomain"`
	SessionToken string `json:"sessionToken"`
	PopupID      string `json:"popupId"`
	StepNumber   int    `json:"stepNumber"`
	StepType     string `json:"stepType"`
}

// StepView handles POST /api/v1/analytics/step-view. Accepted with 202; the
// widget fires and forgets.
func (h *AnalyticsHandler) StepView(c *gin.Context) {
	var req stepViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("analytics.step_view", "malformed request body"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	if err := h.events.RecordStepView(c.Request.Context(), shopCtx, req.PopupID, req.SessionToken, req.StepNumber, req.StepType); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

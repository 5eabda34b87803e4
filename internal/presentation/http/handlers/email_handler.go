package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// EmailHandler serves visitor email capture.
type EmailHandler struct {
	shops    *shop.Manager
	captures *services.EmailCaptureService
}

func NewEmailHandler(shops *shop.Manager, captures *services.EmailCaptureService) *EmailHandler {
	return &EmailHandler{shops: shops, captures: captures}
}

type collectEmailRequest struct {
	Email         string            `json:"email"`
	ShopDomain    string            `json:"shopDomain"`
	SessionToken  string            `json:"sessionToken"`
	PopupID       string            `json:"popupId"`
	QuizResponses map[string]string `json:"quizResponses"`
}

// Collect handles POST /api/v1/collect-email.
func (h *EmailHandler) Collect(c *gin.Context) {
	var req collectEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("email.capture", "malformed request body"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	result, err := h.captures.Capture(c.Request.Context(), shopCtx, services.CaptureRequest{
		Email:         req.Email,
		PopupID:       req.PopupID,
		SessionToken:  req.SessionToken,
		QuizResponses: req.QuizResponses,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

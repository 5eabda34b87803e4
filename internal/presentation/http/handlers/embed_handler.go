package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
	templates "github.com/popforge/popforge-go/internal/presentation/templates/popup"
)

// EmbedHandler serves the page-load bootstrap payload.
type EmbedHandler struct {
	shops  *shop.Manager
	popups *services.PopupService
}

func NewEmbedHandler(shops *shop.Manager, popups *services.PopupService) *EmbedHandler {
	return &EmbedHandler{shops: shops, popups: popups}
}

// Get handles GET /api/v1/popups/embed?shopDomain=&url=. It returns the
// active popup and its trigger config so the widget can arm itself. With
// format=html the first step comes back prerendered for hosts that embed
// markup directly.
func (h *EmbedHandler) Get(c *gin.Context) {
	shopCtx, ok := resolveShop(c, h.shops, c.Query("shopDomain"))
	if !ok {
		return
	}

	payload, err := h.popups.GetEmbed(c.Request.Context(), shopCtx)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "html" {
		if !payload.Enabled || payload.Popup == nil {
			c.Data(http.StatusOK, "text/html; charset=utf-8", nil)
			return
		}
		inner := templates.RenderStep(payload.Popup.StepAt(1))
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte(templates.RenderShell(payload.Popup, inner)))
		return
	}

	c.JSON(http.StatusOK, payload)
}

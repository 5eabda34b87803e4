package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/domain/session"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// SessionHandler serves the session lifecycle endpoints.
type SessionHandler struct {
	shops    *shop.Manager
	sessions *services.SessionService
	popups   *services.PopupService
}

func NewSessionHandler(shops *shop.Manager, sessions *services.SessionService, popups *services.PopupService) *SessionHandler {
	return &SessionHandler{shops: shops, sessions: sessions, popups: popups}
}

type createSessionRequest struct {
	ShopDomain string `json:"shopDomain"`
	PopupID    string `json:"popupId"`
	PageURL    string `json:"pageUrl"`
	UserAgent  string `json:"userAgent"`
}

// Create handles POST /api/v1/session/create.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("session.create", "malformed request body"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	sess, err := h.sessions.Create(c.Request.Context(), shopCtx, req.PopupID, req.PageURL, req.UserAgent)
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.popups.GetByID(c.Request.Context(), shopCtx, sess.PopupID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionToken": sess.Token,
		"currentStep":  sess.CurrentStep,
		"totalSteps":   sess.TotalSteps,
		"popup":        p,
	})
}

type validateSessionRequest struct {
	SessionToken string `json:"sessionToken"`
	ShopDomain   string `json:"shopDomain"`
}

// Validate handles POST /api/v1/session/validate.
func (h *SessionHandler) Validate(c *gin.Context) {
	var req validateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("session.validate", "malformed request body"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	sess, err := h.sessions.Validate(c.Request.Context(), shopCtx, req.SessionToken)
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.popups.GetByID(c.Request.Context(), shopCtx, sess.PopupID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionToken": sess.Token,
		"currentStep":  sess.CurrentStep,
		"totalSteps":   sess.TotalSteps,
		"responses":    sess.Responses,
		"isCompleted":  sess.IsCompleted(),
		"popup":        p,
	})
}

type progressSessionRequest struct {
	SessionToken string        `json:"sessionToken"`
	ShopDomain   string        `json:"shopDomain"`
	StepNumber   int           `json:"stepNumber"`
	StepResponse string        `json:"stepResponse"`
	Action       engine.Action `json:"action"`
}

// Progress handles POST /api/v1/session/progress.
func (h *SessionHandler) Progress(c *gin.Context) {
	var req progressSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("session.advance", "malformed request body"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	sess, err := h.sessions.Advance(c.Request.Context(), shopCtx, req.SessionToken, req.Action, req.StepNumber, req.StepResponse)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionToken": sess.Token,
		"currentStep":  sess.CurrentStep,
		"totalSteps":   sess.TotalSteps,
		"responses":    sess.Responses,
		"isCompleted":  sess.IsCompleted(),
		"nextStep":     h.nextStep(c, shopCtx, sess),
	})
}

// nextStep resolves the step definition the widget should render next, nil
// once the conversation is complete.
func (h *SessionHandler) nextStep(c *gin.Context, shopCtx *shop.Context, sess *session.CustomerSession) *popup.Step {
	if sess.IsCompleted() {
		return nil
	}
	p, err := h.popups.GetByID(c.Request.Context(), shopCtx, sess.PopupID)
	if err != nil {
		return nil
	}
	return p.StepAt(sess.CurrentStep)
}

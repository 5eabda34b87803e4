package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// DiscountHandler serves discount issuance.
type DiscountHandler struct {
	shops     *shop.Manager
	discounts *services.DiscountService
}

func NewDiscountHandler(shops *shop.Manager, discounts *services.DiscountService) *DiscountHandler {
	return &DiscountHandler{shops: shops, discounts: discounts}
}

type generateDiscountRequest struct {
	SessionToken string `json:"sessionToken"`
	ShopDomain   string `json:"shopDomain"`
}

// Generate handles POST /api/v1/discount/generate. Requesting twice for the
// same session returns the same code.
func (h *DiscountHandler) Generate(c *gin.Context) {
	var req generateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, engine.InvalidRequest("discount.issue", "malformed request body"))
		return
	}
	if req.SessionToken == "" {
		respondError(c, engine.InvalidRequest("discount.issue", "sessionToken is required"))
		return
	}

	shopCtx, ok := resolveShop(c, h.shops, req.ShopDomain)
	if !ok {
		return
	}

	result, err := h.discounts.Issue(c.Request.Context(), shopCtx, req.SessionToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"discountCode": result.Code,
		"discountInfo": result.Info,
	})
}

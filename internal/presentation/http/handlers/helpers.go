// Package handlers implements the storefront-facing HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// respondError translates a typed engine error into its HTTP shape. Internal
// details never reach the storefront.
func respondError(c *gin.Context, err error) {
	kind := engine.KindOf(err)

	status := http.StatusInternalServerError
	message := "internal error"

	switch kind {
	case engine.KindNotFound:
		status = http.StatusNotFound
		message = "not found"
	case engine.KindInvalidRequest:
		status = http.StatusBadRequest
		message = "invalid request"
	case engine.KindInvalidState:
		status = http.StatusConflict
		message = "operation not allowed in current state"
	}

	c.JSON(status, gin.H{"error": message, "kind": string(kind)})
}

// resolveShop maps a shopDomain to its activated context, writing the error
// response itself on failure.
func resolveShop(c *gin.Context, shops *shop.Manager, shopDomain string) (*shop.Context, bool) {
	if shopDomain == "" {
		respondError(c, engine.InvalidRequest("http.resolve", "shopDomain is required"))
		return nil, false
	}
	shopCtx, err := shops.Context(shopDomain)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return shopCtx, true
}

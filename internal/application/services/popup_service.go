// Package services contains the application layer of the conversation
// engine. Services enforce the domain rules, translate store failures into
// typed engine errors, and emit performance markers per operation.
package services

import (
	"context"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// PopupService serves popup definitions to the storefront. Content is
// read-only here; authoring happens in the merchant dashboard.
type PopupService struct {
	logger  *logging.ChanneledLogger
	tracker *performance.Tracker
	enabled bool
}

func NewPopupService(logger *logging.ChanneledLogger, tracker *performance.Tracker, enabled bool) *PopupService {
	return &PopupService{logger: logger, tracker: tracker, enabled: enabled}
}

// EmbedPayload is what the storefront loader receives: whether the engine
// will serve this shop at all, and if so which popup to render.
type EmbedPayload struct {
	Enabled bool         `json:"enabled"`
	Popup   *popup.Popup `json:"popup,omitempty"`
}

// GetEmbed returns the shop's active popup for storefront embedding. A shop
// with no active popup gets Enabled=false rather than an error; an empty
// storefront is a normal state.
func (s *PopupService) GetEmbed(ctx context.Context, shopCtx *shop.Context) (*EmbedPayload, error) {
	marker := s.tracker.StartOperation("popup.embed", shopCtx.ShopDomain)
	defer marker.Complete()

	if !s.enabled {
		return &EmbedPayload{Enabled: false}, nil
	}

	p, err := shopCtx.PopupRepo().GetActive(ctx)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("popup.embed", err)
	}
	if p == nil {
		return &EmbedPayload{Enabled: false}, nil
	}

	return &EmbedPayload{Enabled: true, Popup: p}, nil
}

// GetByID loads one popup, mapping absence to a typed not-found.
func (s *PopupService) GetByID(ctx context.Context, shopCtx *shop.Context, popupID string) (*popup.Popup, error) {
	p, err := shopCtx.PopupRepo().GetByID(ctx, popupID)
	if err != nil {
		return nil, engine.Internal("popup.get", err)
	}
	if p == nil {
		return nil, engine.NotFound("popup.get", "popup not found")
	}
	return p, nil
}

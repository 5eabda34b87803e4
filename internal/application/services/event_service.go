package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/repositories"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// EventService records step-view analytics. Recording is fire-and-forget
// from the storefront's point of view; the handler acknowledges before the
// write is durable.
type EventService struct {
	logger  *logging.ChanneledLogger
	tracker *performance.Tracker
}

func NewEventService(logger *logging.ChanneledLogger, tracker *performance.Tracker) *EventService {
	return &EventService{logger: logger, tracker: tracker}
}

// RecordStepView appends one step-view observation.
func (e *EventService) RecordStepView(ctx context.Context, shopCtx *shop.Context, popupID, sessionToken string, stepNumber int, stepType string) error {
	marker := e.tracker.StartOperation("analytics.step_view", shopCtx.ShopDomain)
	defer marker.Complete()

	if popupID == "" {
		marker.SetSuccess(false)
		return engine.InvalidRequest("analytics.step_view", "popupId is required")
	}
	if stepNumber < 1 {
		marker.SetSuccess(false)
		return engine.InvalidRequest("analytics.step_view", "stepNumber must be positive")
	}

	event := &repositories.StepViewEvent{
		ID:         uuid.NewString(),
		PopupID:    popupID,
		StepNumber: stepNumber,
		StepType:   stepType,
		CreatedAt:  time.Now().UTC(),
	}
	if sessionToken != "" {
		event.SessionToken = &sessionToken
	}

	if err := shopCtx.EventRepo().Create(ctx, event); err != nil {
		marker.SetError(err)
		return engine.Internal("analytics.step_view", err)
	}

	e.logger.Analytics().Debug("Recorded step view",
		slog.String("popupId", popupID),
		slog.Int("stepNumber", stepNumber),
		slog.String("shopDomain", shopCtx.ShopDomain))
	return nil
}

// StepCounts aggregates view counts per step for merchant reporting.
func (e *EventService) StepCounts(ctx context.Context, shopCtx *shop.Context, popupID string) (map[int]int, error) {
	counts, err := shopCtx.EventRepo().CountsByStep(ctx, popupID)
	if err != nil {
		return nil, engine.Internal("analytics.step_counts", err)
	}
	return counts, nil
}

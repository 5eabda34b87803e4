// Package container wires the engine's dependencies in one place.
package container

import (
	"context"

	"github.com/popforge/popforge-go/internal/application/services"
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/email"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
	"github.com/popforge/popforge-go/pkg/config"
)

// Container holds every long-lived dependency of the engine.
type Container struct {
	Logger       *logging.ChanneledLogger
	Tracker      *performance.Tracker
	CacheManager *caching.Manager
	ShopManager  *shop.Manager
	Sender       email.Sender

	PopupService        *services.PopupService
	SessionService      *services.SessionService
	DiscountService     *services.DiscountService
	EmailCaptureService *services.EmailCaptureService
	EventService        *services.EventService
	CleanupWorker       *services.CleanupWorker
}

// New builds the full dependency graph and activates every registered shop.
func New(ctx context.Context) (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, err
	}

	tracker := performance.NewTracker(performance.DefaultTrackerConfig())
	cacheManager := caching.NewManager()

	shopManager, err := shop.NewManager(cacheManager, logger)
	if err != nil {
		return nil, err
	}
	if err := shopManager.ActivateAll(ctx); err != nil {
		return nil, err
	}

	sender := email.NewSender(logger)
	enabled := config.EngineEnabled

	sessionService := services.NewSessionService(logger, tracker, enabled)
	discountService := services.NewDiscountService(logger, tracker, sender)

	return &Container{
		Logger:       logger,
		Tracker:      tracker,
		CacheManager: cacheManager,
		ShopManager:  shopManager,
		Sender:       sender,

		PopupService:        services.NewPopupService(logger, tracker, enabled),
		SessionService:      sessionService,
		DiscountService:     discountService,
		EmailCaptureService: services.NewEmailCaptureService(logger, tracker, sender, sessionService, discountService),
		EventService:        services.NewEventService(logger, tracker),
		CleanupWorker:       services.NewCleanupWorker(shopManager, cacheManager, logger),
	}, nil
}

// Close releases shop databases and flushes logging.
func (c *Container) Close() error {
	if err := c.ShopManager.Close(); err != nil {
		c.Logger.LogError(logging.ChannelShutdown, "container.close", err, "")
	}
	return c.Logger.Close()
}

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
	"github.com/popforge/popforge-go/pkg/config"
)

// CleanupWorker periodically evicts expired sessions from every shop's
// cache and record store. Expiry is already enforced at read time; the
// sweep only reclaims space.
type CleanupWorker struct {
	shops  *shop.Manager
	caches *caching.Manager
	logger *logging.ChanneledLogger
}

func NewCleanupWorker(shops *shop.Manager, caches *caching.Manager, logger *logging.ChanneledLogger) *CleanupWorker {
	return &CleanupWorker{shops: shops, caches: caches, logger: logger}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown().Info("Cleanup worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CleanupWorker) sweep(ctx context.Context) {
	now := time.Now().UTC()
	evicted := w.caches.EvictExpiredSessions(now)

	var deleted int64
	for _, domain := range w.shops.Domains() {
		shopCtx, err := w.shops.Context(domain)
		if err != nil {
			continue
		}
		n, err := shopCtx.SessionRepo().DeleteExpired(ctx, now)
		if err != nil {
			w.logger.LogError(logging.ChannelCache, "cleanup.sweep", err, domain)
			continue
		}
		deleted += n
	}

	if evicted > 0 || deleted > 0 {
		w.logger.Cache().Info("Expired session sweep complete",
			slog.Int("cacheEvicted", evicted),
			slog.Int64("rowsDeleted", deleted))
	}
}

package shop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
	"github.com/popforge/popforge-go/pkg/config"
)

// Manager owns every activated shop context and resolves request traffic to
// the right one by shop domain.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*Context

	registry     *Registry
	cacheManager *caching.Manager
	logger       *logging.ChanneledLogger
}

// NewManager loads the shop registry from config.ShopConfigPath.
func NewManager(cacheManager *caching.Manager, logger *logging.ChanneledLogger) (*Manager, error) {
	registry, err := LoadRegistry(config.ShopConfigPath)
	if err != nil {
		return nil, err
	}

	return &Manager{
		contexts:     make(map[string]*Context),
		registry:     registry,
		cacheManager: cacheManager,
		logger:       logger,
	}, nil
}

// ActivateAll opens every active shop's record store and ensures its schema.
// A shop that fails to activate is logged and skipped; one broken shop must
// not take the engine down.
func (m *Manager) ActivateAll(ctx context.Context) error {
	activated := 0
	for domain, cfg := range m.registry.Shops {
		if !cfg.IsActive() {
			m.logger.Shop().Info("Skipping disabled shop", slog.String("shopDomain", domain))
			continue
		}
		if len(m.contexts) >= config.MaxShops {
			return fmt.Errorf("shop limit reached (%d)", config.MaxShops)
		}
		if err := m.activate(ctx, cfg); err != nil {
			m.logger.LogError(logging.ChannelShop, "shop.activate", err, domain)
			continue
		}
		activated++
	}

	m.logger.Shop().Info("Shop activation complete",
		slog.Int("activated", activated),
		slog.Int("registered", len(m.registry.Shops)))
	return nil
}

func (m *Manager) activate(ctx context.Context, cfg *Config) error {
	db, err := NewDatabase(cfg)
	if err != nil {
		return err
	}

	m.cacheManager.InitializeShop(cfg.Domain)
	shopCtx := NewContext(cfg, db, m.cacheManager, m.logger)

	if err := database.EnsureSchema(ctx, shopCtx.DB); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}

	m.mu.Lock()
	m.contexts[cfg.Domain] = shopCtx
	m.mu.Unlock()

	m.logger.Shop().Info("Activated shop",
		slog.String("shopDomain", cfg.Domain),
		slog.String("database", db.GetConnectionInfo()))
	return nil
}

// NewManagerForTesting builds a manager over pre-activated contexts,
// bypassing the on-disk registry.
func NewManagerForTesting(contexts map[string]*Context, cacheManager *caching.Manager, logger *logging.ChanneledLogger) *Manager {
	return &Manager{
		contexts:     contexts,
		registry:     &Registry{Shops: make(map[string]*Config)},
		cacheManager: cacheManager,
		logger:       logger,
	}
}

// Context resolves a shop domain to its activated context. Unknown or
// inactive shops surface as not found so callers cannot probe the registry.
func (m *Manager) Context(shopDomain string) (*Context, error) {
	m.mu.RLock()
	shopCtx, ok := m.contexts[shopDomain]
	m.mu.RUnlock()

	if !ok {
		return nil, engine.NotFound("shop.resolve", fmt.Sprintf("unknown shop %q", shopDomain))
	}
	return shopCtx, nil
}

// Domains lists every activated shop domain.
func (m *Manager) Domains() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	domains := make([]string, 0, len(m.contexts))
	for domain := range m.contexts {
		domains = append(domains, domain)
	}
	return domains
}

// Close shuts down all shop databases.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.contexts = make(map[string]*Context)
	m.mu.Unlock()
	return CloseAllPools()
}

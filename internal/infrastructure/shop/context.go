package shop

import (
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/repositories"
)

// Context carries everything request handling needs for one shop: its
// configuration, record store, and caches. Contexts are created once at
// activation and shared across requests.
type Context struct {
	ShopDomain string
	Config     *Config
	Database   *Database
	DB         *database.DB

	cacheManager *caching.Manager
	logger       *logging.ChanneledLogger
}

// NewContext builds a shop context over an open database.
func NewContext(cfg *Config, db *Database, cacheManager *caching.Manager, logger *logging.ChanneledLogger) *Context {
	return &Context{
		ShopDomain:   cfg.Domain,
		Config:       cfg,
		Database:     db,
		DB:           database.New(db.Conn, cfg.Domain, logger),
		cacheManager: cacheManager,
		logger:       logger,
	}
}

// PopupRepo returns a popup repository bound to this shop.
func (c *Context) PopupRepo() *repositories.PopupRepository {
	return repositories.NewPopupRepository(c.DB, c.cacheManager.Popups(c.ShopDomain), c.logger)
}

// SessionRepo returns a session repository bound to this shop.
func (c *Context) SessionRepo() *repositories.SessionRepository {
	return repositories.NewSessionRepository(c.DB, c.cacheManager.Sessions(c.ShopDomain), c.logger)
}

// EmailRepo returns a collected-email repository bound to this shop.
func (c *Context) EmailRepo() *repositories.EmailRepository {
	return repositories.NewEmailRepository(c.DB, c.logger)
}

// EventRepo returns a step-view event repository bound to this shop.
func (c *Context) EventRepo() *repositories.EventRepository {
	return repositories.NewEventRepository(c.DB, c.logger)
}

// SessionCache returns this shop's session store.
func (c *Context) SessionCache() *caching.SessionStore {
	return c.cacheManager.Sessions(c.ShopDomain)
}

// Logger returns the shared channeled logger.
func (c *Context) Logger() *logging.ChanneledLogger {
	return c.logger
}

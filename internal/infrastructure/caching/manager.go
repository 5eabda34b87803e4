package caching

import (
	"sync"
	"time"

	"github.com/popforge/popforge-go/pkg/config"
)

// shopCache bundles the per-shop stores.
type shopCache struct {
	popups   *PopupStore
	sessions *SessionStore
}

// Manager owns every shop's in-memory stores.
type Manager struct {
	mu    sync.RWMutex
	shops map[string]*shopCache
}

func NewManager() *Manager {
	return &Manager{shops: make(map[string]*shopCache)}
}

// InitializeShop creates empty stores for a shop. Idempotent.
func (m *Manager) InitializeShop(shopDomain string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.shops[shopDomain]; exists {
		return
	}
	m.shops[shopDomain] = &shopCache{
		popups:   NewPopupStore(config.PopupCacheTTL),
		sessions: NewSessionStore(config.SessionCacheTTL, config.MaxSessionsPerShop),
	}
}

// RemoveShop drops a shop's stores entirely.
func (m *Manager) RemoveShop(shopDomain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shops, shopDomain)
}

func (m *Manager) get(shopDomain string) *shopCache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shops[shopDomain]
}

// Popups returns the popup store for a shop, or nil if uninitialized.
func (m *Manager) Popups(shopDomain string) *PopupStore {
	if c := m.get(shopDomain); c != nil {
		return c.popups
	}
	return nil
}

// Sessions returns the session store for a shop, or nil if uninitialized.
func (m *Manager) Sessions(shopDomain string) *SessionStore {
	if c := m.get(shopDomain); c != nil {
		return c.sessions
	}
	return nil
}

// EvictExpiredSessions sweeps every shop's session store and returns the
// total number of evicted entries.
func (m *Manager) EvictExpiredSessions(now time.Time) int {
	m.mu.RLock()
	stores := make([]*SessionStore, 0, len(m.shops))
	for _, c := range m.shops {
		stores = append(stores, c.sessions)
	}
	m.mu.RUnlock()

	total := 0
	for _, s := range stores {
		total += s.EvictExpired(now)
	}
	return total
}

// Stats reports per-shop cache sizes.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int, len(m.shops))
	for domain, c := range m.shops {
		stats[domain] = c.sessions.Len()
	}
	return stats
}

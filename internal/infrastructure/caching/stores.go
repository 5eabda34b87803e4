// Package caching provides per-shop in-memory stores for popup definitions
// and customer sessions. Stores are write-through caches over the record
// store; the database stays authoritative.
package caching

import (
	"sync"
	"time"

	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/domain/session"
)

type cachedPopup struct {
	popup     *popup.Popup
	expiresAt time.Time
}

// PopupStore caches active popup definitions by id.
type PopupStore struct {
	mu     sync.RWMutex
	items  map[string]*cachedPopup
	ttl    time.Duration
	active string // popup id currently served to the storefront, "" if none cached
}

func NewPopupStore(ttl time.Duration) *PopupStore {
	return &PopupStore{
		items: make(map[string]*cachedPopup),
		ttl:   ttl,
	}
}

func (s *PopupStore) Get(id string) (*popup.Popup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return item.popup, true
}

// GetActive returns the cached active popup, if any.
func (s *PopupStore) GetActive() (*popup.Popup, bool) {
	s.mu.RLock()
	id := s.active
	s.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return s.Get(id)
}

func (s *PopupStore) Set(p *popup.Popup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[p.ID] = &cachedPopup{popup: p, expiresAt: time.Now().Add(s.ttl)}
	if p.IsActive {
		s.active = p.ID
	}
}

func (s *PopupStore) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	if s.active == id {
		s.active = ""
	}
}

func (s *PopupStore) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*cachedPopup)
	s.active = ""
}

type cachedSession struct {
	session   *session.CustomerSession
	expiresAt time.Time
}

// SessionStore caches customer sessions by token.
type SessionStore struct {
	mu    sync.RWMutex
	items map[string]*cachedSession
	ttl   time.Duration
	max   int
}

func NewSessionStore(ttl time.Duration, max int) *SessionStore {
	return &SessionStore{
		items: make(map[string]*cachedSession),
		ttl:   ttl,
		max:   max,
	}
}

func (s *SessionStore) Get(token string) (*session.CustomerSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[token]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	// Clone so no two callers ever share a Responses map.
	return item.session.Clone(), true
}

func (s *SessionStore) Set(sess *session.CustomerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) >= s.max {
		s.evictExpiredLocked(time.Now())
		if len(s.items) >= s.max {
			// Cache full of live entries. Skip caching rather than
			// evicting a session another request may be serving.
			return
		}
	}

	expiry := time.Now().Add(s.ttl)
	if sess.ExpiresAt.Before(expiry) {
		expiry = sess.ExpiresAt
	}
	// Store a clone; the caller keeps mutating its own copy.
	s.items[sess.Token] = &cachedSession{session: sess.Clone(), expiresAt: expiry}
}

func (s *SessionStore) Evict(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

// EvictExpired removes expired entries and returns how many were dropped.
func (s *SessionStore) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(now)
}

func (s *SessionStore) evictExpiredLocked(now time.Time) int {
	evicted := 0
	for token, item := range s.items {
		if now.After(item.expiresAt) || item.session.IsExpired(now) {
			delete(s.items, token)
			evicted++
		}
	}
	return evicted
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

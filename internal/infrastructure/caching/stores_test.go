package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/domain/session"
)

func TestPopupStoreActiveTracking(t *testing.T) {
	store := NewPopupStore(time.Hour)

	active := &popup.Popup{ID: "p1", IsActive: true}
	inactive := &popup.Popup{ID: "p2", IsActive: false}
	store.Set(active)
	store.Set(inactive)

	got, ok := store.GetActive()
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)

	store.Invalidate("p1")
	_, ok = store.GetActive()
	assert.False(t, ok)

	// p2 is still retrievable by id.
	_, ok = store.Get("p2")
	assert.True(t, ok)
}

func TestSessionStoreHonorsSessionExpiry(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)

	// The cache entry lifetime caps at the session's own expiry.
	dead := session.New("tok_dead", "p1", 3, "", "", time.Now().UTC().Add(-25*time.Hour))
	store.Set(dead)
	_, ok := store.Get("tok_dead")
	assert.False(t, ok)

	live := session.New("tok_live", "p1", 3, "", "", time.Now().UTC())
	store.Set(live)
	_, ok = store.Get("tok_live")
	assert.True(t, ok)
}

func TestSessionStoreEvictExpired(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)
	now := time.Now().UTC()

	store.Set(session.New("tok_a", "p1", 3, "", "", now))
	store.Set(session.New("tok_b", "p1", 3, "", "", now.Add(-25*time.Hour)))
	require.Equal(t, 2, store.Len())

	evicted := store.EvictExpired(now)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreIsolatesCallers(t *testing.T) {
	store := NewSessionStore(time.Hour, 10)

	original := session.New("tok_iso", "p1", 3, "", "", time.Now().UTC())
	store.Set(original)

	// Mutating the caller's copy after Set must not reach the cache.
	original.Responses["step_1"] = "mutated-after-set"
	first, ok := store.Get("tok_iso")
	require.True(t, ok)
	assert.Empty(t, first.Responses)

	// Two readers never share a Responses map.
	second, ok := store.Get("tok_iso")
	require.True(t, ok)
	first.Responses["step_1"] = "reader-one"
	assert.Empty(t, second.Responses)
}

func TestSessionStoreCapRefusesOverfill(t *testing.T) {
	store := NewSessionStore(time.Hour, 2)
	now := time.Now().UTC()

	store.Set(session.New("tok_1", "p1", 3, "", "", now))
	store.Set(session.New("tok_2", "p1", 3, "", "", now))
	store.Set(session.New("tok_3", "p1", 3, "", "", now))

	// Live entries are never evicted to make room.
	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("tok_3")
	assert.False(t, ok)
}

func TestManagerPerShopIsolation(t *testing.T) {
	m := NewManager()
	m.InitializeShop("a.example")
	m.InitializeShop("b.example")

	m.Sessions("a.example").Set(session.New("tok_a", "p1", 3, "", "", time.Now().UTC()))

	_, ok := m.Sessions("b.example").Get("tok_a")
	assert.False(t, ok)
	_, ok = m.Sessions("a.example").Get("tok_a")
	assert.True(t, ok)

	assert.Nil(t, m.Sessions("unknown.example"))
}

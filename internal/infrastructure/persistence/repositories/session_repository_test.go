package repositories

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/session"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		DefaultLevel:  slog.LevelError,
		ChannelLevels: map[logging.Channel]slog.Level{},
	})
	require.NoError(t, err)

	db := database.New(conn, "repo-test.example", logger)
	require.NoError(t, database.EnsureSchema(context.Background(), db))
	return db
}

func newSessionRepo(t *testing.T) *SessionRepository {
	t.Helper()
	db := newTestDB(t)
	// No cache: these tests pin down the SQL layer itself.
	return NewSessionRepository(db, nil, mustLogger(t))
}

func mustLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		DefaultLevel:  slog.LevelError,
		ChannelLevels: map[logging.Channel]slog.Level{},
	})
	require.NoError(t, err)
	return logger
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s := session.New("tok_rt", "popup_1", 3, "https://shop.example/p", "ua", now)
	require.NoError(t, s.Apply(engine.ActionAnswer, 1, "opt_a", now))
	require.NoError(t, repo.Create(ctx, s))

	got, err := repo.GetByToken(ctx, "tok_rt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, s.Token, got.Token)
	assert.Equal(t, s.CurrentStep, got.CurrentStep)
	assert.Equal(t, s.Responses, got.Responses)
	assert.Equal(t, s.Version, got.Version)
	assert.Nil(t, got.DiscountCode)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, s.ExpiresAt.Equal(got.ExpiresAt))
}

func TestGetByTokenMissingReturnsNil(t *testing.T) {
	repo := newSessionRepo(t)
	got, err := repo.GetByToken(context.Background(), "tok_ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateVersionGuard(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s := session.New("tok_v", "popup_1", 3, "", "", now)
	require.NoError(t, repo.Create(ctx, s))

	// Writer A advances from version 1.
	a, err := repo.GetByToken(ctx, "tok_v")
	require.NoError(t, err)
	prevA := a.Version
	require.NoError(t, a.Apply(engine.ActionAnswer, 1, "a", now))
	require.NoError(t, repo.Update(ctx, a, prevA))

	// Writer B still holds version 1; its write must lose.
	b := session.New("tok_v", "popup_1", 3, "", "", now)
	require.NoError(t, b.Apply(engine.ActionAnswer, 1, "b", now))
	err = repo.Update(ctx, b, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := repo.GetByToken(ctx, "tok_v")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Responses["step_1"])
}

func TestClaimDiscountCodeOnlyOnce(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()

	s := session.New("tok_d", "popup_1", 3, "", "", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, s))

	claimed, err := repo.ClaimDiscountCode(ctx, "tok_d", "SAVE-AAAA")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimDiscountCode(ctx, "tok_d", "SAVE-BBBB")
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	got, err := repo.GetByToken(ctx, "tok_d")
	require.NoError(t, err)
	require.NotNil(t, got.DiscountCode)
	assert.Equal(t, "SAVE-AAAA", *got.DiscountCode)
}

func TestDeleteExpired(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, session.New("tok_live", "p", 3, "", "", now)))
	require.NoError(t, repo.Create(ctx, session.New("tok_old", "p", 3, "", "", now.Add(-25*time.Hour))))

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	got, err := repo.GetByToken(ctx, "tok_live")
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = repo.GetByToken(ctx, "tok_old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCompletedAtAndDiscountPersist(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s := session.New("tok_c", "popup_1", 2, "", "", now)
	require.NoError(t, repo.Create(ctx, s))

	prev := s.Version
	require.NoError(t, s.Apply(engine.ActionComplete, 0, "", now))
	require.NoError(t, repo.Update(ctx, s, prev))

	claimed, err := repo.ClaimDiscountCode(ctx, "tok_c", "SAVE-CCCC")
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := repo.GetByToken(ctx, "tok_c")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Equal(*got.CompletedAt))
	require.NotNil(t, got.DiscountCode)
	assert.Equal(t, 2, got.CurrentStep)
}

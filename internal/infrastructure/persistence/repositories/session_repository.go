package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/popforge/popforge-go/internal/domain/session"
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
)

// ErrVersionConflict is returned when an optimistic update loses the race
// against a concurrent write to the same session.
var ErrVersionConflict = fmt.Errorf("session version conflict")

// SessionRepository persists customer sessions keyed by opaque token.
type SessionRepository struct {
	db     *database.DB
	cache  *caching.SessionStore
	logger *logging.ChanneledLogger
}

func NewSessionRepository(db *database.DB, cache *caching.SessionStore, logger *logging.ChanneledLogger) *SessionRepository {
	return &SessionRepository{db: db, cache: cache, logger: logger}
}

// Create inserts a fresh session.
func (r *SessionRepository) Create(ctx context.Context, s *session.CustomerSession) error {
	responsesJSON, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("failed to marshal responses: %w", err)
	}

	query := `INSERT INTO customer_sessions
		(session_token, popup_id, current_step, total_steps, responses, discount_code,
		 completed_at, page_url, user_agent, version, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		s.Token, s.PopupID, s.CurrentStep, s.TotalSteps, string(responsesJSON),
		s.DiscountCode, formatNullableTime(s.CompletedAt), s.PageURL, s.UserAgent,
		s.Version, s.CreatedAt.UTC().Format(time.RFC3339Nano), s.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if r.cache != nil {
		r.cache.Set(s)
	}

	r.logger.Database().Debug("Created session",
		slog.String("sessionToken", logging.SanitizeToken(s.Token)),
		slog.String("shopDomain", r.db.ShopDomain()))
	return nil
}

// GetByToken returns a session by token, or nil when absent. Expiry is not
// checked here; callers decide what a past-expiry row means.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*session.CustomerSession, error) {
	if r.cache != nil {
		if s, ok := r.cache.Get(token); ok {
			return s, nil
		}
	}

	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	query := `SELECT session_token, popup_id, current_step, total_steps, responses, discount_code,
		completed_at, page_url, user_agent, version, created_at, expires_at
		FROM customer_sessions WHERE session_token = ?`

	s, err := r.scanSession(r.db.QueryRowContext(ctx, query, token))
	if err != nil || s == nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(s)
	}
	return s, nil
}

// Update writes a mutated session back, guarded by its previous version.
// Returns ErrVersionConflict when a concurrent writer got there first.
func (r *SessionRepository) Update(ctx context.Context, s *session.CustomerSession, previousVersion int64) error {
	responsesJSON, err := json.Marshal(s.Responses)
	if err != nil {
		return fmt.Errorf("failed to marshal responses: %w", err)
	}

	query := `UPDATE customer_sessions SET
		current_step = ?, responses = ?, completed_at = ?, version = ?
		WHERE session_token = ? AND version = ?`

	result, err := r.db.ExecContext(ctx, query,
		s.CurrentStep, string(responsesJSON), formatNullableTime(s.CompletedAt),
		s.Version, s.Token, previousVersion)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		if r.cache != nil {
			r.cache.Evict(s.Token)
		}
		return ErrVersionConflict
	}

	if r.cache != nil {
		r.cache.Set(s)
	}
	return nil
}

// ClaimDiscountCode stores a discount code on the session only if none is
// present yet. Returns true when this call won the claim. The conditional
// update makes issuance exactly-once under concurrent requests.
func (r *SessionRepository) ClaimDiscountCode(ctx context.Context, token, code string) (bool, error) {
	query := `UPDATE customer_sessions SET discount_code = ?, version = version + 1
		WHERE session_token = ? AND discount_code IS NULL`

	result, err := r.db.ExecContext(ctx, query, code, token)
	if err != nil {
		return false, fmt.Errorf("failed to claim discount code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check claim result: %w", err)
	}

	if r.cache != nil {
		r.cache.Evict(token)
	}
	return affected > 0, nil
}

// DeleteExpired removes sessions past their lifetime and returns how many
// rows were dropped.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM customer_sessions WHERE expires_at <= ?`,
		now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func (r *SessionRepository) scanSession(row *sql.Row) (*session.CustomerSession, error) {
	var s session.CustomerSession
	var responsesJSON, createdAt, expiresAt string
	var completedAt sql.NullString
	var discountCode sql.NullString
	var pageURL, userAgent sql.NullString

	err := row.Scan(&s.Token, &s.PopupID, &s.CurrentStep, &s.TotalSteps, &responsesJSON,
		&discountCode, &completedAt, &pageURL, &userAgent, &s.Version, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(responsesJSON), &s.Responses); err != nil {
		return nil, fmt.Errorf("failed to parse responses: %w", err)
	}
	if s.Responses == nil {
		s.Responses = make(map[string]string)
	}
	if discountCode.Valid {
		s.DiscountCode = &discountCode.String
	}
	if completedAt.Valid && completedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err == nil {
			s.CompletedAt = &t
		}
	}
	s.PageURL = pageURL.String
	s.UserAgent = userAgent.String
	s.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	s.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
	return &s, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

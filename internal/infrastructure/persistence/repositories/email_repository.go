package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/popforge/popforge-go/internal/domain/identity"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
)

// EmailRepository persists captured visitor emails. Records are append-only;
// repeated submissions create independent rows.
type EmailRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewEmailRepository(db *database.DB, logger *logging.ChanneledLogger) *EmailRepository {
	return &EmailRepository{db: db, logger: logger}
}

// Create appends one collected email record.
func (r *EmailRepository) Create(ctx context.Context, e *identity.CollectedEmail) error {
	var snapshotJSON any
	if e.ResponsesSnapshot != nil {
		data, err := json.Marshal(e.ResponsesSnapshot)
		if err != nil {
			return fmt.Errorf("failed to marshal responses snapshot: %w", err)
		}
		snapshotJSON = string(data)
	}

	query := `INSERT INTO collected_emails (id, email, popup_id, session_token, responses_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Email, e.PopupID, e.SessionToken, snapshotJSON,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert collected email: %w", err)
	}

	r.logger.Database().Debug("Stored collected email",
		slog.String("emailId", e.ID),
		slog.String("shopDomain", r.db.ShopDomain()))
	return nil
}

// LatestBySessionToken returns the address most recently captured for a
// session, or "" when none exists.
func (r *EmailRepository) LatestBySessionToken(ctx context.Context, token string) (string, error) {
	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	var address string
	err := r.db.QueryRowContext(ctx,
		`SELECT email FROM collected_emails WHERE session_token = ? ORDER BY created_at DESC LIMIT 1`,
		token).Scan(&address)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up collected email: %w", err)
	}
	return address, nil
}

// CountByEmail returns how many capture records exist for an address.
func (r *EmailRepository) CountByEmail(ctx context.Context, email string) (int, error) {
	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collected_emails WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count collected emails: %w", err)
	}
	return count, nil
}

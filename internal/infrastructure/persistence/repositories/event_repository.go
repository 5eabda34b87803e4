package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
)

// StepViewEvent is one recorded analytics observation that a visitor saw a
// popup step.
type StepViewEvent struct {
	ID           string    `json:"id"`
	PopupID      string    `json:"popupId"`
	SessionToken *string   `json:"sessionToken,omitempty"`
	StepNumber   int       `json:"stepNumber"`
	StepType     string    `json:"stepType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// EventRepository persists step-view analytics events. Events are
// append-only and best-effort; losing one never affects a conversation.
type EventRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewEventRepository(db *database.DB, logger *logging.ChanneledLogger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

// Create appends one step-view event.
func (r *EventRepository) Create(ctx context.Context, e *StepViewEvent) error {
	query := `INSERT INTO step_view_events (id, popup_id, session_token, step_number, step_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.PopupID, e.SessionToken, e.StepNumber, e.StepType,
		e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert step view event: %w", err)
	}
	return nil
}

// CountsByStep returns view counts per step number for a popup.
func (r *EventRepository) CountsByStep(ctx context.Context, popupID string) (map[int]int, error) {
	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT step_number, COUNT(*) FROM step_view_events WHERE popup_id = ? GROUP BY step_number`,
		popupID)
	if err != nil {
		return nil, fmt.Errorf("failed to count step views: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var step, count int
		if err := rows.Scan(&step, &count); err != nil {
			return nil, fmt.Errorf("failed to scan step view count: %w", err)
		}
		counts[step] = count
	}
	return counts, rows.Err()
}

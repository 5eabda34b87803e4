// Package repositories contains the raw SQL persistence layer. Repositories
// return nil for missing rows; error kind mapping belongs to the services.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
)

// PopupRepository loads popup definitions. The engine treats popup content
// as strictly read-only; writes come from the merchant dashboard.
type PopupRepository struct {
	db     *database.DB
	cache  *caching.PopupStore
	logger *logging.ChanneledLogger
}

func NewPopupRepository(db *database.DB, cache *caching.PopupStore, logger *logging.ChanneledLogger) *PopupRepository {
	return &PopupRepository{db: db, cache: cache, logger: logger}
}

// GetActive returns the shop's currently active popup with its steps, or
// nil when no popup is active.
func (r *PopupRepository) GetActive(ctx context.Context) (*popup.Popup, error) {
	if r.cache != nil {
		if p, ok := r.cache.GetActive(); ok {
			return p, nil
		}
	}

	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	query := `SELECT id, title, type, is_active, total_steps, trigger_config, created_at, updated_at
		FROM popups WHERE is_active = 1 ORDER BY updated_at DESC LIMIT 1`

	p, err := r.scanPopup(r.db.QueryRowContext(ctx, query))
	if err != nil || p == nil {
		return nil, err
	}

	if err := r.loadSteps(ctx, p); err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(p)
	}

	r.logger.Database().Debug("Loaded active popup",
		slog.String("popupId", p.ID),
		slog.String("shopDomain", r.db.ShopDomain()))

	return p, nil
}

// GetByID returns one popup with its steps, or nil when absent.
func (r *PopupRepository) GetByID(ctx context.Context, id string) (*popup.Popup, error) {
	if r.cache != nil {
		if p, ok := r.cache.Get(id); ok {
			return p, nil
		}
	}

	ctx, cancel := database.QueryTimeout(ctx)
	defer cancel()

	query := `SELECT id, title, type, is_active, total_steps, trigger_config, created_at, updated_at
		FROM popups WHERE id = ?`

	p, err := r.scanPopup(r.db.QueryRowContext(ctx, query, id))
	if err != nil || p == nil {
		return nil, err
	}

	if err := r.loadSteps(ctx, p); err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(p)
	}
	return p, nil
}

func (r *PopupRepository) scanPopup(row *sql.Row) (*popup.Popup, error) {
	var p popup.Popup
	var isActive int
	var triggerJSON, createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Title, &p.Kind, &isActive, &p.TotalSteps, &triggerJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan popup: %w", err)
	}

	p.IsActive = isActive != 0
	if err := json.Unmarshal([]byte(triggerJSON), &p.Trigger); err != nil {
		return nil, fmt.Errorf("failed to parse trigger config for popup %s: %w", p.ID, err)
	}
	p.Trigger = p.Trigger.Clamped()
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

func (r *PopupRepository) loadSteps(ctx context.Context, p *popup.Popup) error {
	query := `SELECT id, popup_id, step_number, step_type, content
		FROM popup_steps WHERE popup_id = ? ORDER BY step_number ASC`

	rows, err := r.db.QueryContext(ctx, query, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load steps for popup %s: %w", p.ID, err)
	}
	defer rows.Close()

	var steps []popup.Step
	for rows.Next() {
		var s popup.Step
		var contentJSON string
		if err := rows.Scan(&s.ID, &s.PopupID, &s.StepNumber, &s.StepType, &contentJSON); err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal([]byte(contentJSON), &s.Content); err != nil {
			return fmt.Errorf("failed to parse content for step %s: %w", s.ID, err)
		}
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	p.Steps = steps
	return nil
}

// Upsert writes a popup definition and its steps. Used by provisioning and
// test fixtures, not by the storefront request path.
func (r *PopupRepository) Upsert(ctx context.Context, p *popup.Popup) error {
	triggerJSON, err := json.Marshal(p.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	query := `INSERT INTO popups (id, title, type, is_active, total_steps, trigger_config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			is_active = excluded.is_active,
			total_steps = excluded.total_steps,
			trigger_config = excluded.trigger_config,
			updated_at = excluded.updated_at`

	isActive := 0
	if p.IsActive {
		isActive = 1
	}

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Title, string(p.Kind), isActive, p.TotalSteps, string(triggerJSON),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert popup %s: %w", p.ID, err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM popup_steps WHERE popup_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear steps for popup %s: %w", p.ID, err)
	}

	for i := range p.Steps {
		s := &p.Steps[i]
		contentJSON, err := json.Marshal(s.Content)
		if err != nil {
			return fmt.Errorf("failed to marshal content for step %d: %w", s.StepNumber, err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO popup_steps (id, popup_id, step_number, step_type, content) VALUES (?, ?, ?, ?, ?)`,
			s.ID, p.ID, s.StepNumber, string(s.StepType), string(contentJSON))
		if err != nil {
			return fmt.Errorf("failed to insert step %d for popup %s: %w", s.StepNumber, p.ID, err)
		}
	}

	if r.cache != nil {
		r.cache.Invalidate(p.ID)
	}
	return nil
}

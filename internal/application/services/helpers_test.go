package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/infrastructure/caching"
	"github.com/popforge/popforge-go/internal/infrastructure/email"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/database"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   map[logging.Channel]slog.Level{},
	})
	require.NoError(t, err)
	return logger
}

// newTestShop spins up a throwaway shop over a temp sqlite file with its
// schema applied.
func newTestShop(t *testing.T, domain string) *shop.Context {
	t.Helper()

	logger := newTestLogger(t)
	cfg := &shop.Config{
		Domain:         domain,
		Status:         "active",
		SQLitePath:     filepath.Join(t.TempDir(), "shop.db"),
		JWTSecret:      "test-secret",
		DiscountPrefix: "SAVE",
	}

	db, err := shop.NewDatabase(cfg)
	require.NoError(t, err)

	caches := caching.NewManager()
	caches.InitializeShop(domain)

	shopCtx := shop.NewContext(cfg, db, caches, logger)
	require.NoError(t, database.EnsureSchema(context.Background(), shopCtx.DB))
	return shopCtx
}

type testEnv struct {
	shop      *shop.Context
	sessions  *SessionService
	popups    *PopupService
	discounts *DiscountService
	captures  *EmailCaptureService
	events    *EventService
}

func newTestEnv(t *testing.T, enabled bool) *testEnv {
	t.Helper()

	shopCtx := newTestShop(t, "test-shop.example")
	logger := shopCtx.Logger()
	tracker := performance.NewTracker(nil)
	sender := &email.NoopSender{}

	sessions := NewSessionService(logger, tracker, enabled)
	discounts := NewDiscountService(logger, tracker, sender)

	return &testEnv{
		shop:      shopCtx,
		sessions:  sessions,
		popups:    NewPopupService(logger, tracker, enabled),
		discounts: discounts,
		captures:  NewEmailCaptureService(logger, tracker, sender, sessions, discounts),
		events:    NewEventService(logger, tracker),
	}
}

// seedPopup writes a three-step quiz-to-discount popup and returns it.
func seedPopup(t *testing.T, shopCtx *shop.Context, kind popup.Kind) *popup.Popup {
	t.Helper()

	now := time.Now().UTC()
	p := &popup.Popup{
		ID:         "popup_" + string(kind),
		Title:      "Spring offer",
		Kind:       kind,
		IsActive:   true,
		TotalSteps: 3,
		Trigger:    popup.TriggerConfig{Type: popup.TriggerDelay, Value: 5},
		CreatedAt:  now,
		UpdatedAt:  now,
		Steps: []popup.Step{
			{
				ID: "step_q", StepNumber: 1, StepType: popup.StepQuestion,
				Content: popup.Content{Question: &popup.QuestionContent{
					Prompt: "What are you shopping for?",
					Options: []popup.QuestionOption{
						{ID: "opt_a", Label: "Myself"},
						{ID: "opt_b", Label: "A gift"},
					},
				}},
			},
			{
				ID: "step_e", StepNumber: 2, StepType: popup.StepEmail,
				Content: popup.Content{Email: &popup.EmailContent{
					Headline: "Unlock your discount", Placeholder: "you@example.com",
				}},
			},
			{
				ID: "step_d", StepNumber: 3, StepType: popup.StepDiscountReveal,
				Content: popup.Content{Discount: &popup.DiscountContent{
					Headline: "Here's your code", ValidityText: "Valid for 7 days",
				}},
			},
		},
	}
	for i := range p.Steps {
		p.Steps[i].PopupID = p.ID
	}

	require.NoError(t, shopCtx.PopupRepo().Upsert(context.Background(), p))
	return p
}

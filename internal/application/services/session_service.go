package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/session"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/persistence/repositories"
	"github.com/popforge/popforge-go/internal/infrastructure/security"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// tokenStripes is the number of session mutation locks. Mutations on the
// same token always serialize; unrelated tokens rarely share a stripe.
const tokenStripes = 64

// SessionService owns the customer session lifecycle: creation, validation,
// and step progression. Whether the engine serves traffic at all is decided
// once at construction, not per request.
type SessionService struct {
	logger  *logging.ChanneledLogger
	tracker *performance.Tracker
	enabled bool

	locks [tokenStripes]sync.Mutex
}

func NewSessionService(logger *logging.ChanneledLogger, tracker *performance.Tracker, enabled bool) *SessionService {
	return &SessionService{logger: logger, tracker: tracker, enabled: enabled}
}

// Enabled reports whether the engine serves storefront traffic.
func (s *SessionService) Enabled() bool { return s.enabled }

func (s *SessionService) tokenLock(token string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(token))
	return &s.locks[h.Sum32()%tokenStripes]
}

// Create starts a new conversation session against a popup.
func (s *SessionService) Create(ctx context.Context, shopCtx *shop.Context, popupID, pageURL, userAgent string) (*session.CustomerSession, error) {
	marker := s.tracker.StartOperation("session.create", shopCtx.ShopDomain)
	defer marker.Complete()

	if !s.enabled {
		marker.SetSuccess(false)
		return nil, engine.InvalidState("session.create", "engine is disabled")
	}
	if popupID == "" {
		marker.SetSuccess(false)
		return nil, engine.InvalidRequest("session.create", "popupId is required")
	}

	p, err := shopCtx.PopupRepo().GetByID(ctx, popupID)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("session.create", err)
	}
	if p == nil || !p.IsActive {
		marker.SetSuccess(false)
		return nil, engine.NotFound("session.create", "popup not found")
	}

	token, err := security.GenerateSessionToken()
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("session.create", err)
	}

	sess := session.New(token, p.ID, p.TotalSteps, pageURL, userAgent, time.Now().UTC())
	if err := shopCtx.SessionRepo().Create(ctx, sess); err != nil {
		marker.SetError(err)
		return nil, engine.Internal("session.create", err)
	}

	marker.AddMetadata("popupId", p.ID)
	s.logger.Session().Info("Session created",
		slog.String("sessionToken", logging.SanitizeToken(token)),
		slog.String("popupId", p.ID),
		slog.String("shopDomain", shopCtx.ShopDomain))
	return sess, nil
}

// Validate resolves a token to its live session. Expired sessions behave
// exactly like missing ones, and so does a session whose popup the merchant
// has since deactivated.
func (s *SessionService) Validate(ctx context.Context, shopCtx *shop.Context, token string) (*session.CustomerSession, error) {
	marker := s.tracker.StartOperation("session.validate", shopCtx.ShopDomain)
	defer marker.Complete()

	if !s.enabled {
		marker.SetSuccess(false)
		return nil, engine.InvalidState("session.validate", "engine is disabled")
	}

	sess, err := s.load(ctx, shopCtx.SessionRepo(), token, "session.validate")
	if err != nil {
		marker.SetSuccess(false)
		return nil, err
	}

	p, err := shopCtx.PopupRepo().GetByID(ctx, sess.PopupID)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("session.validate", err)
	}
	if p == nil || !p.IsActive {
		marker.SetSuccess(false)
		return nil, engine.NotFound("session.validate", "popup no longer active")
	}
	return sess, nil
}

// Advance applies one progress action to a session. Writes to the same
// token are serialized through a striped lock, and the row update is still
// version-guarded against writers in other processes.
func (s *SessionService) Advance(ctx context.Context, shopCtx *shop.Context, token string, action engine.Action, stepNumber int, response string) (*session.CustomerSession, error) {
	marker := s.tracker.StartOperation("session.advance", shopCtx.ShopDomain)
	defer marker.Complete()

	if !s.enabled {
		marker.SetSuccess(false)
		return nil, engine.InvalidState("session.advance", "engine is disabled")
	}
	if !action.Valid() {
		marker.SetSuccess(false)
		return nil, engine.InvalidRequest("session.advance", fmt.Sprintf("unknown action %q", action))
	}

	lock := s.tokenLock(token)
	lock.Lock()
	defer lock.Unlock()

	repo := shopCtx.SessionRepo()

	const maxAttempts = 3
	for attempt := 1; ; attempt++ {
		sess, err := s.load(ctx, repo, token, "session.advance")
		if err != nil {
			marker.SetSuccess(false)
			return nil, err
		}

		if sess.IsCompleted() && action == engine.ActionAnswer {
			marker.SetSuccess(false)
			return nil, engine.InvalidState("session.advance", "session already completed")
		}

		previousVersion := sess.Version
		if err := sess.Apply(action, stepNumber, response, time.Now().UTC()); err != nil {
			marker.SetSuccess(false)
			return nil, err
		}

		err = repo.Update(ctx, sess, previousVersion)
		if err == nil {
			marker.AddMetadata("action", string(action))
			s.logger.Session().Debug("Session advanced",
				slog.String("sessionToken", logging.SanitizeToken(token)),
				slog.String("action", string(action)),
				slog.Int("currentStep", sess.CurrentStep),
				slog.String("shopDomain", shopCtx.ShopDomain))
			return sess, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			marker.SetError(err)
			return nil, engine.Internal("session.advance", err)
		}
		if attempt >= maxAttempts {
			marker.SetSuccess(false)
			return nil, engine.Internal("session.advance", repositories.ErrVersionConflict)
		}
	}
}

// load fetches a session and filters expiry at read time.
func (s *SessionService) load(ctx context.Context, repo *repositories.SessionRepository, token, op string) (*session.CustomerSession, error) {
	if token == "" {
		return nil, engine.InvalidRequest(op, "sessionToken is required")
	}

	sess, err := repo.GetByToken(ctx, token)
	if err != nil {
		return nil, engine.Internal(op, err)
	}
	if sess == nil || sess.IsExpired(time.Now().UTC()) {
		return nil, engine.NotFound(op, "session not found")
	}
	return sess, nil
}

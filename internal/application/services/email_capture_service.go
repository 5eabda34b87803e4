package services

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/identity"
	"github.com/popforge/popforge-go/internal/infrastructure/email"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/security"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// EmailCaptureService records visitor email submissions, completes the
// linked session, and triggers discount issuance for discount-bearing
// popups. Captures are deliberately permissive: the same address may be
// submitted any number of times, and a capture without a live session still
// succeeds with an unlinked record.
type EmailCaptureService struct {
	logger    *logging.ChanneledLogger
	tracker   *performance.Tracker
	sender    email.Sender
	sessions  *SessionService
	discounts *DiscountService
}

func NewEmailCaptureService(logger *logging.ChanneledLogger, tracker *performance.Tracker, sender email.Sender, sessions *SessionService, discounts *DiscountService) *EmailCaptureService {
	return &EmailCaptureService{
		logger:    logger,
		tracker:   tracker,
		sender:    sender,
		sessions:  sessions,
		discounts: discounts,
	}
}

// CaptureRequest carries one email submission.
type CaptureRequest struct {
	Email         string
	PopupID       string
	SessionToken  string
	QuizResponses map[string]string
}

// CaptureResult is the outcome of an email submission.
type CaptureResult struct {
	ID           string `json:"id"`
	DiscountCode string `json:"discountCode,omitempty"`
	ProfileToken string `json:"profileToken,omitempty"`
}

// Capture stores an email submission. When a live session resolves, the
// capture completes it, snapshots its responses, and for discount-bearing
// popup kinds issues the code in the same stroke. The capture record itself
// is written unconditionally.
func (e *EmailCaptureService) Capture(ctx context.Context, shopCtx *shop.Context, req CaptureRequest) (*CaptureResult, error) {
	marker := e.tracker.StartOperation("email.capture", shopCtx.ShopDomain)
	defer marker.Complete()

	address := strings.TrimSpace(strings.ToLower(req.Email))
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		marker.SetSuccess(false)
		return nil, engine.InvalidRequest("email.capture", "invalid email address")
	}

	record := &identity.CollectedEmail{
		ID:                uuid.NewString(),
		Email:             address,
		ResponsesSnapshot: req.QuizResponses,
		CreatedAt:         time.Now().UTC(),
	}
	if req.PopupID != "" {
		record.PopupID = &req.PopupID
	}

	// A stale or missing token degrades the record to unlinked rather than
	// failing the capture.
	var discountCode string
	if req.SessionToken != "" {
		sess, err := shopCtx.SessionRepo().GetByToken(ctx, req.SessionToken)
		if err != nil {
			marker.SetError(err)
			return nil, engine.Internal("email.capture", err)
		}
		if sess != nil && !sess.IsExpired(time.Now().UTC()) {
			record.SessionToken = &req.SessionToken
			if record.ResponsesSnapshot == nil {
				record.ResponsesSnapshot = sess.SnapshotResponses()
			}
			if record.PopupID == nil {
				record.PopupID = &sess.PopupID
			}
			discountCode = e.finishSession(ctx, shopCtx, sess.PopupID, req.SessionToken)
		}
	}

	if err := shopCtx.EmailRepo().Create(ctx, record); err != nil {
		marker.SetError(err)
		return nil, engine.Internal("email.capture", err)
	}

	profile := &identity.Profile{Email: address}
	if record.SessionToken != nil {
		profile.SessionToken = *record.SessionToken
	}
	if record.PopupID != nil {
		profile.PopupID = *record.PopupID
	}

	profileToken, err := security.GenerateProfileToken(profile, shopCtx.Config.JWTSecret)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("email.capture", err)
	}

	e.logger.Email().Info("Email captured",
		slog.String("emailId", record.ID),
		slog.Bool("linkedToSession", record.SessionToken != nil),
		slog.Bool("discountIssued", discountCode != ""),
		slog.String("shopDomain", shopCtx.ShopDomain))

	// Delivery is best-effort and off the request path.
	if discountCode != "" {
		go e.sendDiscount(address, discountCode, shopCtx)
	} else {
		go e.sendWelcome(address, shopCtx)
	}

	return &CaptureResult{
		ID:           record.ID,
		DiscountCode: discountCode,
		ProfileToken: profileToken,
	}, nil
}

// finishSession completes the linked session and, for discount-bearing
// popup kinds, issues the code. Failures here never fail the capture.
func (e *EmailCaptureService) finishSession(ctx context.Context, shopCtx *shop.Context, popupID, token string) string {
	if _, err := e.sessions.Advance(ctx, shopCtx, token, engine.ActionComplete, 0, ""); err != nil {
		e.logger.LogError(logging.ChannelEmail, "email.capture.complete", err, shopCtx.ShopDomain)
	}

	p, err := shopCtx.PopupRepo().GetByID(ctx, popupID)
	if err != nil || p == nil || !p.Kind.HasDiscount() {
		return ""
	}

	result, err := e.discounts.Issue(ctx, shopCtx, token)
	if err != nil {
		e.logger.LogError(logging.ChannelEmail, "email.capture.discount", err, shopCtx.ShopDomain)
		return ""
	}
	return result.Code
}

func (e *EmailCaptureService) sendWelcome(address string, shopCtx *shop.Context) {
	from := shopCtx.Config.EmailFrom
	if from == "" {
		return
	}
	if err := e.sender.SendWelcome(address, shopCtx.Config.EmailFromName, from); err != nil {
		e.logger.LogError(logging.ChannelEmail, "email.welcome", err, shopCtx.ShopDomain)
	}
}

func (e *EmailCaptureService) sendDiscount(address, code string, shopCtx *shop.Context) {
	from := shopCtx.Config.EmailFrom
	if from == "" {
		return
	}
	if err := e.sender.SendDiscountCode(address, code, shopCtx.Config.EmailFromName, from); err != nil {
		e.logger.LogError(logging.ChannelEmail, "email.discount", err, shopCtx.ShopDomain)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/internal/infrastructure/email"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/internal/infrastructure/observability/performance"
	"github.com/popforge/popforge-go/internal/infrastructure/security"
	"github.com/popforge/popforge-go/internal/infrastructure/shop"
)

// discountCodeLength is the random suffix length of issued codes.
const discountCodeLength = 10

// DiscountService issues discount codes against sessions. A session gets at
// most one code for its lifetime; repeated requests return the same code.
type DiscountService struct {
	logger  *logging.ChanneledLogger
	tracker *performance.Tracker
	sender  email.Sender
}

func NewDiscountService(logger *logging.ChanneledLogger, tracker *performance.Tracker, sender email.Sender) *DiscountService {
	return &DiscountService{logger: logger, tracker: tracker, sender: sender}
}

// IssueResult is the outcome of a discount request.
type IssueResult struct {
	Code          string                 `json:"discountCode"`
	AlreadyIssued bool                   `json:"alreadyIssued"`
	PopupID       string                 `json:"popupId"`
	Info          *popup.DiscountContent `json:"discountInfo,omitempty"`
}

// Issue returns the session's discount code, generating one on first
// request. Only popup kinds that carry a discount may issue; everything
// else is a state error.
func (d *DiscountService) Issue(ctx context.Context, shopCtx *shop.Context, token string) (*IssueResult, error) {
	marker := d.tracker.StartOperation("discount.issue", shopCtx.ShopDomain)
	defer marker.Complete()

	repo := shopCtx.SessionRepo()
	sess, err := repo.GetByToken(ctx, token)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("discount.issue", err)
	}
	if sess == nil || sess.IsExpired(time.Now().UTC()) {
		marker.SetSuccess(false)
		return nil, engine.NotFound("discount.issue", "session not found")
	}

	p, err := shopCtx.PopupRepo().GetByID(ctx, sess.PopupID)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("discount.issue", err)
	}
	if p == nil {
		marker.SetSuccess(false)
		return nil, engine.NotFound("discount.issue", "popup not found")
	}
	if !p.Kind.HasDiscount() {
		marker.SetSuccess(false)
		return nil, engine.InvalidState("discount.issue", "popup kind does not carry a discount")
	}

	info := discountInfo(p)

	if sess.DiscountCode != nil {
		return &IssueResult{Code: *sess.DiscountCode, AlreadyIssued: true, PopupID: sess.PopupID, Info: info}, nil
	}

	code, err := security.GenerateDiscountCode(shopCtx.Config.DiscountPrefix, discountCodeLength)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("discount.issue", err)
	}

	claimed, err := repo.ClaimDiscountCode(ctx, token, code)
	if err != nil {
		marker.SetError(err)
		return nil, engine.Internal("discount.issue", err)
	}
	if !claimed {
		// A concurrent request issued first. Return its code.
		sess, err = repo.GetByToken(ctx, token)
		if err != nil {
			marker.SetError(err)
			return nil, engine.Internal("discount.issue", err)
		}
		if sess == nil || sess.DiscountCode == nil {
			err = fmt.Errorf("discount claim lost but no code recorded for session")
			marker.SetError(err)
			return nil, engine.Internal("discount.issue", err)
		}
		return &IssueResult{Code: *sess.DiscountCode, AlreadyIssued: true, PopupID: sess.PopupID, Info: info}, nil
	}

	d.logger.Discount().Info("Discount code issued",
		slog.String("sessionToken", logging.SanitizeToken(token)),
		slog.String("popupId", sess.PopupID),
		slog.String("shopDomain", shopCtx.ShopDomain))
	marker.AddMetadata("popupId", sess.PopupID)

	// First issuance: mail the code to the captured address, if the visitor
	// already left one. Best-effort, off the request path.
	go d.deliverCode(shopCtx, token, code)

	return &IssueResult{Code: code, PopupID: sess.PopupID, Info: info}, nil
}

// discountInfo extracts the reveal copy from the popup's discount step.
func discountInfo(p *popup.Popup) *popup.DiscountContent {
	for i := range p.Steps {
		if p.Steps[i].StepType == popup.StepDiscountReveal && p.Steps[i].Content.Discount != nil {
			return p.Steps[i].Content.Discount
		}
	}
	return nil
}

func (d *DiscountService) deliverCode(shopCtx *shop.Context, token, code string) {
	from := shopCtx.Config.EmailFrom
	if from == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	address, err := shopCtx.EmailRepo().LatestBySessionToken(ctx, token)
	if err != nil {
		d.logger.LogError(logging.ChannelDiscount, "discount.deliver", err, shopCtx.ShopDomain)
		return
	}
	if address == "" {
		return
	}
	if err := d.sender.SendDiscountCode(address, code, shopCtx.Config.EmailFromName, from); err != nil {
		d.logger.LogError(logging.ChannelDiscount, "discount.deliver", err, shopCtx.ShopDomain)
	}
}

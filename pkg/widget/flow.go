package widget

import (
	"context"
	"time"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/pkg/client"
)

// State is the flow controller's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingSession
	StateRendering
	StateClosed
)

// closeGrace is how long the terminal message stays up before closing.
const closeGrace = 3 * time.Second

// EngineAPI is the slice of the engine client the flow controller uses.
// *client.Client satisfies it.
type EngineAPI interface {
	CreateSession(ctx context.Context, popupID, pageURL, userAgent string) (*client.Session, error)
	ValidateSession(ctx context.Context, token string) (*client.Session, error)
	Progress(ctx context.Context, token string, action engine.Action, stepNumber int, stepResponse string) (*client.Session, error)
	GenerateDiscount(ctx context.Context, token string) (*client.Discount, error)
	CollectEmail(ctx context.Context, email, popupID, token string, quizResponses map[string]string) (*client.Capture, error)
	RecordStepView(ctx context.Context, popupID, token string, stepNumber int, stepType string) error
}

// Renderer is the host-side presentation surface.
type Renderer interface {
	RenderStep(step *popup.Step, sess *client.Session)
	RenderDiscount(code string, info *popup.DiscountContent)
	RenderComplete(message string)
	RenderError(message string, retryable bool)
	Close()
}

// Snapshot is the crash-recovery record the controller hands to Storage.
// It exists purely so a page reload can resume; the server response is
// always the render source.
type Snapshot struct {
	SessionToken string `json:"sessionToken"`
	PopupID      string `json:"popupId"`
	CurrentStep  int    `json:"currentStep"`
}

// Storage persists the recovery snapshot between page loads.
type Storage interface {
	Save(s Snapshot)
	Load() (Snapshot, bool)
	Clear()
}

// FlowController drives one visitor's conversation through a popup. All
// state transitions render from the server's response, never from local
// prediction.
type FlowController struct {
	api      EngineAPI
	renderer Renderer
	storage  Storage
	clock    Clock

	state    State
	popup    *popup.Popup
	session  *client.Session
	selected string
}

func NewFlowController(api EngineAPI, renderer Renderer, storage Storage, clock Clock) *FlowController {
	return &FlowController{
		api:      api,
		renderer: renderer,
		storage:  storage,
		clock:    clock,
		state:    StateUninitialized,
	}
}

// State returns the controller's current lifecycle position.
func (f *FlowController) State() State { return f.state }

// Session exposes the last server-rendered session state.
func (f *FlowController) Session() *client.Session { return f.session }

// Start opens the popup: recover the previous session from storage when one
// validates, otherwise create a fresh one.
func (f *FlowController) Start(ctx context.Context, p *popup.Popup, pageURL, userAgent string) error {
	if f.state != StateUninitialized {
		return nil
	}
	f.popup = p
	f.state = StateAwaitingSession

	if snap, ok := f.storage.Load(); ok && snap.PopupID == p.ID {
		sess, err := f.api.ValidateSession(ctx, snap.SessionToken)
		if err == nil {
			f.adopt(ctx, sess)
			return nil
		}
		// A dead token is normal after 24h; fall through to a new session.
		f.storage.Clear()
		if engine.KindOf(err) != engine.KindNotFound && engine.KindOf(err) != engine.KindInvalidState {
			f.renderer.RenderError("something went wrong, please try again", true)
			f.state = StateUninitialized
			return err
		}
	}

	sess, err := f.api.CreateSession(ctx, p.ID, pageURL, userAgent)
	if err != nil {
		f.state = StateUninitialized
		f.renderer.RenderError("something went wrong, please try again", true)
		return err
	}
	f.adopt(ctx, sess)
	return nil
}

// adopt installs a server response as current state and renders it.
func (f *FlowController) adopt(ctx context.Context, sess *client.Session) {
	f.session = sess
	f.selected = ""
	f.storage.Save(Snapshot{
		SessionToken: sess.SessionToken,
		PopupID:      f.popup.ID,
		CurrentStep:  sess.CurrentStep,
	})

	if sess.IsCompleted {
		f.finish()
		return
	}

	f.state = StateRendering
	step := f.popup.StepAt(sess.CurrentStep)
	f.renderer.RenderStep(step, sess)

	if step != nil {
		// Fire-and-forget; analytics never blocks rendering.
		go func() {
			_ = f.api.RecordStepView(context.WithoutCancel(ctx), f.popup.ID, sess.SessionToken, step.StepNumber, string(step.StepType))
		}()
	}
}

// SelectOption records the visitor's choice on a question step.
func (f *FlowController) SelectOption(optionID string) {
	f.selected = optionID
}

// Next advances past the current step.
func (f *FlowController) Next(ctx context.Context) error {
	if f.state != StateRendering {
		return nil
	}
	step := f.popup.StepAt(f.session.CurrentStep)
	if step == nil {
		return nil
	}

	switch step.StepType {
	case popup.StepQuestion:
		if f.selected == "" {
			f.renderer.RenderError("please select an option", true)
			return nil
		}
		// answer is not idempotent; never auto-retried.
		sess, err := f.api.Progress(ctx, f.session.SessionToken, engine.ActionAnswer, step.StepNumber, f.selected)
		if err != nil {
			return f.handleError(err)
		}
		f.adopt(ctx, sess)
		return nil

	case popup.StepContent:
		return f.navigate(ctx, f.session.CurrentStep+1)

	case popup.StepDiscountReveal:
		f.CloseNow()
		return nil

	case popup.StepEmail:
		// The email step advances through SubmitEmail.
		return nil
	}
	return nil
}

// Back navigates to the previous step without touching responses.
func (f *FlowController) Back(ctx context.Context) error {
	if f.state != StateRendering {
		return nil
	}
	return f.navigate(ctx, f.session.CurrentStep-1)
}

// navigate moves to a target step; the server clamps the range. Idempotent,
// so an Internal failure earns one automatic retry.
func (f *FlowController) navigate(ctx context.Context, target int) error {
	sess, err := f.api.Progress(ctx, f.session.SessionToken, engine.ActionNavigate, target, "")
	if err != nil && engine.KindOf(err) == engine.KindInternal {
		sess, err = f.api.Progress(ctx, f.session.SessionToken, engine.ActionNavigate, target, "")
	}
	if err != nil {
		return f.handleError(err)
	}
	f.adopt(ctx, sess)
	return nil
}

// SubmitEmail runs the capture on an email step. The engine completes the
// session and, for discount-bearing popups, returns the code in the capture
// response.
func (f *FlowController) SubmitEmail(ctx context.Context, email string) error {
	if f.state != StateRendering {
		return nil
	}
	step := f.popup.StepAt(f.session.CurrentStep)
	if step == nil || step.StepType != popup.StepEmail {
		return nil
	}

	capture, err := f.api.CollectEmail(ctx, email, f.popup.ID, f.session.SessionToken, f.session.Responses)
	if err != nil {
		return f.handleError(err)
	}

	if capture.DiscountCode != "" {
		f.renderer.RenderDiscount(capture.DiscountCode, f.discountInfo())
		f.state = StateRendering
		return nil
	}

	f.finish()
	return nil
}

// RevealDiscount fetches and renders the session's code on a discount step
// reached without an email capture (DIRECT_DISCOUNT flows).
func (f *FlowController) RevealDiscount(ctx context.Context) error {
	if f.state != StateRendering {
		return nil
	}

	d, err := f.api.GenerateDiscount(ctx, f.session.SessionToken)
	if err != nil && engine.KindOf(err) == engine.KindInternal {
		// Issuance is exactly-once server-side, so the retry is safe.
		d, err = f.api.GenerateDiscount(ctx, f.session.SessionToken)
	}
	if err != nil {
		return f.handleError(err)
	}

	f.renderer.RenderDiscount(d.DiscountCode, d.DiscountInfo)
	return nil
}

// CloseNow closes the widget immediately.
func (f *FlowController) CloseNow() {
	if f.state == StateClosed {
		return
	}
	f.state = StateClosed
	f.renderer.Close()
}

// finish shows the terminal message, then closes after the grace period.
func (f *FlowController) finish() {
	f.state = StateRendering
	f.renderer.RenderComplete("thanks, you're all set")
	f.clock.AfterFunc(closeGrace, f.CloseNow)
}

func (f *FlowController) discountInfo() *popup.DiscountContent {
	for i := range f.popup.Steps {
		if f.popup.Steps[i].StepType == popup.StepDiscountReveal {
			return f.popup.Steps[i].Content.Discount
		}
	}
	return nil
}

// handleError applies the widget error policy: a vanished session resets
// the controller, everything else prompts the visitor to retry.
func (f *FlowController) handleError(err error) error {
	switch engine.KindOf(err) {
	case engine.KindNotFound:
		f.storage.Clear()
		f.session = nil
		f.selected = ""
		f.state = StateUninitialized
		f.renderer.RenderError("your session expired, please start over", false)
	default:
		f.renderer.RenderError("something went wrong, please try again", true)
	}
	return err
}

package widget

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
	"github.com/popforge/popforge-go/pkg/client"
)

// fakeEngine emulates the server's session semantics in memory, with
// one-shot error injection per operation.
type fakeEngine struct {
	mu        sync.Mutex
	popup     *popup.Popup
	sessions  map[string]*client.Session
	tokenSeq  int
	errQueues map[string][]error
	stepViews int
	progCalls int
}

func newFakeEngine(p *popup.Popup) *fakeEngine {
	return &fakeEngine{
		popup:     p,
		sessions:  make(map[string]*client.Session),
		errQueues: make(map[string][]error),
	}
}

func (f *fakeEngine) failOnce(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errQueues[op] = append(f.errQueues[op], err)
}

func (f *fakeEngine) popErr(op string) error {
	if q := f.errQueues[op]; len(q) > 0 {
		f.errQueues[op] = q[1:]
		return q[0]
	}
	return nil
}

func copySession(s *client.Session) *client.Session {
	cp := *s
	cp.Responses = make(map[string]string, len(s.Responses))
	for k, v := range s.Responses {
		cp.Responses[k] = v
	}
	return &cp
}

func (f *fakeEngine) CreateSession(ctx context.Context, popupID, pageURL, userAgent string) (*client.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("create"); err != nil {
		return nil, err
	}
	f.tokenSeq++
	s := &client.Session{
		SessionToken: "tok_" + string(rune('a'+f.tokenSeq)),
		CurrentStep:  1,
		TotalSteps:   f.popup.TotalSteps,
		Responses:    map[string]string{},
	}
	f.sessions[s.SessionToken] = s
	return copySession(s), nil
}

func (f *fakeEngine) ValidateSession(ctx context.Context, token string) (*client.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("validate"); err != nil {
		return nil, err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, engine.NotFound("fake.validate", "session not found")
	}
	return copySession(s), nil
}

func (f *fakeEngine) Progress(ctx context.Context, token string, action engine.Action, stepNumber int, stepResponse string) (*client.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progCalls++
	if err := f.popErr("progress"); err != nil {
		return nil, err
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, engine.NotFound("fake.progress", "session not found")
	}
	switch action {
	case engine.ActionAnswer:
		s.Responses[fmt.Sprintf("step_%d", stepNumber)] = stepResponse
		if stepNumber >= s.CurrentStep {
			s.CurrentStep = stepNumber + 1
			if s.CurrentStep > s.TotalSteps {
				s.CurrentStep = s.TotalSteps
			}
		}
	case engine.ActionNavigate:
		if stepNumber < 1 {
			stepNumber = 1
		}
		if stepNumber > s.TotalSteps {
			stepNumber = s.TotalSteps
		}
		s.CurrentStep = stepNumber
	case engine.ActionComplete:
		s.IsCompleted = true
		s.CurrentStep = s.TotalSteps
	}
	return copySession(s), nil
}

func (f *fakeEngine) GenerateDiscount(ctx context.Context, token string) (*client.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("discount"); err != nil {
		return nil, err
	}
	if _, ok := f.sessions[token]; !ok {
		return nil, engine.NotFound("fake.discount", "session not found")
	}
	return &client.Discount{DiscountCode: "SAVE-TESTCODE1"}, nil
}

func (f *fakeEngine) CollectEmail(ctx context.Context, email, popupID, token string, quizResponses map[string]string) (*client.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr("collect"); err != nil {
		return nil, err
	}
	capture := &client.Capture{ID: "cap_1", ProfileToken: "jwt"}
	if s, ok := f.sessions[token]; ok {
		s.IsCompleted = true
		s.CurrentStep = s.TotalSteps
		if f.popup.Kind.HasDiscount() {
			capture.DiscountCode = "SAVE-TESTCODE1"
		}
	}
	return capture, nil
}

func (f *fakeEngine) RecordStepView(ctx context.Context, popupID, token string, stepNumber int, stepType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepViews++
	return nil
}

func (f *fakeEngine) stepViewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stepViews
}

// fakeRenderer records render calls.
type fakeRenderer struct {
	mu        sync.Mutex
	steps     []int
	discounts []string
	errors    []string
	completed bool
	closed    bool
}

func (r *fakeRenderer) RenderStep(step *popup.Step, sess *client.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if step != nil {
		r.steps = append(r.steps, step.StepNumber)
	}
}

func (r *fakeRenderer) RenderDiscount(code string, info *popup.DiscountContent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discounts = append(r.discounts, code)
}

func (r *fakeRenderer) RenderComplete(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
}

func (r *fakeRenderer) RenderError(message string, retryable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func (r *fakeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *fakeRenderer) lastStep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.steps) == 0 {
		return 0
	}
	return r.steps[len(r.steps)-1]
}

// fakeStorage is an in-memory snapshot store.
type fakeStorage struct {
	mu   sync.Mutex
	snap Snapshot
	ok   bool
}

func (s *fakeStorage) Save(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap, s.ok = snap, true
}

func (s *fakeStorage) Load() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.ok
}

func (s *fakeStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ok = false
}

func quizDiscountPopup() *popup.Popup {
	return &popup.Popup{
		ID:         "popup_1",
		Kind:       popup.KindQuizDiscount,
		IsActive:   true,
		TotalSteps: 3,
		Trigger:    popup.TriggerConfig{Type: popup.TriggerDelay, Value: 1},
		Steps: []popup.Step{
			{ID: "s1", PopupID: "popup_1", StepNumber: 1, StepType: popup.StepQuestion,
				Content: popup.Content{Question: &popup.QuestionContent{
					Prompt:  "Pick one",
					Options: []popup.QuestionOption{{ID: "opt_a", Label: "A"}, {ID: "opt_b", Label: "B"}},
				}}},
			{ID: "s2", PopupID: "popup_1", StepNumber: 2, StepType: popup.StepEmail,
				Content: popup.Content{Email: &popup.EmailContent{Headline: "Your email"}}},
			{ID: "s3", PopupID: "popup_1", StepNumber: 3, StepType: popup.StepDiscountReveal,
				Content: popup.Content{Discount: &popup.DiscountContent{Headline: "Code"}}},
		},
	}
}

func newFlowFixture(p *popup.Popup) (*FlowController, *fakeEngine, *fakeRenderer, *fakeStorage, *fakeClock) {
	api := newFakeEngine(p)
	renderer := &fakeRenderer{}
	storage := &fakeStorage{}
	clock := newFakeClock()
	fc := NewFlowController(api, renderer, storage, clock)
	return fc, api, renderer, storage, clock
}

func TestFlowStartCreatesSessionAndRendersFirstStep(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, renderer, storage, _ := newFlowFixture(p)

	require.NoError(t, fc.Start(context.Background(), p, "https://shop.example", "ua"))
	assert.Equal(t, StateRendering, fc.State())
	assert.Equal(t, 1, renderer.lastStep())

	snap, ok := storage.Load()
	require.True(t, ok)
	assert.Equal(t, fc.Session().SessionToken, snap.SessionToken)

	require.Eventually(t, func() bool { return api.stepViewCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestFlowStartRecoversValidSnapshot(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, _, storage, _ := newFlowFixture(p)

	// A previous visit left a live session behind.
	prev, err := api.CreateSession(context.Background(), p.ID, "", "")
	require.NoError(t, err)
	_, err = api.Progress(context.Background(), prev.SessionToken, engine.ActionAnswer, 1, "opt_a")
	require.NoError(t, err)
	storage.Save(Snapshot{SessionToken: prev.SessionToken, PopupID: p.ID, CurrentStep: 2})

	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	assert.Equal(t, prev.SessionToken, fc.Session().SessionToken)
	assert.Equal(t, 2, fc.Session().CurrentStep)
}

func TestFlowStartDeadSnapshotFallsBackToNewSession(t *testing.T) {
	p := quizDiscountPopup()
	fc, _, _, storage, _ := newFlowFixture(p)
	storage.Save(Snapshot{SessionToken: "tok_long_gone", PopupID: p.ID, CurrentStep: 2})

	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	assert.Equal(t, StateRendering, fc.State())
	assert.Equal(t, 1, fc.Session().CurrentStep)
	assert.NotEqual(t, "tok_long_gone", fc.Session().SessionToken)
}

func TestFlowQuestionRequiresSelection(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, renderer, _, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	before := api.progCalls

	require.NoError(t, fc.Next(context.Background()))
	assert.Equal(t, before, api.progCalls, "no server call without a selection")
	assert.NotEmpty(t, renderer.errors)

	fc.SelectOption("opt_b")
	require.NoError(t, fc.Next(context.Background()))
	assert.Equal(t, 2, fc.Session().CurrentStep)
	assert.Equal(t, 2, renderer.lastStep())
}

func TestFlowAnswerNeverAutoRetries(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, renderer, _, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))

	api.failOnce("progress", engine.Internal("fake", assert.AnError))
	calls := api.progCalls

	fc.SelectOption("opt_a")
	err := fc.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, calls+1, api.progCalls, "answer must be sent exactly once")
	assert.NotEmpty(t, renderer.errors)
	assert.Equal(t, StateRendering, fc.State())
}

func TestFlowNavigateRetriesOnceOnInternal(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, _, _, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	fc.SelectOption("opt_a")
	require.NoError(t, fc.Next(context.Background()))

	api.failOnce("progress", engine.Internal("fake", assert.AnError))
	require.NoError(t, fc.Back(context.Background()))
	assert.Equal(t, 1, fc.Session().CurrentStep)
}

func TestFlowNotFoundResetsController(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, renderer, storage, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))

	api.failOnce("progress", engine.NotFound("fake", "session not found"))
	fc.SelectOption("opt_a")
	err := fc.Next(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateUninitialized, fc.State())
	assert.Nil(t, fc.Session())
	_, ok := storage.Load()
	assert.False(t, ok, "snapshot cleared on reset")
	assert.NotEmpty(t, renderer.errors)
}

func TestFlowEmailCaptureRendersDiscount(t *testing.T) {
	p := quizDiscountPopup()
	fc, _, renderer, _, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	fc.SelectOption("opt_a")
	require.NoError(t, fc.Next(context.Background()))

	require.NoError(t, fc.SubmitEmail(context.Background(), "buyer@example.com"))
	require.NotEmpty(t, renderer.discounts)
	assert.Equal(t, "SAVE-TESTCODE1", renderer.discounts[0])
	assert.Equal(t, StateRendering, fc.State())

	// The discount step only closes.
	fc.CloseNow()
	assert.Equal(t, StateClosed, fc.State())
	assert.True(t, renderer.closed)
}

func TestFlowEmailOnlyPopupFinishesWithGrace(t *testing.T) {
	p := quizDiscountPopup()
	p.Kind = popup.KindQuizEmail
	p.TotalSteps = 2
	p.Steps = p.Steps[:2]

	fc, _, renderer, _, clock := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))
	fc.SelectOption("opt_a")
	require.NoError(t, fc.Next(context.Background()))

	require.NoError(t, fc.SubmitEmail(context.Background(), "buyer@example.com"))
	assert.True(t, renderer.completed)
	assert.False(t, renderer.closed, "grace period still running")

	clock.Advance(closeGrace)
	assert.True(t, renderer.closed)
	assert.Equal(t, StateClosed, fc.State())
}

func TestFlowRevealDiscountRetriesOnInternal(t *testing.T) {
	p := quizDiscountPopup()
	fc, api, renderer, _, _ := newFlowFixture(p)
	require.NoError(t, fc.Start(context.Background(), p, "", ""))

	api.failOnce("discount", engine.Internal("fake", assert.AnError))
	require.NoError(t, fc.RevealDiscount(context.Background()))
	require.NotEmpty(t, renderer.discounts)
	assert.Equal(t, "SAVE-TESTCODE1", renderer.discounts[0])
}

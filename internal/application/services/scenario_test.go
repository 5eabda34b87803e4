package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popforge/popforge-go/internal/domain/engine"
	"github.com/popforge/popforge-go/internal/domain/popup"
)

// TestQuizDiscountEndToEnd walks the full three-step quiz-to-discount flow
// the way the widget drives it: question, email capture, discount reveal.
func TestQuizDiscountEndToEnd(t *testing.T) {
	env := newTestEnv(t, true)
	p := seedPopup(t, env.shop, popup.KindQuizDiscount)
	ctx := context.Background()

	// Page load: embed payload carries the active popup and its trigger.
	embed, err := env.popups.GetEmbed(ctx, env.shop)
	require.NoError(t, err)
	require.True(t, embed.Enabled)
	assert.Equal(t, p.ID, embed.Popup.ID)
	assert.Equal(t, popup.TriggerDelay, embed.Popup.Trigger.Type)

	// Trigger fired: start the conversation.
	sess, err := env.sessions.Create(ctx, env.shop, p.ID, "https://shop.example/p/1", "ua")
	require.NoError(t, err)
	require.NoError(t, env.events.RecordStepView(ctx, env.shop, p.ID, sess.Token, 1, string(popup.StepQuestion)))

	// Step 1: answer the question.
	sess, err = env.sessions.Advance(ctx, env.shop, sess.Token, engine.ActionAnswer, 1, "opt_b")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.CurrentStep)
	require.NoError(t, env.events.RecordStepView(ctx, env.shop, p.ID, sess.Token, 2, string(popup.StepEmail)))

	// Step 2: email capture completes the session and issues the code.
	capture, err := env.captures.Capture(ctx, env.shop, CaptureRequest{
		Email:        "buyer@example.com",
		SessionToken: sess.Token,
		PopupID:      p.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, capture.DiscountCode)
	require.NoError(t, env.events.RecordStepView(ctx, env.shop, p.ID, sess.Token, 3, string(popup.StepDiscountReveal)))

	// Step 3: the reveal re-fetches the same code.
	issued, err := env.discounts.Issue(ctx, env.shop, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, capture.DiscountCode, issued.Code)
	assert.True(t, issued.AlreadyIssued)

	// Final session state.
	got, err := env.sessions.Validate(ctx, env.shop, sess.Token)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted())
	assert.Equal(t, 3, got.CurrentStep)
	assert.Equal(t, "opt_b", got.Responses["step_1"])

	// Analytics saw all three steps.
	counts, err := env.events.StepCounts(ctx, env.shop, p.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, counts)
}

func TestStepViewValidation(t *testing.T) {
	env := newTestEnv(t, true)
	p := seedPopup(t, env.shop, popup.KindQuizDiscount)
	ctx := context.Background()

	err := env.events.RecordStepView(ctx, env.shop, "", "tok", 1, "QUESTION")
	assert.Equal(t, engine.KindInvalidRequest, engine.KindOf(err))

	err = env.events.RecordStepView(ctx, env.shop, p.ID, "tok", 0, "QUESTION")
	assert.Equal(t, engine.KindInvalidRequest, engine.KindOf(err))
}

// Package popup renders popup steps as self-contained HTML fragments for
// hosts that embed prerendered markup instead of driving the widget runtime.
package popup

import (
	"fmt"
	"html"
	"strings"

	domain "github.com/popforge/popforge-go/internal/domain/popup"
)

// RenderStep dispatches on the step type. Unknown or mismatched content
// renders an empty fragment rather than failing the page.
func RenderStep(step *domain.Step) string {
	if step == nil {
		return ""
	}
	switch step.StepType {
	case domain.StepQuestion:
		return renderQuestion(step)
	case domain.StepEmail:
		return renderEmail(step)
	case domain.StepDiscountReveal:
		return renderDiscount(step)
	case domain.StepContent:
		return renderContent(step)
	}
	return ""
}

func renderQuestion(step *domain.Step) string {
	q := step.Content.Question
	if q == nil {
		return ""
	}

	var options strings.Builder
	for _, opt := range q.Options {
		options.WriteString(fmt.Sprintf(
			`<button class="pf-option" data-option-id="%s">%s</button>`,
			html.EscapeString(opt.ID), html.EscapeString(opt.Label)))
	}

	return fmt.Sprintf(`<div class="pf-step pf-step-question" data-step="%d">
  <p class="pf-prompt">%s</p>
  <div class="pf-options">%s</div>
  <button class="pf-next" disabled>Next</button>
</div>`, step.StepNumber, html.EscapeString(q.Prompt), options.String())
}

func renderEmail(step *domain.Step) string {
	e := step.Content.Email
	if e == nil {
		return ""
	}

	button := e.ButtonLabel
	if button == "" {
		button = "Submit"
	}

	return fmt.Sprintf(`<div class="pf-step pf-step-email" data-step="%d">
  <h3 class="pf-headline">%s</h3>
  <input class="pf-email-input" type="email" placeholder="%s" />
  <button class="pf-submit">%s</button>
</div>`, step.StepNumber, html.EscapeString(e.Headline),
		html.EscapeString(e.Placeholder), html.EscapeString(button))
}

func renderDiscount(step *domain.Step) string {
	d := step.Content.Discount
	if d == nil {
		return ""
	}

	return fmt.Sprintf(`<div class="pf-step pf-step-discount" data-step="%d">
  <h3 class="pf-headline">%s</h3>
  <p class="pf-description">%s</p>
  <div class="pf-code" data-code-slot>%s</div>
  <p class="pf-validity">%s</p>
</div>`, step.StepNumber, html.EscapeString(d.Headline),
		html.EscapeString(d.Description), html.EscapeString(d.CodeDisplay),
		html.EscapeString(d.ValidityText))
}

func renderContent(step *domain.Step) string {
	t := step.Content.Text
	if t == nil {
		return ""
	}

	button := t.ButtonLabel
	if button == "" {
		button = "Continue"
	}

	heading := ""
	if t.Heading != "" {
		heading = fmt.Sprintf(`<h3 class="pf-heading">%s</h3>`, html.EscapeString(t.Heading))
	}

	return fmt.Sprintf(`<div class="pf-step pf-step-content" data-step="%d">
  %s<p class="pf-body">%s</p>
  <button class="pf-next">%s</button>
</div>`, step.StepNumber, heading, html.EscapeString(t.Body), html.EscapeString(button))
}

// RenderShell wraps a step fragment in the popup chrome.
func RenderShell(p *domain.Popup, inner string) string {
	return fmt.Sprintf(`<div class="pf-popup" data-popup-id="%s" data-popup-type="%s">
  <button class="pf-close" aria-label="Close">&times;</button>
  %s
</div>`, html.EscapeString(p.ID), html.EscapeString(string(p.Kind)), inner)
}

// Package popup provides domain entities for merchant popup definitions.
// Popups are authored through the dashboard and are strictly read-only to
// the conversation engine.
package popup

import "time"

// Kind tags the overall shape of a popup flow.
type Kind string

const (
	KindSimpleEmail    Kind = "SIMPLE_EMAIL"
	KindQuizEmail      Kind = "QUIZ_EMAIL"
	KindQuizDiscount   Kind = "QUIZ_DISCOUNT"
	KindDirectDiscount Kind = "DIRECT_DISCOUNT"
)

// HasDiscount reports whether sessions of this popup kind may carry a
// discount code.
func (k Kind) HasDiscount() bool {
	return k == KindQuizDiscount || k == KindDirectDiscount
}

// Valid reports whether k is a known popup kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSimpleEmail, KindQuizEmail, KindQuizDiscount, KindDirectDiscount:
		return true
	}
	return false
}

// Popup is the authoring-time definition of a multi-step popup.
type Popup struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Kind       Kind          `json:"type"`
	IsActive   bool          `json:"isActive"`
	TotalSteps int           `json:"totalSteps"`
	Trigger    TriggerConfig `json:"trigger"`
	Steps      []Step        `json:"steps,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// StepAt returns the step with the given 1-based number, or nil when the
// number is out of range. Step numbers are contiguous within a popup.
func (p *Popup) StepAt(number int) *Step {
	for i := range p.Steps {
		if p.Steps[i].StepNumber == number {
			return &p.Steps[i]
		}
	}
	return nil
}

package popup

// StepType tags the variant of a popup step.
type StepType string

const (
	StepQuestion       StepType = "QUESTION"
	StepEmail          StepType = "EMAIL"
	StepDiscountReveal StepType = "DISCOUNT_REVEAL"
	StepContent        StepType = "CONTENT"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepQuestion, StepEmail, StepDiscountReveal, StepContent:
		return true
	}
	return false
}

// Terminal reports whether a step of this type ends the conversation.
func (t StepType) Terminal() bool {
	return t == StepEmail || t == StepDiscountReveal
}

// Step is one screen of a popup flow. Steps are immutable once a
// conversation is in progress; in-flight sessions keep the step numbers
// they were created against.
type Step struct {
	ID         string   `json:"id"`
	PopupID    string   `json:"popupId"`
	StepNumber int      `json:"stepNumber"`
	StepType   StepType `json:"stepType"`
	Content    Content  `json:"content"`
}

// Content is the tagged variant payload of a step. Exactly one field is set,
// matching the step's type; the whole struct travels as an opaque structured
// payload over the wire.
type Content struct {
	Question *QuestionContent `json:"question,omitempty"`
	Email    *EmailContent    `json:"email,omitempty"`
	Discount *DiscountContent `json:"discount,omitempty"`
	Text     *TextContent     `json:"text,omitempty"`
}

// QuestionContent renders a prompt with selectable options.
type QuestionContent struct {
	Prompt  string           `json:"prompt"`
	Options []QuestionOption `json:"options"`
}

// QuestionOption is one selectable answer.
type QuestionOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// EmailContent renders the email capture field.
type EmailContent struct {
	Headline    string `json:"headline"`
	Placeholder string `json:"placeholder,omitempty"`
	ButtonLabel string `json:"buttonLabel,omitempty"`
}

// DiscountContent renders the issued discount code.
type DiscountContent struct {
	Headline     string `json:"headline"`
	Description  string `json:"description,omitempty"`
	ValidityText string `json:"validityText,omitempty"`
	CodeDisplay  string `json:"codeDisplay,omitempty"`
}

// TextContent renders free content with a single continue action.
type TextContent struct {
	Heading     string `json:"heading,omitempty"`
	Body        string `json:"body"`
	ButtonLabel string `json:"buttonLabel,omitempty"`
}

// Matches reports whether the populated content variant agrees with the
// given step type.
func (c Content) Matches(t StepType) bool {
	switch t {
	case StepQuestion:
		return c.Question != nil
	case StepEmail:
		return c.Email != nil
	case StepDiscountReveal:
		return c.Discount != nil
	case StepContent:
		return c.Text != nil
	}
	return false
}

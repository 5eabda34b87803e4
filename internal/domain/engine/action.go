package engine

// Action is a progress command applied to a customer session.
type Action string

const (
	// ActionAnswer records a step response and moves progress forward.
	// It is the only non-idempotent command: a blind retry after a timeout
	// whose server-side effect succeeded would double-advance the session.
	ActionAnswer Action = "answer"

	// ActionNavigate moves to a requested step without touching responses.
	ActionNavigate Action = "navigate"

	// ActionComplete marks the session finished at its terminal step.
	ActionComplete Action = "complete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAnswer, ActionNavigate, ActionComplete:
		return true
	}
	return false
}

// Idempotent reports whether a may be retried automatically on transient
// failure. Callers must never auto-retry ActionAnswer.
func (a Action) Idempotent() bool {
	return a == ActionNavigate || a == ActionComplete
}

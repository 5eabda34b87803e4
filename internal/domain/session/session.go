// Package session provides the CustomerSession entity, the engine's central
// mutable record, together with the pure step-transition rules applied by
// the session service.
package session

import (
	"fmt"
	"time"

	"github.com/popforge/popforge-go/internal/domain/engine"
)

// TTL is the fixed lifetime of a customer session from creation.
const TTL = 24 * time.Hour

// CustomerSession tracks one visitor's progress through a popup. It is
// looked up exclusively by its opaque token and mutated only through Apply.
type CustomerSession struct {
	Token        string            `json:"sessionToken"`
	PopupID      string            `json:"popupId"`
	CurrentStep  int               `json:"currentStep"`
	TotalSteps   int               `json:"totalSteps"`
	Responses    map[string]string `json:"responses"`
	DiscountCode *string           `json:"discountCode,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	PageURL      string            `json:"pageUrl,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty"`
	Version      int64             `json:"-"`
	CreatedAt    time.Time         `json:"createdAt"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// New allocates a fresh session at step 1 for the given popup.
func New(token, popupID string, totalSteps int, pageURL, userAgent string, now time.Time) *CustomerSession {
	return &CustomerSession{
		Token:       token,
		PopupID:     popupID,
		CurrentStep: 1,
		TotalSteps:  totalSteps,
		Responses:   make(map[string]string),
		PageURL:     pageURL,
		UserAgent:   userAgent,
		Version:     1,
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}
}

// ResponseKey returns the map key a response to the given step is recorded
// under.
func ResponseKey(stepNumber int) string {
	return fmt.Sprintf("step_%d", stepNumber)
}

// IsExpired reports whether the session is past its lifetime. An expired
// session behaves as not found to every operation.
func (s *CustomerSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsCompleted reports whether the terminal step has been confirmed.
func (s *CustomerSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// Apply runs one progress command against the session in place.
//
// answer records the response under step_<n>; when n is at or past the
// current step, progress advances to min(n+1, totalSteps). Answering an
// already-passed step records the response without rewinding. navigate
// clamps the requested step into [1, totalSteps] and leaves responses
// untouched. complete stamps completedAt and forces the terminal step.
func (s *CustomerSession) Apply(action engine.Action, stepNumber int, response string, now time.Time) error {
	switch action {
	case engine.ActionAnswer:
		if stepNumber < 1 || stepNumber > s.TotalSteps {
			return engine.InvalidRequest("session.apply", fmt.Sprintf("step %d out of range 1..%d", stepNumber, s.TotalSteps))
		}
		s.Responses[ResponseKey(stepNumber)] = response
		if stepNumber >= s.CurrentStep {
			next := stepNumber + 1
			if next > s.TotalSteps {
				next = s.TotalSteps
			}
			s.CurrentStep = next
		}

	case engine.ActionNavigate:
		target := stepNumber
		if target < 1 {
			target = 1
		}
		if target > s.TotalSteps {
			target = s.TotalSteps
		}
		s.CurrentStep = target

	case engine.ActionComplete:
		completed := now
		s.CompletedAt = &completed
		s.CurrentStep = s.TotalSteps

	default:
		return engine.InvalidRequest("session.apply", fmt.Sprintf("unknown action %q", action))
	}

	s.Version++
	return nil
}

// Clone returns a deep copy. The session cache hands out clones so a reader
// serializing Responses never shares the map with a concurrent writer.
func (s *CustomerSession) Clone() *CustomerSession {
	c := *s
	c.Responses = make(map[string]string, len(s.Responses))
	for k, v := range s.Responses {
		c.Responses[k] = v
	}
	if s.DiscountCode != nil {
		code := *s.DiscountCode
		c.DiscountCode = &code
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// SnapshotResponses copies the recorded responses, used when an email
// capture freezes them onto an identity record.
func (s *CustomerSession) SnapshotResponses() map[string]string {
	snapshot := make(map[string]string, len(s.Responses))
	for k, v := range s.Responses {
		snapshot[k] = v
	}
	return snapshot
}

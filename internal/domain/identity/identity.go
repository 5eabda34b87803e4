// Package identity provides domain entities for captured visitor identities.
package identity

import "time"

// CollectedEmail links a captured email address back to the session that
// produced it. Records are written once and never mutated. Uniqueness per
// session or address is deliberately not enforced; repeated submissions
// create independent records.
type CollectedEmail struct {
	ID                string            `json:"id"`
	Email             string            `json:"email"`
	PopupID           *string           `json:"popupId,omitempty"`
	SessionToken      *string           `json:"sessionToken,omitempty"`
	ResponsesSnapshot map[string]string `json:"responsesSnapshot,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// Profile is the decoded visitor identity carried in a profile token after
// an email capture, letting the storefront recognize a returning visitor.
type Profile struct {
	Email        string `json:"email"`
	SessionToken string `json:"sessionToken,omitempty"`
	PopupID      string `json:"popupId,omitempty"`
}

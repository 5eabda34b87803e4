// Package engine defines the shared vocabulary of the conversation engine:
// the typed error kinds every service boundary translates into, and the
// progress action commands a session can receive.
package engine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine failure. Every error that crosses a service
// boundary carries exactly one of these.
type Kind string

const (
	// KindNotFound covers unknown or expired session tokens, unknown shops,
	// and unknown or inactive popups. An expired token is indistinguishable
	// from a missing one.
	KindNotFound Kind = "not_found"

	// KindInvalidRequest covers missing required fields and malformed actions.
	KindInvalidRequest Kind = "invalid_request"

	// KindInvalidState covers operations that do not apply to the popup kind
	// or current step, such as requesting a discount on an email-only popup.
	KindInvalidState Kind = "invalid_state"

	// KindInternal covers unexpected failures in the record store.
	KindInternal Kind = "internal"
)

// Error is the structured failure returned by engine services. Services never
// let raw store errors escape; they wrap them here instead.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

// InvalidRequest builds a KindInvalidRequest error.
func InvalidRequest(op, msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Op: op, Msg: msg}
}

// InvalidState builds a KindInvalidState error.
func InvalidState(op, msg string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Msg: msg}
}

// Internal wraps an unexpected store failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Msg: "store operation failed", Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

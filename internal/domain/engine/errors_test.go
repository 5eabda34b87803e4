package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("op", "gone"), KindNotFound},
		{"invalid request", InvalidRequest("op", "bad"), KindInvalidRequest},
		{"invalid state", InvalidState("op", "nope"), KindInvalidState},
		{"internal", Internal("op", errors.New("db down")), KindInternal},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("op", "gone")), KindNotFound},
		{"plain error defaults to internal", errors.New("mystery"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInternalWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("session.create", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "session.create")
}

func TestActionIdempotency(t *testing.T) {
	assert.False(t, ActionAnswer.Idempotent())
	assert.True(t, ActionNavigate.Idempotent())
	assert.True(t, ActionComplete.Idempotent())

	assert.True(t, ActionAnswer.Valid())
	assert.False(t, Action("rewind").Valid())
}

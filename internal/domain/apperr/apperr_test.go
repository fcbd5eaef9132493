package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"validation", Validation("add_payment", "amount must be positive"), ErrValidation, true},
		{"validation is not conflict", Validation("add_payment", "x"), ErrConflict, false},
		{"not found", NotFound("load_receipt", "receipt", "A000001/2025"), ErrNotFound, true},
		{"conflict", Conflict("replace", "revision %d is stale", 3), ErrConflict, true},
		{"render", Render("render_document", "logo missing", errors.New("stat")), ErrRender, true},
		{"collaborator", Collaborator("persist_create", errors.New("db down")), ErrCollaborator, true},
		{"wrapped", fmt.Errorf("outer: %w", Validation("op", "inner")), ErrValidation, true},
		{"plain error", errors.New("plain"), ErrValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestCollaborator_KeepsClassifiedErrors(t *testing.T) {
	inner := NotFound("load_receipt", "receipt", "A1")
	err := Collaborator("reconcile", inner)

	assert.Same(t, inner, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Nil(t, Collaborator("noop", nil))
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Collaborator("persist_replace", cause)

	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRetryable(Validation("op", "bad")))
	assert.False(t, IsRetryable(cause))
}

func TestError_Message(t *testing.T) {
	err := Render("render_document", "logo missing", errors.New("no such file"))
	assert.Equal(t, "render_document: logo missing: no such file", err.Error())

	err = Validation("", "quantity must be at least 1")
	assert.Equal(t, "quantity must be at least 1", err.Error())
}

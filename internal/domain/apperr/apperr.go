// Package apperr defines the error kinds surfaced by the receipt ledger.
//
// Every failure leaving the core is an *Error carrying one Kind. Callers branch on
// the kind with errors.Is against the sentinel values:
//
//	if errors.Is(err, apperr.ErrValidation) { ... }
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the surrounding application
type Kind string

const (
	KindValidation   Kind = "VALIDATION"
	KindNotFound     Kind = "NOT_FOUND"
	KindConflict     Kind = "CONFLICT"
	KindRender       Kind = "RENDER"
	KindCollaborator Kind = "COLLABORATOR"
)

// Sentinels for errors.Is matching. They carry a Kind only.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrRender       = &Error{Kind: KindRender}
	ErrCollaborator = &Error{Kind: KindCollaborator}
)

// Error is a classified failure
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "adjust_payment"
	Message string // operator-facing message
	Err     error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" || t.Message != "" || t.Err != nil {
		return t == e
	}
	return t.Kind == e.Kind
}

// Validation builds a validation error with a formatted message
func Validation(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing receipt, payment, patient or catalogue code
func NotFound(op, what string, id interface{}) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %v not found", what, id)}
}

// Conflict reports a stale in-memory snapshot
func Conflict(op, format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Render wraps a document generation failure
func Render(op, message string, err error) error {
	return &Error{Kind: KindRender, Op: op, Message: message, Err: err}
}

// Collaborator wraps a failure of an external collaborator (store, catalogue, profile).
// Errors already classified are returned unchanged.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: KindCollaborator, Op: op, Message: "collaborator unavailable", Err: err}
}

// KindOf returns the kind of err, or "" when err is not classified
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation unchanged
func IsRetryable(err error) bool {
	return KindOf(err) == KindCollaborator
}

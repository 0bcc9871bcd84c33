// Package apperr defines the stable error kinds the core produces, shared
// across every transport so each can map an error to its own wire format.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the named failure categories from the spec's error design.
type Kind string

const (
	KindSessionNotFound      Kind = "SessionNotFound"
	KindSessionConflict      Kind = "SessionConflict"
	KindBadArgs              Kind = "BadArgs"
	KindToolNotVisible       Kind = "ToolNotVisible"
	KindToolMissing          Kind = "ToolMissing"
	KindTimeout              Kind = "Timeout"
	KindCancelled            Kind = "Cancelled"
	KindStepBudgetExhausted  Kind = "StepBudgetExhausted"
	KindWorkspacePathEscape  Kind = "WorkspacePathEscape"
	KindFileTooLarge         Kind = "FileTooLarge"
	KindNotFound             Kind = "NotFound"
	KindConflictNotFound     Kind = "ConflictNotFound"
	KindJobConflict          Kind = "JobConflict"
	KindJobStuck             Kind = "JobStuck"
	KindJobFailed            Kind = "JobFailed"
	KindPersistenceError     Kind = "PersistenceError"
)

// Error is a Kind-tagged error with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags an existing error with a kind, preserving it for errors.Is/As.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

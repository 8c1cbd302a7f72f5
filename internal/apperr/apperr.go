// Package apperr tags errors with the §7 error-kind taxonomy so callers
// (principally the pipeline orchestrator) can decide hard/soft handling
// without string-matching error messages.
package apperr

import "errors"

// Kind is one of the error categories enumerated in spec.md §7.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindUniquenessConflict Kind = "uniqueness_conflict"
	KindTransientNetwork Kind = "transient_network"
	KindAuthExpired      Kind = "auth_expired"
	KindConfig           Kind = "config"
	KindDetectorInternal Kind = "detector_internal"
	KindHard             Kind = "hard"
)

// Error wraps an underlying cause with a Kind and the component that raised
// it, so an orchestrator step can log structured fields instead of parsing
// prose.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return string(e.Kind) + " in " + e.Component + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a tagged error.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// IsHard reports whether an error's kind should abort a pipeline run rather
// than being recorded as a soft step failure.
func IsHard(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindHard || e.Kind == KindConfig
	}
	return false
}

// KindOf extracts the Kind of a tagged error, or "" if untagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

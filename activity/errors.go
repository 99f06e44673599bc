package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/padworld/padtour/pkg/audio"
)

var (
	// ErrTransientGeneration covers network failures, non-success responses
	// and empty results from the generation service. The caller logs it and
	// moves on.
	ErrTransientGeneration = errors.New("transient generation failure")

	// ErrPermissionDenied is returned when the microphone cannot be opened.
	// It is not recoverable without user action.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrMalformedPayload is an alias of the audio decode sentinel so that
	// both packages agree under errors.Is.
	ErrMalformedPayload = audio.ErrMalformedPayload
)

// Kind is the coarse error class used to pick a recovery path.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindMalformed
	KindPermission
	KindCanceled
	KindOther
)

// String returns the log name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindPermission:
		return "permission"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// Classify maps err onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermission
	case errors.Is(err, ErrMalformedPayload):
		return KindMalformed
	case errors.Is(err, ErrTransientGeneration):
		return KindTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}

// IsRecoverable reports whether the activity can carry on after err. A
// malformed chunk or a failed generation is skipped; a denied microphone
// needs the user.
func IsRecoverable(err error) bool {
	return Classify(err) != KindPermission
}

// Severity of an Error.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// Error carries detail about a failed activity step.
type Error struct {
	Err       error          // The underlying error
	Component string         // Component that generated the error
	Action    string         // Action being performed when error occurred
	Severity  Severity       // Severity of the error
	Timestamp time.Time      // When the error occurred
	Context   map[string]any // Additional context
}

// NewError creates an Error with SeverityError.
func NewError(err error, component, action string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]any),
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Component, e.Action)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRecoverable checks the underlying error.
func (e *Error) IsRecoverable() bool {
	return IsRecoverable(e.Err)
}

// WithSeverity sets the error severity.
func (e *Error) WithSeverity(severity Severity) *Error {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

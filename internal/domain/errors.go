package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for the caller. Kinds are compared with errors.Is.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"
	KindInvalidIdentifier ErrorKind = "invalid_identifier"
	KindRemoteUnavailable ErrorKind = "remote_unavailable"
	KindRemoteRejected    ErrorKind = "remote_rejected"
	KindTimeout           ErrorKind = "timeout"
	KindSuperseded        ErrorKind = "superseded"
	KindCanceled          ErrorKind = "canceled"
)

// Error implements error so a kind can be used directly as an errors.Is target.
func (k ErrorKind) Error() string {
	return string(k)
}

var (
	// ErrInvalidInput is returned for malformed local input, e.g. a factor set missing a key
	ErrInvalidInput = KindInvalidInput

	// ErrInvalidIdentifier is returned when an MSE id is non-numeric or non-positive
	ErrInvalidIdentifier = KindInvalidIdentifier

	// ErrRemoteUnavailable is returned on transport-level failure talking to the AgentMap API
	ErrRemoteUnavailable = KindRemoteUnavailable

	// ErrRemoteRejected is returned when the AgentMap API answers with a non-success status
	ErrRemoteRejected = KindRemoteRejected

	// ErrTimeout is returned when an orchestration exceeds its deadline
	ErrTimeout = KindTimeout

	// ErrSuperseded is returned to a dashboard request that a newer request replaced
	ErrSuperseded = KindSuperseded

	// ErrCanceled is returned when the caller abandoned the request before it finished
	ErrCanceled = KindCanceled

	// ErrSessionNotFound is returned when a dashboard session does not exist or expired
	ErrSessionNotFound = errors.New("session not found")

	// ErrWizardStep is returned for a wizard transition that is not allowed from the current step
	ErrWizardStep = errors.New("transition not allowed from current step")
)

// Error carries a kind, a single human-readable message and the optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Status  int  // remote HTTP status for RemoteRejected, 0 otherwise
	Remote  bool // the AgentMap API sent a payload that failed validation
	Err     error
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Errorf builds an Error with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against the error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	var k ErrorKind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Message returns the user-visible message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Error()
	}
	return err.Error()
}

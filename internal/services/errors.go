package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a single analysis failed.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindTimeout           ErrorKind = "timeout"
	KindService           ErrorKind = "service"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTransport         ErrorKind = "transport"
)

// MatchError is returned by every Analyzer and by the orchestrator's input
// check. StatusCode is set only for service errors that carried one.
type MatchError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *MatchError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *MatchError) Unwrap() error {
	return e.Cause
}

// Is matches a bare sentinel by kind, so errors.Is(err, ErrTimeout) works for
// any timeout regardless of its message.
func (e *MatchError) Is(target error) bool {
	t, ok := target.(*MatchError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

var (
	ErrValidation        = &MatchError{Kind: KindValidation}
	ErrTimeout           = &MatchError{Kind: KindTimeout}
	ErrService           = &MatchError{Kind: KindService}
	ErrMalformedResponse = &MatchError{Kind: KindMalformedResponse}
	ErrTransport         = &MatchError{Kind: KindTransport}
)

// KindOf returns the kind of the first MatchError in err's chain, or
// KindTransport for anything else.
func KindOf(err error) ErrorKind {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindTransport
}

func newValidationError(format string, args ...any) *MatchError {
	return &MatchError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func newMalformedError(msg string, cause error) *MatchError {
	return &MatchError{Kind: KindMalformedResponse, Message: msg, Cause: cause}
}

// IngestError is returned when an uploaded file cannot be turned into
// orchestrator input.
type IngestError struct {
	Source  string
	Message string
	Cause   error
}

func (e *IngestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to read %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to read %s: %s", e.Source, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}

// ErrNoJobRows is returned for a CSV that has a header but no data rows.
var ErrNoJobRows = errors.New("csv contains no job rows")

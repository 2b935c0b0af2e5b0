package rag

import (
	"errors"
	"fmt"
)

// Kind classifies an *Error.
type Kind string

const (
	KindUpstream          Kind = "UpstreamError"
	KindDegradedRetrieval Kind = "DegradedRetrieval"
	KindInvalidArgument   Kind = "InvalidArgument"
	KindModel             Kind = "ModelError"
)

// maxPayload bounds the diagnostic body kept on upstream errors.
const maxPayload = 2000

// Error is a classified engine failure.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status of the failed upstream call, when there was one.
	Status int
	// Payload is a truncated diagnostic body from the upstream service.
	Payload string
	Err     error
}

// Sentinels for errors.Is.
var (
	ErrUpstream          = &Error{Kind: KindUpstream}
	ErrDegradedRetrieval = &Error{Kind: KindDegradedRetrieval}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrModel             = &Error{Kind: KindModel}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Upstream builds a KindUpstream error. The payload is truncated.
func Upstream(msg string, status int, payload string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Status: status, Payload: Clamp(payload, maxPayload), Err: err}
}

// Degraded builds a KindDegradedRetrieval error wrapping the cause.
func Degraded(msg string, err error) *Error {
	return &Error{Kind: KindDegradedRetrieval, Message: msg, Err: err}
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

// ModelFailure builds a KindModel error.
func ModelFailure(msg string, err error) *Error {
	return &Error{Kind: KindModel, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

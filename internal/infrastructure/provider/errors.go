package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a failed provider call.
type Kind string

const (
	KindUnreachable       Kind = "unreachable"
	KindRejected          Kind = "rejected"
	KindMalformedResponse Kind = "malformed_response"
	KindMissingSessionID  Kind = "missing_session_id"
)

// Sentinels for errors.Is; *Error matches the one for its Kind.
var (
	ErrUnreachable       = errors.New("provider unreachable")
	ErrRejected          = errors.New("provider rejected request")
	ErrMalformedResponse = errors.New("provider returned malformed response")
	ErrMissingSessionID  = errors.New("provider response missing session id")
)

// Error is returned by every failed Client call.
type Error struct {
	Kind Kind
	// StatusCode and Message are set for KindRejected.
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRejected:
		if e.Message != "" {
			return fmt.Sprintf("provider rejected request (status %d): %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("provider rejected request (status %d)", e.StatusCode)
	case KindUnreachable, KindMalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.sentinel(), e.Err)
		}
	}
	return e.sentinel().Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

// Retryable reports whether the same request may succeed later: the provider
// was unreachable or failed with a 5xx.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindUnreachable:
		return true
	case KindRejected:
		return e.StatusCode >= 500
	}
	return false
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindUnreachable:
		return ErrUnreachable
	case KindRejected:
		return ErrRejected
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindMissingSessionID:
		return ErrMissingSessionID
	}
	return fmt.Errorf("provider error %q", e.Kind)
}

// KindOf returns the Kind of err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// ABOUTME: Typed failure taxonomy for auth, session and realtime operations
// ABOUTME: Each Kind is an error so callers can match with errors.Is

package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure. Kinds are comparable sentinels.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ErrValidationFailed   Kind = "validation_failed"
	ErrInvalidCredentials Kind = "invalid_credentials"
	ErrInvalidToken       Kind = "invalid_token"
	ErrCaptchaRequired    Kind = "captcha_required"
	ErrRateLimited        Kind = "rate_limited"
	ErrServiceUnavailable Kind = "service_unavailable"
	ErrUnauthorized       Kind = "unauthorized"
	ErrChannelUnavailable Kind = "channel_unavailable"
	ErrNoCredential       Kind = "no_credential"
)

// Error carries a Kind plus the details a UI needs to present it
type Error struct {
	Kind              Kind
	Message           string
	Fields            map[string]string // per-field messages for ValidationFailed
	RetryAfterSeconds int
	RequireCaptcha    bool
	Status            int // HTTP status when the failure came from the server
	Err               error
}

// NewError creates an Error of the given kind
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error of the given kind wrapping cause
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if b.Len() == 0 {
		b.WriteString(string(e.Kind))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error's Kind so errors.Is(err, models.ErrRateLimited) works
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// Retryable reports whether repeating the operation later may succeed
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrServiceUnavailable, ErrRateLimited, ErrChannelUnavailable:
		return true
	default:
		return false
	}
}

// AsError extracts a *Error from err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or "" when err carries none
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Package apperr defines testsmith's error taxonomy.
//
// Every failure that crosses a component boundary is, or wraps, an *Error
// carrying a Kind. Callers classify with KindOf and Recoverable instead of
// matching error strings. Kinds map onto result codes, and result codes onto
// process exit codes.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the category of a failure.
type Kind string

const (
	KindInvalidArgs          Kind = "invalid_args"
	KindFileNotFound         Kind = "file_not_found"
	KindProvider             Kind = "provider_error"
	KindProviderNotAvailable Kind = "provider_not_available"
	KindGeneration           Kind = "generation_error"
	KindValidation           Kind = "validation_error"
	KindTestRun              Kind = "test_run_error"
	KindSelfHealingExhausted Kind = "self_healing_exhausted"
	KindParse                Kind = "parse_error"
	KindTimeout              Kind = "timeout_error"
)

// Reason refines a provider failure.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonAuth        Reason = "auth"
	ReasonRateLimit   Reason = "rate_limit"
	ReasonUnavailable Reason = "unavailable"
	ReasonTimeout     Reason = "timeout"
	ReasonBadResponse Reason = "bad_response"
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "analyze" or "openai.generate".
	Op string
	// Provider is the backend name for provider failures.
	Provider string
	Reason   Reason
	// RetryAfter is the backend's requested wait, zero when unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Provider != "" {
		fmt.Fprintf(&b, " (%s", e.Provider)
		if e.Reason != ReasonNone {
			fmt.Fprintf(&b, ", %s", e.Reason)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Recoverable reports whether retrying the failed operation can succeed.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindProvider:
		return e.Reason != ReasonAuth
	case KindProviderNotAvailable, KindGeneration, KindValidation, KindTestRun, KindTimeout:
		return true
	default:
		return false
	}
}

// New builds an *Error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err returns nil. An err that already carries a
// Kind keeps it; only Op is filled in when missing.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Op == "" {
			ae.Op = op
		}
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ProviderFailure builds a provider error with a reason.
func ProviderFailure(provider string, reason Reason, err error) *Error {
	kind := KindProvider
	if reason == ReasonTimeout {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: provider + ".generate", Provider: provider, Reason: reason, Err: err}
}

// KindOf returns the Kind of err. Unclassified deadline errors are timeouts;
// anything else unclassified returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return ""
}

// Recoverable reports whether err is worth retrying. Cancellation never is.
func Recoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Recoverable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// RetryAfterOf returns the backend-requested wait carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.RetryAfter
	}
	return 0
}

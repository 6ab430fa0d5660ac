package retry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNonRetryable matches a failure that was surfaced without retrying.
	ErrNonRetryable = errors.New("non-retryable failure")
	// ErrExhausted matches a retryable failure that outlived MaxAttempts.
	ErrExhausted = errors.New("retry attempts exhausted")
	// ErrCancelled matches an operation abandoned because its context ended.
	ErrCancelled = errors.New("operation cancelled")
)

// Kind tells how an Error came to be.
type Kind int

const (
	// KindFailed is an error tagged at its origin, before any retry decision.
	KindFailed Kind = iota
	KindNonRetryable
	KindExhausted
	KindCancelled
	KindInvalidPolicy
)

func (k Kind) String() string {
	switch k {
	case KindFailed:
		return "failed"
	case KindNonRetryable:
		return "non_retryable"
	case KindExhausted:
		return "exhausted"
	case KindCancelled:
		return "cancelled"
	case KindInvalidPolicy:
		return "invalid_policy"
	default:
		return "unknown"
	}
}

// Error is a failure attributed to an operation. Values are not modified once
// constructed.
type Error struct {
	Message   string
	Context   *OperationContext
	Cause     error
	Retryable bool
	Kind      Kind
	// Attempts is the number of invocations made before the error was surfaced.
	Attempts int
}

// NewError tags a failure at its origin with an explicit retryable flag.
func NewError(message string, cause error, retryable bool) *Error {
	return &Error{
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
		Kind:      KindFailed,
	}
}

// Transient marks cause as safe to retry. A nil cause yields an
// "unknown failure" error.
func Transient(cause error) *Error {
	return NewError(causeMessage(cause), cause, true)
}

// Permanent marks cause as not worth retrying.
func Permanent(cause error) *Error {
	return NewError(causeMessage(cause), cause, false)
}

func causeMessage(cause error) string {
	if cause == nil {
		return "unknown failure"
	}
	return cause.Error()
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Context != nil && e.Context.Operation() != "" &&
		!strings.HasPrefix(e.Message, e.Context.Operation()+": ") {
		b.WriteString(e.Context.Operation())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil && e.Cause.Error() != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	if e.Kind == KindExhausted {
		fmt.Fprintf(&b, " (gave up after %d attempts)", e.Attempts)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNonRetryable:
		return e.Kind == KindNonRetryable
	case ErrExhausted:
		return e.Kind == KindExhausted
	case ErrCancelled:
		return e.Kind == KindCancelled
	case ErrInvalidPolicy:
		return e.Kind == KindInvalidPolicy
	}
	return false
}

// AsError returns the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// UserMessage maps a failure to a short notification suitable for end users.
// Causes and context stay in logs.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := AsError(err)
	if !ok {
		return "Something went wrong. Please try again."
	}
	switch e.Kind {
	case KindExhausted:
		return "The service is temporarily unavailable. Please try again in a few minutes."
	case KindCancelled:
		return "The request was cancelled."
	case KindNonRetryable:
		return "The request could not be completed."
	default:
		return "Something went wrong. Please try again."
	}
}

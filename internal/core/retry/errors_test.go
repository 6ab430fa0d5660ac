package retry

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIs(t *testing.T) {
	tests := []struct {
		kind   Kind
		target error
	}{
		{KindNonRetryable, ErrNonRetryable},
		{KindExhausted, ErrExhausted},
		{KindCancelled, ErrCancelled},
		{KindInvalidPolicy, ErrInvalidPolicy},
	}
	all := []error{ErrNonRetryable, ErrExhausted, ErrCancelled, ErrInvalidPolicy}

	for _, tt := range tests {
		e := &Error{Message: "x", Kind: tt.kind}
		for _, target := range all {
			if got, want := errors.Is(e, target), target == tt.target; got != want {
				t.Errorf("kind %s: errors.Is(%v) = %v, want %v", tt.kind, target, got, want)
			}
		}
	}
}

func TestErrorMessage(t *testing.T) {
	octx := NewOperationContext("cleanup-sync-status", "worker")
	cause := errors.New("timeout")

	e := &Error{Message: "timeout", Context: octx, Cause: cause, Kind: KindExhausted, Attempts: 3}
	want := "cleanup-sync-status: timeout (gave up after 3 attempts)"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	wrapped := NewError("query failed", cause, true)
	if wrapped.Error() != "query failed: timeout" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected Unwrap to expose cause")
	}
}

func TestAsErrorThroughWrapping(t *testing.T) {
	origin := Permanent(errors.New("duplicate key"))
	err := fmt.Errorf("save status: %w", origin)

	e, ok := AsError(err)
	if !ok || e != origin {
		t.Fatalf("Expected to find origin error, got %v", e)
	}
	if _, ok := AsError(errors.New("plain")); ok {
		t.Error("Expected plain error not to match")
	}
}

func TestUserMessageHidesCause(t *testing.T) {
	e := &Error{
		Message: "dial tcp 10.0.0.3:5432: connection refused",
		Cause:   errors.New("dial tcp 10.0.0.3:5432: connection refused"),
		Kind:    KindExhausted,
	}
	msg := UserMessage(e)
	if strings.Contains(msg, "10.0.0.3") {
		t.Errorf("User message leaks internals: %q", msg)
	}
	if UserMessage(nil) != "" {
		t.Error("Expected empty message for nil error")
	}
}

func TestOperationContext(t *testing.T) {
	a := NewOperationContext("op", "comp", WithUserID("u1"), WithMetadata("store", "s1"))
	b := NewOperationContext("op", "comp")

	if a.CorrelationID() == "" || a.CorrelationID() == b.CorrelationID() {
		t.Error("Expected unique correlation ids")
	}
	md := a.Metadata()
	md["store"] = "changed"
	if a.Metadata()["store"] != "s1" {
		t.Error("Expected metadata to be read-only")
	}
	if c := NewOperationContext("op", "comp", WithCorrelationID("req-1")); c.CorrelationID() != "req-1" {
		t.Errorf("Expected correlation id override, got %s", c.CorrelationID())
	}

	attrs := a.LogAttrs()
	if len(attrs) != 8 {
		t.Errorf("Expected 8 log attrs with user id, got %d", len(attrs))
	}
	var nilCtx *OperationContext
	if nilCtx.LogAttrs() != nil {
		t.Error("Expected nil attrs for nil context")
	}
}

func TestTransientPermanentNilCause(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"transient", Transient(nil), true},
		{"permanent", Permanent(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
			if got := tt.err.Error(); got != "unknown failure" {
				t.Errorf("Error() = %q, want %q", got, "unknown failure")
			}
			if tt.err.Unwrap() != nil {
				t.Error("Expected nil cause")
			}
		})
	}
}

package retry

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// ErrInvalidPolicy is returned for a policy that cannot be executed.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy defines retry behavior for a single Do call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration
	// BackoffMultiplier grows the delay after each failed attempt.
	BackoffMultiplier float64
	// RetryableErrors are substrings matched case-insensitively against the
	// message of failures that carry no explicit retryable flag.
	RetryableErrors []string
}

// DefaultPolicy returns the policy used when a call site has no specific one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableErrors: []string{
			"network error",
			"timeout",
			"fetch failed",
			"connection reset",
			"connection refused",
			"temporarily unavailable",
		},
	}
}

// NewPolicy validates p and returns an independent copy of it.
func NewPolicy(p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	p.RetryableErrors = slices.Clone(p.RetryableErrors)
	return p, nil
}

// Validate reports whether the policy can be executed.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: negative base delay %v", ErrInvalidPolicy, p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w: max delay %v is below base delay %v", ErrInvalidPolicy, p.MaxDelay, p.BaseDelay)
	}
	if p.MaxAttempts > 1 && !(p.BackoffMultiplier > 1) {
		return fmt.Errorf("%w: backoff multiplier must be greater than 1, got %v", ErrInvalidPolicy, p.BackoffMultiplier)
	}
	for _, s := range p.RetryableErrors {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: empty retryable error pattern", ErrInvalidPolicy)
		}
	}
	return nil
}

// Delay returns the wait after the given failed attempt (1-based):
// min(BaseDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.BaseDelay == 0 {
		return 0
	}
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt-1))
	if math.IsInf(delay, 1) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// MatchesMessage reports whether msg contains any retryable pattern.
func (p Policy) MatchesMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// IsRetryable classifies a failure. An *Error anywhere in the chain decides by
// its own flag; anything else falls back to message matching.
func (p Policy) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return p.MatchesMessage(err.Error())
}

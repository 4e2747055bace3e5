// Package errors provides error types and handling utilities for fbxmetrics.
// Every failure crossing a package boundary is classified into a Kind so the
// scheduler can pick the right recovery policy without inspecting transport
// details.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failure by the recovery action it requires.
type Kind string

const (
	// KindUnreachable marks transient network or DNS failures talking to
	// the Freebox. Retried with backoff indefinitely in the run loop.
	KindUnreachable Kind = "unreachable"
	// KindAuthRequired marks an expired or missing session token on an
	// authorized call. The session recovers by logging in again.
	KindAuthRequired Kind = "auth_required"
	// KindAuthRejected marks a credential the device has permanently
	// rejected. Requires operator action (re-registration), not retry.
	KindAuthRejected Kind = "auth_rejected"
	// KindRegistrationDenied marks an authorization request refused on the
	// device's front panel.
	KindRegistrationDenied Kind = "registration_denied"
	// KindRegistrationTimeout marks an authorization request nobody
	// approved before the deadline.
	KindRegistrationTimeout Kind = "registration_timeout"
	// KindPushUnreachable marks a network-level failure reaching the sink.
	KindPushUnreachable Kind = "push_unreachable"
	// KindPushRejected marks a non-2xx response from the sink.
	KindPushRejected Kind = "push_rejected"
)

// Retryable reports whether blind retry with backoff can heal this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuthRejected, KindRegistrationDenied, KindRegistrationTimeout:
		return false
	}
	return true
}

func (k Kind) String() string {
	return string(k)
}

// Error is a classified failure. Op names the operation that failed
// ("fbx.login", "push.send") for log correlation.
type Error struct {
	Kind       Kind
	Op         string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Underlying)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// E wraps err into a classified Error.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Underlying: err}
}

// Errorf builds a classified Error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Underlying: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, unwrapping as needed. Unclassified
// errors report KindUnreachable: an error that escaped classification came
// from the transport layer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnreachable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// RetryConfig configures backoff behavior for failed operations.
type RetryConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the backoff applied to transient failures.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   5 * time.Minute,
		Multiplier: 2.0,
	}
}

// AuthRetryConfig returns the much slower backoff applied after the device
// rejects the stored credential. Busy-retrying a revoked token only fills
// the device's security log.
func AuthRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:  15 * time.Minute,
		MaxDelay:   4 * time.Hour,
		Multiplier: 2.0,
	}
}

// CalculateDelay calculates the delay for the given retry attempt. Delays
// are non-decreasing in the attempt number and capped at MaxDelay.
func (rc RetryConfig) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.BaseDelay
	}

	delay := float64(rc.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= rc.Multiplier
		if time.Duration(delay) >= rc.MaxDelay {
			return rc.MaxDelay
		}
	}

	return time.Duration(delay)
}

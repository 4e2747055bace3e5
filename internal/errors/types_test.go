package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "classified error",
			err:  E(KindAuthRejected, "fbx.login", errors.New("invalid_token")),
			want: KindAuthRejected,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("cycle failed: %w", E(KindPushRejected, "push.send", errors.New("status 400"))),
			want: KindPushRejected,
		},
		{
			name: "unclassified error defaults to unreachable",
			err:  errors.New("connection refused"),
			want: KindUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := E(KindRegistrationDenied, "fbx.register", errors.New("denied"))

	if !IsKind(err, KindRegistrationDenied) {
		t.Error("Expected IsKind to match KindRegistrationDenied")
	}
	if IsKind(err, KindUnreachable) {
		t.Error("Expected IsKind not to match KindUnreachable")
	}
	if IsKind(errors.New("plain"), KindUnreachable) {
		t.Error("Expected IsKind to be false for unclassified errors")
	}
}

func TestErrorUnwrap(t *testing.T) {
	underlying := errors.New("dial tcp: timeout")
	err := E(KindUnreachable, "fbx.challenge", underlying)

	if !errors.Is(err, underlying) {
		t.Error("Expected errors.Is to reach the underlying error")
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindUnreachable, KindAuthRequired, KindPushUnreachable, KindPushRejected}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("Expected %s to be retryable", k)
		}
	}

	fatal := []Kind{KindAuthRejected, KindRegistrationDenied, KindRegistrationTimeout}
	for _, k := range fatal {
		if k.Retryable() {
			t.Errorf("Expected %s not to be retryable", k)
		}
	}
}

func TestCalculateDelayMonotonic(t *testing.T) {
	rc := DefaultRetryConfig()

	var prev time.Duration
	for attempt := 0; attempt < 20; attempt++ {
		delay := rc.CalculateDelay(attempt)
		if delay < prev {
			t.Errorf("Delay decreased at attempt %d: %v < %v", attempt, delay, prev)
		}
		if delay > rc.MaxDelay {
			t.Errorf("Delay exceeded cap at attempt %d: %v > %v", attempt, delay, rc.MaxDelay)
		}
		prev = delay
	}
}

func TestCalculateDelayValues(t *testing.T) {
	rc := RetryConfig{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := rc.CalculateDelay(tt.attempt); got != tt.want {
			t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

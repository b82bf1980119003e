package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"no connection", ErrNoConnection, true},
		{"buffer full", ErrBufferFull, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"parse error", ErrParse, false},
		{"resource exhausted", ErrResourceExhausted, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"network error", fmt.Errorf("network write failed"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"resource exhausted", ErrResourceExhausted, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"parse error", ErrParse, false},
		{"fatal in message", fmt.Errorf("fatal system error occurred"), true},
		{"panic in message", fmt.Errorf("panic: system failure"), true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"parse error", ErrParse, true},
		{"invalid params", ErrInvalidParams, true},
		{"chunk mode mismatch", ErrChunkWrongMode, true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"resource exhausted", ErrResourceExhausted, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsSessionScoped(t *testing.T) {
	if !IsSessionScoped(ErrSessionExpired) {
		t.Error("ErrSessionExpired should be session scoped")
	}
	if !IsSessionScoped(Wrap(ErrSessionRequired, "Manager", "Validate", "lookup")) {
		t.Error("wrapped ErrSessionRequired should be session scoped")
	}
	if IsSessionScoped(ErrMethodNotFound) {
		t.Error("ErrMethodNotFound should not be session scoped")
	}
}

func TestIsStreamScoped(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"stream error", ErrStream, true},
		{"stream closed", ErrStreamClosed, true},
		{"unknown stream", ErrStreamUnknown, true},
		{"idle stream", ErrStreamIdle, true},
		{"chunk mode", ErrChunkWrongMode, true},
		{"wrapped stream error", Wrap(ErrStreamClosed, "Engine", "HandleFrame", "route"), true},
		{"session error", ErrSessionExpired, false},
		{"nil", nil, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsStreamScoped(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"transient", ErrConnectionLost, ErrorTransient},
		{"fatal", ErrInvalidConfig, ErrorFatal},
		{"invalid", ErrInvalidParams, ErrorInvalid},
		{"unknown defaults transient", fmt.Errorf("weird failure"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := fmt.Errorf("boom")

	err := Wrap(base, "Manager", "CreateOrResume", "mint token")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Manager.CreateOrResume: mint token failed") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to base")
	}

	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	base := fmt.Errorf("boom")

	if got := Classify(WrapTransient(base, "c", "m", "a")); got != ErrorTransient {
		t.Errorf("expected transient, got %v", got)
	}
	if got := Classify(WrapInvalid(base, "c", "m", "a")); got != ErrorInvalid {
		t.Errorf("expected invalid, got %v", got)
	}
	if got := Classify(WrapFatal(base, "c", "m", "a")); got != ErrorFatal {
		t.Errorf("expected fatal, got %v", got)
	}

	if WrapTransient(nil, "c", "m", "a") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestRetryConfig_ShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.ShouldRetry(nil, 0) {
		t.Error("nil error should not retry")
	}
	if cfg.ShouldRetry(ErrConnectionLost, cfg.MaxRetries) {
		t.Error("exhausted attempts should not retry")
	}
	if !cfg.ShouldRetry(ErrConnectionLost, 0) {
		t.Error("transient error should retry")
	}
	if cfg.ShouldRetry(ErrInvalidParams, 0) {
		t.Error("invalid error should not retry")
	}

	cfg.RetryableErrors = []error{ErrConnectionTimeout}
	if cfg.ShouldRetry(ErrConnectionLost, 0) {
		t.Error("error outside retryable list should not retry")
	}
	if !cfg.ShouldRetry(ErrConnectionTimeout, 0) {
		t.Error("error in retryable list should retry")
	}
}

func TestRetryConfig_BackoffDelay(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
	}

	if d := cfg.BackoffDelay(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", d)
	}
	if d := cfg.BackoffDelay(1); d != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %v", d)
	}
	if d := cfg.BackoffDelay(10); d != 1*time.Second {
		t.Errorf("attempt 10: expected cap at 1s, got %v", d)
	}
}

func TestRetryConfig_ToRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	converted := rc.ToRetryConfig()

	if converted.MaxAttempts != rc.MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", rc.MaxRetries+1, converted.MaxAttempts)
	}
	if !converted.AddJitter {
		t.Error("expected jitter enabled")
	}
}

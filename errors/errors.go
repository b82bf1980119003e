// Package errors provides standardized error handling for the gateway.
// It defines the protocol error taxonomy (parse, params, session, stream),
// error classification for retry decisions, and helper functions for
// consistent error wrapping across components.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/pkg/retry"
)

// ErrorClass drives how callers react to a failure: retry it, reject
// the input, or stop.
type ErrorClass int

const (
	// ErrorTransient marks temporary failures worth retrying.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid marks failures caused by bad input or configuration.
	ErrorInvalid
	// ErrorFatal marks unrecoverable failures.
	ErrorFatal
)

// String returns the class name used in logs.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors shared across the gateway.
var (
	// Protocol errors surfaced to clients
	ErrParse            = errors.New("malformed frame or message")
	ErrInvalidParams    = errors.New("invalid request parameters")
	ErrSessionRequired  = errors.New("session required")
	ErrSessionExpired   = errors.New("session expired or unknown")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMethodNotFound   = errors.New("method not found")
	ErrInternal         = errors.New("internal error")

	// Stream-scoped errors (reported on the owning stream, never fatal
	// to the physical connection)
	ErrStream         = errors.New("stream error")
	ErrStreamClosed   = errors.New("stream already terminal")
	ErrStreamUnknown  = errors.New("unknown stream id")
	ErrStreamIdle     = errors.New("stream idle timeout")
	ErrChunkWrongMode = errors.New("chunk frame mode mismatch")

	// Component lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	// Connection and networking errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Resource errors
	ErrBufferFull        = errors.New("buffer full")
	ErrResourceExhausted = errors.New("resource exhausted")
)

// ClassifiedError carries an error's class plus the component and
// operation that produced it.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// transientPatterns and fatalPatterns classify errors from third-party
// code that carry no sentinel or ClassifiedError.
var (
	transientPatterns = []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"busy",
		"retry",
	}

	fatalPatterns = []string{
		"fatal",
		"panic",
		"invalid config",
		"missing config",
		"out of memory",
	}
)

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNoConnection) ||
		errors.Is(err, ErrBufferFull) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	return matchesAny(err, transientPatterns)
}

// IsFatal reports whether an error should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrResourceExhausted) {
		return true
	}

	return matchesAny(err, fatalPatterns)
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsInvalid reports whether an error stems from bad input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	if errors.Is(err, ErrParse) ||
		errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, ErrChunkWrongMode) {
		return true
	}

	return false
}

// IsSessionScoped reports whether an error belongs to the session error
// family that maps to a client-visible session failure rather than a
// server-side fault.
func IsSessionScoped(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionRequired)
}

// IsStreamScoped reports whether an error is scoped to one logical stream.
// Stream-scoped errors are reported on that stream and must not tear down
// the physical connection.
func IsStreamScoped(err error) bool {
	return errors.Is(err, ErrStream) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, ErrStreamUnknown) ||
		errors.Is(err, ErrStreamIdle) ||
		errors.Is(err, ErrChunkWrongMode)
}

// Classify maps an error to its class. Unknown errors come back
// transient so callers retry rather than give up.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap adds context in the form "component.method: action failed: %w".
// All gateway error wrapping goes through this so log lines stay
// greppable by component.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps with context and classifies as transient.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps with context and classifies as fatal.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps with context and classifies as invalid.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// RetryConfig expresses retry policy in terms of additional attempts.
// RetryableErrors narrows retries to specific sentinels; empty retries
// every transient error.
type RetryConfig struct {
	MaxRetries      int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []error
}

// DefaultRetryConfig matches the retry package defaults: three retries
// from 100ms doubling up to 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry decides whether attempt should be retried under this
// policy.
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}

	if !IsTransient(err) {
		return false
	}

	if len(rc.RetryableErrors) > 0 {
		for _, retryableErr := range rc.RetryableErrors {
			if errors.Is(err, retryableErr) {
				return true
			}
		}
		return false
	}

	return true
}

// ToRetryConfig converts to the retry package's Config. MaxRetries
// counts additional attempts, Config.MaxAttempts counts total, hence
// the +1. Jitter is on.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}

// BackoffDelay returns the delay before the given attempt, growing by
// BackoffFactor up to MaxDelay.
func (rc RetryConfig) BackoffDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rc.InitialDelay
	}

	delay := rc.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rc.BackoffFactor)
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
			break
		}
	}

	return delay
}

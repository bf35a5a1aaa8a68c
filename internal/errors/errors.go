// Package errors provides the error taxonomy for discovery sessions.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorizes errors for handling decisions.
type Kind int

const (
	// Unknown is an uncategorized error.
	Unknown Kind = iota
	// InvalidInput is a bad or missing target, rejected before a session starts.
	InvalidInput
	// NavigationFailure is a failed page load. Retryable.
	NavigationFailure
	// BotDetection is a challenge or block page. Retryable.
	BotDetection
	// InterceptionFailure is a per-exchange fetch fault, recovered locally.
	InterceptionFailure
	// ClassificationFailure is an internal classifier fault, recovered locally.
	ClassificationFailure
	// SessionFatal ends a session: launch failure or a failed final load.
	SessionFatal
	// Cancelled is caller cancellation.
	Cancelled
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NavigationFailure:
		return "navigation_failure"
	case BotDetection:
		return "bot_detection"
	case InterceptionFailure:
		return "interception_failure"
	case ClassificationFailure:
		return "classification_failure"
	case SessionFatal:
		return "session_fatal"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this kind trigger another
// navigation attempt.
func (k Kind) IsRetryable() bool {
	switch k {
	case NavigationFailure, BotDetection:
		return true
	default:
		return false
	}
}

// DiscoveryError is a categorized error with enough context to reproduce it.
type DiscoveryError struct {
	Kind    Kind
	URL     string
	Phase   string
	Message string
	Cause   error
	Attempt int
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("%s during %s on %s: %s", e.Kind, e.Phase, e.URL, e.Message)
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Is matches another DiscoveryError of the same kind.
func (e *DiscoveryError) Is(target error) bool {
	t, ok := target.(*DiscoveryError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates a DiscoveryError.
func New(kind Kind, url, phase, message string, cause error) *DiscoveryError {
	return &DiscoveryError{
		Kind:    kind,
		URL:     url,
		Phase:   phase,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidInputError rejects a target before any session starts.
func NewInvalidInputError(url, message string) *DiscoveryError {
	return New(InvalidInput, url, "validate", message, nil)
}

// NewNavigationError wraps a failed page load.
func NewNavigationError(url string, attempt int, cause error) *DiscoveryError {
	err := New(NavigationFailure, url, "navigate", "navigation failed", cause)
	err.Attempt = attempt
	return err
}

// NewBotDetectionError reports a challenge page.
func NewBotDetectionError(url string, attempt int, marker string) *DiscoveryError {
	err := New(BotDetection, url, "navigate", fmt.Sprintf("bot detection marker %q", marker), nil)
	err.Attempt = attempt
	return err
}

// NewInterceptionError wraps a failed response fetch.
func NewInterceptionError(url string, cause error) *DiscoveryError {
	return New(InterceptionFailure, url, "intercept", "response fetch failed", cause)
}

// NewSessionFatalError ends a session.
func NewSessionFatalError(url, phase, message string, cause error) *DiscoveryError {
	return New(SessionFatal, url, phase, message, cause)
}

// NewCancelledError reports caller cancellation.
func NewCancelledError(url, phase string, cause error) *DiscoveryError {
	return New(Cancelled, url, phase, "operation cancelled", cause)
}

// KindOf extracts the kind of err, or Unknown.
func KindOf(err error) Kind {
	var de *DiscoveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	return Unknown
}

// IsRetryable checks whether err should trigger another navigation attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err).IsRetryable()
}

// IsFatal checks whether err ends the session.
func IsFatal(err error) bool {
	return KindOf(err) == SessionFatal
}

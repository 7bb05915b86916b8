// Package errors provides standardized error handling for oxidros.
// It defines the middleware error taxonomy as sentinel values, an error
// classification scheme, and helper functions for consistent error
// wrapping across the system.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
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

// Middleware error taxonomy. Every failure surfaced by the core wraps one
// of these sentinels so callers can branch with errors.Is.
var (
	// ErrConnection indicates the transport cannot be reached. Fatal at
	// context startup; a reachable router is a hard precondition.
	ErrConnection = errors.New("cannot connect to transport")

	// ErrInvalidName indicates a malformed node, namespace, topic, or
	// service name. Rejected before any wire action.
	ErrInvalidName = errors.New("invalid name")

	// ErrNameConflict indicates a duplicate registration where uniqueness
	// is required (service servers and clients within one node).
	ErrNameConflict = errors.New("name conflict")

	// ErrTransport indicates a publish, subscribe, or query failure at the
	// transport layer. Surfaced to the caller, never retried by the core.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout indicates a service call or wait exceeded its deadline.
	// Recoverable; the caller decides whether to retry.
	ErrTimeout = errors.New("timeout")

	// ErrClosed indicates an operation targeting a destroyed endpoint.
	ErrClosed = errors.New("endpoint closed")

	// ErrAlreadyResponded indicates a second response to a service request
	// that has already been answered. Programmer error, surfaced.
	ErrAlreadyResponded = errors.New("request already responded")

	// ErrNotImplemented indicates a capability absent in this backend,
	// such as the action protocol. Surfaced immediately, never degraded.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidAttachment indicates malformed attachment metadata bytes.
	ErrInvalidAttachment = errors.New("invalid attachment")

	// ErrInvalidConfig indicates unusable runtime configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and may succeed on retry
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrConnection) || errors.Is(err, ErrInvalidConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrNameConflict) ||
		errors.Is(err, ErrInvalidAttachment) ||
		errors.Is(err, ErrAlreadyResponded)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors
	return ErrorTransient
}

// newClassified creates a new classified error.
// Internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// New returns an error that formats as the given text. Re-exported so
// callers of this package do not also need the standard library errors
// package for one-off errors.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

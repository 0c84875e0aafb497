// Package errors provides error types and categorization for panel probing.
package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for reporting decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Validation represents malformed or missing request parameters.
	Validation
	// Network represents network-related errors (DNS, connection).
	Network
	// Timeout represents a call that exceeded its deadline.
	Timeout
	// TLS represents handshake and certificate failures.
	TLS
	// Cancelled represents context cancellation by the caller.
	Cancelled
	// Parse represents parsing errors (HTML, JSON, URLs).
	Parse
	// Internal represents unexpected failures inside the engine.
	Internal
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Validation:
		return "validation"
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case TLS:
		return "tls"
	case Cancelled:
		return "cancelled"
	case Parse:
		return "parse"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// ProbeError represents a categorized probe error.
type ProbeError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e.URL == "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s error during %s: %s (caused by: %v)", e.Type, e.Operation, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s error during %s: %s", e.Type, e.Operation, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type, e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is matches another ProbeError of the same type.
func (e *ProbeError) Is(target error) bool {
	t, ok := target.(*ProbeError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Short returns a compact message suitable for attempt logs.
func (e *ProbeError) Short() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// NewProbeError creates a new ProbeError.
func NewProbeError(errType ErrorType, url, operation, message string, cause error) *ProbeError {
	return &ProbeError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewValidationError creates a parameter validation error.
func NewValidationError(message string) *ProbeError {
	return NewProbeError(Validation, "", "validate", message, nil)
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Timeout, url, operation, "request timed out", cause)
}

// NewTLSError creates a TLS error.
func NewTLSError(url, operation string, cause error) *ProbeError {
	return NewProbeError(TLS, url, operation, "tls failure", cause)
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *ProbeError {
	return NewProbeError(Parse, url, operation, "parsing failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *ProbeError {
	return NewProbeError(Cancelled, url, operation, "operation cancelled", nil)
}

// NewInternalError creates an internal error from a recovered value.
func NewInternalError(operation string, recovered interface{}) *ProbeError {
	if err, ok := recovered.(error); ok {
		return NewProbeError(Internal, "", operation, "unexpected failure", err)
	}
	return NewProbeError(Internal, "", operation, fmt.Sprintf("unexpected failure: %v", recovered), nil)
}

// Categorize determines the error type from a generic transport error.
func Categorize(err error, url string) *ProbeError {
	if err == nil {
		return nil
	}

	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTLSError(err) {
		return NewTLSError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return NewProbeError(Unknown, url, "request", err.Error(), err)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var probeErr *ProbeError
	if errors.As(err, &probeErr) {
		return probeErr.Type
	}
	return Unknown
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isTLSError(err error) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	return strings.Contains(err.Error(), "tls:")
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}

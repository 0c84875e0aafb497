package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Validation, "validation"},
		{Network, "network"},
		{Timeout, "timeout"},
		{TLS, "tls"},
		{Cancelled, "cancelled"},
		{Parse, "parse"},
		{Internal, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// ProbeError Tests
// =============================================================================

func TestProbeError_Error(t *testing.T) {
	err := NewProbeError(Network, "https://panel.example.com", "fetch", "connection failed", nil)

	errStr := err.Error()
	if !strings.Contains(errStr, "panel.example.com") {
		t.Errorf("Error() = %q, should mention URL", errStr)
	}
	if !strings.Contains(errStr, "network") {
		t.Errorf("Error() = %q, should mention type", errStr)
	}
}

func TestProbeError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewProbeError(Network, "https://panel.example.com", "fetch", "connection failed", cause)

	if !strings.Contains(err.Error(), "underlying") {
		t.Errorf("Error() = %q, should include cause", err.Error())
	}
}

func TestProbeError_Unwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := NewNetworkError("https://panel.example.com", "fetch", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestProbeError_Is(t *testing.T) {
	err1 := NewTimeoutError("a", "op", nil)
	err2 := NewTimeoutError("b", "op", nil)
	err3 := NewNetworkError("a", "op", nil)

	if !errors.Is(err1, err2) {
		t.Error("errors of the same type should match")
	}
	if errors.Is(err1, err3) {
		t.Error("errors of different types should not match")
	}
}

func TestProbeError_Short(t *testing.T) {
	err := NewTimeoutError("https://panel.example.com", "request", context.DeadlineExceeded)
	if got := err.Short(); got != "request timed out: context deadline exceeded" {
		t.Errorf("Short() = %q", got)
	}

	plain := NewValidationError("baseUrl is required")
	if got := plain.Short(); got != "baseUrl is required" {
		t.Errorf("Short() = %q", got)
	}
}

func TestNewInternalError(t *testing.T) {
	fromErr := NewInternalError("probe", errors.New("boom"))
	if fromErr.Type != Internal || !strings.Contains(fromErr.Error(), "boom") {
		t.Errorf("unexpected internal error: %v", fromErr)
	}

	fromValue := NewInternalError("probe", "nil map")
	if !strings.Contains(fromValue.Message, "nil map") {
		t.Errorf("Message = %q, should include recovered value", fromValue.Message)
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

func TestCategorize_Nil(t *testing.T) {
	if Categorize(nil, "x") != nil {
		t.Error("Categorize(nil) should be nil")
	}
}

func TestCategorize_ProbeError(t *testing.T) {
	orig := NewTLSError("x", "op", nil)
	if got := Categorize(fmt.Errorf("wrapped: %w", orig), "x"); got != orig {
		t.Error("Categorize should return the wrapped ProbeError")
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), Timeout},
		{"canceled", context.Canceled, Cancelled},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, Network},
		{"op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, Network},
		{"tls", errors.New("remote error: tls: handshake failure"), TLS},
		{"unknown", errors.New("something odd"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.err, "https://panel.example.com")
			if got.Type != tt.want {
				t.Errorf("Categorize() type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestCategorize_DeadlineIsTimeout(t *testing.T) {
	if GetErrorType(NewTimeoutError("x", "op", nil)) != Timeout {
		t.Error("timeout ProbeError should be a timeout")
	}
	if Categorize(context.DeadlineExceeded, "x").Type != Timeout {
		t.Error("DeadlineExceeded should be a timeout")
	}
	if GetErrorType(NewNetworkError("x", "op", nil)) == Timeout {
		t.Error("network error should not be a timeout")
	}
}

func TestGetErrorType(t *testing.T) {
	if GetErrorType(NewParseError("x", "op", nil)) != Parse {
		t.Error("expected Parse")
	}
	if GetErrorType(errors.New("plain")) != Unknown {
		t.Error("expected Unknown")
	}
}

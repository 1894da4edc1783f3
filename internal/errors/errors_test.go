package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	cause := errors.New("boom")
	err := NewIOError("failed to read image", cause).WithDetails("cat.png")

	msg := err.Error()
	for _, want := range []string{"io", "failed to read image", "cat.png", "boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error message to contain %q, got: %s", want, msg)
		}
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewEncodeError("failed to write", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestWithDetails_DoesNotMutateOriginal(t *testing.T) {
	base := NewConfigurationError("unknown operation", nil)
	_ = base.WithDetails("bogus-op")

	if base.Details != "" {
		t.Errorf("Expected original details to stay empty, got %q", base.Details)
	}
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		errType  ErrorType
		expected bool
	}{
		{"configuration", NewConfigurationError("x", nil), ErrorTypeConfiguration, true},
		{"wrapped configuration", fmt.Errorf("run: %w", NewConfigurationError("x", nil)), ErrorTypeConfiguration, true},
		{"io is not configuration", NewIOError("x", nil), ErrorTypeConfiguration, false},
		{"plain error", errors.New("x"), ErrorTypeIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsType(tt.err, tt.errType); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGetStatusCode(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{NewConfigurationError("x", nil), http.StatusBadRequest},
		{NewValidationError("x", nil), http.StatusBadRequest},
		{NewIOError("x", nil), http.StatusUnprocessableEntity},
		{NewNetworkError("x", nil), http.StatusBadGateway},
		{NewEncodeError("x", nil), http.StatusInternalServerError},
		{NewTimeoutError("x", nil), http.StatusGatewayTimeout},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := GetStatusCode(tt.err); got != tt.expected {
			t.Errorf("Expected status %d for %v, got %d", tt.expected, tt.err, got)
		}
	}
}

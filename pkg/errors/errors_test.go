package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeAuthentication, "login rejected")
	want := "authentication error: login rejected"
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}

	cause := fmt.Errorf("connection reset")
	wrapped := Wrap(ErrorTypeNavigation, "page load failed", cause)
	want = "navigation error: page load failed: connection reset"
	if wrapped.Error() != want {
		t.Errorf("Expected %q, got %q", want, wrapped.Error())
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected wrapped error to match its cause via errors.Is")
	}
}

func TestTypeOf(t *testing.T) {
	if got := TypeOf(New(ErrorTypeVaultLocked, "locked")); got != ErrorTypeVaultLocked {
		t.Errorf("Expected vault_locked, got %s", got)
	}
	if got := TypeOf(fmt.Errorf("plain")); got != ErrorTypeUnknown {
		t.Errorf("Expected unknown for plain error, got %s", got)
	}
	if !IsType(New(ErrorTypeDecryption, "bad key"), ErrorTypeDecryption) {
		t.Error("Expected IsType to match decryption error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeNavigation, true},
		{ErrorTypeExtraction, true},
		{ErrorTypeAuthentication, false},
		{ErrorTypeChallengeTimeout, false},
		{ErrorTypeVaultLocked, false},
		{ErrorTypePersistence, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			if got := IsRetryable(tt.errorType); got != tt.retryable {
				t.Errorf("IsRetryable(%s) = %v, want %v", tt.errorType, got, tt.retryable)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		fatal     bool
	}{
		{ErrorTypePersistence, true},
		{ErrorTypeVaultLocked, true},
		{ErrorTypeDecryption, true},
		{ErrorTypeNoEligibleAccount, false},
		{ErrorTypeAuthentication, false},
		{ErrorTypeChallengeTimeout, false},
		{ErrorTypeExtraction, false},
		{ErrorTypeNavigation, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			if got := IsFatal(tt.errorType); got != tt.fatal {
				t.Errorf("IsFatal(%s) = %v, want %v", tt.errorType, got, tt.fatal)
			}
		})
	}
}

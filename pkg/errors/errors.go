package errors

import "fmt"

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeVaultLocked       ErrorType = "vault_locked"
	ErrorTypeDecryption        ErrorType = "decryption"
	ErrorTypeNoEligibleAccount ErrorType = "no_eligible_account"
	ErrorTypeAuthentication    ErrorType = "authentication"
	ErrorTypeChallengeTimeout  ErrorType = "challenge_timeout"
	ErrorTypeExtraction        ErrorType = "extraction"
	ErrorTypePersistence       ErrorType = "persistence"
	ErrorTypeNavigation        ErrorType = "navigation"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents a typed monitor error
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a typed error with a message
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error wrapping a cause
func Wrap(errorType ErrorType, message string, cause error) *Error {
	return &Error{Type: errorType, Message: message, Cause: cause}
}

// TypeOf returns the type of an error, or ErrorTypeUnknown for untyped errors
func TypeOf(err error) ErrorType {
	if typed, ok := err.(*Error); ok {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType checks whether err is a typed error of the given type
func IsType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried within a session
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeExtraction:
		return true
	case ErrorTypeVaultLocked, ErrorTypeDecryption, ErrorTypeNoEligibleAccount,
		ErrorTypeAuthentication, ErrorTypeChallengeTimeout, ErrorTypePersistence,
		ErrorTypeNotFound:
		return false
	default:
		return false
	}
}

// IsFatal checks if an error type must abort the whole run. Everything
// else, including finding no eligible account for a keyword, is recoverable
// at keyword granularity.
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypePersistence, ErrorTypeVaultLocked, ErrorTypeDecryption:
		return true
	default:
		return false
	}
}

package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Auth errors (AUTH-001 to AUTH-099)
	ErrCodeNotLoggedIn        ErrorCode = "AUTH-001"
	ErrCodeAlreadyLoggedIn    ErrorCode = "AUTH-002"
	ErrCodeSessionExpired     ErrorCode = "AUTH-003"
	ErrCodeInvalidCredentials ErrorCode = "AUTH-004"
	ErrCodeLoginIncomplete    ErrorCode = "AUTH-005"

	// API errors (API-001 to API-099)
	ErrCodeAPIUnreachable ErrorCode = "API-001"
	ErrCodeAPIRequest     ErrorCode = "API-002"
	ErrCodeAPIDecode      ErrorCode = "API-003"

	// Session store errors (STORE-001 to STORE-099)
	ErrCodeStoreWrite   ErrorCode = "STORE-001"
	ErrCodeStoreClear   ErrorCode = "STORE-002"
	ErrCodeStoreBackend ErrorCode = "STORE-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigRead    ErrorCode = "CONFIG-002"
	ErrCodeConfigWrite   ErrorCode = "CONFIG-003"
)

// StockbookError represents an enhanced error with code, suggestions, and documentation
type StockbookError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *StockbookError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *StockbookError) Unwrap() error {
	return e.Cause
}

// New creates a new StockbookError
func New(code ErrorCode, message string) *StockbookError {
	return &StockbookError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new StockbookError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *StockbookError {
	return &StockbookError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *StockbookError) WithSuggestion(suggestion string) *StockbookError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *StockbookError) WithSuggestions(suggestions ...string) *StockbookError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *StockbookError) WithDocs(url string) *StockbookError {
	e.DocsURL = url
	return e
}

// HasCode reports whether err is a StockbookError carrying code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if sbErr, ok := err.(*StockbookError); ok && sbErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Common error constructors for frequently used errors

// NewNotLoggedInError is returned by commands that need a session when none exists
func NewNotLoggedInError() *StockbookError {
	return New(ErrCodeNotLoggedIn, "not logged in").
		WithSuggestion("Run 'stockbook auth login' to authenticate")
}

// NewAlreadyLoggedInError is returned by guest-only commands while a session exists
func NewAlreadyLoggedInError(email string) *StockbookError {
	return New(ErrCodeAlreadyLoggedIn, fmt.Sprintf("already logged in as %s", email)).
		WithSuggestion("Run 'stockbook auth logout' first to switch accounts")
}

// NewSessionExpiredError reports that the server rejected the stored credential
func NewSessionExpiredError() *StockbookError {
	return New(ErrCodeSessionExpired, "session expired or was revoked by the server").
		WithSuggestion("Run 'stockbook auth login' to start a new session")
}

// NewAPIUnreachableError wraps a transport failure
func NewAPIUnreachableError(baseURL string, cause error) *StockbookError {
	return Wrap(ErrCodeAPIUnreachable, fmt.Sprintf("could not reach server at %s", baseURL), cause).
		WithSuggestion("Check that the backend is running").
		WithSuggestion("Set STOCKBOOK_API_URL or api.base_url in ~/.stockbook/config.yaml")
}

// NewStoreWriteError wraps a session persistence failure
func NewStoreWriteError(cause error) *StockbookError {
	return Wrap(ErrCodeStoreWrite, "failed to persist session", cause).
		WithSuggestion("Check permissions of the session directory").
		WithSuggestion("Run 'stockbook config show' to see which session backend is in use")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *StockbookError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'stockbook config show' to inspect the effective configuration")
}

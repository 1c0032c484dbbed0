// Package exitcode maps command errors to process exit codes.
package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/stockbook/internal/api"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates an invalid or unreadable configuration
	ConfigError = 3

	// StoreError indicates the session store could not be read or written
	StoreError = 4

	// AuthError indicates a missing, expired or rejected session
	AuthError = 5

	// NetworkError indicates the backend could not be reached
	NetworkError = 6

	// Interrupted indicates the user cancelled with Ctrl-C
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

var codePrefixes = map[string]int{
	"AUTH-":   AuthError,
	"API-001": NetworkError,
	"STORE-":  StoreError,
	"CONFIG-": ConfigError,
}

// DetermineExitCode classifies err. Typed errors decide first; cobra's
// usage failures are recognised by message since cobra returns plain errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	var coded *sberrors.StockbookError
	if errors.As(err, &coded) {
		for prefix, code := range codePrefixes {
			if strings.HasPrefix(string(coded.Code), prefix) {
				return code
			}
		}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsAuthorization():
			return AuthError
		case apiErr.Kind == api.KindTransport:
			return NetworkError
		}
	}

	if api.IsTimeout(err) {
		return NetworkError
	}

	errMsg := strings.ToLower(err.Error())
	for _, marker := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "invalid argument", "required flag", "accepts ", "requires at least", "requires at most"} {
		if strings.Contains(errMsg, marker) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case StoreError:
		return "Session store error"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}

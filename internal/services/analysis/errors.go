package analysis

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kyofin/kessan/internal/clients/jquants"
)

// ValidationError is a caller mistake, typically a malformed instrument code.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func newValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is caller-facing.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuthError reports whether err is a credential failure from an upstream
// API. These are never retried and abort the whole analysis.
func IsAuthError(err error) bool {
	var apiErr *jquants.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// userMessage maps an internal error to the plain-language message surfaced
// across the streaming boundary. Raw internals never cross it.
func userMessage(err error) string {
	switch {
	case IsValidationError(err):
		return err.Error()
	case IsAuthError(err):
		return "upstream API credentials are missing or invalid"
	default:
		return "analysis failed: upstream data could not be retrieved"
	}
}

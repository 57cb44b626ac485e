package remote

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Error codes reported by the remote client.
const (
	CodeHTTP      = "HTTP_ERROR"
	CodeNetwork   = "NETWORK_ERROR"
	CodeBadFormat = "BAD_FORMAT"
)

const (
	msgAPIError     = "Error de API"
	msgNetworkError = "Fallo de red o CORS"
)

// Error is a failed remote call. Status is 0 for transport failures.
type Error struct {
	Code    string
	Status  int
	Message string
	// Data is the decoded response body, or the transport cause.
	Data any
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s %d: %s", e.Code, e.Status, e.Message)
}

// Fallback describes the failure for locally substituted results.
func (e *Error) Fallback() *domain.Fallback {
	return &domain.Fallback{Code: e.Code, Status: e.Status, Message: e.Message}
}

func networkError(cause error) *Error {
	return &Error{
		Code:    CodeNetwork,
		Status:  0,
		Message: msgNetworkError,
		Data:    map[string]string{"cause": cause.Error()},
	}
}

// AsError views any error as a remote error. Errors that did not come from
// the remote client are reported as network failures.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return networkError(err)
}

// FallbackOf is a shorthand for AsError(err).Fallback().
func FallbackOf(err error) *domain.Fallback {
	if err == nil {
		return nil
	}
	return AsError(err).Fallback()
}

// StatusOf returns the HTTP status of a remote error, or 0.
func StatusOf(err error) int {
	var re *Error
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

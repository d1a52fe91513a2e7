package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError describes an HTTP error returned by the config backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
	// Message is the "error" field of a JSON error body, when present.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Temporary reports whether the error may succeed on retry.
func (e *APIError) Temporary() bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	return e.Status >= 500 && e.Status < 600
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, Status: status, Body: string(body)}
	var parsed ErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Error
	}
	return apiErr
}

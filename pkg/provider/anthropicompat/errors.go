package anthropicompat

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/glmkit/glmkit/pkg/api"
)

// maxErrorBody bounds how much of an error body is kept for diagnosis.
const maxErrorBody = 4096

// MapHTTPError converts a non-2xx status and its body into a typed
// request failure, extracting the backend's error message when the body
// follows the Messages API error shape.
func MapHTTPError(status int, body []byte) *api.ProviderError {
	excerpt := string(body)
	if len(excerpt) > maxErrorBody {
		excerpt = excerpt[:maxErrorBody]
	}

	message := extractErrorMessage(body)
	if message == "" {
		message = fmt.Sprintf("API request failed with status %d", status)
	}

	return api.NewRequestError(status, message, excerpt)
}

// MapNetworkError converts a network-level failure (no status received)
// into a transport error.
func MapNetworkError(err error) *api.ProviderError {
	return api.NewTransportError(err)
}

// Transient reports whether a failed attempt is worth retrying: rate
// limiting, server-side failures, and the overloaded signature some
// Anthropic-compatible backends return.
func Transient(status int, body []byte) bool {
	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusRequestTimeout:
		return true
	case status >= http.StatusInternalServerError:
		return true
	}

	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		return resp.Error.Type == "overloaded_error"
	}
	return false
}

// extractErrorMessage parses the error body shape and returns the
// backend's message, or empty when the body is something else.
func extractErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error.Message != "" {
		return resp.Error.Message
	}
	return ""
}

// Package httputil centralizes JSON response writing and domain error
// translation so every handler produces the same envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "frisk/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain error codes to HTTP statuses. Conflict maps to 400
// with a specific message rather than 409 to match the client contract.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeConflict:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates a domain error into a JSON error envelope.
// Internal and upstream failure detail is never echoed back to the client;
// those codes produce a generic envelope and the caller is expected to have
// logged the underlying error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeUnavailable {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, statusFor(code), body)
}

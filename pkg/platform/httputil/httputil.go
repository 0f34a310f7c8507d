// Package httputil renders JSON responses and the coded error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	dErrors "rolesync/pkg/domain-errors"
)

// ErrorResponse is the body of every terminal failure.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

const maxBodyBytes = 1 << 20

// StatusFor maps an error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeInvalidToken:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeDuplicateRole, dErrors.CodeLastRole, dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeTokenExpired:
		return http.StatusGone
	case dErrors.CodeRolesNotVerified:
		return http.StatusUnprocessableEntity
	case dErrors.CodeQueueTimeout:
		return http.StatusTooManyRequests
	case dErrors.CodeTransient:
		return http.StatusServiceUnavailable
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodePartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as the failure envelope. Internal errors never leak
// their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	msg := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		code = dErrors.CodeInternal
		msg = "internal error"
	}
	WriteJSON(w, StatusFor(code), ErrorResponse{Message: msg, ErrorCode: string(code)})
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DecodeJSON reads a bounded JSON body into dst. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

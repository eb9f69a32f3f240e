package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes. Each maps to exactly one HTTP status.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeTooLarge     = "payload_too_large"
	ErrCodeValidation   = "validation_error"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"
)

var errorStatus = map[string]int{
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeValidation:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,
	ErrCodeInternal:     http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

// writeError answers r with code's status and an ErrorResponse carrying
// the request ID, so a client report can be matched to the server log.
func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r.Context()),
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

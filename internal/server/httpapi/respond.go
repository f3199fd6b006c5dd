package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/logging"
)

// envelope is the uniform response body. Success responses carry
// "success":true plus handler payload fields; failures carry
// "success":false and a client-safe error string.
type envelope map[string]any

func writeSuccess(w http.ResponseWriter, status int, payload envelope) {
	body := envelope{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeServiceError maps sentinel errors onto HTTP statuses. Anything not
// recognized is a 500 with a generic body; the detail goes to the log only.
func writeServiceError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, common.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, common.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyExists):
		status, msg = http.StatusConflict, "already exists"
	default:
		status, msg = http.StatusInternalServerError, "internal error"
		logger.Error(ctx, "request failed", "error", err)
	}

	writeErrorStatus(w, status, msg)
}

func writeErrorStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{"success": false, "error": msg})
}

// decodeJSON reads the request body into dst, rejecting syntactic garbage
// with a validation error.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return common.ErrValidation
	}
	return nil
}

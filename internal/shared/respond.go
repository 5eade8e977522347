package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// WriteJSON renders a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteError maps the error taxonomy onto HTTP statuses. Validation and
// business-rule errors carry their message verbatim so the caller can correct
// input; storage failures stay opaque.
func WriteError(w http.ResponseWriter, err error) {
	var (
		validationErr *ValidationError
		insufficient  *InsufficientStockError
		notFound      *NotFoundError
		conflict      *ConflictError
		persistence   *PersistenceError
		rateLimited   *RateLimitedError
	)
	switch {
	case errors.As(err, &validationErr):
		WriteJSON(w, http.StatusBadRequest, errorBody{Error: validationErr.Message, Field: validationErr.Field})
	case errors.As(err, &insufficient):
		WriteJSON(w, http.StatusConflict, errorBody{Error: insufficient.Error()})
	case errors.As(err, &notFound):
		WriteJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &conflict):
		WriteJSON(w, http.StatusConflict, errorBody{Error: conflict.Error()})
	case errors.As(err, &rateLimited):
		w.Header().Set("Retry-After", strconv.Itoa(int(rateLimited.RetryAfter/time.Second)))
		WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: rateLimited.Error()})
	case errors.As(err, &persistence):
		WriteJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage temporarily unavailable"})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

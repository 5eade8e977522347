package shared

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPIN indicates PIN verification failure.
	ErrInvalidPIN = errors.New("invalid pin")
	// ErrPINExpired indicates the lab PIN is past its expiry.
	ErrPINExpired = errors.New("pin expired")
)

// ValidationError reports malformed input. It names the offending field so
// callers can correct the submission. Never persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError indicates the requested amount exceeds availability.
// No state change accompanies this error.
type InsufficientStockError struct {
	Requested float64
	Available float64
	Unit      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %g %s, available %g %s", e.Requested, e.Unit, e.Available, e.Unit)
}

// NotFoundError indicates an unknown item or container.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError indicates a concurrent mutation was detected. Callers should
// reload state and retry with the same idempotency key.
type ConflictError struct {
	Entity string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update on %s, retry with fresh state", e.Entity)
}

// PersistenceError wraps a storage-layer failure. Safe to retry with backoff
// and the same idempotency key.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// RateLimitedError is returned by the access throttle while a key is locked.
// RetryAfter tells the caller when attempts may resume; the remaining lockout
// is the only detail exposed once locked.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

package studentmode

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/inventory"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// Handler exposes the student kiosk endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler wires the kiosk HTTP surface.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers the kiosk routes. All endpoints are unauthenticated
// beyond the PIN; the throttle keys on the caller's address per scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/session", h.handleSession)
	r.Post("/stock/use", h.handleStockUse)
	r.Put("/pin", h.handleSetPIN)
}

type sessionRequest struct {
	PIN string `json:"pin" validate:"required"`
}

type sessionResponse struct {
	Verified          bool `json:"verified"`
	RemainingAttempts int  `json:"remaining_attempts,omitempty"`
}

// handleSession verifies the lab PIN for a kiosk session. A wrong PIN reports
// the attempts left before the caller's address is locked out.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	remaining, err := h.service.VerifyPIN(r.Context(), throttleKey(r, ScopeSession), req.PIN)
	if err != nil {
		h.writeVerifyError(w, err, remaining)
		return
	}
	shared.WriteJSON(w, http.StatusOK, sessionResponse{Verified: true})
}

type stockUseRequest struct {
	PIN            string  `json:"pin" validate:"required"`
	ItemID         int64   `json:"item_id" validate:"required"`
	Mode           string  `json:"mode" validate:"required,oneof=CONTENT UNITS"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	StudentName    string  `json:"student_name" validate:"required"`
	Notes          string  `json:"notes"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required,uuid"`
}

// handleStockUse records a stock deduction from the kiosk. PIN verification
// and the deduction share one request so a stolen session token is never a
// concern; every call re-proves knowledge of the PIN.
func (h *Handler) handleStockUse(w http.ResponseWriter, r *http.Request) {
	var req stockUseRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	result, remaining, err := h.service.RecordUse(r.Context(), RecordUseInput{
		ClientKey:      throttleKey(r, ScopeUse),
		PIN:            req.PIN,
		ItemID:         req.ItemID,
		Mode:           inventory.UseMode(req.Mode),
		Amount:         req.Amount,
		StudentName:    req.StudentName,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, shared.ErrInvalidPIN) || errors.Is(err, shared.ErrPINExpired) {
			h.writeVerifyError(w, err, remaining)
			return
		}
		if errors.Is(err, inventory.ErrItemNotActive) {
			shared.WriteJSON(w, http.StatusConflict, map[string]string{"error": "Item is not active"})
			return
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"item_id":  result.Item.ID,
		"action":   result.Record.Action,
		"replayed": result.Replayed,
		"after":    result.Record.After,
	})
}

type setPINRequest struct {
	PIN       string     `json:"pin" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
	ActorName string     `json:"actor_name" validate:"required"`
}

// handleSetPIN replaces the lab PIN. Intended for the admin surface, which
// sits behind the deployment's own access controls.
func (h *Handler) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req setPINRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	err := h.service.SetPIN(r.Context(), req.PIN, req.ExpiresAt, shared.Actor{Name: req.ActorName})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	h.logger.Info("lab pin updated", "actor", req.ActorName)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return shared.NewValidationError("", "Invalid JSON body")
	}
	if err := h.validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return shared.NewValidationError(first.Field(), "Invalid value for "+first.Field())
		}
		return shared.NewValidationError("", "Invalid request")
	}
	return nil
}

// writeVerifyError renders PIN verification failures. Lockouts go through the
// shared taxonomy (429 + Retry-After); wrong or expired PINs return 401 with
// the remaining attempt budget.
func (h *Handler) writeVerifyError(w http.ResponseWriter, err error, remaining int) {
	var rateLimited *shared.RateLimitedError
	if errors.As(err, &rateLimited) {
		shared.WriteError(w, err)
		return
	}
	switch {
	case errors.Is(err, shared.ErrPINExpired):
		shared.WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": "PIN has expired, ask staff to set a new one"})
	case errors.Is(err, shared.ErrInvalidPIN):
		shared.WriteJSON(w, http.StatusUnauthorized, map[string]any{
			"error":              "Incorrect PIN",
			"remaining_attempts": remaining,
		})
	default:
		shared.WriteError(w, err)
	}
}

// throttleKey buckets attempts per client address and operation scope. The
// router's RealIP middleware has already resolved proxy headers.
func throttleKey(r *http.Request, scope string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host + ":" + scope
}

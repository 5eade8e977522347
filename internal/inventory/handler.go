package inventory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs an inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.handleSummary)
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleIntake)
		r.Route("/{itemID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Get("/history", h.handleHistory)
			r.Post("/use", h.handleUse)
			r.Post("/restock", h.handleRestock)
			r.Post("/adjust", h.handleAdjust)
			r.Post("/dispose", h.handleDispose)
			r.Post("/restore", h.handleRestore)
			r.Post("/archive", h.handleArchive)
		})
	})
}

// itemView is the JSON projection of an item. Only the active tracking
// type's fields appear; content_label and total_content_unit are kept as
// aliases of content_unit for older clients.
type itemView struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Category         Category     `json:"category"`
	TrackingType     TrackingType `json:"tracking_type"`
	Status           ItemStatus   `json:"status"`
	QuantityValue    *float64     `json:"quantity_value,omitempty"`
	QuantityUnit     *string      `json:"quantity_unit,omitempty"`
	TotalUnits       *int64       `json:"total_units,omitempty"`
	UnitType         *string      `json:"unit_type,omitempty"`
	ContentPerUnit   *float64     `json:"content_per_unit,omitempty"`
	ContentUnit      *string      `json:"content_unit,omitempty"`
	ContentLabel     *string      `json:"content_label,omitempty"`
	TotalContentUnit *string      `json:"total_content_unit,omitempty"`
	TotalContent     *float64     `json:"total_content,omitempty"`
	Quantity         *float64     `json:"quantity,omitempty"`
	Unit             *string      `json:"unit,omitempty"`
	SealedCount      *int         `json:"sealed_count,omitempty"`
	OpenedCount      *int         `json:"opened_count,omitempty"`
	EmptyCount       *int         `json:"empty_count,omitempty"`
	MinimumStock     float64      `json:"minimum_stock"`
	LowStock         bool         `json:"low_stock"`
	OpenedAt         *string      `json:"opened_at,omitempty"`
	DisposedAt       *string      `json:"disposed_at,omitempty"`
	DisposedBy       *string      `json:"disposed_by,omitempty"`
	DisposalReason   *string      `json:"disposal_reason,omitempty"`
}

func viewOf(detail ItemDetail) itemView {
	view := itemView{
		ID:             detail.ID,
		Name:           detail.Name,
		Category:       detail.Category,
		Status:         detail.Status,
		MinimumStock:   detail.MinimumStock,
		LowStock:       detail.LowStock,
		DisposedBy:     detail.DisposedBy,
		DisposalReason: detail.DisposalReason,
	}
	if detail.OpenedAt != nil {
		opened := detail.OpenedAt.Format("2006-01-02T15:04:05Z07:00")
		view.OpenedAt = &opened
	}
	if detail.DisposedAt != nil {
		disposed := detail.DisposedAt.Format("2006-01-02T15:04:05Z07:00")
		view.DisposedAt = &disposed
	}
	if detail.Stock == nil {
		return view
	}
	view.TrackingType = detail.Stock.Type()
	switch stock := detail.Stock.(type) {
	case SimpleMeasure:
		view.QuantityValue = &stock.QuantityValue
		view.QuantityUnit = &stock.QuantityUnit
		view.Quantity = &stock.QuantityValue
		view.Unit = &stock.QuantityUnit
	case UnitOnly:
		view.TotalUnits = &stock.TotalUnits
		view.UnitType = &stock.UnitType
		quantity := float64(stock.TotalUnits)
		view.Quantity = &quantity
		view.Unit = &stock.UnitType
	case PackWithContent:
		view.TotalUnits = &stock.TotalUnits
		view.ContentPerUnit = &stock.ContentPerUnit
		view.ContentUnit = &stock.ContentUnit
		view.ContentLabel = &stock.ContentUnit
		view.TotalContentUnit = &stock.ContentUnit
		tally := detail.Tally
		remaining := tally.RemainingContent
		view.TotalContent = &remaining
		view.SealedCount = &tally.Sealed
		view.OpenedCount = &tally.Opened
		view.EmptyCount = &tally.Empty
	}
	return view
}

func (h *Handler) itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError("item_id", "Item id must be a positive integer")
	}
	return id, nil
}

func (h *Handler) decode(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return shared.NewValidationError("body", "Request body must be valid JSON")
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return shared.NewValidationError(fieldErrs[0].Field(), "Invalid value")
		}
		return shared.NewValidationError("body", "Invalid request")
	}
	return nil
}

func (h *Handler) writeMutation(w http.ResponseWriter, result MutationResult, err error) {
	if err != nil {
		if errors.Is(err, ErrItemNotActive) {
			shared.WriteJSON(w, http.StatusConflict, map[string]string{"error": "Item is not active"})
			return
		}
		shared.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if result.Record.Action == ActionIntake && !result.Replayed {
		status = http.StatusCreated
	}
	shared.WriteJSON(w, status, map[string]any{
		"item_id":  result.Record.ItemID,
		"action":   result.Record.Action,
		"replayed": result.Replayed,
		"before":   result.Record.Before,
		"after":    result.Record.After,
	})
}

type intakeRequest struct {
	Name           string   `json:"name" validate:"required"`
	Category       string   `json:"category" validate:"required,oneof=chemical consumable"`
	TrackingType   string   `json:"tracking_type" validate:"required,oneof=SIMPLE_MEASURE UNIT_ONLY PACK_WITH_CONTENT"`
	QuantityValue  float64  `json:"quantity_value"`
	QuantityUnit   string   `json:"quantity_unit"`
	TotalUnits     int64    `json:"total_units"`
	UnitType       string   `json:"unit_type"`
	ContentPerUnit float64  `json:"content_per_unit"`
	ContentUnit    string   `json:"content_unit"`
	MinimumStock   float64  `json:"minimum_stock"`
	AlreadyOpened  bool     `json:"already_opened"`
	OpenedRemained *float64 `json:"opened_remaining"`
	Notes          string   `json:"notes"`
	ActorName      string   `json:"actor_name" validate:"required"`
	ActorID        *int64   `json:"actor_id"`
	IdempotencyKey string   `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleIntake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	var stock Stock
	switch TrackingType(req.TrackingType) {
	case TrackingSimpleMeasure:
		stock = SimpleMeasure{QuantityValue: req.QuantityValue, QuantityUnit: req.QuantityUnit}
	case TrackingUnitOnly:
		stock = UnitOnly{TotalUnits: req.TotalUnits, UnitType: req.UnitType}
	case TrackingPackWithContent:
		stock = PackWithContent{TotalUnits: req.TotalUnits, ContentPerUnit: req.ContentPerUnit, ContentUnit: req.ContentUnit}
	}
	result, err := h.service.Intake(r.Context(), IntakeInput{
		Name:           req.Name,
		Category:       Category(req.Category),
		Stock:          stock,
		MinimumStock:   req.MinimumStock,
		AlreadyOpened:  req.AlreadyOpened,
		OpenedRemained: req.OpenedRemained,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Category: Category(q.Get("category")),
		Status:   ItemStatus(q.Get("status")),
		Search:   q.Get("search"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}
	details, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		shared.WriteError(w, err)
		return
	}
	views := make([]itemView, 0, len(details))
	for _, detail := range details {
		views = append(views, viewOf(detail))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"items": views})
}

type containerView struct {
	Index            int             `json:"index"`
	Status           ContainerStatus `json:"status"`
	InitialContent   float64         `json:"initial_content"`
	RemainingContent float64         `json:"remaining_content"`
	ContentUnit      string          `json:"content_unit"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	detail, err := h.service.GetItemDetail(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	payload := map[string]any{"item": viewOf(detail)}
	if len(detail.Containers) > 0 {
		containers := make([]containerView, 0, len(detail.Containers))
		for _, c := range detail.Containers {
			containers = append(containers, containerView{
				Index:            c.Index,
				Status:           c.Status,
				InitialContent:   c.InitialContent,
				RemainingContent: c.RemainingContent,
				ContentUnit:      c.ContentUnit,
			})
		}
		payload["containers"] = containers
	}
	shared.WriteJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"history": records})
}

type useRequest struct {
	Mode           string  `json:"mode" validate:"required,oneof=CONTENT UNITS"`
	Amount         float64 `json:"amount" validate:"required"`
	Notes          string  `json:"notes"`
	ActorName      string  `json:"actor_name" validate:"required"`
	ActorID        *int64  `json:"actor_id"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleUse(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req useRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Use(r.Context(), UseInput{
		ItemID:         id,
		Mode:           UseMode(req.Mode),
		Amount:         req.Amount,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

type amountRequest struct {
	Amount         float64 `json:"amount" validate:"required"`
	Notes          string  `json:"notes"`
	ActorName      string  `json:"actor_name" validate:"required"`
	ActorID        *int64  `json:"actor_id"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req amountRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Restock(r.Context(), RestockInput{
		ItemID:         id,
		Amount:         req.Amount,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

type adjustRequest struct {
	NewQuantity    float64 `json:"new_quantity"`
	Notes          string  `json:"notes"`
	ActorName      string  `json:"actor_name" validate:"required"`
	ActorID        *int64  `json:"actor_id"`
	IdempotencyKey string  `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req adjustRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Adjust(r.Context(), AdjustInput{
		ItemID:         id,
		NewQuantity:    req.NewQuantity,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

type disposeRequest struct {
	Reason         string `json:"reason" validate:"required"`
	Notes          string `json:"notes"`
	ActorName      string `json:"actor_name" validate:"required"`
	ActorID        *int64 `json:"actor_id"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleDispose(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req disposeRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Dispose(r.Context(), DisposeInput{
		ItemID:         id,
		Reason:         req.Reason,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

type statusChangeRequest struct {
	Notes          string `json:"notes"`
	ActorName      string `json:"actor_name" validate:"required"`
	ActorID        *int64 `json:"actor_id"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,uuid"`
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req statusChangeRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Restore(r.Context(), RestoreInput{
		ItemID:         id,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req statusChangeRequest
	if err := h.decode(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	result, err := h.service.Archive(r.Context(), ArchiveInput{
		ItemID:         id,
		Notes:          req.Notes,
		Actor:          shared.Actor{Name: req.ActorName, ID: req.ActorID},
		IdempotencyKey: req.IdempotencyKey,
	})
	h.writeMutation(w, result, err)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := h.itemID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	actor := shared.Actor{Name: r.URL.Query().Get("actor_name")}
	if actor.Name == "" {
		actor.Name = "admin"
	}
	if err := h.service.HardDelete(r.Context(), id, actor); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.logger.Error("inventory summary", slog.Any("error", err))
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

/*
handlers.go - HTTP API handlers for the inventory ledger

PURPOSE:
  Exposes the ledger via REST. Handles HTTP request/response, JSON
  serialization, the API-side "Other" reason rule, and delegates every
  mutation to the transaction processor.

ENDPOINTS:
  Catalog:
    GET    /api/ingredients               List ingredients (name asc)
    POST   /api/ingredients               Create catalog entry
    GET    /api/ingredients/{id}          Get one snapshot
    PUT    /api/ingredients/{id}          Update catalog metadata
    DELETE /api/ingredients/{id}          Soft-retire

  Commands:
    POST   /api/ingredients/{id}/adjustments  Stock in/out
    POST   /api/ingredients/{id}/waste        Log waste

  Queries:
    GET    /api/events                    Paginated history, newest first
    GET    /api/aggregates                Derived statistics

ERROR HANDLING:
  Errors are returned as JSON with the error kind in "code":
  - 400: invalid body, quantity, reason, cursor
  - 404: ingredient not found
  - 409: optimistic retry budget exhausted
  - 422: insufficient stock (business rejection, not a fault)
  - 503: storage unavailable
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/processor.go: The command path behind these handlers
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/copperpot/inventory-ledger/ledger"
)

// otherReason is the sentinel the UI sends when the operator picked the
// free-text fallback. The ledger never sees the sentinel itself.
const otherReason = "Other"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Processor *ledger.Processor
	Queries   *ledger.Queries
	Catalog   ledger.CatalogStore
	logger    *zap.Logger
}

// NewHandler creates a handler over the processor, query façade, and
// catalog store.
func NewHandler(processor *ledger.Processor, queries *ledger.Queries, catalog ledger.CatalogStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Processor: processor, Queries: queries, Catalog: catalog, logger: logger}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListIngredients returns the active catalog ordered by name.
func (h *Handler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.Queries.ListIngredients(r.Context())
	if err != nil {
		h.writeError(w, err, "Failed to list ingredients")
		return
	}
	dtos := toIngredientDTOs(ingredients)
	if dtos == nil {
		dtos = []IngredientDTO{}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetIngredient returns one catalog snapshot.
func (h *Handler) GetIngredient(w http.ResponseWriter, r *http.Request) {
	id := ledger.IngredientID(chi.URLParam(r, "id"))

	ing, err := h.Queries.GetIngredient(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get ingredient")
		return
	}
	writeJSON(w, http.StatusOK, toIngredientDTO(*ing))
}

// CreateIngredient creates a catalog entry.
func (h *Handler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req CreateIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" || strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "id and name are required")
		return
	}
	if req.CurrentStock < 0 || req.MinStockLevel < 0 || req.CostPerUnit < 0 {
		writeBadRequest(w, "stock, threshold and cost must not be negative")
		return
	}

	ing := ledger.Ingredient{
		ID:            ledger.IngredientID(req.ID),
		Name:          req.Name,
		Unit:          req.Unit,
		CurrentStock:  ledger.Quantity{Value: decimal.NewFromFloat(req.CurrentStock)},
		MinStockLevel: ledger.Quantity{Value: decimal.NewFromFloat(req.MinStockLevel)},
		CostPerUnit:   ledger.Quantity{Value: decimal.NewFromFloat(req.CostPerUnit)},
	}
	if err := h.Catalog.SaveIngredient(r.Context(), ing); err != nil {
		h.writeError(w, err, "Failed to create ingredient")
		return
	}

	created, err := h.Queries.GetIngredient(r.Context(), ing.ID)
	if err != nil {
		h.writeError(w, err, "Failed to read back ingredient")
		return
	}
	writeJSON(w, http.StatusCreated, toIngredientDTO(*created))
}

// UpdateIngredient updates catalog metadata. Stock is untouched.
func (h *Handler) UpdateIngredient(w http.ResponseWriter, r *http.Request) {
	id := ledger.IngredientID(chi.URLParam(r, "id"))

	var req UpdateIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeBadRequest(w, "name is required")
		return
	}
	if req.MinStockLevel < 0 || req.CostPerUnit < 0 {
		writeBadRequest(w, "threshold and cost must not be negative")
		return
	}

	existing, err := h.Queries.GetIngredient(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get ingredient")
		return
	}

	existing.Name = req.Name
	existing.Unit = req.Unit
	existing.MinStockLevel = ledger.Quantity{Value: decimal.NewFromFloat(req.MinStockLevel)}
	existing.CostPerUnit = ledger.Quantity{Value: decimal.NewFromFloat(req.CostPerUnit)}
	if err := h.Catalog.SaveIngredient(r.Context(), *existing); err != nil {
		h.writeError(w, err, "Failed to update ingredient")
		return
	}

	updated, err := h.Queries.GetIngredient(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to read back ingredient")
		return
	}
	writeJSON(w, http.StatusOK, toIngredientDTO(*updated))
}

// RetireIngredient soft-retires a catalog entry.
func (h *Handler) RetireIngredient(w http.ResponseWriter, r *http.Request) {
	id := ledger.IngredientID(chi.URLParam(r, "id"))
	if err := h.Catalog.RetireIngredient(r.Context(), id); err != nil {
		h.writeError(w, err, "Failed to retire ingredient")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// AdjustStock applies a stock-in or stock-out movement.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id := ledger.IngredientID(chi.URLParam(r, "id"))

	var req AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	var kind ledger.EventKind
	switch req.Direction {
	case "in":
		kind = ledger.KindStockIn
	case "out":
		kind = ledger.KindStockOut
	default:
		writeBadRequest(w, `direction must be "in" or "out"`)
		return
	}

	reason, ok := resolveReason(req.Reason, req.ReasonDetail)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: `reason "Other" requires reason_detail`,
			Code:  "empty_reason",
		})
		return
	}

	ev, err := h.Processor.ApplyStockAdjustment(r.Context(), ledger.AdjustmentRequest{
		IngredientID: id,
		Kind:         kind,
		Quantity:     ledger.Quantity{Value: decimal.NewFromFloat(req.Quantity)},
		Reason:       reason,
		Actor:        ledger.Actor{ID: req.ActorID, Name: req.ActorName},
	})
	if err != nil {
		h.writeError(w, err, "Failed to adjust stock")
		return
	}

	writeJSON(w, http.StatusCreated, toStockEventDTO(*ev))
}

// LogWaste applies a waste movement with frozen cost.
func (h *Handler) LogWaste(w http.ResponseWriter, r *http.Request) {
	id := ledger.IngredientID(chi.URLParam(r, "id"))

	var req LogWasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	reason, ok := resolveReason(req.Reason, req.ReasonDetail)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: `reason "Other" requires reason_detail`,
			Code:  "empty_reason",
		})
		return
	}

	ev, err := h.Processor.ApplyWasteEntry(r.Context(), ledger.WasteRequest{
		IngredientID: id,
		Quantity:     ledger.Quantity{Value: decimal.NewFromFloat(req.Quantity)},
		Reason:       reason,
		Actor:        ledger.Actor{ID: req.ActorID, Name: req.ActorName},
	})
	if err != nil {
		h.writeError(w, err, "Failed to log waste")
		return
	}

	writeJSON(w, http.StatusCreated, toWasteEventDTO(*ev))
}

// =============================================================================
// QUERY HANDLERS
// =============================================================================

// ListEvents returns paginated event history, newest first.
// Query params: kind (stock-in|stock-out|waste), limit, cursor.
//
// The stock and waste streams page independently: the default view (and
// kind=stock-in/stock-out) reads the stock stream, kind=waste reads the
// waste stream, and a cursor is only valid for the stream it came from.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	kind := ledger.EventKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", ledger.KindStockIn, ledger.KindStockOut, ledger.KindWaste:
	default:
		writeBadRequest(w, "unknown event kind")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.Queries.ListEvents(r.Context(), kind, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, err, "Failed to list events")
		return
	}

	dto := EventsPageDTO{NextCursor: page.NextCursor}
	for _, ev := range page.Stock {
		dto.Events = append(dto.Events, toStockEventDTO(ev))
	}
	for _, ev := range page.Waste {
		dto.Waste = append(dto.Waste, toWasteEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetAggregateView returns the derived statistics for a window.
// Query params: from, to (RFC 3339, optional; absent means all-time).
func (h *Handler) GetAggregateView(w http.ResponseWriter, r *http.Request) {
	var window ledger.Window
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "from must be RFC 3339")
			return
		}
		window.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "to must be RFC 3339")
			return
		}
		window.To = t
	}

	view, err := h.Queries.AggregateView(r.Context(), window)
	if err != nil {
		h.writeError(w, err, "Failed to compute aggregates")
		return
	}
	writeJSON(w, http.StatusOK, toAggregateViewDTO(view))
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveReason applies the collaborator contract: the closed reason set
// passes through, and the "Other" sentinel is replaced by its free text,
// which must be non-blank.
func resolveReason(reason, detail string) (string, bool) {
	if reason != otherReason {
		return reason, true
	}
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return "", false
	}
	return detail, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// writeError maps ledger errors to HTTP responses, preserving the error
// kind in "code" so the UI can show the specific business error.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	status := http.StatusInternalServerError
	code := "internal"
	msg := fallback

	switch {
	case errors.Is(err, ledger.ErrIngredientNotFound):
		status, code, msg = http.StatusNotFound, "ingredient_not_found", "Ingredient not found"
	case errors.Is(err, ledger.ErrIngredientRetired):
		status, code, msg = http.StatusUnprocessableEntity, "ingredient_retired", "Ingredient is retired"
	case errors.Is(err, ledger.ErrInvalidQuantity):
		status, code, msg = http.StatusBadRequest, "invalid_quantity", "Quantity must be positive"
	case errors.Is(err, ledger.ErrInvalidKind):
		status, code, msg = http.StatusBadRequest, "invalid_kind", "Unknown movement kind"
	case errors.Is(err, ledger.ErrEmptyReason):
		status, code, msg = http.StatusBadRequest, "empty_reason", "Reason must not be empty"
	case errors.Is(err, ledger.ErrMalformedCursor):
		status, code, msg = http.StatusBadRequest, "malformed_cursor", "Malformed pagination cursor"
	case errors.Is(err, ledger.ErrInsufficientStock):
		status, code = http.StatusUnprocessableEntity, "insufficient_stock"
		msg = "Cannot reduce stock below zero"
		var detail *ledger.InsufficientStockError
		if errors.As(err, &detail) {
			msg = detail.Error()
		}
	case errors.Is(err, ledger.ErrConflict):
		status, code, msg = http.StatusConflict, "conflict", "Concurrent update, please retry"
	case errors.Is(err, ledger.ErrUnavailable):
		status, code, msg = http.StatusServiceUnavailable, "unavailable", "Storage temporarily unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback, zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

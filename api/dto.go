/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Input validation lives in handlers; DTOs are pure data carriers. The
  one API-layer rule enforced here by convention: an "Other" reason must
  arrive with reason_detail populated — the ledger itself only requires
  a non-empty reason.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/copperpot/inventory-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// IngredientDTO represents a catalog snapshot in API responses.
// Quantities travel as decimal strings to avoid float drift in clients.
type IngredientDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Unit          string `json:"unit"`
	CurrentStock  string `json:"current_stock"`
	MinStockLevel string `json:"min_stock_level"`
	CostPerUnit   string `json:"cost_per_unit"`
	LowStock      bool   `json:"low_stock"`
	Retired       bool   `json:"retired,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// CreateIngredientRequest is the request to create a catalog entry.
type CreateIngredientRequest struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	CurrentStock  float64 `json:"current_stock"`
	MinStockLevel float64 `json:"min_stock_level"`
	CostPerUnit   float64 `json:"cost_per_unit"`
}

// UpdateIngredientRequest updates catalog metadata. Stock is absent on
// purpose: it only moves through adjustments.
type UpdateIngredientRequest struct {
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	MinStockLevel float64 `json:"min_stock_level"`
	CostPerUnit   float64 `json:"cost_per_unit"`
}

// AdjustStockRequest is the command body for a stock movement.
type AdjustStockRequest struct {
	Direction    string  `json:"direction"` // "in" or "out"
	Quantity     float64 `json:"quantity"`
	Reason       string  `json:"reason"`
	ReasonDetail string  `json:"reason_detail,omitempty"` // required when Reason is "Other"
	ActorID      string  `json:"actor_id,omitempty"`
	ActorName    string  `json:"actor_name,omitempty"`
}

// LogWasteRequest is the command body for a waste entry.
type LogWasteRequest struct {
	Quantity     float64 `json:"quantity"`
	Reason       string  `json:"reason"`
	ReasonDetail string  `json:"reason_detail,omitempty"`
	ActorID      string  `json:"actor_id,omitempty"`
	ActorName    string  `json:"actor_name,omitempty"`
}

// StockEventDTO represents a committed stock movement.
type StockEventDTO struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	IngredientID string `json:"ingredient_id"`
	Kind         string `json:"kind"`
	Quantity     string `json:"quantity"`
	Reason       string `json:"reason"`
	ActorID      string `json:"actor_id,omitempty"`
	ActorName    string `json:"actor_name,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// WasteEventDTO represents a committed waste movement with frozen cost.
type WasteEventDTO struct {
	ID           string `json:"id"`
	Seq          int64  `json:"seq"`
	IngredientID string `json:"ingredient_id"`
	Quantity     string `json:"quantity"`
	Cost         string `json:"cost"`
	Reason       string `json:"reason"`
	ActorID      string `json:"actor_id,omitempty"`
	ActorName    string `json:"actor_name,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// EventsPageDTO is one page of event history, newest first.
type EventsPageDTO struct {
	Events     []StockEventDTO `json:"events,omitempty"`
	Waste      []WasteEventDTO `json:"waste,omitempty"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// WastedIngredientDTO is one row of the top-wasted ranking.
type WastedIngredientDTO struct {
	IngredientID string `json:"ingredient_id"`
	TotalCost    string `json:"total_cost"`
	Occurrences  int    `json:"occurrences"`
}

// ReasonCountDTO is one bucket of the waste-reason histogram.
type ReasonCountDTO struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// AggregateViewDTO is the derived statistics view.
type AggregateViewDTO struct {
	LowStock             []IngredientDTO       `json:"low_stock"`
	TotalWasteCost       string                `json:"total_waste_cost"`
	TopWastedIngredients []WastedIngredientDTO `json:"top_wasted_ingredients"`
	WasteReasonHistogram []ReasonCountDTO      `json:"waste_reason_histogram"`
}

// ErrorResponse is the standard error response. Code preserves the error
// kind end to end so the UI can show the specific business error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toIngredientDTO(ing ledger.Ingredient) IngredientDTO {
	return IngredientDTO{
		ID:            string(ing.ID),
		Name:          ing.Name,
		Unit:          ing.Unit,
		CurrentStock:  ing.CurrentStock.String(),
		MinStockLevel: ing.MinStockLevel.String(),
		CostPerUnit:   ing.CostPerUnit.String(),
		LowStock:      ing.IsLowStock(),
		Retired:       ing.Retired,
		UpdatedAt:     ing.UpdatedAt.Format(time.RFC3339),
	}
}

func toIngredientDTOs(ingredients []ledger.Ingredient) []IngredientDTO {
	dtos := make([]IngredientDTO, len(ingredients))
	for i, ing := range ingredients {
		dtos[i] = toIngredientDTO(ing)
	}
	return dtos
}

func toStockEventDTO(ev ledger.StockEvent) StockEventDTO {
	return StockEventDTO{
		ID:           string(ev.ID),
		Seq:          ev.Seq,
		IngredientID: string(ev.IngredientID),
		Kind:         string(ev.Kind),
		Quantity:     ev.Quantity.String(),
		Reason:       ev.Reason,
		ActorID:      ev.ActorID,
		ActorName:    ev.ActorName,
		CreatedAt:    ev.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toWasteEventDTO(ev ledger.WasteEvent) WasteEventDTO {
	return WasteEventDTO{
		ID:           string(ev.ID),
		Seq:          ev.Seq,
		IngredientID: string(ev.IngredientID),
		Quantity:     ev.Quantity.String(),
		Cost:         ev.Cost.String(),
		Reason:       ev.Reason,
		ActorID:      ev.ActorID,
		ActorName:    ev.ActorName,
		CreatedAt:    ev.CreatedAt.Format(time.RFC3339Nano),
	}
}

func toAggregateViewDTO(view *ledger.AggregateView) AggregateViewDTO {
	dto := AggregateViewDTO{
		LowStock:             toIngredientDTOs(view.LowStock),
		TotalWasteCost:       view.TotalWasteCost.String(),
		TopWastedIngredients: make([]WastedIngredientDTO, len(view.TopWastedIngredients)),
		WasteReasonHistogram: make([]ReasonCountDTO, len(view.WasteReasonHistogram)),
	}
	if dto.LowStock == nil {
		dto.LowStock = []IngredientDTO{}
	}
	for i, row := range view.TopWastedIngredients {
		dto.TopWastedIngredients[i] = WastedIngredientDTO{
			IngredientID: string(row.IngredientID),
			TotalCost:    row.TotalCost.String(),
			Occurrences:  row.Occurrences,
		}
	}
	for i, bucket := range view.WasteReasonHistogram {
		dto.WasteReasonHistogram[i] = ReasonCountDTO{Reason: bucket.Reason, Count: bucket.Count}
	}
	return dto
}

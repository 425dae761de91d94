package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperpot/inventory-ledger/ledger"
	memstore "github.com/copperpot/inventory-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testAPI struct {
	router http.Handler
	store  *memstore.Memory
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memstore.NewMemory()
	processor := ledger.NewProcessor(store)
	queries := ledger.NewQueries(store, 0)
	h := NewHandler(processor, queries, store, nil)
	return &testAPI{router: NewRouter(h), store: store}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func (a *testAPI) createIngredient(t *testing.T, id, name string, stock, minLevel, cost float64) {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/ingredients", CreateIngredientRequest{
		ID: id, Name: name, Unit: "kg",
		CurrentStock: stock, MinStockLevel: minLevel, CostPerUnit: cost,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

func TestAPI_CreateAndGetIngredient(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 10, 5, 0.5)

	rec := a.do(t, http.MethodGet, "/api/ingredients/flour", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[IngredientDTO](t, rec)
	assert.Equal(t, "flour", dto.ID)
	assert.Equal(t, "Flour", dto.Name)
	assert.Equal(t, "10", dto.CurrentStock)
	assert.False(t, dto.LowStock)
}

func TestAPI_CreateIngredient_Invalid(t *testing.T) {
	a := newTestAPI(t)

	t.Run("missing id", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/ingredients", CreateIngredientRequest{Name: "Flour"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative stock", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/ingredients", CreateIngredientRequest{
			ID: "flour", Name: "Flour", CurrentStock: -1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_GetIngredient_NotFound(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/ingredients/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ingredient_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestAPI_ListIngredients_SortedActiveOnly(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "z", "Zucchini", 10, 2, 0.3)
	a.createIngredient(t, "a", "Apples", 10, 2, 0.3)
	a.createIngredient(t, "r", "Rhubarb", 10, 2, 0.3)

	rec := a.do(t, http.MethodDelete, "/api/ingredients/r", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/ingredients", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]IngredientDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Apples", list[0].Name)
	assert.Equal(t, "Zucchini", list[1].Name)
}

func TestAPI_UpdateIngredient_MetadataOnly(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 10, 5, 0.5)

	rec := a.do(t, http.MethodPut, "/api/ingredients/flour", UpdateIngredientRequest{
		Name: "Bread Flour", Unit: "kg", MinStockLevel: 8, CostPerUnit: 0.6,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[IngredientDTO](t, rec)
	assert.Equal(t, "Bread Flour", dto.Name)
	assert.Equal(t, "10", dto.CurrentStock, "update must not touch stock")
	assert.Equal(t, "0.6", dto.CostPerUnit)
}

// =============================================================================
// STOCK ADJUSTMENTS
// =============================================================================

func TestAPI_AdjustStock_InAndOut(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 10, 5, 0.5)

	rec := a.do(t, http.MethodPost, "/api/ingredients/flour/adjustments", AdjustStockRequest{
		Direction: "in", Quantity: 5, Reason: "New Purchase", ActorName: "Ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[StockEventDTO](t, rec)
	assert.Equal(t, "stock-in", ev.Kind)
	assert.Equal(t, "5", ev.Quantity)
	assert.NotZero(t, ev.Seq)

	rec = a.do(t, http.MethodPost, "/api/ingredients/flour/adjustments", AdjustStockRequest{
		Direction: "out", Quantity: 3, Reason: "Used in Production",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/ingredients/flour", nil)
	assert.Equal(t, "12", decode[IngredientDTO](t, rec).CurrentStock)
}

func TestAPI_AdjustStock_Errors(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 10, 5, 0.5)

	tests := []struct {
		name     string
		path     string
		body     AdjustStockRequest
		status   int
		code     string
	}{
		{
			name:   "bad direction",
			path:   "/api/ingredients/flour/adjustments",
			body:   AdjustStockRequest{Direction: "sideways", Quantity: 1, Reason: "New Purchase"},
			status: http.StatusBadRequest,
			code:   "bad_request",
		},
		{
			name:   "zero quantity",
			path:   "/api/ingredients/flour/adjustments",
			body:   AdjustStockRequest{Direction: "in", Quantity: 0, Reason: "New Purchase"},
			status: http.StatusBadRequest,
			code:   "invalid_quantity",
		},
		{
			name:   "blank reason",
			path:   "/api/ingredients/flour/adjustments",
			body:   AdjustStockRequest{Direction: "in", Quantity: 1, Reason: "  "},
			status: http.StatusBadRequest,
			code:   "empty_reason",
		},
		{
			name:   "insufficient stock",
			path:   "/api/ingredients/flour/adjustments",
			body:   AdjustStockRequest{Direction: "out", Quantity: 999, Reason: "Used in Production"},
			status: http.StatusUnprocessableEntity,
			code:   "insufficient_stock",
		},
		{
			name:   "unknown ingredient",
			path:   "/api/ingredients/ghost/adjustments",
			body:   AdjustStockRequest{Direction: "in", Quantity: 1, Reason: "New Purchase"},
			status: http.StatusNotFound,
			code:   "ingredient_not_found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestAPI_AdjustStock_RetiredIngredient(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "lard", "Lard", 4, 1, 0.3)
	rec := a.do(t, http.MethodDelete, "/api/ingredients/lard", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/ingredients/lard/adjustments", AdjustStockRequest{
		Direction: "in", Quantity: 1, Reason: "New Purchase",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ingredient_retired", decode[ErrorResponse](t, rec).Code)
}

// =============================================================================
// "OTHER" REASON RULE
// =============================================================================

func TestAPI_OtherReason_RequiresDetail(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 10, 5, 0.5)

	t.Run("rejected without detail", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/ingredients/flour/waste", LogWasteRequest{
			Quantity: 1, Reason: "Other",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty_reason", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("detail replaces the sentinel", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/ingredients/flour/waste", LogWasteRequest{
			Quantity: 1, Reason: "Other", ReasonDetail: "freezer door left open",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "freezer door left open", decode[WasteEventDTO](t, rec).Reason)
	})
}

// =============================================================================
// WASTE
// =============================================================================

func TestAPI_LogWaste_FreezesCost(t *testing.T) {
	// GIVEN: Butter costing 0.20 per unit
	// WHEN: 10 units are wasted and the cost is later raised
	// THEN: the event and the aggregates keep the frozen 2.00

	a := newTestAPI(t)
	a.createIngredient(t, "butter", "Butter", 96, 10, 0.20)

	rec := a.do(t, http.MethodPost, "/api/ingredients/butter/waste", LogWasteRequest{
		Quantity: 10, Reason: "Spoiled", ActorName: "Ana",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ev := decode[WasteEventDTO](t, rec)
	assert.Equal(t, "2", ev.Cost)

	rec = a.do(t, http.MethodPut, "/api/ingredients/butter", UpdateIngredientRequest{
		Name: "Butter", Unit: "kg", MinStockLevel: 10, CostPerUnit: 0.35,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/aggregates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[AggregateViewDTO](t, rec)
	assert.Equal(t, "2", view.TotalWasteCost)
	require.Len(t, view.TopWastedIngredients, 1)
	assert.Equal(t, "butter", view.TopWastedIngredients[0].IngredientID)
}

// =============================================================================
// EVENT HISTORY
// =============================================================================

func TestAPI_ListEvents_Pagination(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 0, 2, 0.5)

	for i := 0; i < 12; i++ {
		rec := a.do(t, http.MethodPost, "/api/ingredients/flour/adjustments", AdjustStockRequest{
			Direction: "in", Quantity: 1, Reason: "New Purchase",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := a.do(t, http.MethodGet, "/api/events?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[EventsPageDTO](t, rec)
	require.Len(t, first.Events, 5)
	require.NotEmpty(t, first.NextCursor)
	assert.Greater(t, first.Events[0].Seq, first.Events[4].Seq, "newest first")

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/events?limit=5&cursor=%s", first.NextCursor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[EventsPageDTO](t, rec)
	require.Len(t, second.Events, 5)
	assert.Less(t, second.Events[0].Seq, first.Events[4].Seq, "pages must not overlap")

	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/events?limit=5&cursor=%s", second.NextCursor), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	third := decode[EventsPageDTO](t, rec)
	assert.Len(t, third.Events, 2)
	assert.Empty(t, third.NextCursor)
}

func TestAPI_ListEvents_BadInput(t *testing.T) {
	a := newTestAPI(t)

	t.Run("malformed cursor", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/events?cursor=garbage!!", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "malformed_cursor", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/events?kind=teleport", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative limit", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/events?limit=-3", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAPI_ListEvents_WasteKind(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "butter", "Butter", 20, 2, 0.2)

	rec := a.do(t, http.MethodPost, "/api/ingredients/butter/waste", LogWasteRequest{
		Quantity: 2, Reason: "Spoiled",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/events?kind=waste", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[EventsPageDTO](t, rec)
	require.Len(t, page.Waste, 1)
	assert.Empty(t, page.Events)
	assert.Equal(t, "Spoiled", page.Waste[0].Reason)
}

// =============================================================================
// AGGREGATES
// =============================================================================

func TestAPI_Aggregates_LowStockAndHistogram(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "flour", "Flour", 3, 5, 0.5)
	a.createIngredient(t, "sugar", "Sugar", 50, 5, 0.9)

	rec := a.do(t, http.MethodPost, "/api/ingredients/sugar/waste", LogWasteRequest{
		Quantity: 1, Reason: "Spilled",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/ingredients/sugar/waste", LogWasteRequest{
		Quantity: 1, Reason: "Spilled",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/aggregates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[AggregateViewDTO](t, rec)

	require.Len(t, view.LowStock, 1)
	assert.Equal(t, "flour", view.LowStock[0].ID)
	assert.True(t, view.LowStock[0].LowStock)

	require.Len(t, view.WasteReasonHistogram, 1)
	assert.Equal(t, ReasonCountDTO{Reason: "Spilled", Count: 2}, view.WasteReasonHistogram[0])
}

func TestAPI_Aggregates_WindowParams(t *testing.T) {
	a := newTestAPI(t)
	a.createIngredient(t, "butter", "Butter", 20, 2, 0.2)

	rec := a.do(t, http.MethodPost, "/api/ingredients/butter/waste", LogWasteRequest{
		Quantity: 2, Reason: "Spoiled",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("window in the past excludes the event", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/aggregates?from=2020-01-01T00:00:00Z&to=2020-12-31T00:00:00Z", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0", decode[AggregateViewDTO](t, rec).TotalWasteCost)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/aggregates?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

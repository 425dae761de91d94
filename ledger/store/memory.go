// Package store provides LedgerStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/copperpot/inventory-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.LedgerStore with maps under a single mutex.
// The commit primitives hold the lock across the version check and the
// writes, which is the in-memory equivalent of a serializable transaction.
type Memory struct {
	mu          sync.RWMutex
	ingredients map[ledger.IngredientID]ledger.Ingredient
	stockEvents []ledger.StockEvent
	wasteEvents []ledger.WasteEvent
	stockSeq    int64
	wasteSeq    int64
}

func NewMemory() *Memory {
	return &Memory{
		ingredients: make(map[ledger.IngredientID]ledger.Ingredient),
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) GetIngredient(_ context.Context, id ledger.IngredientID) (*ledger.Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ing, ok := m.ingredients[id]
	if !ok {
		return nil, nil
	}
	snapshot := ing
	return &snapshot, nil
}

func (m *Memory) ListIngredients(_ context.Context, includeRetired bool) ([]ledger.Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Ingredient
	for _, ing := range m.ingredients {
		if ing.Retired && !includeRetired {
			continue
		}
		result = append(result, ing)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SaveIngredient(_ context.Context, ing ledger.Ingredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.ingredients[ing.ID]; ok {
		// Metadata update only: stock and version stay with the ledger.
		existing.Name = ing.Name
		existing.Unit = ing.Unit
		existing.MinStockLevel = ing.MinStockLevel
		existing.CostPerUnit = ing.CostPerUnit
		existing.UpdatedAt = now
		m.ingredients[ing.ID] = existing
		return nil
	}

	ing.CreatedAt = now
	ing.UpdatedAt = now
	m.ingredients[ing.ID] = ing
	return nil
}

func (m *Memory) RetireIngredient(_ context.Context, id ledger.IngredientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ing, ok := m.ingredients[id]
	if !ok {
		return ledger.ErrIngredientNotFound
	}
	ing.Retired = true
	ing.UpdatedAt = time.Now().UTC()
	m.ingredients[id] = ing
	return nil
}

// =============================================================================
// ATOMIC COMMITS
// =============================================================================

func (m *Memory) CommitStockEvent(_ context.Context, id ledger.IngredientID, expectedVersion int64, newStock ledger.Quantity, ev *ledger.StockEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ing, ok := m.ingredients[id]
	if !ok {
		return ledger.ErrIngredientNotFound
	}
	if ing.Version != expectedVersion {
		return ledger.ErrConflict
	}

	ing.CurrentStock = newStock
	ing.Version++
	ing.UpdatedAt = time.Now().UTC()
	m.ingredients[id] = ing

	m.stockSeq++
	ev.Seq = m.stockSeq
	m.stockEvents = append(m.stockEvents, *ev)
	return nil
}

func (m *Memory) CommitWasteEvent(_ context.Context, id ledger.IngredientID, expectedVersion int64, newStock ledger.Quantity, ev *ledger.WasteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ing, ok := m.ingredients[id]
	if !ok {
		return ledger.ErrIngredientNotFound
	}
	if ing.Version != expectedVersion {
		return ledger.ErrConflict
	}

	ing.CurrentStock = newStock
	ing.Version++
	ing.UpdatedAt = time.Now().UTC()
	m.ingredients[id] = ing

	m.wasteSeq++
	ev.Seq = m.wasteSeq
	m.wasteEvents = append(m.wasteEvents, *ev)
	return nil
}

// =============================================================================
// EVENT READS
// =============================================================================

func (m *Memory) StockEvents(_ context.Context, filter ledger.EventFilter) ([]ledger.StockEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.StockEvent
	// Stored in seq ascending order; walk backwards for newest first.
	for i := len(m.stockEvents) - 1; i >= 0; i-- {
		ev := m.stockEvents[i]
		if filter.BeforeSeq > 0 && ev.Seq >= filter.BeforeSeq {
			continue
		}
		if filter.Kind != "" && ev.Kind != filter.Kind {
			continue
		}
		if filter.IngredientID != "" && ev.IngredientID != filter.IngredientID {
			continue
		}
		result = append(result, ev)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *Memory) WasteEvents(_ context.Context, window ledger.Window) ([]ledger.WasteEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.WasteEvent
	for _, ev := range m.wasteEvents {
		if window.Contains(ev.CreatedAt) {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (m *Memory) WasteEventsPage(_ context.Context, filter ledger.EventFilter) ([]ledger.WasteEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.WasteEvent
	for i := len(m.wasteEvents) - 1; i >= 0; i-- {
		ev := m.wasteEvents[i]
		if filter.BeforeSeq > 0 && ev.Seq >= filter.BeforeSeq {
			continue
		}
		if filter.IngredientID != "" && ev.IngredientID != filter.IngredientID {
			continue
		}
		result = append(result, ev)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

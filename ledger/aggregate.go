/*
aggregate.go - Derived read-model computation

PURPOSE:
  Recomputes the AggregateView from the ingredient table and the waste
  event stream. These are pure functions of their inputs: no hidden state,
  deterministic output, safe to recompute after any write or on a timer.

DETERMINISM:
  - Top wasted: descending summed cost, ties broken by ascending
    ingredient id
  - Reason histogram: descending count, ties broken by first occurrence
    order in the input stream
  Two calls over the same inputs always produce identical slices.

SEE ALSO:
  - query.go: Loads the inputs and serves the view
  - types.go: AggregateView and row types
*/
package ledger

import "sort"

// DefaultTopN is the ranking size when the caller does not specify one.
const DefaultTopN = 5

// =============================================================================
// LOW STOCK
// =============================================================================

// LowStock returns the ingredients at or below their reorder threshold,
// ordered by name ascending. Retired ingredients are excluded: they are
// not reorderable.
func LowStock(ingredients []Ingredient) []Ingredient {
	var low []Ingredient
	for _, ing := range ingredients {
		if !ing.Retired && ing.IsLowStock() {
			low = append(low, ing)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		if low[i].Name != low[j].Name {
			return low[i].Name < low[j].Name
		}
		return low[i].ID < low[j].ID
	})
	return low
}

// =============================================================================
// WASTE AGGREGATES
// =============================================================================

// WasteAggregates folds a bounded, commit-ordered waste stream into the
// derived totals. topN ≤ 0 falls back to DefaultTopN.
func WasteAggregates(events []WasteEvent, topN int) (total Quantity, top []WastedIngredient, histogram []ReasonCount) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	total = ZeroQuantity()
	byIngredient := make(map[IngredientID]*WastedIngredient)
	reasonIndex := make(map[string]int) // reason → position in histogram
	for _, ev := range events {
		total = total.Add(ev.Cost)

		agg, ok := byIngredient[ev.IngredientID]
		if !ok {
			agg = &WastedIngredient{IngredientID: ev.IngredientID, TotalCost: ZeroQuantity()}
			byIngredient[ev.IngredientID] = agg
		}
		agg.TotalCost = agg.TotalCost.Add(ev.Cost)
		agg.Occurrences++

		if i, seen := reasonIndex[ev.Reason]; seen {
			histogram[i].Count++
		} else {
			reasonIndex[ev.Reason] = len(histogram)
			histogram = append(histogram, ReasonCount{Reason: ev.Reason, Count: 1})
		}
	}

	top = make([]WastedIngredient, 0, len(byIngredient))
	for _, agg := range byIngredient {
		top = append(top, *agg)
	}
	sort.Slice(top, func(i, j int) bool {
		if !top[i].TotalCost.Equal(top[j].TotalCost) {
			return top[i].TotalCost.GreaterThan(top[j].TotalCost)
		}
		return top[i].IngredientID < top[j].IngredientID
	})
	if len(top) > topN {
		top = top[:topN]
	}

	// Stable sort keeps first-seen order among equal counts.
	sort.SliceStable(histogram, func(i, j int) bool {
		return histogram[i].Count > histogram[j].Count
	})

	return total, top, histogram
}

// =============================================================================
// CONSERVATION CHECK
// =============================================================================

// ReplayStock replays all committed movements for one ingredient from an
// assumed starting stock of zero. Absent out-of-band corrections the
// result equals the recorded CurrentStock; exposed so operators and tests
// can verify the conservation law.
func ReplayStock(stockEvents []StockEvent, wasteEvents []WasteEvent) Quantity {
	stock := ZeroQuantity()
	for _, ev := range stockEvents {
		stock = stock.Add(ev.Kind.Delta(ev.Quantity))
	}
	for _, ev := range wasteEvents {
		stock = stock.Sub(ev.Quantity)
	}
	return stock
}

/*
query.go - Read-only query façade

PURPOSE:
  The single read boundary exposed to external callers (the API layer).
  Every operation is side-effect free and idempotent: it re-reads
  committed state, so a caller always observes its own prior writes.

PAGINATION:
  Event history pages by an opaque cursor that encodes the seq of the last
  event already returned. Because seq is assigned at commit time and is
  strictly increasing, pages never skip or duplicate events even while
  new events are being committed concurrently: new events take higher
  seqs and land before the first page, never inside an already-anchored
  range.

SEE ALSO:
  - store.go: The interfaces this façade reads through
  - aggregate.go: The pure recomputation this façade triggers
*/
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// QUERIES
// =============================================================================

// DefaultEventPageSize bounds ListEvents when the caller passes limit ≤ 0.
const DefaultEventPageSize = 50

// MaxEventPageSize caps a single history page.
const MaxEventPageSize = 500

// Queries is the read-only access point over a LedgerStore.
type Queries struct {
	store LedgerStore
	topN  int
}

// NewQueries creates the façade. topN ≤ 0 uses DefaultTopN.
func NewQueries(store LedgerStore, topN int) *Queries {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Queries{store: store, topN: topN}
}

// GetIngredient returns one catalog snapshot.
func (q *Queries) GetIngredient(ctx context.Context, id IngredientID) (*Ingredient, error) {
	ing, err := q.store.GetIngredient(ctx, id)
	if err != nil {
		return nil, err
	}
	if ing == nil {
		return nil, ErrIngredientNotFound
	}
	return ing, nil
}

// ListIngredients returns active ingredients ordered by name ascending.
func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	ingredients, err := q.store.ListIngredients(ctx, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(ingredients, func(i, j int) bool {
		if ingredients[i].Name != ingredients[j].Name {
			return ingredients[i].Name < ingredients[j].Name
		}
		return ingredients[i].ID < ingredients[j].ID
	})
	return ingredients, nil
}

// =============================================================================
// EVENT HISTORY
// =============================================================================

// EventPage is one page of event history, newest first.
type EventPage struct {
	Stock      []StockEvent
	Waste      []WasteEvent
	NextCursor string // empty when the page was not full
}

// ListEvents returns recent events newest first. kind selects the stream:
// KindWaste reads the waste stream, KindStockIn/KindStockOut filter the
// stock stream, empty kind returns the whole stock stream. The two
// streams carry independent seq counters, so a cursor is only valid for
// the stream it came from.
func (q *Queries) ListEvents(ctx context.Context, kind EventKind, limit int, cursor string) (*EventPage, error) {
	if limit <= 0 {
		limit = DefaultEventPageSize
	}
	if limit > MaxEventPageSize {
		limit = MaxEventPageSize
	}

	beforeSeq, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	filter := EventFilter{Kind: kind, BeforeSeq: beforeSeq, Limit: limit}

	page := &EventPage{}
	if kind == KindWaste {
		events, err := q.store.WasteEventsPage(ctx, filter)
		if err != nil {
			return nil, err
		}
		page.Waste = events
		if len(events) == limit {
			page.NextCursor = encodeCursor(events[len(events)-1].Seq)
		}
		return page, nil
	}

	events, err := q.store.StockEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	page.Stock = events
	if len(events) == limit {
		page.NextCursor = encodeCursor(events[len(events)-1].Seq)
	}
	return page, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

// AggregateView recomputes the derived view for the window. An unbounded
// (zero) window means all-time.
func (q *Queries) AggregateView(ctx context.Context, window Window) (*AggregateView, error) {
	ingredients, err := q.store.ListIngredients(ctx, true)
	if err != nil {
		return nil, err
	}

	wasteEvents, err := q.store.WasteEvents(ctx, window)
	if err != nil {
		return nil, err
	}

	total, top, histogram := WasteAggregates(wasteEvents, q.topN)
	return &AggregateView{
		LowStock:             LowStock(ingredients),
		TotalWasteCost:       total,
		TopWastedIngredients: top,
		WasteReasonHistogram: histogram,
	}, nil
}

// =============================================================================
// CURSOR ENCODING
// =============================================================================

const cursorPrefix = "seq:"

func encodeCursor(seq int64) string {
	return base64.URLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, cursorPrefix) {
		return 0, ErrMalformedCursor
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(s, cursorPrefix), 10, 64)
	if err != nil || seq < 0 {
		return 0, ErrMalformedCursor
	}
	return seq, nil
}

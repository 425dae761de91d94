/*
store.go - Persistence interfaces for the catalog and event streams

PURPOSE:
  Defines the boundary between domain logic and the database. The event
  streams are append-only; the catalog row is only ever rewritten through
  a version-conditioned commit that also appends the matching event.

KEY INTERFACES:
  CatalogStore: Ingredient reads plus catalog-management writes
  EventStore:   Read access to the two append-only streams
  LedgerStore:  The whole surface plus the two atomic commit primitives

ATOMIC COMMIT CONTRACT:
  CommitStockEvent / CommitWasteEvent perform, in ONE storage transaction:
    (a) write the new CurrentStock conditioned on the expected Version
    (b) increment Version
    (c) append the event and assign its Seq
  If the version check fails the whole commit fails with ErrConflict and
  nothing is written. This is the compare-and-swap that upholds the
  non-negativity invariant under concurrent writers.

APPEND-ONLY CONTRACT:
  There is no update or delete on either event stream. Corrections are
  new compensating movements.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - processor.go: The only caller of the commit primitives
  - query.go: Read-only façade over these interfaces
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// CATALOG STORE
// =============================================================================

// CatalogStore holds the canonical current state of each ingredient.
type CatalogStore interface {
	// GetIngredient returns the ingredient or (nil, nil) when absent.
	GetIngredient(ctx context.Context, id IngredientID) (*Ingredient, error)

	// ListIngredients returns ingredients ordered by name ascending.
	// Retired ingredients are included only when includeRetired is set.
	ListIngredients(ctx context.Context, includeRetired bool) ([]Ingredient, error)

	// SaveIngredient creates or updates catalog metadata (name, unit,
	// threshold, cost). It never touches CurrentStock or Version on an
	// existing row; stock moves only through the commit primitives.
	SaveIngredient(ctx context.Context, ing Ingredient) error

	// RetireIngredient soft-retires an ingredient. Events referencing it
	// remain readable forever.
	RetireIngredient(ctx context.Context, id IngredientID) error
}

// =============================================================================
// EVENT STORE - Read side of the append-only streams
// =============================================================================

// EventFilter bounds an event history read. Seq-based: BeforeSeq is the
// exclusive upper bound used for pagination (0 means "from the newest").
type EventFilter struct {
	IngredientID IngredientID // optional
	Kind         EventKind    // optional; empty matches stock-in and stock-out
	BeforeSeq    int64
	Limit        int
}

// EventStore reads the committed event streams.
type EventStore interface {
	// StockEvents returns stock events newest first (seq descending).
	StockEvents(ctx context.Context, filter EventFilter) ([]StockEvent, error)

	// WasteEvents returns waste events in commit order (seq ascending),
	// bounded by the window. Ascending order is what the aggregation
	// engine needs for first-seen reason tie-breaking.
	WasteEvents(ctx context.Context, window Window) ([]WasteEvent, error)

	// WasteEventsPage returns waste events newest first for history views.
	WasteEventsPage(ctx context.Context, filter EventFilter) ([]WasteEvent, error)
}

// =============================================================================
// LEDGER STORE - Full surface with atomic commit primitives
// =============================================================================

// LedgerStore is what the Processor and the Queries facade are built on.
type LedgerStore interface {
	CatalogStore
	EventStore

	// CommitStockEvent atomically sets the ingredient's stock to newStock
	// and appends ev, conditioned on the ingredient's Version still being
	// expectedVersion. On success ev.Seq and ev.CreatedAt are filled in.
	// Fails with ErrConflict on a version mismatch, ErrIngredientNotFound
	// if the row vanished, and writes nothing on any failure.
	CommitStockEvent(ctx context.Context, id IngredientID, expectedVersion int64, newStock Quantity, ev *StockEvent) error

	// CommitWasteEvent is CommitStockEvent for the waste stream.
	CommitWasteEvent(ctx context.Context, id IngredientID, expectedVersion int64, newStock Quantity, ev *WasteEvent) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

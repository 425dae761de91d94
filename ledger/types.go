/*
Package ledger provides the core inventory ledger engine.

PURPOSE:
  This package contains the types and algorithms for tracking ingredient
  stock levels through an append-only event history. Every stock movement
  (purchase, production use, manual correction, waste) is recorded as an
  immutable event in the same atomic step that mutates the ingredient's
  current stock.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: A decimal stock amount (never float)
  - Ingredient: A catalog entry with current stock and a version token
  - StockEvent: An immutable record of an inbound/outbound movement
  - WasteEvent: An outbound movement carrying a frozen cost snapshot
  - AggregateView: Derived statistics, always recomputable from events

DESIGN PRINCIPLES:
  1. Immutability: Events are never modified once committed
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Single writer: Only the Processor mutates CurrentStock
  4. Auditability: Every event carries actor, reason, and timestamp

SEE ALSO:
  - processor.go: The only writer of CurrentStock
  - aggregate.go: Derived view computation
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Decimal stock amount
// =============================================================================

// Quantity is a stock amount or monetary value. Backed by decimal.Decimal
// so that 0.1 + 0.2 is exactly 0.3.
type Quantity struct {
	Value decimal.Decimal
}

func NewQuantity(value float64) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value)}
}

func NewQuantityFromInt(value int) Quantity {
	return Quantity{Value: decimal.NewFromInt(int64(value))}
}

// MustParseQuantity parses a decimal string, returning zero on failure.
func MustParseQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{Value: decimal.Zero}
	}
	return Quantity{Value: d}
}

func ZeroQuantity() Quantity { return Quantity{Value: decimal.Zero} }

func (q Quantity) Add(b Quantity) Quantity          { return Quantity{Value: q.Value.Add(b.Value)} }
func (q Quantity) Sub(b Quantity) Quantity          { return Quantity{Value: q.Value.Sub(b.Value)} }
func (q Quantity) Mul(b Quantity) Quantity          { return Quantity{Value: q.Value.Mul(b.Value)} }
func (q Quantity) Neg() Quantity                    { return Quantity{Value: q.Value.Neg()} }
func (q Quantity) IsNegative() bool                 { return q.Value.IsNegative() }
func (q Quantity) IsZero() bool                     { return q.Value.IsZero() }
func (q Quantity) IsPositive() bool                 { return q.Value.IsPositive() }
func (q Quantity) Equal(b Quantity) bool            { return q.Value.Equal(b.Value) }
func (q Quantity) GreaterThan(b Quantity) bool      { return q.Value.GreaterThan(b.Value) }
func (q Quantity) LessThan(b Quantity) bool         { return q.Value.LessThan(b.Value) }
func (q Quantity) LessThanOrEqual(b Quantity) bool  { return q.Value.LessThanOrEqual(b.Value) }
func (q Quantity) String() string                   { return q.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type IngredientID string
type EventID string

// Actor identifies who issued a command. Captured on every event so the
// history answers "who did this" without a join.
type Actor struct {
	ID   string
	Name string
}

// =============================================================================
// INGREDIENT - Catalog entry (current state)
// =============================================================================

// Ingredient is a stock-keeping unit. CurrentStock is mutated only by the
// Processor, always in the same atomic commit that appends the matching
// event. Version is the optimistic concurrency token: every committed
// adjustment increments it, and a commit conditioned on a stale version
// fails with ErrConflict.
type Ingredient struct {
	ID            IngredientID
	Name          string
	Unit          string // display metadata: "kg", "L", "pcs"
	CurrentStock  Quantity
	MinStockLevel Quantity
	CostPerUnit   Quantity
	Version       int64
	Retired       bool // soft retirement; historical events keep referring to it
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsLowStock reports whether the ingredient is at or below its reorder
// threshold.
func (i Ingredient) IsLowStock() bool {
	return i.CurrentStock.LessThanOrEqual(i.MinStockLevel)
}

// =============================================================================
// EVENTS - Append-only movement records
// =============================================================================

type EventKind string

const (
	KindStockIn  EventKind = "stock-in"
	KindStockOut EventKind = "stock-out"
	KindWaste    EventKind = "waste"
)

// Delta returns the signed stock effect of one unit of this kind.
func (k EventKind) Delta(quantity Quantity) Quantity {
	if k == KindStockIn {
		return quantity
	}
	return quantity.Neg()
}

// StockEvent records an inbound or outbound stock movement. Immutable once
// committed. Seq is assigned by the store at commit time and is strictly
// increasing in commit order; it is the pagination anchor for event history.
type StockEvent struct {
	ID           EventID
	Seq          int64
	IngredientID IngredientID
	Kind         EventKind
	Quantity     Quantity // always > 0; Kind carries the direction
	Reason       string
	ActorID      string
	ActorName    string
	CreatedAt    time.Time
}

// WasteEvent records stock removed due to spoilage or loss. Cost is frozen
// at commit time as CostPerUnit × Quantity and never recomputed, so
// historical waste reports stay stable when unit costs change.
type WasteEvent struct {
	ID           EventID
	Seq          int64
	IngredientID IngredientID
	Quantity     Quantity // always > 0, always reduces stock
	Cost         Quantity
	Reason       string
	ActorID      string
	ActorName    string
	CreatedAt    time.Time
}

// =============================================================================
// COMMANDS - Processor inputs
// =============================================================================

// AdjustmentRequest asks the Processor to move stock in or out.
type AdjustmentRequest struct {
	IngredientID IngredientID
	Kind         EventKind // KindStockIn or KindStockOut
	Quantity     Quantity
	Reason       string
	Actor        Actor
}

// WasteRequest asks the Processor to record spoilage/loss.
type WasteRequest struct {
	IngredientID IngredientID
	Quantity     Quantity
	Reason       string
	Actor        Actor
}

// =============================================================================
// WINDOW - Time range for aggregate queries
// =============================================================================

// Window bounds an aggregate query. Zero From/To means unbounded on that
// side ("all-time" is the zero Window).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// =============================================================================
// AGGREGATE VIEW - Derived statistics
// =============================================================================

// WastedIngredient is one row of the top-wasted ranking.
type WastedIngredient struct {
	IngredientID IngredientID
	TotalCost    Quantity
	Occurrences  int
}

// ReasonCount is one bucket of the waste-reason histogram.
type ReasonCount struct {
	Reason string
	Count  int
}

// AggregateView is derived state: never authoritative, always recomputable
// from the catalog and the event streams.
type AggregateView struct {
	LowStock             []Ingredient
	TotalWasteCost       Quantity
	TopWastedIngredients []WastedIngredient
	WasteReasonHistogram []ReasonCount
}

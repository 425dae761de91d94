/*
processor.go - The ledger transaction processor

PURPOSE:
  The Processor is the sole writer of Ingredient.CurrentStock and the only
  component permitted to append events. It validates a command against the
  current catalog snapshot and commits the stock mutation together with
  the event through the store's version-conditioned commit.

REQUEST LIFECYCLE:
  Received → Validated → {Committed | Rejected}
  There is no persisted intermediate state. A request either fully commits
  (catalog + event, one transaction) or leaves no trace.

CONCURRENCY:
  Two concurrent adjustments to the same ingredient race on the snapshot
  read. The commit is conditioned on the snapshot's Version, so the loser
  re-reads and re-validates against fresh state. Retries are bounded with
  exponential backoff; exhaustion surfaces ErrConflict. Adjustments to
  different ingredients never contend on a version.

GUARANTEES:
  - CurrentStock never goes negative, under arbitrary interleaving
  - On success exactly one event exists for the call
  - On any failure zero events exist and stock is unchanged
  - Waste cost is frozen from CostPerUnit at commit time

SEE ALSO:
  - store.go: The commit primitives the Processor relies on
  - errors.go: The error taxonomy surfaced to callers
*/
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// PROCESSOR
// =============================================================================

const (
	// DefaultMaxAttempts bounds the optimistic retry loop.
	DefaultMaxAttempts = 5

	// baseBackoff is the first retry delay; doubled each attempt.
	baseBackoff = 5 * time.Millisecond
)

// Processor validates and atomically applies stock-affecting commands.
type Processor struct {
	store       LedgerStore
	clock       Clock
	maxAttempts int
	logger      *zap.Logger
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithClock swaps the time source (tests).
func WithClock(c Clock) ProcessorOption {
	return func(p *Processor) { p.clock = c }
}

// WithMaxAttempts overrides the optimistic retry budget.
func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor creates a Processor over the given store.
func NewProcessor(store LedgerStore, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:       store,
		clock:       SystemClock{},
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// COMMANDS
// =============================================================================

// ApplyStockAdjustment validates and commits one inbound or outbound
// movement. On success the returned event is committed and CurrentStock
// reflects it; on any error nothing was written.
func (p *Processor) ApplyStockAdjustment(ctx context.Context, req AdjustmentRequest) (*StockEvent, error) {
	if err := validateMovement(req.Quantity, req.Reason); err != nil {
		return nil, err
	}
	if req.Kind != KindStockIn && req.Kind != KindStockOut {
		return nil, ErrInvalidKind
	}

	var committed *StockEvent
	err := p.withRetry(ctx, req.IngredientID, func(ing *Ingredient) error {
		newStock := ing.CurrentStock.Add(req.Kind.Delta(req.Quantity))
		if newStock.IsNegative() {
			return &InsufficientStockError{
				IngredientID: ing.ID,
				Available:    ing.CurrentStock,
				Requested:    req.Quantity,
			}
		}

		ev := &StockEvent{
			ID:           EventID(uuid.NewString()),
			IngredientID: ing.ID,
			Kind:         req.Kind,
			Quantity:     req.Quantity,
			Reason:       req.Reason,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			CreatedAt:    p.clock.Now(),
		}
		if err := p.store.CommitStockEvent(ctx, ing.ID, ing.Version, newStock, ev); err != nil {
			return err
		}
		committed = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("stock adjustment committed",
		zap.String("ingredient_id", string(req.IngredientID)),
		zap.String("kind", string(req.Kind)),
		zap.String("quantity", req.Quantity.String()),
		zap.Int64("seq", committed.Seq))
	return committed, nil
}

// ApplyWasteEntry validates and commits one waste movement. The cost is
// read from CostPerUnit inside the retry loop, so it is frozen against the
// same snapshot the commit is conditioned on.
func (p *Processor) ApplyWasteEntry(ctx context.Context, req WasteRequest) (*WasteEvent, error) {
	if err := validateMovement(req.Quantity, req.Reason); err != nil {
		return nil, err
	}

	var committed *WasteEvent
	err := p.withRetry(ctx, req.IngredientID, func(ing *Ingredient) error {
		newStock := ing.CurrentStock.Sub(req.Quantity)
		if newStock.IsNegative() {
			return &InsufficientStockError{
				IngredientID: ing.ID,
				Available:    ing.CurrentStock,
				Requested:    req.Quantity,
			}
		}

		ev := &WasteEvent{
			ID:           EventID(uuid.NewString()),
			IngredientID: ing.ID,
			Quantity:     req.Quantity,
			Cost:         ing.CostPerUnit.Mul(req.Quantity),
			Reason:       req.Reason,
			ActorID:      req.Actor.ID,
			ActorName:    req.Actor.Name,
			CreatedAt:    p.clock.Now(),
		}
		if err := p.store.CommitWasteEvent(ctx, ing.ID, ing.Version, newStock, ev); err != nil {
			return err
		}
		committed = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("waste entry committed",
		zap.String("ingredient_id", string(req.IngredientID)),
		zap.String("quantity", req.Quantity.String()),
		zap.String("cost", committed.Cost.String()),
		zap.Int64("seq", committed.Seq))
	return committed, nil
}

// =============================================================================
// OPTIMISTIC RETRY LOOP
// =============================================================================

// withRetry re-reads the ingredient snapshot and runs apply until the
// commit succeeds, a deterministic rejection occurs, or the budget runs
// out. Deterministic errors are never retried; a lost version race or a
// transiently unavailable store (on the read or the commit) gets a fresh
// attempt after backoff.
func (p *Processor) withRetry(ctx context.Context, id IngredientID, apply func(*Ingredient) error) error {
	backoff := baseBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := p.applyOnce(ctx, id, apply)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		p.logger.Debug("transient ledger failure, retrying",
			zap.String("ingredient_id", string(id)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if errors.Is(lastErr, ErrUnavailable) {
		return lastErr
	}
	return &ConflictError{IngredientID: id, Attempts: p.maxAttempts}
}

// applyOnce takes one fresh snapshot and runs a single attempt against it.
func (p *Processor) applyOnce(ctx context.Context, id IngredientID, apply func(*Ingredient) error) error {
	ing, err := p.store.GetIngredient(ctx, id)
	if err != nil {
		return err
	}
	if ing == nil {
		return ErrIngredientNotFound
	}
	if ing.Retired {
		return ErrIngredientRetired
	}
	return apply(ing)
}

func validateMovement(quantity Quantity, reason string) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(reason) == "" {
		return ErrEmptyReason
	}
	return nil
}

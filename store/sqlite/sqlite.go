/*
Package sqlite provides a SQLite-backed implementation of ledger.LedgerStore.

PURPOSE:
  Implements the catalog table, the two append-only event streams, and the
  version-conditioned atomic commit. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on stock_events / waste_events
  - Corrections are new compensating movements

ATOMIC COMMIT:
  CommitStockEvent / CommitWasteEvent run in one database transaction:
    UPDATE ingredients SET current_stock = ?, version = version + 1
      WHERE id = ? AND version = ?
    INSERT INTO <stream> ...
  Zero rows affected by the UPDATE means the snapshot was stale; the
  transaction rolls back and the caller gets ErrConflict. The event seq
  comes from the stream's AUTOINCREMENT key, so commit order and seq
  order always agree.

KEY TABLES:
  ingredients:   Canonical current state, versioned
  stock_events:  Immutable inbound/outbound movements
  waste_events:  Immutable waste movements with frozen cost

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/pantry.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions and the commit contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/copperpot/inventory-ledger/ledger"
)

// eventTimeLayout is a fixed-width UTC timestamp (nanoseconds always
// zero-padded) so that lexicographic comparison on the TEXT column agrees
// with chronological order. RFC3339Nano trims trailing zeros, which breaks
// range comparisons inside the boundary second.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ledger.LedgerStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ingredient catalog (canonical current state, versioned)
	CREATE TABLE IF NOT EXISTS ingredients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		current_stock TEXT NOT NULL,
		min_stock_level TEXT NOT NULL,
		cost_per_unit TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0,
		retired BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ingredients_name
		ON ingredients(name);

	-- Stock events (append-only)
	CREATE TABLE IF NOT EXISTS stock_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ingredient_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT,
		actor_name TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_events_ingredient
		ON stock_events(ingredient_id, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_stock_events_created_at
		ON stock_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_stock_events_kind
		ON stock_events(kind);

	-- Waste events (append-only, frozen cost)
	CREATE TABLE IF NOT EXISTS waste_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ingredient_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		cost TEXT NOT NULL,
		reason TEXT NOT NULL,
		actor_id TEXT,
		actor_name TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waste_events_ingredient
		ON waste_events(ingredient_id, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_waste_events_created_at
		ON waste_events(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CATALOG STORE (ledger.CatalogStore interface)
// =============================================================================

// GetIngredient returns an ingredient by id, or nil when absent.
func (s *Store) GetIngredient(ctx context.Context, id ledger.IngredientID) (*ledger.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, unit, current_stock, min_stock_level, cost_per_unit,
		       version, retired, created_at, updated_at
		FROM ingredients WHERE id = ?`, id)

	ing, err := scanIngredientRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return ing, nil
}

// ListIngredients returns ingredients ordered by name.
func (s *Store) ListIngredients(ctx context.Context, includeRetired bool) ([]ledger.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, unit, current_stock, min_stock_level, cost_per_unit,
		       version, retired, created_at, updated_at
		FROM ingredients`
	if !includeRetired {
		query += ` WHERE retired = FALSE`
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	defer rows.Close()

	var ingredients []ledger.Ingredient
	for rows.Next() {
		ing, err := scanIngredientRow(rows)
		if err != nil {
			return nil, err
		}
		ingredients = append(ingredients, *ing)
	}
	return ingredients, rows.Err()
}

// SaveIngredient creates an ingredient or updates its catalog metadata.
// CurrentStock and Version on an existing row are untouched: stock moves
// only through the commit primitives.
func (s *Store) SaveIngredient(ctx context.Context, ing ledger.Ingredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO ingredients
		(id, name, unit, current_stock, min_stock_level, cost_per_unit, version, retired, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, FALSE, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			unit = excluded.unit,
			min_stock_level = excluded.min_stock_level,
			cost_per_unit = excluded.cost_per_unit,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		ing.ID, ing.Name, ing.Unit,
		ing.CurrentStock.String(),
		ing.MinStockLevel.String(),
		ing.CostPerUnit.String(),
		now, now,
	)
	return mapStoreErr(err)
}

// RetireIngredient soft-retires an ingredient.
func (s *Store) RetireIngredient(ctx context.Context, id ledger.IngredientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingredients SET retired = TRUE, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return mapStoreErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrIngredientNotFound
	}
	return nil
}

// =============================================================================
// ATOMIC COMMITS (the compare-and-swap)
// =============================================================================

// CommitStockEvent atomically applies a stock movement and appends its event.
func (s *Store) CommitStockEvent(ctx context.Context, id ledger.IngredientID, expectedVersion int64, newStock ledger.Quantity, ev *ledger.StockEvent) error {
	return s.commit(ctx, id, expectedVersion, newStock, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO stock_events
			(id, ingredient_id, kind, quantity, reason, actor_id, actor_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.IngredientID, ev.Kind,
			ev.Quantity.String(), ev.Reason,
			nullString(ev.ActorID), nullString(ev.ActorName),
			ev.CreatedAt.UTC().Format(eventTimeLayout),
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}, func(seq int64) { ev.Seq = seq })
}

// CommitWasteEvent atomically applies a waste movement and appends its event.
func (s *Store) CommitWasteEvent(ctx context.Context, id ledger.IngredientID, expectedVersion int64, newStock ledger.Quantity, ev *ledger.WasteEvent) error {
	return s.commit(ctx, id, expectedVersion, newStock, func(tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO waste_events
			(id, ingredient_id, quantity, cost, reason, actor_id, actor_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.IngredientID,
			ev.Quantity.String(), ev.Cost.String(), ev.Reason,
			nullString(ev.ActorID), nullString(ev.ActorName),
			ev.CreatedAt.UTC().Format(eventTimeLayout),
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}, func(seq int64) { ev.Seq = seq })
}

// commit runs the version-conditioned stock write and the event append in
// one database transaction. Both land or neither does.
func (s *Store) commit(ctx context.Context, id ledger.IngredientID, expectedVersion int64, newStock ledger.Quantity, insert func(*sql.Tx) (int64, error), assignSeq func(int64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE ingredients
		SET current_stock = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		newStock.String(), time.Now().UTC().Format(time.RFC3339), id, expectedVersion)
	if err != nil {
		return mapStoreErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Stale version or vanished row; distinguish for the caller.
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ingredients WHERE id = ?`, id).Scan(&count); err != nil {
			return mapStoreErr(err)
		}
		if count == 0 {
			return ledger.ErrIngredientNotFound
		}
		return ledger.ErrConflict
	}

	seq, err := insert(tx)
	if err != nil {
		return mapStoreErr(err)
	}

	if err := tx.Commit(); err != nil {
		return mapStoreErr(err)
	}
	assignSeq(seq)
	return nil
}

// =============================================================================
// EVENT READS (ledger.EventStore interface)
// =============================================================================

// StockEvents returns stock events newest first.
func (s *Store) StockEvents(ctx context.Context, filter ledger.EventFilter) ([]ledger.StockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seq, id, ingredient_id, kind, quantity, reason, actor_id, actor_name, created_at
		FROM stock_events`
	where, args := eventFilterClauses(filter)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	defer rows.Close()

	var events []ledger.StockEvent
	for rows.Next() {
		var (
			ev                 ledger.StockEvent
			quantity           string
			actorID, actorName sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.IngredientID, &ev.Kind,
			&quantity, &ev.Reason, &actorID, &actorName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock event: %w", err)
		}
		ev.Quantity = ledger.MustParseQuantity(quantity)
		ev.ActorID = actorID.String
		ev.ActorName = actorName.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// WasteEvents returns waste events in commit order, bounded by the window.
func (s *Store) WasteEvents(ctx context.Context, window ledger.Window) ([]ledger.WasteEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seq, id, ingredient_id, quantity, cost, reason, actor_id, actor_name, created_at
		FROM waste_events`
	var where []string
	var args []any
	if !window.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, window.From.UTC().Format(eventTimeLayout))
	}
	if !window.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, window.To.UTC().Format(eventTimeLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	return s.queryWasteEvents(ctx, query, args...)
}

// WasteEventsPage returns waste events newest first for history views.
func (s *Store) WasteEventsPage(ctx context.Context, filter ledger.EventFilter) ([]ledger.WasteEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT seq, id, ingredient_id, quantity, cost, reason, actor_id, actor_name, created_at
		FROM waste_events`
	var where []string
	var args []any
	if filter.BeforeSeq > 0 {
		where = append(where, "seq < ?")
		args = append(args, filter.BeforeSeq)
	}
	if filter.IngredientID != "" {
		where = append(where, "ingredient_id = ?")
		args = append(args, filter.IngredientID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryWasteEvents(ctx, query, args...)
}

func (s *Store) queryWasteEvents(ctx context.Context, query string, args ...any) ([]ledger.WasteEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	defer rows.Close()

	var events []ledger.WasteEvent
	for rows.Next() {
		var (
			ev                 ledger.WasteEvent
			quantity, cost     string
			actorID, actorName sql.NullString
			createdAt          string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.IngredientID,
			&quantity, &cost, &ev.Reason, &actorID, &actorName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan waste event: %w", err)
		}
		ev.Quantity = ledger.MustParseQuantity(quantity)
		ev.Cost = ledger.MustParseQuantity(cost)
		ev.ActorID = actorID.String
		ev.ActorName = actorName.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"stock_events", "waste_events", "ingredients"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIngredientRow(row rowScanner) (*ledger.Ingredient, error) {
	var (
		ing                                      ledger.Ingredient
		currentStock, minStockLevel, costPerUnit string
		createdAt, updatedAt                     string
	)
	err := row.Scan(&ing.ID, &ing.Name, &ing.Unit,
		&currentStock, &minStockLevel, &costPerUnit,
		&ing.Version, &ing.Retired, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	ing.CurrentStock = ledger.MustParseQuantity(currentStock)
	ing.MinStockLevel = ledger.MustParseQuantity(minStockLevel)
	ing.CostPerUnit = ledger.MustParseQuantity(costPerUnit)
	ing.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ing.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &ing, nil
}

func eventFilterClauses(filter ledger.EventFilter) ([]string, []any) {
	var where []string
	var args []any
	if filter.BeforeSeq > 0 {
		where = append(where, "seq < ?")
		args = append(args, filter.BeforeSeq)
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.IngredientID != "" {
		where = append(where, "ingredient_id = ?")
		args = append(args, filter.IngredientID)
	}
	return where, args
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// mapStoreErr folds driver-level transient failures into ErrUnavailable so
// the processor's retry policy can treat them uniformly.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	return err
}

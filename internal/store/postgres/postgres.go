// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/menuimport/internal/catalog"
	"github.com/JonMunkholm/menuimport/internal/store"
)

// PostgreSQL error codes the store translates.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeForeignKey      = "23503"
)

// Store is a store.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool. Close closes the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op; this also covers panics in fn.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (catalog.Stats, error) {
	var st catalog.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM restaurants),
			(SELECT COUNT(*) FROM menus),
			(SELECT COUNT(*) FROM menu_items),
			(SELECT COUNT(*) FROM menu_assignments)`,
	).Scan(&st.Restaurants, &st.Menus, &st.MenuItems, &st.Assignments)
	if err != nil {
		return catalog.Stats{}, fmt.Errorf("count rows: %w", err)
	}
	return st, nil
}

// RecordImportRun implements store.Store.
func (s *Store) RecordImportRun(ctx context.Context, run store.ImportRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_runs (
			id, source, success, message, restaurants, menus, menu_items, assignments,
			error_count, ip_address, user_agent, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		toPgUUID(run.ID), run.Source, run.Success, run.Message,
		run.Restaurants, run.Menus, run.MenuItems, run.Assignments,
		run.ErrorCount, run.IPAddress, run.UserAgent, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

const importRunColumns = `id, source, success, message, restaurants, menus, menu_items, assignments,
	error_count, ip_address, user_agent, started_at, finished_at`

// ListImportRuns implements store.Store.
func (s *Store) ListImportRuns(ctx context.Context, limit int) ([]store.ImportRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY started_at DESC LIMIT $1`,
		store.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	runs := []store.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetImportRun implements store.Store.
func (s *Store) GetImportRun(ctx context.Context, id uuid.UUID) (*store.ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+importRunColumns+` FROM import_runs WHERE id = $1`, toPgUUID(id))
	run, err := scanImportRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func scanImportRun(row pgx.Row) (store.ImportRun, error) {
	var (
		run store.ImportRun
		id  pgtype.UUID
	)
	err := row.Scan(&id, &run.Source, &run.Success, &run.Message,
		&run.Restaurants, &run.Menus, &run.MenuItems, &run.Assignments,
		&run.ErrorCount, &run.IPAddress, &run.UserAgent, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return store.ImportRun{}, err
	}
	run.ID = uuid.UUID(id.Bytes)
	return run, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

type pgTx struct {
	tx pgx.Tx
}

// savepoint runs fn inside a nested transaction. pgx implements nested
// Begin with SAVEPOINT, so a failed statement is rolled back to the
// savepoint and the outer transaction stays usable.
func (t *pgTx) savepoint(ctx context.Context, fn func(pgx.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (t *pgTx) FindOrCreateRestaurant(ctx context.Context, name string) (catalog.Restaurant, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Restaurant{}, false, store.NewRecordError("restaurant", msgs...)
	}

	r := catalog.Restaurant{Name: name}
	err := t.tx.QueryRow(ctx, `SELECT id FROM restaurants WHERE name = $1`, name).Scan(&r.ID)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return catalog.Restaurant{}, false, fmt.Errorf("find restaurant: %w", err)
	}

	err = t.savepoint(ctx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx,
			`INSERT INTO restaurants (name) VALUES ($1) RETURNING id`, name,
		).Scan(&r.ID)
	})
	if err != nil {
		return catalog.Restaurant{}, false, translate("restaurant", "create restaurant", err)
	}
	return r, true, nil
}

func (t *pgTx) FindOrCreateMenu(ctx context.Context, restaurantID int64, name string) (catalog.Menu, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Menu{}, false, store.NewRecordError("menu", msgs...)
	}

	m := catalog.Menu{RestaurantID: restaurantID, Name: name}
	err := t.tx.QueryRow(ctx,
		`SELECT id FROM menus WHERE restaurant_id = $1 AND name = $2 ORDER BY id LIMIT 1`,
		restaurantID, name,
	).Scan(&m.ID)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return catalog.Menu{}, false, fmt.Errorf("find menu: %w", err)
	}

	err = t.savepoint(ctx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx,
			`INSERT INTO menus (restaurant_id, name) VALUES ($1, $2) RETURNING id`,
			restaurantID, name,
		).Scan(&m.ID)
	})
	if err != nil {
		return catalog.Menu{}, false, translate("menu", "create menu", err)
	}
	return m, true, nil
}

func (t *pgTx) FindMenuItemByName(ctx context.Context, name string) (*catalog.MenuItem, error) {
	item := catalog.MenuItem{Name: name}
	err := t.tx.QueryRow(ctx,
		`SELECT id, price_in_cents FROM menu_items WHERE name = $1`, name,
	).Scan(&item.ID, &item.PriceInCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find menu item: %w", err)
	}
	return &item, nil
}

func (t *pgTx) CreateMenuItem(ctx context.Context, name string, priceInCents *int64) (catalog.MenuItem, error) {
	if msgs := catalog.ValidateMenuItem(name, priceInCents); len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}

	item := catalog.MenuItem{Name: name, PriceInCents: *priceInCents}
	err := t.savepoint(ctx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx,
			`INSERT INTO menu_items (name, price_in_cents) VALUES ($1, $2) RETURNING id`,
			name, *priceInCents,
		).Scan(&item.ID)
	})
	if err != nil {
		return catalog.MenuItem{}, translate("menu item", "create menu item", err)
	}
	return item, nil
}

func (t *pgTx) UpdateMenuItemPrice(ctx context.Context, id int64, priceInCents int64) (catalog.MenuItem, error) {
	if msgs := catalog.ValidatePrice(&priceInCents); len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}

	item := catalog.MenuItem{ID: id}
	err := t.savepoint(ctx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx,
			`UPDATE menu_items SET price_in_cents = $1, updated_at = now()
			 WHERE id = $2 RETURNING name, price_in_cents`,
			priceInCents, id,
		).Scan(&item.Name, &item.PriceInCents)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.MenuItem{}, store.ErrNotFound
	}
	if err != nil {
		return catalog.MenuItem{}, translate("menu item", "update menu item", err)
	}
	return item, nil
}

func (t *pgTx) FindOrCreateAssignment(ctx context.Context, menuID, menuItemID int64) (catalog.MenuAssignment, bool, error) {
	a := catalog.MenuAssignment{MenuID: menuID, MenuItemID: menuItemID}
	err := t.tx.QueryRow(ctx,
		`SELECT id FROM menu_assignments WHERE menu_id = $1 AND menu_item_id = $2`,
		menuID, menuItemID,
	).Scan(&a.ID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return catalog.MenuAssignment{}, false, fmt.Errorf("find menu assignment: %w", err)
	}

	err = t.savepoint(ctx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx,
			`INSERT INTO menu_assignments (menu_id, menu_item_id) VALUES ($1, $2) RETURNING id`,
			menuID, menuItemID,
		).Scan(&a.ID)
	})
	if err != nil {
		return catalog.MenuAssignment{}, false, translate("menu assignment", "create menu assignment", err)
	}
	return a, true, nil
}

// translate turns constraint violations into RecordErrors and wraps
// everything else.
func translate(entity, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if entity == "menu assignment" {
				return store.NewRecordError(entity, catalog.MsgItemAlreadyOnMenu)
			}
			return store.NewRecordError(entity, catalog.MsgNameTaken)
		case codeCheckViolation:
			return store.NewRecordError(entity, catalog.MsgPriceNotPositive)
		case codeForeignKey:
			return store.NewRecordError(entity, "Referenced record must exist")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

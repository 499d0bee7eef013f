// Package sqlite implements store.Store on database/sql with the
// mattn/go-sqlite3 driver. It suits single-node deployments and the CLI.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/menuimport/internal/catalog"
	"github.com/JonMunkholm/menuimport/internal/store"
)

//go:embed schema.sql
var schema string

// Store is a store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn, for example "file:menus.db" or
// "file:test?mode=memory&cache=shared". SQLite allows one writer, so the
// pool is limited to a single connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate creates the schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

// DB exposes the handle for health checks and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close implements store.Store.
func (s *Store) Close() error { return s.db.Close() }

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context) (catalog.Stats, error) {
	var st catalog.Stats
	err := s.db.QueryRowContext(ctx, `
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (
			id, source, success, message, restaurants, menus, menu_items, assignments,
			error_count, ip_address, user_agent, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Source, run.Success, run.Message,
		run.Restaurants, run.Menus, run.MenuItems, run.Assignments,
		run.ErrorCount, run.IPAddress, run.UserAgent,
		formatTime(run.StartedAt), formatTime(run.FinishedAt),
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+importRunColumns+` FROM import_runs ORDER BY started_at DESC LIMIT ?`,
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
	row := s.db.QueryRowContext(ctx,
		`SELECT `+importRunColumns+` FROM import_runs WHERE id = ?`, id.String())
	run, err := scanImportRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImportRun(row scanner) (store.ImportRun, error) {
	var (
		run                 store.ImportRun
		id, started, finish string
	)
	err := row.Scan(&id, &run.Source, &run.Success, &run.Message,
		&run.Restaurants, &run.Menus, &run.MenuItems, &run.Assignments,
		&run.ErrorCount, &run.IPAddress, &run.UserAgent, &started, &finish)
	if err != nil {
		return store.ImportRun{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return store.ImportRun{}, fmt.Errorf("parse import run id %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return store.ImportRun{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finish); err != nil {
		return store.ImportRun{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

// timeLayout is RFC 3339 with fixed-width nanoseconds, so stored values
// sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type sqlTx struct {
	tx  *sql.Tx
	seq int
}

// savepoint runs fn between SAVEPOINT and RELEASE, rolling back to the
// savepoint when fn fails so the transaction stays usable.
func (t *sqlTx) savepoint(ctx context.Context, fn func() error) error {
	t.seq++
	name := fmt.Sprintf("sp_%d", t.seq)

	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		_, _ = t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *sqlTx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := t.savepoint(ctx, func() error {
		res, err := t.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (t *sqlTx) FindOrCreateRestaurant(ctx context.Context, name string) (catalog.Restaurant, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Restaurant{}, false, store.NewRecordError("restaurant", msgs...)
	}

	r := catalog.Restaurant{Name: name}
	err := t.tx.QueryRowContext(ctx, `SELECT id FROM restaurants WHERE name = ?`, name).Scan(&r.ID)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.Restaurant{}, false, fmt.Errorf("find restaurant: %w", err)
	}

	r.ID, err = t.insert(ctx, `INSERT INTO restaurants (name) VALUES (?)`, name)
	if err != nil {
		return catalog.Restaurant{}, false, translate("restaurant", "create restaurant", err)
	}
	return r, true, nil
}

func (t *sqlTx) FindOrCreateMenu(ctx context.Context, restaurantID int64, name string) (catalog.Menu, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Menu{}, false, store.NewRecordError("menu", msgs...)
	}

	m := catalog.Menu{RestaurantID: restaurantID, Name: name}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM menus WHERE restaurant_id = ? AND name = ? ORDER BY id LIMIT 1`,
		restaurantID, name,
	).Scan(&m.ID)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.Menu{}, false, fmt.Errorf("find menu: %w", err)
	}

	m.ID, err = t.insert(ctx, `INSERT INTO menus (restaurant_id, name) VALUES (?, ?)`, restaurantID, name)
	if err != nil {
		return catalog.Menu{}, false, translate("menu", "create menu", err)
	}
	return m, true, nil
}

func (t *sqlTx) FindMenuItemByName(ctx context.Context, name string) (*catalog.MenuItem, error) {
	item := catalog.MenuItem{Name: name}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, price_in_cents FROM menu_items WHERE name = ?`, name,
	).Scan(&item.ID, &item.PriceInCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find menu item: %w", err)
	}
	return &item, nil
}

func (t *sqlTx) CreateMenuItem(ctx context.Context, name string, priceInCents *int64) (catalog.MenuItem, error) {
	if msgs := catalog.ValidateMenuItem(name, priceInCents); len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}

	id, err := t.insert(ctx,
		`INSERT INTO menu_items (name, price_in_cents) VALUES (?, ?)`, name, *priceInCents)
	if err != nil {
		return catalog.MenuItem{}, translate("menu item", "create menu item", err)
	}
	return catalog.MenuItem{ID: id, Name: name, PriceInCents: *priceInCents}, nil
}

func (t *sqlTx) UpdateMenuItemPrice(ctx context.Context, id int64, priceInCents int64) (catalog.MenuItem, error) {
	if msgs := catalog.ValidatePrice(&priceInCents); len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}

	item := catalog.MenuItem{ID: id, PriceInCents: priceInCents}
	err := t.savepoint(ctx, func() error {
		res, err := t.tx.ExecContext(ctx,
			`UPDATE menu_items SET price_in_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			priceInCents, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return t.tx.QueryRowContext(ctx, `SELECT name FROM menu_items WHERE id = ?`, id).Scan(&item.Name)
	})
	if errors.Is(err, store.ErrNotFound) {
		return catalog.MenuItem{}, err
	}
	if err != nil {
		return catalog.MenuItem{}, translate("menu item", "update menu item", err)
	}
	return item, nil
}

func (t *sqlTx) FindOrCreateAssignment(ctx context.Context, menuID, menuItemID int64) (catalog.MenuAssignment, bool, error) {
	a := catalog.MenuAssignment{MenuID: menuID, MenuItemID: menuItemID}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM menu_assignments WHERE menu_id = ? AND menu_item_id = ?`,
		menuID, menuItemID,
	).Scan(&a.ID)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return catalog.MenuAssignment{}, false, fmt.Errorf("find menu assignment: %w", err)
	}

	a.ID, err = t.insert(ctx,
		`INSERT INTO menu_assignments (menu_id, menu_item_id) VALUES (?, ?)`, menuID, menuItemID)
	if err != nil {
		return catalog.MenuAssignment{}, false, translate("menu assignment", "create menu assignment", err)
	}
	return a, true, nil
}

// translate turns constraint violations into RecordErrors and wraps
// everything else.
func translate(entity, op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			if entity == "menu assignment" {
				return store.NewRecordError(entity, catalog.MsgItemAlreadyOnMenu)
			}
			return store.NewRecordError(entity, catalog.MsgNameTaken)
		case sqlite3.ErrConstraintCheck:
			return store.NewRecordError(entity, catalog.MsgPriceNotPositive)
		case sqlite3.ErrConstraintForeignKey:
			return store.NewRecordError(entity, "Referenced record must exist")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Package store defines the persistence contract the importer writes through.
//
// Implementations live in subpackages (postgres, sqlite, memory). Every
// restaurant is imported inside one WithinTx call; each Tx write runs in its
// own savepoint so a rejected write never poisons the surrounding
// transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/menuimport/internal/catalog"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// RecordError reports that a single write was rejected by record validation
// or a uniqueness constraint. The importer records it against the entity and
// moves on; any other error from a Tx aborts the restaurant.
type RecordError struct {
	Entity   string
	Messages []string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s invalid: %s", e.Entity, strings.Join(e.Messages, ", "))
}

// NewRecordError builds a RecordError for entity with the given messages.
func NewRecordError(entity string, msgs ...string) *RecordError {
	return &RecordError{Entity: entity, Messages: msgs}
}

// AsRecordError reports whether err is a RecordError and returns it.
func AsRecordError(err error) (*RecordError, bool) {
	var recErr *RecordError
	if errors.As(err, &recErr) {
		return recErr, true
	}
	return nil, false
}

// Store is a transactional menu catalog plus import history.
type Store interface {
	// WithinTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, including when fn panics.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	RecordImportRun(ctx context.Context, run ImportRun) error
	ListImportRuns(ctx context.Context, limit int) ([]ImportRun, error)
	GetImportRun(ctx context.Context, id uuid.UUID) (*ImportRun, error)

	Stats(ctx context.Context) (catalog.Stats, error)
	Close() error
}

// Tx is the set of writes available inside a transaction.
type Tx interface {
	// FindOrCreateRestaurant returns the restaurant with name, creating it
	// when absent. created reports whether a row was inserted.
	FindOrCreateRestaurant(ctx context.Context, name string) (r catalog.Restaurant, created bool, err error)

	// FindOrCreateMenu finds a menu by (restaurant, name) or creates it.
	FindOrCreateMenu(ctx context.Context, restaurantID int64, name string) (m catalog.Menu, created bool, err error)

	// FindMenuItemByName returns nil without error when no item has name.
	FindMenuItemByName(ctx context.Context, name string) (*catalog.MenuItem, error)

	CreateMenuItem(ctx context.Context, name string, priceInCents *int64) (catalog.MenuItem, error)
	UpdateMenuItemPrice(ctx context.Context, id int64, priceInCents int64) (catalog.MenuItem, error)

	// FindOrCreateAssignment links an item to a menu at most once.
	FindOrCreateAssignment(ctx context.Context, menuID, menuItemID int64) (a catalog.MenuAssignment, created bool, err error)
}

// ImportRun is the persisted summary of one pipeline run.
type ImportRun struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source"`
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Restaurants int       `json:"restaurants"`
	Menus       int       `json:"menus"`
	MenuItems   int       `json:"menu_items"`
	Assignments int       `json:"assignments"`
	ErrorCount  int       `json:"error_count"`
	IPAddress   string    `json:"ip_address,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration is how long the run took.
func (r ImportRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ClampLimit bounds a history page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	default:
		return limit
	}
}

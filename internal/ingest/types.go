package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RestaurantRecord is a canonical restaurant. A nil Menus slice means the
// source value was not an array.
type RestaurantRecord struct {
	Name  *string      `json:"name"`
	Menus []MenuRecord `json:"menus"`
}

// MenuRecord is a canonical menu. A nil MenuItems slice means the source
// value was not an array.
type MenuRecord struct {
	Name      *string      `json:"name"`
	MenuItems []ItemRecord `json:"menu_items"`
}

// ItemRecord is a canonical menu item. Canonicalize always sets the price;
// nil means blank.
type ItemRecord struct {
	Name         *string `json:"name"`
	PriceInCents *int64  `json:"price_in_cents"`
}

// AdapterError is a structural problem found while canonicalizing.
type AdapterError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e AdapterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is a path-addressed validation finding.
type ValidationError struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LogLevel is the level of a log trail entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of the import log trail.
type LogEntry struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// Status is the outcome of one restaurant, menu or item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ItemAction says how an item row was resolved.
type ItemAction string

const (
	ActionCreated ItemAction = "created"
	ActionUpdated ItemAction = "updated"
	ActionReused  ItemAction = "reused"
)

// AssignmentAction says whether the menu assignment was new.
type AssignmentAction string

const (
	AssignmentCreated AssignmentAction = "created"
	AssignmentExists  AssignmentAction = "exists"
)

// Summary counts rows created by an import. Reused and updated rows are
// not counted.
type Summary struct {
	Restaurants int `json:"restaurants"`
	Menus       int `json:"menus"`
	MenuItems   int `json:"menu_items"`
	Assignments int `json:"assignments"`
}

func (s *Summary) add(o Summary) {
	s.Restaurants += o.Restaurants
	s.Menus += o.Menus
	s.MenuItems += o.MenuItems
	s.Assignments += o.Assignments
}

// RestaurantResult is the outcome of one restaurant subtree.
type RestaurantResult struct {
	RestaurantName *string      `json:"restaurant_name"`
	Status         Status       `json:"status"`
	RestaurantID   *int64       `json:"restaurant_id,omitempty"`
	Errors         []string     `json:"errors,omitempty"`
	Menus          []MenuResult `json:"menus"`
}

// MenuResult is the outcome of one menu.
type MenuResult struct {
	MenuName  *string      `json:"menu_name"`
	Status    Status       `json:"status"`
	MenuID    *int64       `json:"menu_id,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
	MenuItems []ItemResult `json:"menu_items"`
}

// ItemResult is the outcome of one menu item and its assignment.
type ItemResult struct {
	ItemName         *string          `json:"item_name"`
	PriceInCents     *int64           `json:"price_in_cents"`
	Status           Status           `json:"status"`
	Action           ItemAction       `json:"action,omitempty"`
	MenuItemID       *int64           `json:"menu_item_id,omitempty"`
	AssignmentID     *int64           `json:"assignment_id,omitempty"`
	AssignmentAction AssignmentAction `json:"assignment_action,omitempty"`
	Errors           []string         `json:"errors,omitempty"`
}

// ImportResult is what the Importer returns.
type ImportResult struct {
	Summary Summary
	Results []RestaurantResult
	Logs    []LogEntry
}

// Report is the final outcome of a pipeline run. It marshals to the
// success shape or the failure shape depending on Success.
type Report struct {
	ImportID         uuid.UUID
	Success          bool
	Message          string
	Summary          Summary
	Results          []RestaurantResult
	ValidationErrors []ValidationError
	AdapterErrors    []AdapterError
	Logs             []LogEntry

	StartedAt  time.Time
	FinishedAt time.Time
}

// ErrorCount counts error-severity findings, adapter errors and failed
// entities in the result tree.
func (r *Report) ErrorCount() int {
	n := len(r.AdapterErrors)
	for _, v := range r.ValidationErrors {
		if v.Severity == SeverityError {
			n++
		}
	}
	for _, rr := range r.Results {
		if rr.Status == StatusFailed {
			n++
		}
		for _, mr := range rr.Menus {
			if mr.Status == StatusFailed {
				n++
			}
			for _, ir := range mr.MenuItems {
				if ir.Status == StatusFailed {
					n++
				}
			}
		}
	}
	return n
}

type successReport struct {
	Success  bool               `json:"success"`
	ImportID uuid.UUID          `json:"import_id"`
	Message  string             `json:"message"`
	Summary  Summary            `json:"summary"`
	Results  []RestaurantResult `json:"results"`
	Logs     []LogEntry         `json:"logs"`
}

type failureReport struct {
	Success          bool              `json:"success"`
	ImportID         uuid.UUID         `json:"import_id"`
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	AdapterErrors    []AdapterError    `json:"adapter_errors"`
	Logs             []LogEntry        `json:"logs"`
}

// MarshalJSON implements json.Marshaler. Collections are never null.
func (r Report) MarshalJSON() ([]byte, error) {
	logs := nonNil(r.Logs)
	if r.Success {
		return json.Marshal(successReport{
			Success:  true,
			ImportID: r.ImportID,
			Message:  r.Message,
			Summary:  r.Summary,
			Results:  nonNil(r.Results),
			Logs:     logs,
		})
	}
	return json.Marshal(failureReport{
		Success:          false,
		ImportID:         r.ImportID,
		Message:          r.Message,
		ValidationErrors: nonNil(r.ValidationErrors),
		AdapterErrors:    nonNil(r.AdapterErrors),
		Logs:             logs,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

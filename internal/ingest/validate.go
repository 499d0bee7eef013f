package ingest

import (
	"fmt"
	"strings"
)

// ValidationResult is the Validator's verdict. Errors holds every finding,
// warnings included, whatever the verdict.
type ValidationResult struct {
	Valid   bool
	Message string
	Errors  []ValidationError
	Logs    []LogEntry
}

// ErrorCount returns the number of error-severity findings.
func (r ValidationResult) ErrorCount() int {
	n := 0
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Validate checks a canonical tree before anything is written. A nil or
// empty tree fails immediately. Otherwise every restaurant, menu and item
// is checked and the batch fails if any error-severity finding exists.
// Empty menus and empty item lists are warnings only.
func Validate(records []RestaurantRecord) ValidationResult {
	v := &validator{issues: []ValidationError{}}

	if records == nil {
		v.logs.errorf("Adapted data is not an array")
		return v.result(false, "Invalid data structure: expected array of restaurants")
	}
	if len(records) == 0 {
		v.logs.errorf("Adapted data array is empty")
		return v.result(false, "No restaurants found in data")
	}

	for i, r := range records {
		v.restaurant(r, fmt.Sprintf("restaurants[%d]", i))
	}

	res := v.result(true, "")
	// The verdict needs an error-severity entry, but the count covers
	// every entry, warnings included.
	if res.ErrorCount() > 0 {
		res.Valid = false
		res.Message = fmt.Sprintf("Validation failed with %d error(s)", len(res.Errors))
		return res
	}

	v.logs.infof("Data validation completed successfully")
	res.Logs = v.logs.entries
	return res
}

type validator struct {
	issues []ValidationError
	logs   logTrail
}

func (v *validator) result(valid bool, msg string) ValidationResult {
	return ValidationResult{Valid: valid, Message: msg, Errors: v.issues, Logs: v.logs.entries}
}

func (v *validator) restaurant(r RestaurantRecord, path string) {
	if blank(r.Name) {
		v.addError(path, "name is required")
	}
	if r.Menus == nil {
		v.addError(path, "menus must be an array")
		return
	}
	if len(r.Menus) == 0 {
		v.addWarning(path, "has no menus")
	}
	for i, m := range r.Menus {
		v.menu(m, fmt.Sprintf("%s.menus[%d]", path, i))
	}
}

func (v *validator) menu(m MenuRecord, path string) {
	if blank(m.Name) {
		v.addError(path, "name is required")
	}
	if m.MenuItems == nil {
		v.addError(path, "menu_items must be an array")
		return
	}
	if len(m.MenuItems) == 0 {
		v.addWarning(path, "has no menu items")
	}
	for i, it := range m.MenuItems {
		v.item(it, fmt.Sprintf("%s.menu_items[%d]", path, i))
	}
}

func (v *validator) item(it ItemRecord, path string) {
	if blank(it.Name) {
		v.addError(path, "name is required")
	}
	switch {
	case it.PriceInCents == nil:
		v.addError(path, "price is required")
	case *it.PriceInCents <= 0:
		v.addError(path, "price must be greater than 0")
	}
}

func (v *validator) addError(path, message string) {
	v.issues = append(v.issues, ValidationError{Path: path, Message: message, Severity: SeverityError})
	v.logs.errorf("%s: %s", path, message)
}

func (v *validator) addWarning(path, message string) {
	v.issues = append(v.issues, ValidationError{Path: path, Message: message, Severity: SeverityWarning})
	v.logs.warnf("%s: %s", path, message)
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/menuimport/internal/store"
)

// Importer writes canonical records through a Store. Each restaurant
// subtree runs in its own transaction and every write in its own
// savepoint. A failed menu or item is recorded on its result and its
// siblings still commit. Only a restaurant lookup error, a panic or a
// failed commit rolls back the restaurant.
type Importer struct {
	store store.Store
}

// NewImporter returns an Importer writing to s.
func NewImporter(s store.Store) *Importer {
	return &Importer{store: s}
}

// Import persists records in document order. It always returns one result
// per input restaurant.
func (im *Importer) Import(ctx context.Context, records []RestaurantRecord) *ImportResult {
	return im.run(ctx, records, &logTrail{})
}

func (im *Importer) run(ctx context.Context, records []RestaurantRecord, logs *logTrail) *ImportResult {
	res := &ImportResult{Results: make([]RestaurantResult, 0, len(records))}
	start := len(logs.entries)

	logs.infof("Starting import of %d restaurant(s)", len(records))
	for _, rec := range records {
		rr, created := im.importRestaurant(ctx, rec, logs)
		res.Results = append(res.Results, rr)
		res.Summary.add(created)
	}

	res.Logs = logs.entries[start:]
	return res
}

// importRestaurant returns the result node and the rows created by a
// committed transaction. Nothing is counted when the transaction rolls back.
func (im *Importer) importRestaurant(ctx context.Context, rec RestaurantRecord, logs *logTrail) (RestaurantResult, Summary) {
	result := RestaurantResult{
		RestaurantName: rec.Name,
		Status:         StatusSuccess,
		Menus:          []MenuResult{},
	}
	name := deref(rec.Name)

	var created Summary
	err := recoverPanic(func() error {
		return im.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			restaurant, isNew, err := tx.FindOrCreateRestaurant(ctx, name)
			if err != nil {
				recErr, ok := store.AsRecordError(err)
				if !ok {
					return err
				}
				result.Status = StatusFailed
				result.Errors = recErr.Messages
				logs.errorf("Failed to create restaurant '%s': %s", name, strings.Join(recErr.Messages, ", "))
				return nil
			}
			if isNew {
				created.Restaurants++
			}
			result.RestaurantID = &restaurant.ID

			for _, m := range rec.Menus {
				mr, err := im.importMenu(ctx, tx, restaurant.ID, name, m, &created, logs)
				if err != nil {
					mr.Status = StatusFailed
					mr.Errors = append(mr.Errors, err.Error())
					logs.errorf("Failed to import menu '%s': %v", deref(m.Name), err)
				}
				result.Menus = append(result.Menus, mr)
			}
			return nil
		})
	})
	if err != nil {
		result.Status = StatusFailed
		// The transaction rolled back, so none of the IDs exist.
		result.RestaurantID = nil
		result.Menus = []MenuResult{}
		result.Errors = []string{err.Error()}
		logs.errorf("Failed to import restaurant '%s': %v", name, err)
		return result, Summary{}
	}
	return result, created
}

func (im *Importer) importMenu(ctx context.Context, tx store.Tx, restaurantID int64, restaurantName string,
	rec MenuRecord, created *Summary, logs *logTrail) (MenuResult, error) {
	result := MenuResult{
		MenuName:  rec.Name,
		Status:    StatusSuccess,
		MenuItems: []ItemResult{},
	}
	name := deref(rec.Name)

	menu, isNew, err := tx.FindOrCreateMenu(ctx, restaurantID, name)
	if err != nil {
		recErr, ok := store.AsRecordError(err)
		if !ok {
			return result, err
		}
		result.Status = StatusFailed
		result.Errors = recErr.Messages
		logs.errorf("Failed to create menu '%s' for restaurant '%s': %s",
			name, restaurantName, strings.Join(recErr.Messages, ", "))
		return result, nil
	}
	if isNew {
		created.Menus++
	}
	result.MenuID = &menu.ID

	for _, it := range rec.MenuItems {
		ir, err := im.importItem(ctx, tx, menu.ID, name, it, created, logs)
		if err != nil {
			ir.Status = StatusFailed
			ir.Errors = append(ir.Errors, err.Error())
			logs.errorf("Failed to import menu item '%s': %v", deref(it.Name), err)
		}
		result.MenuItems = append(result.MenuItems, ir)
	}
	return result, nil
}

func (im *Importer) importItem(ctx context.Context, tx store.Tx, menuID int64, menuName string,
	rec ItemRecord, created *Summary, logs *logTrail) (ItemResult, error) {
	result := ItemResult{
		ItemName:     rec.Name,
		PriceInCents: rec.PriceInCents,
		Status:       StatusSuccess,
	}
	name := deref(rec.Name)

	fail := func(format string, msgs []string) (ItemResult, error) {
		result.Status = StatusFailed
		result.Errors = msgs
		logs.errorf(format, name, strings.Join(msgs, ", "))
		return result, nil
	}

	item, err := tx.FindMenuItemByName(ctx, name)
	if err != nil {
		return result, err
	}

	switch {
	case item != nil && rec.PriceInCents != nil && item.PriceInCents != *rec.PriceInCents:
		updated, err := tx.UpdateMenuItemPrice(ctx, item.ID, *rec.PriceInCents)
		if err != nil {
			recErr, ok := store.AsRecordError(err)
			if !ok {
				return result, err
			}
			return fail("Failed to update menu item '%s': %s", recErr.Messages)
		}
		item = &updated
		result.Action = ActionUpdated
	case item != nil:
		result.Action = ActionReused
	default:
		newItem, err := tx.CreateMenuItem(ctx, name, rec.PriceInCents)
		if err != nil {
			recErr, ok := store.AsRecordError(err)
			if !ok {
				return result, err
			}
			return fail("Failed to create menu item '%s': %s", recErr.Messages)
		}
		created.MenuItems++
		item = &newItem
		result.Action = ActionCreated
	}
	result.MenuItemID = &item.ID

	assignment, isNew, err := tx.FindOrCreateAssignment(ctx, menuID, item.ID)
	if err != nil {
		recErr, ok := store.AsRecordError(err)
		if !ok {
			return result, err
		}
		return fail("Failed to assign menu item '%s' to menu: %s", recErr.Messages)
	}
	if isNew {
		created.Assignments++
		result.AssignmentAction = AssignmentCreated
	} else {
		result.AssignmentAction = AssignmentExists
	}
	result.AssignmentID = &assignment.ID

	logs.infof("Menu item '%s' %s and assigned to menu '%s'", name, result.Action, menuName)
	return result, nil
}

// recoverPanic turns a panic in fn into an error so one bad restaurant
// cannot take down the batch.
func recoverPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during restaurant import", "panic", r)
			err = fmt.Errorf("unexpected error: %v", r)
		}
	}()
	return fn()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

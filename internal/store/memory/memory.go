// Package memory is an in-process Store used by tests, the CLI's dry runs and
// the memory database driver. It mirrors the SQL stores' constraints: unique
// restaurant and menu item names, unique (menu, item) assignments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/menuimport/internal/catalog"
	"github.com/JonMunkholm/menuimport/internal/store"
)

type assignmentKey struct {
	menuID, itemID int64
}

type menuKey struct {
	restaurantID int64
	name         string
}

type state struct {
	seq map[string]int64

	restaurants      map[int64]catalog.Restaurant
	restaurantByName map[string]int64
	menus            map[int64]catalog.Menu
	menuByKey        map[menuKey]int64
	items            map[int64]catalog.MenuItem
	itemByName       map[string]int64
	assignments      map[int64]catalog.MenuAssignment
	assignmentByKey  map[assignmentKey]int64
}

func newState() *state {
	return &state{
		seq:              map[string]int64{},
		restaurants:      map[int64]catalog.Restaurant{},
		restaurantByName: map[string]int64{},
		menus:            map[int64]catalog.Menu{},
		menuByKey:        map[menuKey]int64{},
		items:            map[int64]catalog.MenuItem{},
		itemByName:       map[string]int64{},
		assignments:      map[int64]catalog.MenuAssignment{},
		assignmentByKey:  map[assignmentKey]int64{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.restaurants {
		c.restaurants[k] = v
	}
	for k, v := range s.restaurantByName {
		c.restaurantByName[k] = v
	}
	for k, v := range s.menus {
		c.menus[k] = v
	}
	for k, v := range s.menuByKey {
		c.menuByKey[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.itemByName {
		c.itemByName[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.assignmentByKey {
		c.assignmentByKey[k] = v
	}
	return c
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store keeps everything in maps guarded by one mutex. Transactions are
// serialized and roll back by restoring a snapshot.
type Store struct {
	mu   sync.Mutex
	data *state
	runs []store.ImportRun
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: newState()}
}

// WithinTx implements store.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	committed := false
	defer func() {
		if !committed {
			s.data = snapshot
		}
	}()

	if err := fn(ctx, &tx{data: s.data}); err != nil {
		return err
	}
	committed = true
	return nil
}

// RecordImportRun implements store.Store.
func (s *Store) RecordImportRun(_ context.Context, run store.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// ListImportRuns returns the newest runs first.
func (s *Store) ListImportRuns(_ context.Context, limit int) ([]store.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]store.ImportRun, len(s.runs))
	copy(runs, s.runs)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	limit = store.ClampLimit(limit)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetImportRun implements store.Store.
func (s *Store) GetImportRun(_ context.Context, id uuid.UUID) (*store.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, run := range s.runs {
		if run.ID == id {
			r := run
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

// Stats implements store.Store.
func (s *Store) Stats(_ context.Context) (catalog.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return catalog.Stats{
		Restaurants: int64(len(s.data.restaurants)),
		Menus:       int64(len(s.data.menus)),
		MenuItems:   int64(len(s.data.items)),
		Assignments: int64(len(s.data.assignments)),
	}, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Restaurant looks up a restaurant by name. Test helper.
func (s *Store) Restaurant(name string) (catalog.Restaurant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.data.restaurantByName[name]
	return s.data.restaurants[id], ok
}

// MenuItem looks up a menu item by name. Test helper.
func (s *Store) MenuItem(name string) (catalog.MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.data.itemByName[name]
	return s.data.items[id], ok
}

// MenusOf returns a restaurant's menus ordered by ID. Test helper.
func (s *Store) MenusOf(restaurantID int64) []catalog.Menu {
	s.mu.Lock()
	defer s.mu.Unlock()

	var menus []catalog.Menu
	for _, m := range s.data.menus {
		if m.RestaurantID == restaurantID {
			menus = append(menus, m)
		}
	}
	sort.Slice(menus, func(i, j int) bool { return menus[i].ID < menus[j].ID })
	return menus
}

// ItemsOn returns the names of items assigned to a menu, sorted. Test helper.
func (s *Store) ItemsOn(menuID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for key := range s.data.assignmentByKey {
		if key.menuID == menuID {
			names = append(names, s.data.items[key.itemID].Name)
		}
	}
	sort.Strings(names)
	return names
}

type tx struct {
	data *state
}

func (t *tx) FindOrCreateRestaurant(_ context.Context, name string) (catalog.Restaurant, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Restaurant{}, false, store.NewRecordError("restaurant", msgs...)
	}
	if id, ok := t.data.restaurantByName[name]; ok {
		return t.data.restaurants[id], false, nil
	}

	r := catalog.Restaurant{ID: t.data.next("restaurants"), Name: name}
	t.data.restaurants[r.ID] = r
	t.data.restaurantByName[name] = r.ID
	return r, true, nil
}

func (t *tx) FindOrCreateMenu(_ context.Context, restaurantID int64, name string) (catalog.Menu, bool, error) {
	if msgs := catalog.ValidateName(name); len(msgs) > 0 {
		return catalog.Menu{}, false, store.NewRecordError("menu", msgs...)
	}
	key := menuKey{restaurantID: restaurantID, name: name}
	if id, ok := t.data.menuByKey[key]; ok {
		return t.data.menus[id], false, nil
	}
	if _, ok := t.data.restaurants[restaurantID]; !ok {
		return catalog.Menu{}, false, store.NewRecordError("menu", "Restaurant must exist")
	}

	m := catalog.Menu{ID: t.data.next("menus"), RestaurantID: restaurantID, Name: name}
	t.data.menus[m.ID] = m
	t.data.menuByKey[key] = m.ID
	return m, true, nil
}

func (t *tx) FindMenuItemByName(_ context.Context, name string) (*catalog.MenuItem, error) {
	id, ok := t.data.itemByName[name]
	if !ok {
		return nil, nil
	}
	item := t.data.items[id]
	return &item, nil
}

func (t *tx) CreateMenuItem(_ context.Context, name string, priceInCents *int64) (catalog.MenuItem, error) {
	msgs := catalog.ValidateMenuItem(name, priceInCents)
	if _, taken := t.data.itemByName[name]; taken {
		msgs = append(msgs, catalog.MsgNameTaken)
	}
	if len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}

	item := catalog.MenuItem{ID: t.data.next("menu_items"), Name: name, PriceInCents: *priceInCents}
	t.data.items[item.ID] = item
	t.data.itemByName[name] = item.ID
	return item, nil
}

func (t *tx) UpdateMenuItemPrice(_ context.Context, id int64, priceInCents int64) (catalog.MenuItem, error) {
	item, ok := t.data.items[id]
	if !ok {
		return catalog.MenuItem{}, store.ErrNotFound
	}
	if msgs := catalog.ValidatePrice(&priceInCents); len(msgs) > 0 {
		return catalog.MenuItem{}, store.NewRecordError("menu item", msgs...)
	}
	item.PriceInCents = priceInCents
	t.data.items[id] = item
	return item, nil
}

func (t *tx) FindOrCreateAssignment(_ context.Context, menuID, menuItemID int64) (catalog.MenuAssignment, bool, error) {
	key := assignmentKey{menuID: menuID, itemID: menuItemID}
	if id, ok := t.data.assignmentByKey[key]; ok {
		return t.data.assignments[id], false, nil
	}
	if _, ok := t.data.menus[menuID]; !ok {
		return catalog.MenuAssignment{}, false, store.NewRecordError("menu assignment", "Menu must exist")
	}
	if _, ok := t.data.items[menuItemID]; !ok {
		return catalog.MenuAssignment{}, false, store.NewRecordError("menu assignment", "Menu item must exist")
	}

	a := catalog.MenuAssignment{ID: t.data.next("menu_assignments"), MenuID: menuID, MenuItemID: menuItemID}
	t.data.assignments[a.ID] = a
	t.data.assignmentByKey[key] = a.ID
	return a, true, nil
}

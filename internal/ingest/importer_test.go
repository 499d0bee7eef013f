package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/menuimport/internal/catalog"
	"github.com/JonMunkholm/menuimport/internal/store"
	"github.com/JonMunkholm/menuimport/internal/store/memory"
)

func restaurant(name string, menus ...MenuRecord) RestaurantRecord {
	if menus == nil {
		menus = []MenuRecord{}
	}
	return RestaurantRecord{Name: str(name), Menus: menus}
}

func menu(name string, items ...ItemRecord) MenuRecord {
	if items == nil {
		items = []ItemRecord{}
	}
	return MenuRecord{Name: str(name), MenuItems: items}
}

func TestImporter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("Poppo's Cafe", menu("lunch", item("Burger", 900), item("Salad", 550))),
	})

	want := Summary{Restaurants: 1, Menus: 1, MenuItems: 2, Assignments: 2}
	if res.Summary != want {
		t.Errorf("Summary = %+v, want %+v", res.Summary, want)
	}

	items := res.Results[0].Menus[0].MenuItems
	for i, wantCents := range []int64{900, 550} {
		if items[i].Status != StatusSuccess || items[i].Action != ActionCreated ||
			items[i].AssignmentAction != AssignmentCreated {
			t.Errorf("item %d = %+v", i, items[i])
		}
		got, _ := s.MenuItem(*items[i].ItemName)
		if got.PriceInCents != wantCents {
			t.Errorf("%s stored price = %d, want %d", got.Name, got.PriceInCents, wantCents)
		}
	}

	if res.Logs[0].Message != "Starting import of 1 restaurant(s)" {
		t.Errorf("first log = %q", res.Logs[0].Message)
	}
	if res.Logs[1].Message != "Menu item 'Burger' created and assigned to menu 'lunch'" {
		t.Errorf("item log = %q", res.Logs[1].Message)
	}
}

func TestImporter_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	records := []RestaurantRecord{
		restaurant("A", menu("lunch", item("Burger", 900)), menu("dinner", item("Steak", 2500))),
	}

	im := NewImporter(s)
	first := im.Import(ctx, records)
	second := im.Import(ctx, records)

	if first.Summary != (Summary{Restaurants: 1, Menus: 2, MenuItems: 2, Assignments: 2}) {
		t.Errorf("first Summary = %+v", first.Summary)
	}
	if second.Summary != (Summary{}) {
		t.Errorf("second Summary = %+v, want zero", second.Summary)
	}

	for _, m := range second.Results[0].Menus {
		for _, it := range m.MenuItems {
			if it.Action != ActionReused || it.AssignmentAction != AssignmentExists {
				t.Errorf("second run item = %+v, want reused/exists", it)
			}
		}
	}

	stats, _ := s.Stats(ctx)
	if stats != (catalog.Stats{Restaurants: 1, Menus: 2, MenuItems: 2, Assignments: 2}) {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestImporter_DedupAcrossRestaurants(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Burger", 900))),
		restaurant("B", menu("menu", item("Burger", 1000))),
	})

	if res.Summary.MenuItems != 1 || res.Summary.Assignments != 2 {
		t.Errorf("Summary = %+v, want 1 item and 2 assignments", res.Summary)
	}

	second := res.Results[1].Menus[0].MenuItems[0]
	if second.Action != ActionUpdated {
		t.Errorf("second Burger action = %q, want updated", second.Action)
	}
	if *second.MenuItemID != *res.Results[0].Menus[0].MenuItems[0].MenuItemID {
		t.Error("both Burgers should resolve to the same row")
	}

	burger, _ := s.MenuItem("Burger")
	if burger.PriceInCents != 1000 {
		t.Errorf("price = %d, want the later 1000", burger.PriceInCents)
	}
}

func TestImporter_SameItemTwiceOnOneMenu(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Soup", 400), item("Soup", 400))),
	})

	items := res.Results[0].Menus[0].MenuItems
	if items[1].Action != ActionReused || items[1].AssignmentAction != AssignmentExists {
		t.Errorf("repeat item = %+v, want reused/exists", items[1])
	}
	if res.Summary.Assignments != 1 {
		t.Errorf("Assignments = %d, want 1", res.Summary.Assignments)
	}
}

func TestImporter_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	longName := strings.Repeat("x", catalog.MaxNameLength+1)

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant(longName, menu("lunch", item("Burger", 900))),
		restaurant("Good", menu("lunch", item("Fries", 300))),
	})

	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	bad, good := res.Results[0], res.Results[1]
	if bad.Status != StatusFailed || bad.RestaurantID != nil {
		t.Errorf("bad result = %+v", bad)
	}
	if len(bad.Errors) != 1 || bad.Errors[0] != catalog.MsgNameTooLong {
		t.Errorf("bad errors = %v", bad.Errors)
	}
	if good.Status != StatusSuccess {
		t.Errorf("good result = %+v", good)
	}

	if _, ok := s.MenuItem("Burger"); ok {
		t.Error("failed restaurant's items were written")
	}
	if _, ok := s.Restaurant("Good"); !ok {
		t.Error("second restaurant missing")
	}
	if res.Summary != (Summary{Restaurants: 1, Menus: 1, MenuItems: 1, Assignments: 1}) {
		t.Errorf("Summary = %+v", res.Summary)
	}
}

func TestImporter_ItemFailureKeepsSiblings(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Free", 0), item("Paid", 100))),
	})

	items := res.Results[0].Menus[0].MenuItems
	if items[0].Status != StatusFailed || items[0].MenuItemID != nil || items[0].AssignmentID != nil {
		t.Errorf("failed item = %+v", items[0])
	}
	if items[0].Errors[0] != catalog.MsgPriceNotPositive {
		t.Errorf("errors = %v", items[0].Errors)
	}
	if items[1].Status != StatusSuccess {
		t.Errorf("sibling = %+v", items[1])
	}
	if res.Results[0].Status != StatusSuccess {
		t.Error("restaurant should stay successful when one item fails")
	}
	if _, ok := s.MenuItem("Paid"); !ok {
		t.Error("sibling item not committed")
	}
}

func TestImporter_MenuFailure(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", MenuRecord{Name: str(""), MenuItems: []ItemRecord{item("Ghost", 100)}}, menu("ok", item("Real", 100))),
	})

	menus := res.Results[0].Menus
	if menus[0].Status != StatusFailed || len(menus[0].MenuItems) != 0 {
		t.Errorf("failed menu = %+v", menus[0])
	}
	if menus[1].Status != StatusSuccess {
		t.Errorf("sibling menu = %+v", menus[1])
	}
	if _, ok := s.MenuItem("Ghost"); ok {
		t.Error("items of a failed menu were written")
	}
}

// faultyStore wraps a Store and injects failures into its transactions.
type faultyStore struct {
	store.Store
	failRestaurant string
	failMenu       string
	failItem       string
	err            error
	panicItem      string
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(context.Context, store.Tx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, store: f})
	})
}

type faultyTx struct {
	store.Tx
	store *faultyStore
}

func (t *faultyTx) FindOrCreateRestaurant(ctx context.Context, name string) (catalog.Restaurant, bool, error) {
	if name != "" && name == t.store.failRestaurant {
		return catalog.Restaurant{}, false, t.store.err
	}
	return t.Tx.FindOrCreateRestaurant(ctx, name)
}

func (t *faultyTx) FindOrCreateMenu(ctx context.Context, restaurantID int64, name string) (catalog.Menu, bool, error) {
	if name != "" && name == t.store.failMenu {
		return catalog.Menu{}, false, t.store.err
	}
	return t.Tx.FindOrCreateMenu(ctx, restaurantID, name)
}

func (t *faultyTx) CreateMenuItem(ctx context.Context, name string, price *int64) (catalog.MenuItem, error) {
	if name == t.store.panicItem {
		panic("driver exploded")
	}
	if name == t.store.failItem {
		return catalog.MenuItem{}, t.store.err
	}
	return t.Tx.CreateMenuItem(ctx, name, price)
}

func TestImporter_UnexpectedItemErrorFailsOnlyThatItem(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := &faultyStore{Store: mem, failItem: "Cursed", err: errors.New("connection reset by peer")}

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Fine", 100), item("Cursed", 100))),
		restaurant("B", menu("lunch", item("Other", 100))),
	})

	a := res.Results[0]
	if a.Status != StatusSuccess || a.RestaurantID == nil {
		t.Errorf("restaurant A = %+v", a)
	}
	items := a.Menus[0].MenuItems
	if len(items) != 2 || items[0].Status != StatusSuccess {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Status != StatusFailed || len(items[1].Errors) != 1 || !strings.Contains(items[1].Errors[0], "connection reset") {
		t.Errorf("cursed item = %+v", items[1])
	}
	if _, ok := mem.Restaurant("A"); !ok {
		t.Error("restaurant A was not committed")
	}
	if _, ok := mem.MenuItem("Fine"); !ok {
		t.Error("item before the failure was not committed")
	}
	if _, ok := mem.MenuItem("Cursed"); ok {
		t.Error("failed item was written")
	}
	if res.Results[1].Status != StatusSuccess {
		t.Errorf("restaurant B = %+v", res.Results[1])
	}
	if res.Summary != (Summary{Restaurants: 2, Menus: 2, MenuItems: 2, Assignments: 2}) {
		t.Errorf("Summary = %+v", res.Summary)
	}

	var logged bool
	for _, l := range res.Logs {
		if l.Level == LevelError && strings.HasPrefix(l.Message, "Failed to import menu item 'Cursed': connection reset") {
			logged = true
		}
	}
	if !logged {
		t.Errorf("missing failure log in %v", res.Logs)
	}
}

func TestImporter_UnexpectedMenuErrorFailsOnlyThatMenu(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := &faultyStore{Store: mem, failMenu: "brunch", err: errors.New("connection reset by peer")}

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A",
			menu("brunch", item("Eggs", 100)),
			menu("dinner", item("Steak", 2500)),
		),
	})

	a := res.Results[0]
	if a.Status != StatusSuccess || len(a.Menus) != 2 {
		t.Fatalf("restaurant A = %+v", a)
	}
	if a.Menus[0].Status != StatusFailed || a.Menus[0].MenuID != nil || !strings.Contains(a.Menus[0].Errors[0], "connection reset") {
		t.Errorf("brunch = %+v", a.Menus[0])
	}
	if a.Menus[1].Status != StatusSuccess {
		t.Errorf("dinner = %+v", a.Menus[1])
	}
	if _, ok := mem.MenuItem("Steak"); !ok {
		t.Error("sibling menu was not committed")
	}
	if _, ok := mem.MenuItem("Eggs"); ok {
		t.Error("items of the failed menu were written")
	}

	var logged bool
	for _, l := range res.Logs {
		if l.Level == LevelError && strings.HasPrefix(l.Message, "Failed to import menu 'brunch'") {
			logged = true
		}
	}
	if !logged {
		t.Errorf("missing failure log in %v", res.Logs)
	}
}

func TestImporter_RestaurantErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := &faultyStore{Store: mem, failRestaurant: "A", err: errors.New("connection reset by peer")}

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Fine", 100))),
		restaurant("B", menu("lunch", item("Other", 100))),
	})

	a := res.Results[0]
	if a.Status != StatusFailed || a.RestaurantID != nil || len(a.Menus) != 0 || !strings.Contains(a.Errors[0], "connection reset") {
		t.Errorf("restaurant A = %+v", a)
	}
	if _, ok := mem.MenuItem("Fine"); ok {
		t.Error("restaurant A wrote items")
	}
	if res.Summary != (Summary{Restaurants: 1, Menus: 1, MenuItems: 1, Assignments: 1}) {
		t.Errorf("Summary = %+v", res.Summary)
	}
}

func TestImporter_PanicIsContained(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := &faultyStore{Store: mem, panicItem: "Boom"}

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Boom", 100))),
		restaurant("B", menu("lunch", item("Calm", 100))),
	})

	if len(res.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(res.Results))
	}
	if res.Results[0].Status != StatusFailed || !strings.Contains(res.Results[0].Errors[0], "driver exploded") {
		t.Errorf("panicking restaurant = %+v", res.Results[0])
	}
	if _, ok := mem.MenuItem("Calm"); !ok {
		t.Error("restaurant after the panic was not imported")
	}
}

func TestImporter_RaceLoserIsEntityFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	s := &faultyStore{
		Store:    mem,
		failItem: "Contested",
		err:      store.NewRecordError("menu item", catalog.MsgNameTaken),
	}

	res := NewImporter(s).Import(ctx, []RestaurantRecord{
		restaurant("A", menu("lunch", item("Contested", 100), item("Other", 100))),
	})

	items := res.Results[0].Menus[0].MenuItems
	if items[0].Status != StatusFailed || items[0].Errors[0] != catalog.MsgNameTaken {
		t.Errorf("contested item = %+v", items[0])
	}
	if res.Results[0].Status != StatusSuccess || items[1].Status != StatusSuccess {
		t.Error("a uniqueness rejection must not fail the restaurant")
	}
}

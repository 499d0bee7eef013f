package ingest

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	v, err := FormatJSON.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
	return v
}

func TestCanonicalize_NothingToImport(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"array document", `[1, 2]`},
		{"string document", `"restaurants"`},
		{"missing restaurants", `{"places": []}`},
		{"restaurants not an array", `{"restaurants": {"name": "x"}}`},
		{"restaurants null", `{"restaurants": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, errs := Canonicalize(decodeJSON(t, tt.doc))
			if records == nil || len(records) != 0 {
				t.Errorf("records = %#v, want empty non-nil slice", records)
			}
			if len(errs) != 0 {
				t.Errorf("errors = %v, want none", errs)
			}
		})
	}
}

func TestCanonicalize_Tree(t *testing.T) {
	doc := `{"restaurants": [
		{"name": "Poppo's Cafe", "menus": [
			{"name": "lunch", "menu_items": [
				{"name": "Burger", "price": 9.00},
				{"name": "Small \"Salad\"", "price": "5.50"}
			]},
			{"name": "dinner", "dishes": [{"name": "Steak", "price": 22}]}
		]},
		{"name": "Casa", "menus": null},
		{"name": "NoMenus"}
	]}`

	records, errs := Canonicalize(decodeJSON(t, doc))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	first := records[0]
	if *first.Name != "Poppo's Cafe" {
		t.Errorf("name = %q", *first.Name)
	}
	if len(first.Menus) != 2 {
		t.Fatalf("got %d menus, want 2", len(first.Menus))
	}
	lunch := first.Menus[0].MenuItems
	if *lunch[1].Name != `Small "Salad"` {
		t.Errorf("quoted name mangled: %q", *lunch[1].Name)
	}
	if *lunch[0].PriceInCents != 900 || *lunch[1].PriceInCents != 550 {
		t.Errorf("prices = %d, %d, want 900, 550", *lunch[0].PriceInCents, *lunch[1].PriceInCents)
	}
	dinner := first.Menus[1]
	if len(dinner.MenuItems) != 1 || *dinner.MenuItems[0].Name != "Steak" || *dinner.MenuItems[0].PriceInCents != 2200 {
		t.Errorf("dishes alias not adapted: %#v", dinner.MenuItems)
	}

	for _, r := range records[1:] {
		if r.Menus == nil || len(r.Menus) != 0 {
			t.Errorf("%s: menus = %#v, want empty non-nil", *r.Name, r.Menus)
		}
	}
}

func TestCanonicalize_DishesAliasMatchesMenuItems(t *testing.T) {
	withItems, _ := Canonicalize(decodeJSON(t,
		`{"restaurants":[{"name":"A","menus":[{"name":"m","menu_items":[{"name":"x","price":1.5}]}]}]}`))
	withDishes, _ := Canonicalize(decodeJSON(t,
		`{"restaurants":[{"name":"A","menus":[{"name":"m","dishes":[{"name":"x","price":1.5}]}]}]}`))

	if !reflect.DeepEqual(withItems, withDishes) {
		t.Errorf("dishes = %#v, menu_items = %#v", withDishes, withItems)
	}
}

func TestCanonicalize_MenuItemsPreferredOverDishes(t *testing.T) {
	records, _ := Canonicalize(decodeJSON(t, `{"restaurants":[{"name":"A","menus":[
		{"name":"m","menu_items":[{"name":"kept","price":1}],"dishes":[{"name":"ignored","price":1}]}]}]}`))

	items := records[0].Menus[0].MenuItems
	if len(items) != 1 || *items[0].Name != "kept" {
		t.Errorf("items = %#v, want only menu_items", items)
	}
}

func TestCanonicalize_FalseMenuItemsFallsBackToDishes(t *testing.T) {
	records, _ := Canonicalize(decodeJSON(t, `{"restaurants":[{"name":"A","menus":[
		{"name":"m","menu_items":false,"dishes":[{"name":"Soup","price":4}]}]}]}`))

	items := records[0].Menus[0].MenuItems
	if len(items) != 1 || *items[0].Name != "Soup" {
		t.Errorf("items = %#v, want the dishes list", items)
	}
}

func TestCanonicalize_StructuralErrors(t *testing.T) {
	doc := `{"restaurants": [
		"not a restaurant",
		{"name": "A", "menus": [
			42,
			{"name": "m", "menu_items": [null, {"name": "ok", "price": 1}, ["x"]]}
		]},
		{"name": {"first": "B"}, "menus": []}
	]}`

	records, errs := Canonicalize(decodeJSON(t, doc))

	want := []AdapterError{
		{Path: "restaurants[0]", Message: "must be an object"},
		{Path: "restaurants[1].menus[0]", Message: "must be an object"},
		{Path: "restaurants[1].menus[1].items[0]", Message: "must be an object"},
		{Path: "restaurants[1].menus[1].items[2]", Message: "must be an object"},
		{Path: "restaurants[2]", Message: "name must be a string"},
	}
	if !reflect.DeepEqual(errs, want) {
		t.Errorf("errors =\n%v\nwant\n%v", errs, want)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if len(records[0].Menus) != 1 || len(records[0].Menus[0].MenuItems) != 1 {
		t.Errorf("siblings of bad entries should survive: %#v", records[0])
	}
	if records[1].Name != nil {
		t.Errorf("object name should become nil, got %q", *records[1].Name)
	}
}

func TestCanonicalize_NonStringNames(t *testing.T) {
	records, errs := Canonicalize(decodeJSON(t, `{"restaurants":[{"name":7,"menus":[]},{"name":true,"menus":[]}]}`))

	if *records[0].Name != "7" {
		t.Errorf("numeric name = %q, want 7", *records[0].Name)
	}
	if records[1].Name != nil {
		t.Errorf("boolean name = %q, want nil", *records[1].Name)
	}
	if len(errs) != 1 || errs[0].Path != "restaurants[1]" {
		t.Errorf("errors = %v", errs)
	}
}

func TestCanonicalize_YAMLDocument(t *testing.T) {
	doc := `
restaurants:
  - name: Diner
    menus:
      - name: breakfast
        dishes:
          - name: Pancakes
            price: 7
          - name: Coffee
            price: "2.25"
`
	raw, err := FormatYAML.Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	records, errs := Canonicalize(raw)
	if len(errs) != 0 {
		t.Fatalf("errors = %v", errs)
	}
	items := records[0].Menus[0].MenuItems
	if *items[0].PriceInCents != 700 || *items[1].PriceInCents != 225 {
		t.Errorf("prices = %d, %d, want 700, 225", *items[0].PriceInCents, *items[1].PriceInCents)
	}
}

func TestPriceToCents(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"float", 9.00, 900},
		{"float with cents", 12.99, 1299},
		{"truncates not rounds", 0.29, 28},
		{"negative truncates toward zero", -1.999, -199},
		{"int", 5, 500},
		{"int64", int64(3), 300},
		{"uint64", uint64(2), 200},
		{"json number", json.Number("4.5"), 450},
		{"numeric string", "10.50", 1050},
		{"string with padding", "  3.25 ", 325},
		{"leading numeric prefix", "12.5abc", 1250},
		{"exponent string", "1e1", 1000},
		{"leading dot", ".5", 50},
		{"non-numeric string", "free", 0},
		{"currency symbol", "$5.00", 0},
		{"blank string", "   ", 0},
		{"zero", 0, 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"object", map[string]any{"amount": 5}, 0},
		{"array", []any{5}, 0},
		{"infinity", math.Inf(1), 0},
		{"nan", math.NaN(), 0},
		{"overflow", 1e30, 0},
		{"overflowing string", "1e400", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceToCents(tt.in); got != tt.want {
				t.Errorf("PriceToCents(%#v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

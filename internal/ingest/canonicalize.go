package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Canonicalize normalizes a decoded document into canonical restaurant
// records. It never fails: shape problems are skipped and reported as
// AdapterErrors at their path, and a document without a "restaurants"
// array yields no records.
//
// raw is the output of encoding/json (map[string]any, []any, float64 or
// json.Number, string, bool, nil) or of yaml.v3, whose mappings may also
// arrive as map[any]any and whose numbers arrive as int or float64.
func Canonicalize(raw any) ([]RestaurantRecord, []AdapterError) {
	c := &canonicalizer{}
	records := []RestaurantRecord{}

	doc, ok := asObject(raw)
	if !ok {
		return records, c.errors
	}
	list, ok := doc["restaurants"].([]any)
	if !ok {
		return records, c.errors
	}

	for i, v := range list {
		path := fmt.Sprintf("restaurants[%d]", i)
		obj, ok := asObject(v)
		if !ok {
			c.add(path, "must be an object")
			continue
		}
		records = append(records, RestaurantRecord{
			Name:  c.name(obj["name"], path),
			Menus: c.menus(obj["menus"], path),
		})
	}
	return records, c.errors
}

type canonicalizer struct {
	errors []AdapterError
}

func (c *canonicalizer) add(path, message string) {
	c.errors = append(c.errors, AdapterError{Path: path, Message: message})
}

func (c *canonicalizer) menus(v any, parent string) []MenuRecord {
	menus := []MenuRecord{}
	list, ok := v.([]any)
	if !ok {
		return menus
	}

	for i, m := range list {
		path := fmt.Sprintf("%s.menus[%d]", parent, i)
		obj, ok := asObject(m)
		if !ok {
			c.add(path, "must be an object")
			continue
		}

		// A null or false menu_items falls back to dishes.
		items := obj["menu_items"]
		if items == nil || items == false {
			items = obj["dishes"]
		}
		menus = append(menus, MenuRecord{
			Name:      c.name(obj["name"], path),
			MenuItems: c.items(items, path),
		})
	}
	return menus
}

func (c *canonicalizer) items(v any, parent string) []ItemRecord {
	items := []ItemRecord{}
	list, ok := v.([]any)
	if !ok {
		return items
	}

	for i, it := range list {
		// Adapter paths say items[k] whichever key held the list; the
		// validator reports menu_items[k].
		path := fmt.Sprintf("%s.items[%d]", parent, i)
		obj, ok := asObject(it)
		if !ok {
			c.add(path, "must be an object")
			continue
		}
		cents := PriceToCents(obj["price"])
		items = append(items, ItemRecord{
			Name:         c.name(obj["name"], path),
			PriceInCents: &cents,
		})
	}
	return items
}

// name passes strings through untouched and renders other scalars as
// text. Objects, arrays and booleans have no sensible name and become nil.
func (c *canonicalizer) name(v any, path string) *string {
	var s string
	switch n := v.(type) {
	case nil:
		return nil
	case string:
		s = n
	case json.Number:
		s = n.String()
	case float64:
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	case uint64:
		s = strconv.FormatUint(n, 10)
	default:
		c.add(path, "name must be a string")
		return nil
	}
	return &s
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// numericPrefix matches the leading decimal number of a string, the part a
// lenient string-to-float conversion would read.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d+)?|\.\d+)([eE][+-]?\d+)?`)

// PriceToCents converts a price to integer cents by multiplying by 100 and
// truncating toward zero. Numbers and numeric strings are accepted; a
// string contributes its leading numeric prefix ("12.5abc" is 12.5).
// Anything else, including blank strings, yields 0, as do results that do
// not fit in an int64.
func PriceToCents(v any) int64 {
	var f float64
	switch p := v.(type) {
	case float64:
		f = p
	case float32:
		f = float64(p)
	case int:
		f = float64(p)
	case int8:
		f = float64(p)
	case int16:
		f = float64(p)
	case int32:
		f = float64(p)
	case int64:
		f = float64(p)
	case uint:
		f = float64(p)
	case uint8:
		f = float64(p)
	case uint16:
		f = float64(p)
	case uint32:
		f = float64(p)
	case uint64:
		f = float64(p)
	case json.Number:
		f = parseLeadingFloat(p.String())
	case string:
		f = parseLeadingFloat(p)
	default:
		return 0
	}
	return centsFromFloat(f)
}

func parseLeadingFloat(s string) float64 {
	m := numericPrefix.FindString(strings.TrimLeft(s, " \t\n\r\f\v"))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// Only range errors reach here; the regexp guarantees syntax.
		return 0
	}
	return f
}

func centsFromFloat(f float64) int64 {
	c := f * 100
	if math.IsNaN(c) || c >= math.MaxInt64 || c <= math.MinInt64 {
		return 0
	}
	return int64(c)
}

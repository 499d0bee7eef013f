// Package catalog defines the persisted menu entities and the record-level
// validation every store applies before writing them.
package catalog

import (
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest name any entity accepts.
const MaxNameLength = 255

// Record validation messages. They are surfaced verbatim in import results.
const (
	MsgNameBlank         = "Name can't be blank"
	MsgNameTooLong       = "Name is too long (maximum is 255 characters)"
	MsgNameTaken         = "Name has already been taken"
	MsgPriceBlank        = "Price in cents can't be blank"
	MsgPriceNotPositive  = "Price in cents must be greater than 0"
	MsgItemAlreadyOnMenu = "Menu item has already been taken"
)

// Restaurant owns menus.
type Restaurant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Menu belongs to exactly one restaurant. Names are not unique.
type Menu struct {
	ID           int64  `json:"id"`
	RestaurantID int64  `json:"restaurant_id"`
	Name         string `json:"name"`
}

// MenuItem is shared globally across restaurants and keyed by name.
type MenuItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PriceInCents int64  `json:"price_in_cents"`
}

// MenuAssignment links a menu item to a menu. The pair is unique.
type MenuAssignment struct {
	ID         int64 `json:"id"`
	MenuID     int64 `json:"menu_id"`
	MenuItemID int64 `json:"menu_item_id"`
}

// Stats counts rows per entity.
type Stats struct {
	Restaurants int64 `json:"restaurants"`
	Menus       int64 `json:"menus"`
	MenuItems   int64 `json:"menu_items"`
	Assignments int64 `json:"menu_assignments"`
}

// ValidateName returns the messages for a name that cannot be stored.
func ValidateName(name string) []string {
	var msgs []string
	if strings.TrimSpace(name) == "" {
		msgs = append(msgs, MsgNameBlank)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		msgs = append(msgs, MsgNameTooLong)
	}
	return msgs
}

// ValidatePrice returns the messages for a price that cannot be stored.
func ValidatePrice(priceInCents *int64) []string {
	if priceInCents == nil {
		return []string{MsgPriceBlank}
	}
	if *priceInCents <= 0 {
		return []string{MsgPriceNotPositive}
	}
	return nil
}

// ValidateMenuItem combines name and price checks.
func ValidateMenuItem(name string, priceInCents *int64) []string {
	return append(ValidateName(name), ValidatePrice(priceInCents)...)
}

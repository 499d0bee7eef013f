package catalog

import (
	"reflect"
	"strings"
	"testing"
)

func price(v int64) *int64 { return &v }

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "Burger Barn", nil},
		{"empty", "", []string{MsgNameBlank}},
		{"whitespace", "   ", []string{MsgNameBlank}},
		{"at limit", strings.Repeat("a", MaxNameLength), nil},
		{"over limit", strings.Repeat("a", MaxNameLength+1), []string{MsgNameTooLong}},
		{"multibyte at limit", strings.Repeat("é", MaxNameLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateName(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateMenuItem(t *testing.T) {
	tests := []struct {
		name  string
		item  string
		price *int64
		want  []string
	}{
		{"valid", "Fries", price(399), nil},
		{"nil price", "Fries", nil, []string{MsgPriceBlank}},
		{"zero price", "Fries", price(0), []string{MsgPriceNotPositive}},
		{"negative price", "Fries", price(-5), []string{MsgPriceNotPositive}},
		{"blank name and price", "", price(0), []string{MsgNameBlank, MsgPriceNotPositive}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateMenuItem(tt.item, tt.price); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateMenuItem() = %v, want %v", got, tt.want)
			}
		})
	}
}

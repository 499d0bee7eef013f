package ingest

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"busy limiter", ErrTooManyImports, "IMP002"},
		{"wrapped busy limiter", fmt.Errorf("import: %w", ErrTooManyImports), "IMP002"},
		{"body too large", errors.New("http: request body too large"), "REQ001"},
		{"bad id", errors.New("invalid import id: \"abc\""), "REQ002"},
		{"duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"sqlite unique", errors.New("UNIQUE constraint failed: menu_items.name"), "DB001"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB003"},
		{"sqlite locked", errors.New("database is locked"), "DB005"},
		{"deadline before timeout", errors.New("context deadline exceeded (timeout)"), "REQ005"},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), "DB006"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyImports)
	want := "System is busy processing other imports (Code: IMP002). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(errors.New("connection refused")) {
		t.Error("connection refused should be user facing")
	}
	if IsUserFacing(errors.New("mystery")) {
		t.Error("unmatched error should not be user facing")
	}
}

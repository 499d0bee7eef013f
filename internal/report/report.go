// Package report renders import reports and history as terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/JonMunkholm/menuimport/internal/ingest"
	"github.com/JonMunkholm/menuimport/internal/store"
)

// RenderTable lays out rows as a pipe table padded to display width, so
// names with wide or combining characters stay aligned.
func RenderTable(header []string, rows [][]string) string {
	colWidths := make([]int, len(header))
	measure := func(row []string) {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if w := runewidth.StringWidth(row[i]); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for j, width := range colWidths {
			content := ""
			if j < len(row) {
				content = row[j]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, width))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(header)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// WriteImportReport prints the outcome of one import: a header line, the
// per-item table on success, or the findings on failure.
func WriteImportReport(w io.Writer, r *ingest.Report) error {
	status := "FAILED"
	if r.Success {
		status = "OK"
	}
	if _, err := fmt.Fprintf(w, "Import %s: %s\n%s\n\n", r.ImportID, status, r.Message); err != nil {
		return err
	}

	if r.Success {
		s := r.Summary
		if _, err := fmt.Fprintf(w, "Created %d restaurant(s), %d menu(s), %d menu item(s), %d assignment(s)\n\n",
			s.Restaurants, s.Menus, s.MenuItems, s.Assignments); err != nil {
			return err
		}
		_, err := io.WriteString(w, RenderTable(
			[]string{"Restaurant", "Menu", "Item", "Price", "Status", "Action", "Errors"},
			resultRows(r.Results),
		))
		return err
	}

	var rows [][]string
	for _, e := range r.AdapterErrors {
		rows = append(rows, []string{"adapter", e.Path, e.Message})
	}
	for _, e := range r.ValidationErrors {
		rows = append(rows, []string{string(e.Severity), e.Path, e.Message})
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := io.WriteString(w, RenderTable([]string{"Kind", "Path", "Message"}, rows))
	return err
}

func resultRows(results []ingest.RestaurantResult) [][]string {
	var rows [][]string
	for _, rr := range results {
		if rr.Status == ingest.StatusFailed || len(rr.Menus) == 0 {
			rows = append(rows, []string{deref(rr.RestaurantName), "", "", "", string(rr.Status), "", strings.Join(rr.Errors, "; ")})
			continue
		}
		for _, mr := range rr.Menus {
			if mr.Status == ingest.StatusFailed || len(mr.MenuItems) == 0 {
				rows = append(rows, []string{deref(rr.RestaurantName), deref(mr.MenuName), "", "", string(mr.Status), "", strings.Join(mr.Errors, "; ")})
				continue
			}
			for _, ir := range mr.MenuItems {
				rows = append(rows, []string{
					deref(rr.RestaurantName),
					deref(mr.MenuName),
					deref(ir.ItemName),
					formatCents(ir.PriceInCents),
					string(ir.Status),
					string(ir.Action),
					strings.Join(ir.Errors, "; "),
				})
			}
		}
	}
	return rows
}

// WriteHistory prints recorded import runs, newest first.
func WriteHistory(w io.Writer, runs []store.ImportRun) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, "No imports recorded.\n")
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := "failed"
		if run.Success {
			status = "success"
		}
		rows = append(rows, []string{
			run.ID.String(),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			run.Source,
			strconv.Itoa(run.Restaurants),
			strconv.Itoa(run.MenuItems),
			strconv.Itoa(run.ErrorCount),
			run.Duration().Round(time.Millisecond).String(),
		})
	}
	_, err := io.WriteString(w, RenderTable(
		[]string{"ID", "Started", "Status", "Source", "Restaurants", "Items", "Errors", "Duration"},
		rows,
	))
	return err
}

func deref(s *string) string {
	if s == nil {
		return "(none)"
	}
	return *s
}

func formatCents(c *int64) string {
	if c == nil {
		return ""
	}
	v := *c
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

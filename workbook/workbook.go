// Package workbook turns .xlsx sheets into ordered flat records, the
// input contract of the analysis engine: one record per data row,
// field names taken from the sheet's header row.
package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Record is one flat row: field name to raw cell text. Values stay
// untyped here; the normalizer decides what they mean.
type Record map[string]string

// Workbook wraps one open .xlsx file.
type Workbook struct {
	f *excelize.File
}

// Open opens a workbook from disk.
func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// OpenReader opens a workbook from a stream.
func OpenReader(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Close releases the underlying file.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// SheetNames lists sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// HasSheet reports whether the named sheet exists (exact match).
func (w *Workbook) HasSheet(name string) bool {
	for _, s := range w.SheetNames() {
		if s == name {
			return true
		}
	}
	return false
}

// FindSheet returns the first sheet whose name contains the given
// substring, case-insensitive. Empty string when none matches.
func (w *Workbook) FindSheet(substr string) string {
	substr = strings.ToLower(substr)
	for _, s := range w.SheetNames() {
		if strings.Contains(strings.ToLower(s), substr) {
			return s
		}
	}
	return ""
}

// Records reads one sheet into ordered flat records. The first
// non-empty row is the header; every following row becomes one record
// in sheet order. Cells beyond the header width are dropped, short rows
// simply omit the trailing fields, and fully empty rows are skipped.
func (w *Workbook) Records(sheet string) ([]Record, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	var header []string
	var out []Record
	for _, row := range rows {
		if emptyRow(row) {
			continue
		}
		if header == nil {
			header = make([]string, len(row))
			for i, h := range row {
				header[i] = strings.TrimSpace(h)
			}
			continue
		}

		rec := Record{}
		for i, cell := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			rec[header[i]] = cell
		}
		out = append(out, rec)
	}
	return out, nil
}

// Header returns the header row of a sheet without reading the data
// rows into records.
func (w *Workbook) Header(sheet string) ([]string, error) {
	rows, err := w.f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		if emptyRow(row) {
			continue
		}
		header := make([]string, len(row))
		for i, h := range row {
			header[i] = strings.TrimSpace(h)
		}
		return header, nil
	}
	return nil, nil
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

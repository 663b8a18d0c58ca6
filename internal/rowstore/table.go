// Package rowstore reads and writes named tables of a remote spreadsheet as
// ordered string rows under a header. Row numbers handed to writers are the
// spreadsheet's own: 1-based, with the header on row 1.
package rowstore

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrTableNotFound is returned when the spreadsheet or one of its sheets is missing.
var ErrTableNotFound = errors.New("rowstore: table not found")

const (
	// HeaderRow is the physical row holding column names.
	HeaderRow = 1
	// FirstDataRow is the physical row of data index 0.
	FirstDataRow = 2
)

// Table is a full snapshot of one sheet.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// PhysicalRow converts a 0-based data index into the sheet row number.
func PhysicalRow(dataIndex int) int {
	return dataIndex + FirstDataRow
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Cell returns the trimmed value at (row, col); short rows read as empty.
func (t *Table) Cell(row, col int) string {
	if t == nil || row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// Column resolves a 0-based column index by header name. Any of names may
// match, ignoring case, accents and surrounding space. When the header has no
// such column the positional fallback is returned.
func (t *Table) Column(fallback int, names ...string) int {
	if t != nil {
		for i, h := range t.Header {
			key := NormalizeHeader(h)
			for _, name := range names {
				if key == NormalizeHeader(name) {
					return i
				}
			}
		}
	}
	return fallback
}

// HasColumn reports whether the header names any of names.
func (t *Table) HasColumn(names ...string) bool {
	return t.Column(-1, names...) >= 0
}

// Width is the number of columns a full row must carry.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	width := len(t.Header)
	for _, r := range t.Rows {
		if len(r) > width {
			width = len(r)
		}
	}
	return width
}

// Clone returns a deep copy so cached snapshots are never mutated by callers.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:   t.Name,
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]string(nil), r...)
	}
	return out
}

// NormalizeHeader lowercases s and strips accents and outer space.
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

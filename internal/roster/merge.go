package roster

import (
	"strings"

	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

// MergeResult is the full table to write back after merging edits.
type MergeResult struct {
	Header  []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Updated int        `json:"updated"`
	Added   int        `json:"added"`
	// NotesKept lists patients whose notes edit did not extend the stored
	// notes and was therefore ignored.
	NotesKept []string `json:"notes_kept,omitempty"`
	// NotActive lists edits naming a stored patient that is inactive. They
	// are neither applied nor appended.
	NotActive []string `json:"not_active,omitempty"`
}

// MergeActiveEdits folds edits of the active patients into the full table.
// Edits are matched by name, ignoring case and surrounding space. Phone, insurer and notes come from the edit;
// the active flag always stays as stored. Notes only grow: an edit that
// does not start with the stored notes is ignored. Rows not named by any
// edit pass through untouched, so leaving a patient out of edited never
// removes it. Edits naming an inactive patient are skipped. Names the
// table does not know are appended as active patients.
func MergeActiveEdits(full *rowstore.Table, edited []Patient, codec rowstore.Codec) MergeResult {
	header := full.Header
	if len(header) == 0 {
		header = DefaultHeader
	}
	cols := ResolveColumns(full)
	width := full.Width()
	if width < cols.Width() {
		width = cols.Width()
	}
	if width < len(header) {
		width = len(header)
	}

	byName := make(map[string]Patient, len(edited))
	var order []string
	for _, p := range edited {
		p.FullName = strings.TrimSpace(p.FullName)
		if p.FullName == "" {
			continue
		}
		k := foldName(p.FullName)
		if _, seen := byName[k]; !seen {
			order = append(order, k)
		}
		byName[k] = p
	}

	res := MergeResult{Header: append([]string(nil), header...)}
	applied := make(map[string]bool, len(byName))
	inactive := make(map[string]bool)
	for i := 0; i < full.Len(); i++ {
		row := make([]string, width)
		copy(row, full.Rows[i])
		name := full.Cell(i, cols.Name)
		k := foldName(name)
		edit, ok := byName[k]
		if !ok || name == "" || applied[k] {
			res.Rows = append(res.Rows, row)
			continue
		}
		if !codec.ParseBool(full.Cell(i, cols.Active)) {
			inactive[k] = true
			res.Rows = append(res.Rows, row)
			continue
		}
		applied[k] = true

		stored := full.Cell(i, cols.Notes)
		notes := strings.TrimSpace(edit.Notes)
		if !strings.HasPrefix(notes, stored) {
			res.NotesKept = append(res.NotesKept, name)
			notes = stored
		}
		next := []string{name, edit.Phone, edit.Insurer, notes}
		prev := []string{name, full.Cell(i, cols.Phone), full.Cell(i, cols.Insurer), stored}
		row[cols.Phone] = edit.Phone
		row[cols.Insurer] = edit.Insurer
		row[cols.Notes] = notes
		if !equal(next, prev) {
			res.Updated++
		}
		res.Rows = append(res.Rows, row)
	}

	for _, k := range order {
		if applied[k] {
			continue
		}
		p := byName[k]
		if inactive[k] {
			res.NotActive = append(res.NotActive, p.FullName)
			continue
		}
		p.Active = true
		res.Rows = append(res.Rows, cols.Encode(p, codec, width))
		res.Added++
	}
	return res
}

// foldName is the name key used by Has and MergeActiveEdits.
func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

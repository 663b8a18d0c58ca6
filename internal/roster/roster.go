// Package roster manages the patient table: who exists, who is active, and
// how edits to the active subset are folded back into the full list.
package roster

import (
	"errors"
	"sort"
	"strings"

	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

var (
	ErrPatientNotFound  = errors.New("roster: patient not found")
	ErrDuplicatePatient = errors.New("roster: patient already exists")
	ErrNameRequired     = errors.New("roster: full name is required")
	ErrEmptyNote        = errors.New("roster: note text is required")
)

// DefaultHeader is written when the patient sheet is empty.
var DefaultHeader = []string{"Nombre Completo", "Teléfono", "Obra Social", "Descripción del Problema", "Activo"}

// Patient is one row of the patient table.
type Patient struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Insurer  string `json:"insurer"`
	Notes    string `json:"notes"`
	Active   bool   `json:"active"`
}

// Columns are the 0-based positions of the patient fields.
type Columns struct {
	Name    int
	Phone   int
	Insurer int
	Notes   int
	Active  int
}

// ResolveColumns finds each field by header. A missing column, Active
// included, falls back to its position in DefaultHeader.
func ResolveColumns(t *rowstore.Table) Columns {
	return Columns{
		Name:    t.Column(0, "Nombre Completo", "Full Name", "Nombre", "Name"),
		Phone:   t.Column(1, "Teléfono", "Phone"),
		Insurer: t.Column(2, "Obra Social", "Insurer"),
		Notes:   t.Column(3, "Descripción del Problema", "Problem Description", "Notas", "Notes"),
		Active:  t.Column(4, "Activo", "Active"),
	}
}

func (c Columns) Width() int {
	width := 0
	for _, col := range []int{c.Name, c.Phone, c.Insurer, c.Notes, c.Active} {
		if col+1 > width {
			width = col + 1
		}
	}
	return width
}

// Encode renders p as a row of at least width cells.
func (c Columns) Encode(p Patient, codec rowstore.Codec, width int) []string {
	if w := c.Width(); width < w {
		width = w
	}
	row := make([]string, width)
	c.apply(row, p, codec)
	return row
}

func (c Columns) apply(row []string, p Patient, codec rowstore.Codec) {
	row[c.Name] = p.FullName
	row[c.Phone] = p.Phone
	row[c.Insurer] = p.Insurer
	row[c.Notes] = p.Notes
	row[c.Active] = codec.FormatBool(p.Active)
}

// Roster is a parsed patient table.
type Roster struct {
	Columns  Columns
	Width    int
	Patients []Patient

	rows  []int
	index map[string]int
}

// Parse reads every named row of t. Rows without a name are skipped; when a
// name repeats, the first row is the one Find returns.
func Parse(t *rowstore.Table, codec rowstore.Codec) *Roster {
	cols := ResolveColumns(t)
	r := &Roster{
		Columns: cols,
		Width:   t.Width(),
		index:   make(map[string]int),
	}
	if r.Width < cols.Width() {
		r.Width = cols.Width()
	}
	for i := 0; i < t.Len(); i++ {
		name := t.Cell(i, cols.Name)
		if name == "" {
			continue
		}
		p := Patient{
			FullName: name,
			Phone:    t.Cell(i, cols.Phone),
			Insurer:  t.Cell(i, cols.Insurer),
			Notes:    t.Cell(i, cols.Notes),
			Active:   codec.ParseBool(t.Cell(i, cols.Active)),
		}
		if _, dup := r.index[name]; !dup {
			r.index[name] = len(r.Patients)
		}
		r.Patients = append(r.Patients, p)
		r.rows = append(r.rows, rowstore.PhysicalRow(i))
	}
	return r
}

// Find looks a patient up by exact name and returns its physical row.
func (r *Roster) Find(name string) (Patient, int, bool) {
	i, ok := r.index[strings.TrimSpace(name)]
	if !ok {
		return Patient{}, 0, false
	}
	return r.Patients[i], r.rows[i], true
}

// Has reports whether any patient's name matches, ignoring case.
func (r *Roster) Has(name string) bool {
	name = foldName(name)
	for _, p := range r.Patients {
		if foldName(p.FullName) == name {
			return true
		}
	}
	return false
}

func (r *Roster) IsActive(name string) bool {
	p, _, ok := r.Find(name)
	return ok && p.Active
}

// Active returns the active patients sorted by name.
func (r *Roster) Active() []Patient {
	out := make([]Patient, 0, len(r.Patients))
	for _, p := range r.Patients {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func (r *Roster) ActiveNames() []string {
	active := r.Active()
	names := make([]string, len(active))
	for i, p := range active {
		names[i] = p.FullName
	}
	return names
}

// All returns every patient sorted by name.
func (r *Roster) All() []Patient {
	out := append([]Patient(nil), r.Patients...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

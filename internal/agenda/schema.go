// Package agenda holds the typed appointment schema and the slot grid built
// from it. Cells leave the row store as strings and are parsed here once, so
// nothing downstream compares dates or times as text.
package agenda

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

// VacantLabel is the display value offered for an empty slot.
const VacantLabel = "Vacante"

// DefaultHeader is the appointment sheet layout new sheets start with.
var DefaultHeader = []string{"Fecha", "Hora", "Camilla", "Paciente", "Pagado"}

// SlotKey is the natural key of an appointment row.
type SlotKey struct {
	Date civil.Date
	Time civil.Time
	Bed  int
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s %s #%d", rowstore.FormatDate(k.Date), rowstore.FormatTime(k.Time), k.Bed)
}

// Before orders keys by date, then time, then bed.
func (k SlotKey) Before(o SlotKey) bool {
	if k.Date != o.Date {
		return k.Date.Before(o.Date)
	}
	if k.Time != o.Time {
		return k.Time.Before(o.Time)
	}
	return k.Bed < o.Bed
}

// Cell is what a slot holds. An empty Patient means the slot is vacant.
type Cell struct {
	Patient string `json:"patient"`
	Paid    bool   `json:"paid"`
}

// Vacant reports whether no patient occupies the slot.
func (c Cell) Vacant() bool {
	return c.Patient == ""
}

// Normalize maps the vacant label to the empty patient and clears the paid
// flag on vacant cells.
func (c Cell) Normalize() Cell {
	c.Patient = NormalizePatient(c.Patient)
	if c.Vacant() {
		c.Paid = false
	}
	return c
}

// NormalizePatient trims name and folds the vacant label to "".
func NormalizePatient(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, VacantLabel) {
		return ""
	}
	return name
}

// Columns are the 0-based positions of the appointment fields.
type Columns struct {
	Date    int
	Time    int
	Bed     int
	Patient int
	Paid    int
}

// ResolveColumns finds each field by its Spanish or English header name and
// falls back to the canonical order Fecha, Hora, Camilla, Paciente, Pagado.
func ResolveColumns(t *rowstore.Table) Columns {
	return Columns{
		Date:    t.Column(0, "Fecha", "Date"),
		Time:    t.Column(1, "Hora", "Time"),
		Bed:     t.Column(2, "Camilla", "Bed"),
		Patient: t.Column(3, "Paciente", "Patient"),
		Paid:    t.Column(4, "Pagado", "Paid"),
	}
}

// Width is the minimum row length that holds every field.
func (c Columns) Width() int {
	width := 0
	for _, col := range []int{c.Date, c.Time, c.Bed, c.Patient, c.Paid} {
		if col+1 > width {
			width = col + 1
		}
	}
	return width
}

// Encode renders one appointment as a row of at least width cells.
func (c Columns) Encode(key SlotKey, cell Cell, codec rowstore.Codec, width int) []string {
	if w := c.Width(); width < w {
		width = w
	}
	row := make([]string, width)
	row[c.Date] = rowstore.FormatDate(key.Date)
	row[c.Time] = rowstore.FormatTime(key.Time)
	row[c.Bed] = strconv.Itoa(key.Bed)
	row[c.Patient] = cell.Patient
	row[c.Paid] = codec.FormatBool(cell.Paid)
	return row
}

// Booking is one parsed appointment row.
type Booking struct {
	Key  SlotKey
	Cell Cell
	// Row is the physical sheet row the booking was read from.
	Row int
}

// Appointments is a parsed snapshot of the appointments table.
type Appointments struct {
	Columns Columns
	Width   int
	// Bookings are rows naming a patient.
	Bookings []Booking
	// Stray are rows that exist but carry a vacant patient. They render as
	// vacant and are purged when their slot is saved as vacant.
	Stray []Booking
	// Dropped counts rows whose key could not be parsed.
	Dropped int

	byKey map[SlotKey][]Booking
}

// ParseAppointments types every row of the table. Rows with a malformed date,
// time or bed are counted in Dropped and otherwise ignored.
func ParseAppointments(t *rowstore.Table, codec rowstore.Codec) *Appointments {
	cols := ResolveColumns(t)
	out := &Appointments{
		Columns: cols,
		Width:   maxInt(t.Width(), cols.Width()),
		byKey:   make(map[SlotKey][]Booking),
	}
	for i := 0; i < t.Len(); i++ {
		key, err := parseKey(t, i, cols)
		if err != nil {
			out.Dropped++
			continue
		}
		b := Booking{
			Key: key,
			Cell: Cell{
				Patient: t.Cell(i, cols.Patient),
				Paid:    codec.ParseBool(t.Cell(i, cols.Paid)),
			}.Normalize(),
			Row: rowstore.PhysicalRow(i),
		}
		if b.Cell.Vacant() {
			out.Stray = append(out.Stray, b)
		} else {
			out.Bookings = append(out.Bookings, b)
		}
		out.byKey[key] = append(out.byKey[key], b)
	}
	return out
}

func parseKey(t *rowstore.Table, i int, cols Columns) (SlotKey, error) {
	date, err := rowstore.ParseDate(t.Cell(i, cols.Date))
	if err != nil {
		return SlotKey{}, err
	}
	tm, err := rowstore.ParseTime(t.Cell(i, cols.Time))
	if err != nil {
		return SlotKey{}, err
	}
	bed, err := strconv.Atoi(t.Cell(i, cols.Bed))
	if err != nil {
		return SlotKey{}, fmt.Errorf("agenda: invalid bed %q", t.Cell(i, cols.Bed))
	}
	if bed < 1 {
		return SlotKey{}, fmt.Errorf("agenda: invalid bed %d", bed)
	}
	return SlotKey{Date: date, Time: tm, Bed: bed}, nil
}

// At returns every row stored at key, stray ones included, in sheet order.
func (a *Appointments) At(key SlotKey) []Booking {
	return a.byKey[key]
}

// Keys lists every key that has at least one row, in slot order.
func (a *Appointments) Keys() []SlotKey {
	keys := make([]SlotKey, 0, len(a.byKey))
	for k := range a.byKey {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []SlotKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

package agenda

import "sort"

// Grid is the render-time state of a view: what every slot holds according
// to one appointments snapshot.
type Grid struct {
	View  View
	cells map[SlotKey]Booking
	stray map[SlotKey]int
}

// BuildGrid resolves every slot of v against a. When duplicate rows share a
// key the first one naming a patient wins; rows with a vacant patient only
// mark the slot as holding stray rows.
func BuildGrid(a *Appointments, v View) *Grid {
	g := &Grid{
		View:  v,
		cells: make(map[SlotKey]Booking),
		stray: make(map[SlotKey]int),
	}
	for _, b := range a.Bookings {
		if !v.Contains(b.Key) {
			continue
		}
		if _, taken := g.cells[b.Key]; !taken {
			g.cells[b.Key] = b
		}
	}
	for _, b := range a.Stray {
		if v.Contains(b.Key) {
			g.stray[b.Key]++
		}
	}
	return g
}

// Cell returns the slot's content, vacant and unpaid when no row exists.
func (g *Grid) Cell(key SlotKey) Cell {
	return g.cells[key].Cell
}

// Row returns the physical row backing key, or 0 for a vacant slot.
func (g *Grid) Row(key SlotKey) int {
	return g.cells[key].Row
}

// HasStray reports whether key is backed by rows with a vacant patient.
func (g *Grid) HasStray(key SlotKey) bool {
	return g.stray[key] > 0
}

// Booked lists the distinct patients holding a slot in the view.
func (g *Grid) Booked() []string {
	seen := make(map[string]struct{}, len(g.cells))
	names := make([]string, 0, len(g.cells))
	for _, b := range g.cells {
		if _, ok := seen[b.Cell.Patient]; ok {
			continue
		}
		seen[b.Cell.Patient] = struct{}{}
		names = append(names, b.Cell.Patient)
	}
	sort.Strings(names)
	return names
}

// Selections snapshots the grid as editable selections.
func (g *Grid) Selections() Selections {
	out := make(Selections, len(g.cells))
	for _, key := range g.View.Keys() {
		out[key] = g.Cell(key)
	}
	return out
}

// SelectablePatients is the option list for a slot: the vacant label, then
// the active patients sorted, then anyone already booked in the view who is
// no longer active so their slots still resolve to a listed name.
func SelectablePatients(active []string, g *Grid) []string {
	sorted := append([]string(nil), active...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted)+1)
	seen := make(map[string]struct{}, len(sorted))
	out = append(out, VacantLabel)
	for _, name := range sorted {
		if _, dup := seen[name]; dup || name == "" {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range g.Booked() {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

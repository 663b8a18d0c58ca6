package agenda

// Selections are the submitted slot values keyed by slot.
type Selections map[SlotKey]Cell

// ChangeKind names the row operation a change maps to.
type ChangeKind string

const (
	KindAppend ChangeKind = "append"
	KindUpdate ChangeKind = "update"
	KindDelete ChangeKind = "delete"
)

// Change is one slot whose submitted value differs from what was rendered.
type Change struct {
	Key  SlotKey    `json:"key"`
	Old  Cell       `json:"old"`
	New  Cell       `json:"new"`
	Kind ChangeKind `json:"kind"`
}

// Diff compares every slot of the grid's view with the submitted
// selections. Slots without a submitted value are left as they are, and
// submitted keys outside the view are ignored. A vacant selection is always
// unpaid. Changes come back in slot order.
func Diff(g *Grid, edited Selections) []Change {
	return DiffRendered(g, nil, edited)
}

// DiffRendered is Diff with the values the client was shown. A slot with a
// rendered value is compared against it instead of the grid, so a slot the
// client left untouched never becomes a change even when someone else has
// booked it since. Slots without a rendered value fall back to the grid.
func DiffRendered(g *Grid, rendered, edited Selections) []Change {
	var changes []Change
	for _, key := range g.View.Keys() {
		next, ok := edited[key]
		if !ok {
			continue
		}
		next = next.Normalize()
		prev := g.Cell(key)
		if shown, ok := rendered[key]; ok {
			prev = shown.Normalize()
		}

		switch {
		case prev == next:
			if next.Vacant() && g.Cell(key).Vacant() && g.HasStray(key) {
				changes = append(changes, Change{Key: key, Old: prev, New: next, Kind: KindDelete})
			}
		case next.Vacant():
			changes = append(changes, Change{Key: key, Old: prev, New: next, Kind: KindDelete})
		case prev.Vacant():
			changes = append(changes, Change{Key: key, Old: prev, New: next, Kind: KindAppend})
		default:
			changes = append(changes, Change{Key: key, Old: prev, New: next, Kind: KindUpdate})
		}
	}
	return changes
}

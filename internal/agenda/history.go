package agenda

import (
	"sort"
	"strings"
)

// History returns the bookings of one patient in slot order. Names match
// exactly after trimming, as they are stored.
func History(a *Appointments, patient string) []Booking {
	patient = strings.TrimSpace(patient)
	if patient == "" {
		return nil
	}
	var out []Booking
	for _, b := range a.Bookings {
		if b.Cell.Patient == patient {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key.Before(out[j].Key) })
	return out
}

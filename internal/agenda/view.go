package agenda

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// Defaults observed at the clinic.
const (
	DefaultBeds      = 4
	DefaultStartHour = 13
	DefaultEndHour   = 20
	maxViewDays      = 31
)

// ErrInvalidView is returned for a view that cannot be enumerated.
var ErrInvalidView = errors.New("agenda: invalid view")

// View is the window of slots shown on one page: Days dates from Start,
// hourly slots from StartHour to EndHour inclusive, and beds 1..Beds.
type View struct {
	Start     civil.Date `json:"start"`
	Days      int        `json:"days"`
	StartHour int        `json:"start_hour"`
	EndHour   int        `json:"end_hour"`
	Beds      int        `json:"beds"`
}

// DayView shows a single date.
func DayView(d civil.Date, startHour, endHour, beds int) View {
	return View{Start: d, Days: 1, StartHour: startHour, EndHour: endHour, Beds: beds}
}

// WeekView shows the Monday-based week containing d.
func WeekView(d civil.Date, startHour, endHour, beds int) View {
	return View{Start: WeekOf(d), Days: 7, StartHour: startHour, EndHour: endHour, Beds: beds}
}

// WeekOf returns the Monday on or before d.
func WeekOf(d civil.Date) civil.Date {
	offset := (int(d.In(time.UTC).Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func (v View) Validate() error {
	switch {
	case !v.Start.IsValid():
		return fmt.Errorf("%w: start date %s", ErrInvalidView, v.Start)
	case v.Days < 1 || v.Days > maxViewDays:
		return fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidView, maxViewDays)
	case v.StartHour < 0 || v.EndHour > 23 || v.StartHour > v.EndHour:
		return fmt.Errorf("%w: hours %d-%d", ErrInvalidView, v.StartHour, v.EndHour)
	case v.Beds < 1:
		return fmt.Errorf("%w: beds must be positive", ErrInvalidView)
	}
	return nil
}

// End is the last date in the view.
func (v View) End() civil.Date {
	return v.Start.AddDays(v.Days - 1)
}

func (v View) Dates() []civil.Date {
	dates := make([]civil.Date, 0, v.Days)
	for i := 0; i < v.Days; i++ {
		dates = append(dates, v.Start.AddDays(i))
	}
	return dates
}

func (v View) Times() []civil.Time {
	var times []civil.Time
	for h := v.StartHour; h <= v.EndHour; h++ {
		times = append(times, civil.Time{Hour: h})
	}
	return times
}

// Keys enumerates every slot of the view ordered by date, time and bed.
func (v View) Keys() []SlotKey {
	var keys []SlotKey
	for _, d := range v.Dates() {
		for _, t := range v.Times() {
			for bed := 1; bed <= v.Beds; bed++ {
				keys = append(keys, SlotKey{Date: d, Time: t, Bed: bed})
			}
		}
	}
	return keys
}

// Contains reports whether key is one of the view's slots.
func (v View) Contains(key SlotKey) bool {
	if key.Date.Before(v.Start) || key.Date.After(v.End()) {
		return false
	}
	t := key.Time
	if t.Minute != 0 || t.Second != 0 || t.Nanosecond != 0 {
		return false
	}
	return t.Hour >= v.StartHour && t.Hour <= v.EndHour && key.Bed >= 1 && key.Bed <= v.Beds
}

// Package stats aggregates appointments over a date range, joined with the
// patient roster for insurer breakdowns.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
)

// UnknownInsurer labels appointments whose patient has no insurer on file.
const UnknownInsurer = "Unknown"

// DefaultRangeDays is how far back the default range reaches.
const DefaultRangeDays = 7

var ErrInvalidRange = errors.New("stats: start date is after end date")

// Count is one bucket of a grouped count.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Summary holds appointment counts for an inclusive date range.
type Summary struct {
	Start          civil.Date `json:"start"`
	End            civil.Date `json:"end"`
	Total          int        `json:"total"`
	Paid           int        `json:"paid"`
	Unpaid         int        `json:"unpaid"`
	UniquePatients int        `json:"unique_patients"`
	ByInsurer      []Count    `json:"by_insurer"`
	ByDay          []Count    `json:"by_day"`
	ByPaid         []Count    `json:"by_paid"`
}

// DefaultRange covers the last DefaultRangeDays days up to today.
func DefaultRange(today civil.Date) (civil.Date, civil.Date) {
	return today.AddDays(-DefaultRangeDays), today
}

// Compute counts the bookings dated within [start, end]. Patients missing
// from the roster still count, under UnknownInsurer.
func Compute(appts *agenda.Appointments, r *roster.Roster, codec rowstore.Codec, start, end civil.Date) (Summary, error) {
	if end.Before(start) {
		return Summary{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	s := Summary{
		Start:     start,
		End:       end,
		ByInsurer: []Count{},
		ByDay:     []Count{},
		ByPaid:    []Count{},
	}

	insurers := map[string]int{}
	days := map[civil.Date]int{}
	patients := map[string]struct{}{}
	for _, b := range appts.Bookings {
		if b.Key.Date.Before(start) || b.Key.Date.After(end) {
			continue
		}
		s.Total++
		if b.Cell.Paid {
			s.Paid++
		} else {
			s.Unpaid++
		}
		patients[b.Cell.Patient] = struct{}{}
		days[b.Key.Date]++

		insurer := UnknownInsurer
		if p, _, ok := r.Find(b.Cell.Patient); ok && p.Insurer != "" {
			insurer = p.Insurer
		}
		insurers[insurer]++
	}
	s.UniquePatients = len(patients)

	for label, n := range insurers {
		s.ByInsurer = append(s.ByInsurer, Count{Label: label, Count: n})
	}
	sortByCount(s.ByInsurer)

	dates := make([]civil.Date, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	for _, d := range dates {
		s.ByDay = append(s.ByDay, Count{Label: rowstore.FormatDate(d), Count: days[d]})
	}

	if s.Paid > 0 {
		s.ByPaid = append(s.ByPaid, Count{Label: codec.FormatBool(true), Count: s.Paid})
	}
	if s.Unpaid > 0 {
		s.ByPaid = append(s.ByPaid, Count{Label: codec.FormatBool(false), Count: s.Unpaid})
	}
	sortByCount(s.ByPaid)
	return s, nil
}

// sortByCount orders buckets by descending count, then label.
func sortByCount(c []Count) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].Label < c[j].Label
	})
}

// Service computes summaries from the cached tables.
type Service struct {
	tables       cache.Tables
	appointments string
	patients     string
	codec        rowstore.Codec
}

func NewService(tables cache.Tables, appointmentsTable, patientsTable string, codec rowstore.Codec) *Service {
	return &Service{
		tables:       tables,
		appointments: appointmentsTable,
		patients:     patientsTable,
		codec:        codec,
	}
}

func (s *Service) Summary(ctx context.Context, start, end civil.Date) (Summary, error) {
	if end.Before(start) {
		return Summary{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	at, err := s.tables.GetOrLoad(ctx, s.appointments)
	if err != nil {
		return Summary{}, fmt.Errorf("stats: load %s: %w", s.appointments, err)
	}
	pt, err := s.tables.GetOrLoad(ctx, s.patients)
	if err != nil {
		return Summary{}, fmt.Errorf("stats: load %s: %w", s.patients, err)
	}
	return Compute(agenda.ParseAppointments(at, s.codec), roster.Parse(pt, s.codec), s.codec, start, end)
}

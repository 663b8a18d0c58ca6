// Package schedule serves the agenda pages: rendering a view for a staff
// member, saving edited slots and the per-patient payment history.
package schedule

import (
	"context"
	"fmt"

	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/reconcile"
	"github.com/wolfman30/clinic-agenda/internal/roster"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/internal/session"
)

// Slot is one rendered grid cell. Vacant slots show agenda.VacantLabel.
type Slot struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	Bed     int    `json:"bed"`
	Patient string `json:"patient"`
	Paid    bool   `json:"paid"`
}

// Page is everything the agenda screen needs for one view.
type Page struct {
	View     agenda.View `json:"view"`
	Welcome  string      `json:"welcome"`
	Patients []string    `json:"patients"`
	Slots    []Slot      `json:"slots"`
}

// Visit is one entry of a patient's appointment history.
type Visit struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Bed  int    `json:"bed"`
	Paid bool   `json:"paid"`
}

// Service ties the cached tables, the roster and the reconciliation engine
// together for request handlers.
type Service struct {
	tables   cache.Tables
	engine   *reconcile.Engine
	patients *roster.Service
	table    string
	codec    rowstore.Codec
}

func NewService(tables cache.Tables, engine *reconcile.Engine, patients *roster.Service, appointmentsTable string, codec rowstore.Codec) *Service {
	return &Service{
		tables:   tables,
		engine:   engine,
		patients: patients,
		table:    appointmentsTable,
		codec:    codec,
	}
}

func (s *Service) appointments(ctx context.Context) (*agenda.Appointments, error) {
	t, err := s.tables.GetOrLoad(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("schedule: load %s: %w", s.table, err)
	}
	return agenda.ParseAppointments(t, s.codec), nil
}

// Render builds the grid for view as the given staff member sees it.
func (s *Service) Render(ctx context.Context, id session.Identity, view agenda.View) (Page, error) {
	if err := view.Validate(); err != nil {
		return Page{}, err
	}
	appts, err := s.appointments(ctx)
	if err != nil {
		return Page{}, err
	}
	r, err := s.patients.Roster(ctx)
	if err != nil {
		return Page{}, err
	}

	grid := agenda.BuildGrid(appts, view)
	page := Page{
		View:     view,
		Welcome:  id.Welcome(),
		Patients: agenda.SelectablePatients(r.ActiveNames(), grid),
	}
	for _, key := range view.Keys() {
		cell := grid.Cell(key)
		patient := cell.Patient
		if cell.Vacant() {
			patient = agenda.VacantLabel
		}
		page.Slots = append(page.Slots, Slot{
			Date:    rowstore.FormatDate(key.Date),
			Time:    rowstore.FormatTime(key.Time),
			Bed:     key.Bed,
			Patient: patient,
			Paid:    cell.Paid,
		})
	}
	return page, nil
}

// Save applies edited slot values for view. rendered holds what the client
// was shown for each submitted slot.
func (s *Service) Save(ctx context.Context, view agenda.View, rendered, edited agenda.Selections) (reconcile.Result, error) {
	return s.engine.SaveGrid(ctx, view, rendered, edited)
}

// History lists a patient's appointments, oldest first. Inactive patients
// keep their history.
func (s *Service) History(ctx context.Context, patient string) ([]Visit, error) {
	p, err := s.patients.Get(ctx, patient)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments(ctx)
	if err != nil {
		return nil, err
	}
	visits := []Visit{}
	for _, b := range agenda.History(appts, p.FullName) {
		visits = append(visits, Visit{
			Date: rowstore.FormatDate(b.Key.Date),
			Time: rowstore.FormatTime(b.Key.Time),
			Bed:  b.Key.Bed,
			Paid: b.Cell.Paid,
		})
	}
	return visits, nil
}

// SavePayments records paid flags from the history screen.
func (s *Service) SavePayments(ctx context.Context, patient string, paid map[agenda.SlotKey]bool) (reconcile.Result, error) {
	p, err := s.patients.Get(ctx, patient)
	if err != nil {
		return reconcile.Result{}, err
	}
	return s.engine.ApplyPayments(ctx, p.FullName, paid)
}

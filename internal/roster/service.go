package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

const noteStampLayout = "2006-01-02 15:04"

// Service applies roster operations to the patient table. Reads for display
// go through the cache; every write first re-reads the live table so row
// numbers are current.
type Service struct {
	store  rowstore.Store
	tables cache.Tables
	table  string
	codec  rowstore.Codec
	logger *logging.Logger
	now    func() time.Time
}

func NewService(store rowstore.Store, tables cache.Tables, table string, codec rowstore.Codec, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		tables: tables,
		table:  table,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time used to stamp notes.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Roster returns the cached roster.
func (s *Service) Roster(ctx context.Context) (*Roster, error) {
	t, err := s.tables.GetOrLoad(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("roster: load %s: %w", s.table, err)
	}
	return Parse(t, s.codec), nil
}

// List returns the active patients, or everyone when includeInactive is set.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Patient, error) {
	r, err := s.Roster(ctx)
	if err != nil {
		return nil, err
	}
	if includeInactive {
		return r.All(), nil
	}
	return r.Active(), nil
}

// Get returns one patient by exact name.
func (s *Service) Get(ctx context.Context, name string) (Patient, error) {
	r, err := s.Roster(ctx)
	if err != nil {
		return Patient{}, err
	}
	p, _, ok := r.Find(name)
	if !ok {
		return Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, name)
	}
	return p, nil
}

// Add registers a new active patient.
func (s *Service) Add(ctx context.Context, p Patient) (Patient, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	if p.FullName == "" {
		return Patient{}, ErrNameRequired
	}
	p.Active = true

	live, err := s.live(ctx)
	if err != nil {
		return Patient{}, err
	}
	r := Parse(live, s.codec)
	if r.Has(p.FullName) {
		return Patient{}, fmt.Errorf("%w: %s", ErrDuplicatePatient, p.FullName)
	}

	if len(live.Header) == 0 {
		row := ResolveColumns(live).Encode(p, s.codec, len(DefaultHeader))
		err = s.store.OverwriteTable(ctx, s.table, DefaultHeader, [][]string{row})
	} else {
		err = s.store.AppendRow(ctx, s.table, r.Columns.Encode(p, s.codec, r.Width))
	}
	if err != nil {
		return Patient{}, fmt.Errorf("roster: add %s: %w", p.FullName, err)
	}
	s.invalidate(ctx)
	s.logger.Info("patient added", "patient", p.FullName)
	return p, nil
}

// Deactivate hides a patient from new bookings. Their appointments stay.
func (s *Service) Deactivate(ctx context.Context, name string) error {
	return s.setActive(ctx, name, false)
}

func (s *Service) Reactivate(ctx context.Context, name string) error {
	return s.setActive(ctx, name, true)
}

func (s *Service) setActive(ctx context.Context, name string, active bool) error {
	live, err := s.live(ctx)
	if err != nil {
		return err
	}
	r := Parse(live, s.codec)
	p, row, ok := r.Find(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPatientNotFound, name)
	}
	if p.Active == active {
		return nil
	}
	if !live.HasColumn("Activo", "Active") {
		s.logger.Warn("active column missing from header, using default position",
			"table", s.table, "column", r.Columns.Active+1)
	}
	if err := s.store.UpdateCell(ctx, s.table, row, r.Columns.Active+1, s.codec.FormatBool(active)); err != nil {
		return fmt.Errorf("roster: set active %s: %w", p.FullName, err)
	}
	s.invalidate(ctx)
	s.logger.Info("patient status changed", "patient", p.FullName, "active", active)
	return nil
}

// AppendNote adds a timestamped entry to a patient's notes. Existing text is
// never rewritten.
func (s *Service) AppendNote(ctx context.Context, name, text string) (Patient, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Patient{}, ErrEmptyNote
	}
	live, err := s.live(ctx)
	if err != nil {
		return Patient{}, err
	}
	r := Parse(live, s.codec)
	p, row, ok := r.Find(name)
	if !ok {
		return Patient{}, fmt.Errorf("%w: %s", ErrPatientNotFound, name)
	}

	entry := fmt.Sprintf("[%s] %s", s.now().Format(noteStampLayout), text)
	if p.Notes == "" {
		p.Notes = entry
	} else {
		p.Notes = p.Notes + "\n" + entry
	}
	if err := s.store.UpdateCell(ctx, s.table, row, r.Columns.Notes+1, p.Notes); err != nil {
		return Patient{}, fmt.Errorf("roster: append note %s: %w", p.FullName, err)
	}
	s.invalidate(ctx)
	return p, nil
}

// SaveActiveEdits merges edits of the active list into the live table and
// overwrites the sheet with the result. Anything written to the sheet by
// someone else between the read and the overwrite is lost.
func (s *Service) SaveActiveEdits(ctx context.Context, edited []Patient) (MergeResult, error) {
	live, err := s.live(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	res := MergeActiveEdits(live, edited, s.codec)
	if err := s.store.OverwriteTable(ctx, s.table, res.Header, res.Rows); err != nil {
		return MergeResult{}, fmt.Errorf("roster: overwrite %s: %w", s.table, err)
	}
	s.invalidate(ctx)
	if len(res.NotesKept) > 0 {
		s.logger.Warn("ignored notes edits that rewrite history", "patients", res.NotesKept)
	}
	if len(res.NotActive) > 0 {
		s.logger.Warn("ignored edits to inactive patients", "patients", res.NotActive)
	}
	s.logger.Info("patient list saved", "updated", res.Updated, "added", res.Added)
	return res, nil
}

func (s *Service) live(ctx context.Context) (*rowstore.Table, error) {
	t, err := s.store.ReadTable(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", s.table, err)
	}
	return t, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.tables.InvalidateAll(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", "error", err)
	}
}

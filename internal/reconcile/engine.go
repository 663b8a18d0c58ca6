// Package reconcile turns slot edits into row writes against the
// appointments table.
//
// Every batch is planned against a fresh read of the live table rather than
// the snapshot the page was rendered from: a row index taken from a stale
// snapshot can point at a different appointment once another write has
// shifted the sheet. Writes then go out as updates, appends and finally
// deletes from the bottom of the sheet up, so no write moves a row that a
// later write in the same batch still has to address.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Write is one row operation issued by a batch.
type Write struct {
	Kind agenda.ChangeKind `json:"kind"`
	Key  agenda.SlotKey    `json:"-"`
	Slot string            `json:"slot"`
	Row  int               `json:"row,omitempty"`
	Cell agenda.Cell       `json:"cell"`
}

// Result summarizes a batch. After a failed write it describes the writes
// that did reach the sheet.
type Result struct {
	Appended int     `json:"appended"`
	Updated  int     `json:"updated"`
	Deleted  int     `json:"deleted"`
	Skipped  int     `json:"skipped"`
	Writes   []Write `json:"writes"`
}

// Engine applies changes to one appointments table.
type Engine struct {
	store   rowstore.Store
	tables  cache.Tables
	table   string
	codec   rowstore.Codec
	logger  *logging.Logger
	metrics *metrics.ReconcileMetrics
	tracer  trace.Tracer

	// one batch at a time per process; other replicas still race
	mu sync.Mutex
}

// NewEngine creates an engine writing to table through store and dropping
// tables' snapshots after each successful batch.
func NewEngine(store rowstore.Store, tables cache.Tables, table string, codec rowstore.Codec, m *metrics.ReconcileMetrics, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:   store,
		tables:  tables,
		table:   table,
		codec:   codec,
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("clinic.internal.reconcile"),
	}
}

// plan is the resolved set of writes for a batch.
type plan struct {
	updates []update
	appends []Write
	deletes []Write
	skipped int
}

type update struct {
	Write
	cells map[int]string // 0-based column -> value
}

// SaveGrid diffs edited against rendered, the values the client was shown
// for view, and applies the result. Slots missing from rendered are compared
// against the cached snapshot instead.
func (e *Engine) SaveGrid(ctx context.Context, view agenda.View, rendered, edited agenda.Selections) (Result, error) {
	if err := view.Validate(); err != nil {
		return Result{}, err
	}
	snapshot, err := e.tables.GetOrLoad(ctx, e.table)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: load %s: %w", e.table, err)
	}
	grid := agenda.BuildGrid(agenda.ParseAppointments(snapshot, e.codec), view)
	return e.Apply(ctx, agenda.DiffRendered(grid, rendered, edited))
}

// Apply reconciles changes against the live table. The change kinds are
// advisory: each key is resolved again against the rows that exist now.
func (e *Engine) Apply(ctx context.Context, changes []agenda.Change) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.apply", trace.WithAttributes(
		attribute.String("reconcile.table", e.table),
		attribute.Int("reconcile.changes", len(changes)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	live, err := e.store.ReadTable(ctx, e.table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read live table")
		return Result{}, fmt.Errorf("reconcile: read %s: %w", e.table, err)
	}
	appts := agenda.ParseAppointments(live, e.codec)
	p := e.planChanges(appts, changes)

	res, err := e.execute(ctx, appts, p)
	e.metrics.ObserveBatch(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		e.logger.Error("reconciliation batch stopped", "table", e.table, "error", err,
			"appended", res.Appended, "updated", res.Updated, "deleted", res.Deleted)
		return res, err
	}
	if err := e.tables.InvalidateAll(ctx); err != nil {
		e.logger.Warn("cache invalidation failed", "error", err)
	}
	span.SetAttributes(
		attribute.Int("reconcile.appended", res.Appended),
		attribute.Int("reconcile.updated", res.Updated),
		attribute.Int("reconcile.deleted", res.Deleted),
	)
	e.logger.Info("reconciliation batch applied", "table", e.table,
		"appended", res.Appended, "updated", res.Updated, "deleted", res.Deleted, "skipped", res.Skipped)
	return res, nil
}

func (e *Engine) planChanges(appts *agenda.Appointments, changes []agenda.Change) plan {
	var p plan
	seen := make(map[agenda.SlotKey]bool, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		// a key submitted twice keeps its last value
		c := changes[i]
		if seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		if !e.planOne(&p, appts, c.Key, c.New.Normalize()) {
			p.skipped++
		}
	}
	// restore submission order for updates and appends
	for i, j := 0, len(p.updates)-1; i < j; i, j = i+1, j-1 {
		p.updates[i], p.updates[j] = p.updates[j], p.updates[i]
	}
	for i, j := 0, len(p.appends)-1; i < j; i, j = i+1, j-1 {
		p.appends[i], p.appends[j] = p.appends[j], p.appends[i]
	}
	sort.SliceStable(p.deletes, func(i, j int) bool { return p.deletes[i].Row > p.deletes[j].Row })
	return p
}

// planOne reports whether the key needs any write.
func (e *Engine) planOne(p *plan, appts *agenda.Appointments, key agenda.SlotKey, target agenda.Cell) bool {
	rows := appts.At(key)
	if target.Vacant() {
		for _, b := range rows {
			p.deletes = append(p.deletes, Write{Kind: agenda.KindDelete, Key: key, Slot: key.String(), Row: b.Row, Cell: b.Cell})
		}
		return len(rows) > 0
	}
	if len(rows) == 0 {
		p.appends = append(p.appends, Write{Kind: agenda.KindAppend, Key: key, Slot: key.String(), Cell: target})
		return true
	}

	keep := rows[0]
	for _, b := range rows[1:] {
		p.deletes = append(p.deletes, Write{Kind: agenda.KindDelete, Key: key, Slot: key.String(), Row: b.Row, Cell: b.Cell})
	}
	cells := make(map[int]string, 2)
	if keep.Cell.Patient != target.Patient {
		cells[appts.Columns.Patient] = target.Patient
	}
	if keep.Cell.Paid != target.Paid {
		cells[appts.Columns.Paid] = e.codec.FormatBool(target.Paid)
	}
	if len(cells) > 0 {
		p.updates = append(p.updates, update{
			Write: Write{Kind: agenda.KindUpdate, Key: key, Slot: key.String(), Row: keep.Row, Cell: target},
			cells: cells,
		})
	}
	return len(cells) > 0 || len(rows) > 1
}

func (e *Engine) execute(ctx context.Context, appts *agenda.Appointments, p plan) (Result, error) {
	res := Result{Skipped: p.skipped}
	for _, u := range p.updates {
		cols := make([]int, 0, len(u.cells))
		for col := range u.cells {
			cols = append(cols, col)
		}
		sort.Ints(cols)
		for _, col := range cols {
			if err := e.store.UpdateCell(ctx, e.table, u.Row, col+1, u.cells[col]); err != nil {
				return res, fmt.Errorf("reconcile: update %s row %d: %w", u.Slot, u.Row, err)
			}
		}
		res.Updated++
		res.Writes = append(res.Writes, u.Write)
		e.metrics.ObserveWrite(string(agenda.KindUpdate))
	}
	for _, w := range p.appends {
		row := appts.Columns.Encode(w.Key, w.Cell, e.codec, appts.Width)
		if err := e.store.AppendRow(ctx, e.table, row); err != nil {
			return res, fmt.Errorf("reconcile: append %s: %w", w.Slot, err)
		}
		res.Appended++
		res.Writes = append(res.Writes, w)
		e.metrics.ObserveWrite(string(agenda.KindAppend))
	}
	for _, w := range p.deletes {
		if err := e.store.DeleteRow(ctx, e.table, w.Row); err != nil {
			return res, fmt.Errorf("reconcile: delete %s row %d: %w", w.Slot, w.Row, err)
		}
		res.Deleted++
		res.Writes = append(res.Writes, w)
		e.metrics.ObserveWrite(string(agenda.KindDelete))
	}
	return res, nil
}

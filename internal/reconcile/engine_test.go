package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"github.com/wolfman30/clinic-agenda/internal/cache"
	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/internal/rowstore"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
)

const table = "Turnos"

var (
	header  = []string{"Fecha", "Hora", "Camilla", "Paciente", "Pagado"}
	day     = civil.Date{Year: 2024, Month: time.January, Day: 1}
	errBoom = errors.New("boom")
)

func key(hour, bed int) agenda.SlotKey {
	return agenda.SlotKey{Date: day, Time: civil.Time{Hour: hour}, Bed: bed}
}

type fixture struct {
	store  *rowstore.MemoryStore
	cache  *cache.MemoryCache
	engine *Engine
}

func setup(t *testing.T, rows ...[]string) fixture {
	t.Helper()
	store := rowstore.NewMemoryStore()
	store.Seed(table, header, rows...)
	c := cache.NewMemoryCache(store, time.Hour, nil)
	return fixture{
		store:  store,
		cache:  c,
		engine: NewEngine(store, c, table, rowstore.DefaultCodec(), nil, logging.Discard()),
	}
}

func (f fixture) live(t *testing.T) [][]string {
	t.Helper()
	tbl, err := f.store.ReadTable(context.Background(), table)
	require.NoError(t, err)
	return tbl.Rows
}

func (f fixture) grid(t *testing.T, v agenda.View) *agenda.Grid {
	t.Helper()
	tbl, err := f.cache.GetOrLoad(context.Background(), table)
	require.NoError(t, err)
	return agenda.BuildGrid(agenda.ParseAppointments(tbl, rowstore.DefaultCodec()), v)
}

func TestSaveGridReassignsWithDeleteAndAppend(t *testing.T) {
	f := setup(t, []string{"2024-01-01", "09:00:00", "1", "Ana", "No"})
	view := agenda.DayView(day, 9, 9, 2)

	res, err := f.engine.SaveGrid(context.Background(), view, nil, agenda.Selections{
		key(9, 1): {Patient: agenda.VacantLabel},
		key(9, 2): {Patient: "Luis", Paid: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []rowstore.Call{
		{Op: "append", Table: table, Cells: []string{"2024-01-01", "09:00:00", "2", "Luis", "Sí"}},
		{Op: "delete", Table: table, Row: 2},
	}, f.store.Calls())
	assert.Equal(t, 1, res.Appended)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Updated)
	assert.Equal(t, [][]string{{"2024-01-01", "09:00:00", "2", "Luis", "Sí"}}, f.live(t))
}

func TestApplyIsIdempotent(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "Ana", "No"},
		[]string{"2024-01-01", "10:00:00", "1", "Eva", "No"},
	)
	ctx := context.Background()
	view := agenda.DayView(day, 9, 10, 2)
	changes := agenda.Diff(f.grid(t, view), agenda.Selections{
		key(9, 1):  {Patient: agenda.VacantLabel},
		key(9, 2):  {Patient: "Luis"},
		key(10, 1): {Patient: "Eva", Paid: true},
	})
	require.Len(t, changes, 3)

	_, err := f.engine.Apply(ctx, changes)
	require.NoError(t, err)
	f.store.ResetCalls()

	res, err := f.engine.Apply(ctx, changes)
	require.NoError(t, err)
	assert.Empty(t, f.store.Calls())
	assert.Equal(t, Result{Skipped: 3}, res)
}

func TestSaveGridRoundTrip(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "Ana", "Sí"},
		[]string{"2024-01-01", "10:00:00", "2", "Vacante", "Sí"},
	)
	ctx := context.Background()
	view := agenda.DayView(day, 9, 11, 2)
	_ = f.grid(t, view) // prime the cache

	edited := agenda.Selections{
		key(9, 1):  {Patient: "Luis", Paid: true},
		key(9, 2):  {Patient: "Ana"},
		key(10, 1): {Patient: "Eva", Paid: true},
		key(10, 2): {Patient: agenda.VacantLabel, Paid: true},
		key(11, 1): {Patient: ""},
		key(11, 2): {Patient: "Zoe", Paid: false},
	}
	_, err := f.engine.SaveGrid(ctx, view, nil, edited)
	require.NoError(t, err)

	after := f.grid(t, view)
	for k, want := range edited {
		assert.Equal(t, want.Normalize(), after.Cell(k), k.String())
	}
	assert.False(t, after.HasStray(key(10, 2)))
}

func TestApplyStopsOnFirstFailureWithoutInvalidating(t *testing.T) {
	f := setup(t, []string{"2024-01-01", "09:00:00", "1", "Ana", "No"})
	ctx := context.Background()
	view := agenda.DayView(day, 9, 9, 2)
	_ = f.grid(t, view)
	f.store.FailWritesAfter(1, errBoom)

	res, err := f.engine.SaveGrid(ctx, view, nil, agenda.Selections{
		key(9, 1): {Patient: "Luis"},
		key(9, 2): {Patient: "Eva"},
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Appended)
	require.Len(t, res.Writes, 1)
	assert.Equal(t, key(9, 1), res.Writes[0].Key)

	assert.Equal(t, [][]string{{"2024-01-01", "09:00:00", "1", "Luis", "No"}}, f.live(t))
	cached := f.grid(t, view)
	assert.Equal(t, "Ana", cached.Cell(key(9, 1)).Patient, "cache keeps the last known-good snapshot")
}

func TestApplyOrdersWritesAgainstIndexShift(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "A", "No"},
		[]string{"2024-01-01", "10:00:00", "1", "B", "No"},
		[]string{"2024-01-01", "11:00:00", "1", "C", "No"},
		[]string{"2024-01-01", "12:00:00", "1", "D", "No"},
	)
	view := agenda.DayView(day, 9, 12, 1)

	_, err := f.engine.SaveGrid(context.Background(), view, nil, agenda.Selections{
		key(9, 1):  {Patient: agenda.VacantLabel},
		key(10, 1): {Patient: "E"},
		key(11, 1): {Patient: agenda.VacantLabel},
		key(12, 1): {Patient: "D", Paid: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []rowstore.Call{
		{Op: "update", Table: table, Row: 3, Col: 4, Value: "E"},
		{Op: "update", Table: table, Row: 5, Col: 5, Value: "Sí"},
		{Op: "delete", Table: table, Row: 4},
		{Op: "delete", Table: table, Row: 2},
	}, f.store.Calls())
	assert.Equal(t, [][]string{
		{"2024-01-01", "10:00:00", "1", "E", "No"},
		{"2024-01-01", "12:00:00", "1", "D", "Sí"},
	}, f.live(t))
}

func TestSaveGridResolvesAgainstLiveRows(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "Ana", "No"},
		[]string{"2024-01-01", "10:00:00", "1", "Eva", "No"},
	)
	ctx := context.Background()
	view := agenda.DayView(day, 9, 11, 1)
	_ = f.grid(t, view) // rendered before another session deletes Ana's row

	require.NoError(t, f.store.DeleteRow(ctx, table, 2))
	require.NoError(t, f.store.AppendRow(ctx, table, []string{"2024-01-01", "11:00:00", "1", "Zoe", "No"}))
	f.store.ResetCalls()

	res, err := f.engine.SaveGrid(ctx, view, nil, agenda.Selections{
		key(9, 1):  {Patient: "Luis"},             // rendered as an update, row is gone now
		key(10, 1): {Patient: "Eva", Paid: true},  // moved from row 3 to row 2
		key(11, 1): {Patient: "Zoe", Paid: false}, // rendered vacant, already booked now
	})
	require.NoError(t, err)

	assert.Equal(t, []rowstore.Call{
		{Op: "update", Table: table, Row: 2, Col: 5, Value: "Sí"},
		{Op: "append", Table: table, Cells: []string{"2024-01-01", "09:00:00", "1", "Luis", "No"}},
	}, f.store.Calls())
	assert.Equal(t, 1, res.Skipped)
}

func TestSaveGridKeepsBookingMadeAfterRender(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	view := agenda.DayView(day, 9, 9, 2)
	shown := f.grid(t, view).Selections()

	// another session books Luis into a slot this one still shows vacant
	_, err := f.engine.SaveGrid(ctx, view, shown, agenda.Selections{key(9, 1): {Patient: "Luis"}})
	require.NoError(t, err)
	f.store.ResetCalls()

	res, err := f.engine.SaveGrid(ctx, view, shown, shown)
	require.NoError(t, err)
	assert.Empty(t, f.store.Calls())
	assert.Zero(t, res.Deleted)

	edited := f.grid(t, view).Selections()
	for k, c := range shown {
		edited[k] = c
	}
	edited[key(9, 2)] = agenda.Cell{Patient: "Eva"}
	res, err = f.engine.SaveGrid(ctx, view, shown, edited)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appended)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, [][]string{
		{"2024-01-01", "09:00:00", "1", "Luis", "No"},
		{"2024-01-01", "09:00:00", "2", "Eva", "No"},
	}, f.live(t))
}

func TestApplyCollapsesDuplicateRows(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "Ana", "No"},
		[]string{"2024-01-01", "10:00:00", "1", "Eva", "No"},
		[]string{"2024-01-01", "09:00", "1", "Luis", "No"},
	)
	_, err := f.engine.Apply(context.Background(), []agenda.Change{
		{Key: key(9, 1), Old: agenda.Cell{Patient: "Ana"}, New: agenda.Cell{Patient: "Luis"}, Kind: agenda.KindUpdate},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"2024-01-01", "09:00:00", "1", "Luis", "No"},
		{"2024-01-01", "10:00:00", "1", "Eva", "No"},
	}, f.live(t))
}

func TestApplyNeverStoresVacantOrPaidVacant(t *testing.T) {
	f := setup(t,
		[]string{"2024-01-01", "09:00:00", "1", "Ana", "Sí"},
		[]string{"2024-01-01", "09:00:00", "2", "Vacante", "Sí"},
	)
	view := agenda.DayView(day, 9, 10, 2)
	_, err := f.engine.SaveGrid(context.Background(), view, nil, agenda.Selections{
		key(9, 1):  {Patient: "Vacante", Paid: true},
		key(9, 2):  {Patient: "", Paid: true},
		key(10, 1): {Patient: " vacante ", Paid: true},
		key(10, 2): {Patient: "Eva", Paid: true},
	})
	require.NoError(t, err)

	rows := f.live(t)
	require.Len(t, rows, 1)
	for _, r := range rows {
		assert.NotEmpty(t, agenda.NormalizePatient(r[3]))
	}
	assert.Equal(t, "Eva", rows[0][3])
}

func TestApplyRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewReconcileMetrics(reg)
	store := rowstore.NewMemoryStore()
	store.Seed(table, header)
	e := NewEngine(store, cache.NewMemoryCache(store, time.Hour, nil), table, rowstore.DefaultCodec(), m, logging.Discard())

	_, err := e.Apply(context.Background(), []agenda.Change{{Key: key(9, 1), New: agenda.Cell{Patient: "Ana"}, Kind: agenda.KindAppend}})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "clinic_reconcile_writes_total", "clinic_reconcile_batches_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveGridRejectsInvalidView(t *testing.T) {
	f := setup(t)
	_, err := f.engine.SaveGrid(context.Background(), agenda.View{Start: day}, nil, nil)
	assert.ErrorIs(t, err, agenda.ErrInvalidView)
	assert.Empty(t, f.store.Calls())
}

func TestApplyMissingTable(t *testing.T) {
	store := rowstore.NewMemoryStore()
	e := NewEngine(store, cache.NewMemoryCache(store, time.Hour, nil), table, rowstore.DefaultCodec(), nil, logging.Discard())
	_, err := e.Apply(context.Background(), nil)
	assert.ErrorIs(t, err, rowstore.ErrTableNotFound)
}

package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/clinic-agenda/internal/agenda"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ApplyPayments sets the paid flag on a patient's appointments. Slots that
// no longer belong to the patient, or already carry the wanted flag, are
// skipped. Only the paid cell is ever written.
func (e *Engine) ApplyPayments(ctx context.Context, patient string, paid map[agenda.SlotKey]bool) (Result, error) {
	patient = strings.TrimSpace(patient)
	ctx, span := e.tracer.Start(ctx, "reconcile.apply_payments", trace.WithAttributes(
		attribute.String("reconcile.table", e.table),
		attribute.Int("reconcile.changes", len(paid)),
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

	var p plan
	for _, key := range sortedKeys(paid) {
		b, ok := bookingOf(appts.At(key), patient)
		if !ok || b.Cell.Paid == paid[key] {
			p.skipped++
			continue
		}
		target := agenda.Cell{Patient: patient, Paid: paid[key]}
		p.updates = append(p.updates, update{
			Write: Write{Kind: agenda.KindUpdate, Key: key, Slot: key.String(), Row: b.Row, Cell: target},
			cells: map[int]string{appts.Columns.Paid: e.codec.FormatBool(target.Paid)},
		})
	}

	res, err := e.execute(ctx, appts, p)
	e.metrics.ObserveBatch(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		e.logger.Error("payment batch stopped", "patient", patient, "error", err, "updated", res.Updated)
		return res, err
	}
	if err := e.tables.InvalidateAll(ctx); err != nil {
		e.logger.Warn("cache invalidation failed", "error", err)
	}
	e.logger.Info("payment batch applied", "patient", patient, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func bookingOf(rows []agenda.Booking, patient string) (agenda.Booking, bool) {
	for _, b := range rows {
		if b.Cell.Patient == patient {
			return b, true
		}
	}
	return agenda.Booking{}, false
}

func sortedKeys(m map[agenda.SlotKey]bool) []agenda.SlotKey {
	keys := make([]agenda.SlotKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

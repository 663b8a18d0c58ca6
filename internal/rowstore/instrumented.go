package rowstore

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-agenda/internal/observability/metrics"
	"github.com/wolfman30/clinic-agenda/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented decorates a Store with spans, metrics and debug logs.
type Instrumented struct {
	next    Store
	metrics *metrics.RowStoreMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewInstrumented wraps next. metrics may be nil.
func NewInstrumented(next Store, m *metrics.RowStoreMetrics, logger *logging.Logger) *Instrumented {
	if logger == nil {
		logger = logging.Default()
	}
	return &Instrumented{
		next:    next,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("clinic.internal.rowstore"),
	}
}

func (s *Instrumented) ReadTable(ctx context.Context, name string) (*Table, error) {
	var out *Table
	err := s.observe(ctx, "read", name, func(ctx context.Context) error {
		var err error
		out, err = s.next.ReadTable(ctx, name)
		return err
	}, attribute.String("rowstore.table", name))
	return out, err
}

func (s *Instrumented) AppendRow(ctx context.Context, table string, row []string) error {
	return s.observe(ctx, "append", table, func(ctx context.Context) error {
		return s.next.AppendRow(ctx, table, row)
	}, attribute.String("rowstore.table", table))
}

func (s *Instrumented) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	return s.observe(ctx, "update", table, func(ctx context.Context) error {
		return s.next.UpdateCell(ctx, table, row, col, value)
	}, attribute.String("rowstore.table", table), attribute.Int("rowstore.row", row), attribute.Int("rowstore.col", col))
}

func (s *Instrumented) DeleteRow(ctx context.Context, table string, row int) error {
	return s.observe(ctx, "delete", table, func(ctx context.Context) error {
		return s.next.DeleteRow(ctx, table, row)
	}, attribute.String("rowstore.table", table), attribute.Int("rowstore.row", row))
}

func (s *Instrumented) OverwriteTable(ctx context.Context, table string, header []string, rows [][]string) error {
	return s.observe(ctx, "overwrite", table, func(ctx context.Context) error {
		return s.next.OverwriteTable(ctx, table, header, rows)
	}, attribute.String("rowstore.table", table), attribute.Int("rowstore.rows", len(rows)))
}

func (s *Instrumented) observe(ctx context.Context, op, table string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer.Start(ctx, "rowstore."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	s.metrics.ObserveCall(op, table, err, elapsed.Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("row store call failed", "op", op, "table", table, "error", err)
		return err
	}
	s.logger.Debug("row store call", "op", op, "table", table, "duration_ms", elapsed.Milliseconds())
	return nil
}

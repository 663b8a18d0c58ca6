package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "clinic"

// RowStoreMetrics counts remote spreadsheet calls.
type RowStoreMetrics struct {
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
}

func NewRowStoreMetrics(reg prometheus.Registerer) *RowStoreMetrics {
	m := &RowStoreMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rowstore",
			Name:      "calls_total",
			Help:      "Total remote row store calls",
		}, []string{"op", "table", "status"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rowstore",
			Name:      "call_latency_seconds",
			Help:      "Latency of remote row store calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callLatency)
	return m
}

func (m *RowStoreMetrics) ObserveCall(op, table string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.callsTotal.WithLabelValues(op, table, status).Inc()
	m.callLatency.WithLabelValues(op).Observe(seconds)
}

// CacheMetrics tracks snapshot cache effectiveness.
type CacheMetrics struct {
	lookups       *prometheus.CounterVec
	invalidations prometheus.Counter
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Snapshot cache lookups by table and result",
		}, []string{"table", "result"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Global snapshot cache invalidations",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.lookups, m.invalidations)
	return m
}

func (m *CacheMetrics) ObserveLookup(table string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(table, result).Inc()
}

func (m *CacheMetrics) ObserveInvalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

// ReconcileMetrics counts row writes issued by reconciliation batches.
type ReconcileMetrics struct {
	writesTotal  *prometheus.CounterVec
	batchesTotal *prometheus.CounterVec
}

func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	m := &ReconcileMetrics{
		writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "writes_total",
			Help:      "Row writes issued by reconciliation, by kind",
		}, []string{"kind"}),
		batchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "batches_total",
			Help:      "Reconciliation batches by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.writesTotal, m.batchesTotal)
	return m
}

func (m *ReconcileMetrics) ObserveWrite(kind string) {
	if m == nil {
		return
	}
	m.writesTotal.WithLabelValues(kind).Inc()
}

func (m *ReconcileMetrics) ObserveBatch(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "partial"
	}
	m.batchesTotal.WithLabelValues(outcome).Inc()
}

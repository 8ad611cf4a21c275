// Package metrics records grid table activity with Prometheus.
//
// # Overview
//
// A Collector owns one set of counters and histograms, labelled by table
// name, and registers them on the registerer the caller passes in. Nothing
// is registered globally, so tests and embedding applications can create as
// many collectors as they need.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector, err := metrics.NewCollector(reg)
//	if err != nil {
//	    return err
//	}
//	table := gridtable.New(info, store, gridtable.WithMetrics(collector))
//
// All recording methods are safe on a nil *Collector, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name
const Namespace = "gridtable"

// Collector groups the grid table's Prometheus metrics
type Collector struct {
	rowsWritten       *prometheus.CounterVec
	blocksWritten     *prometheus.CounterVec
	rowsScanned       *prometheus.CounterVec
	blocksScanned     *prometheus.CounterVec
	rowsYielded       *prometheus.CounterVec
	aggregationGroups *prometheus.HistogramVec
	capViolations     *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
}

// NewCollector creates the collector and registers it on reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_written_total",
			Help:      "Rows written by builders",
		}, []string{"table"}),
		blocksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "row_blocks_written_total",
			Help:      "Row blocks flushed to the block store, including rewritten last blocks",
		}, []string{"table"}),
		rowsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_scanned_total",
			Help:      "Rows read from visited row blocks",
		}, []string{"table"}),
		blocksScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "row_blocks_scanned_total",
			Help:      "Row blocks visited by scanners",
		}, []string{"table"}),
		rowsYielded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_yielded_total",
			Help:      "Rows returned to callers after range and filter checks",
		}, []string{"table", "scanner"}),
		aggregationGroups: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "aggregation_groups",
			Help:      "Distinct groups held by an aggregation cache at completion",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}, []string{"table"}),
		capViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "memory_cap_violations_total",
			Help:      "Aggregations aborted because the projected memory exceeded the cap",
		}, []string{"table"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of build and scan operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table", "operation"}),
	}

	for _, m := range []prometheus.Collector{
		c.rowsWritten, c.blocksWritten, c.rowsScanned, c.blocksScanned,
		c.rowsYielded, c.aggregationGroups, c.capViolations, c.operationLatency,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RowsWritten adds n written rows
func (c *Collector) RowsWritten(table string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// BlockWritten counts one flushed row block
func (c *Collector) BlockWritten(table string) {
	if c == nil {
		return
	}
	c.blocksWritten.WithLabelValues(table).Inc()
}

// BlockScanned counts one visited row block holding rows rows
func (c *Collector) BlockScanned(table string, rows int) {
	if c == nil {
		return
	}
	c.blocksScanned.WithLabelValues(table).Inc()
	c.rowsScanned.WithLabelValues(table).Add(float64(rows))
}

// RowsYielded adds n rows returned by a scanner kind ("raw" or "aggregate")
func (c *Collector) RowsYielded(table, scanner string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsYielded.WithLabelValues(table, scanner).Add(float64(n))
}

// AggregationGroups observes the final size of an aggregation cache
func (c *Collector) AggregationGroups(table string, groups int) {
	if c == nil {
		return
	}
	c.aggregationGroups.WithLabelValues(table).Observe(float64(groups))
}

// CapViolation counts one aborted aggregation
func (c *Collector) CapViolation(table string) {
	if c == nil {
		return
	}
	c.capViolations.WithLabelValues(table).Inc()
}

// Timer measures one operation. Stop records its duration.
type Timer struct {
	c         *Collector
	table     string
	operation string
	start     time.Time
}

// StartTimer starts timing operation on table
func (c *Collector) StartTimer(table, operation string) *Timer {
	return &Timer{c: c, table: table, operation: operation, start: time.Now()}
}

// Stop records and returns the elapsed time. Calling Stop again records again.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.c != nil {
		t.c.operationLatency.WithLabelValues(t.table, t.operation).Observe(d.Seconds())
	}
	return d
}

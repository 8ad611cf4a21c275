package gridtable

import (
	"context"

	"github.com/google/btree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// RowOverheadBytes is the fixed per-entry cost assumed by the aggregation
// memory estimate.
const RowOverheadBytes = 40

const aggTreeDegree = 32

// AggregateRequest groups the rows of a range by Dimensions and aggregates
// each column of Metrics with the function at the same position in AggrFuncs
// (metric columns taken in ascending order).
type AggregateRequest struct {
	Start        *Record
	EndExclusive *Record
	Dimensions   ColumnSet
	Metrics      ColumnSet
	AggrFuncs    []string
	Filter       Filter
}

type aggEntry struct {
	key  *Record
	aggs []MeasureAggregator
}

// AggregateScanner drives a raw scan to completion on the first call to
// Next, then yields one row per distinct dimension tuple in dimension order.
// Dimension columns come from the group key and metric columns hold the
// encoded aggregator states; every other column is nil.
type AggregateScanner struct {
	ctx   context.Context
	table *GridTable
	span  trace.Span
	req   AggregateRequest

	raw     *RawScanner
	metrics []int
	cmp     func(a, b *Record) int

	entries []*aggEntry
	pos     int
	out     *Record
	outBuf  []byte

	started bool
	closed  bool
	err     error
}

func newAggregateScanner(ctx context.Context, t *GridTable, req AggregateRequest, span trace.Span) (*AggregateScanner, error) {
	info := t.info
	if req.Dimensions.Intersects(req.Metrics) {
		return nil, errors.Construction("dimensions %v and metrics %v overlap",
			req.Dimensions, req.Metrics)
	}
	if len(req.AggrFuncs) != req.Metrics.Cardinality() {
		return nil, errors.Construction("%d aggregation functions for %d metric columns",
			len(req.AggrFuncs), req.Metrics.Cardinality())
	}
	if m := req.Dimensions.Union(req.Metrics).Max(); m >= info.ColumnCount() {
		return nil, errors.Construction("aggregation references undeclared column %d", m)
	}
	metricCols := req.Metrics.Indexes()
	for i, fn := range req.AggrFuncs {
		if _, err := info.CodeSystem().NewMetricsAggregator(fn, metricCols[i]); err != nil {
			return nil, err
		}
	}

	rawCtx, rawSpan := t.tracer.Start(ctx, "gridtable.scan")
	raw, err := newRawScanner(rawCtx, t, ScanRequest{
		Start:        req.Start,
		EndExclusive: req.EndExclusive,
		Columns:      req.Dimensions.Union(req.Metrics),
		Filter:       req.Filter,
	}, rawSpan)
	if err != nil {
		endSpan(rawSpan, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("aggregate.dimensions", req.Dimensions.String()),
		attribute.String("aggregate.metrics", req.Metrics.String()),
		attribute.StringSlice("aggregate.functions", req.AggrFuncs),
	)
	return &AggregateScanner{
		ctx:     ctx,
		table:   t,
		span:    span,
		req:     req,
		raw:     raw,
		metrics: metricCols,
		cmp:     KeyComparator(req.Dimensions),
		out:     NewRecord(info),
	}, nil
}

// Next returns the next group. The first call consumes the whole raw scan.
func (s *AggregateScanner) Next() bool {
	if s.closed {
		if s.err == nil {
			s.err = errors.Wrap(errors.ErrScannerClosed, errors.ErrorTypeUnsupported, "next after close")
		}
		return false
	}
	if !s.started {
		s.started = true
		if err := s.aggregate(); err != nil {
			s.err = err
			s.entries = nil
			endSpan(s.span, err)
			return false
		}
		s.table.metrics.AggregationGroups(s.table.name, len(s.entries))
		s.span.SetAttributes(attribute.Int("aggregate.groups", len(s.entries)))
		endSpan(s.span, nil)
	}
	if s.err != nil || s.pos >= len(s.entries) {
		return false
	}

	if err := s.fill(s.entries[s.pos]); err != nil {
		s.err = err
		return false
	}
	s.pos++
	s.table.metrics.RowsYielded(s.table.name, "aggregate", 1)
	return true
}

func (s *AggregateScanner) aggregate() error {
	tree := btree.NewG[*aggEntry](aggTreeDegree, func(a, b *aggEntry) bool {
		return s.cmp(a.key, b.key) < 0
	})
	defer s.raw.Close()

	cs := s.table.info.CodeSystem()
	lookup := &aggEntry{}
	var first *aggEntry
	for s.raw.Next() {
		rec := s.raw.Record()
		lookup.key = rec
		entry, found := tree.Get(lookup)
		if !found {
			entry = &aggEntry{
				key:  rec.CopyColumns(s.req.Dimensions),
				aggs: make([]MeasureAggregator, len(s.metrics)),
			}
			for i, col := range s.metrics {
				agg, err := cs.NewMetricsAggregator(s.req.AggrFuncs[i], col)
				if err != nil {
					return err
				}
				entry.aggs[i] = agg
			}
			tree.ReplaceOrInsert(entry)
			if first == nil {
				first = entry
			}
		}

		for i, col := range s.metrics {
			v, err := rec.Value(col)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeData, "decode metric column %d", col)
			}
			if err := entry.aggs[i].Aggregate(v); err != nil {
				return errors.Wrapf(err, errors.ErrorTypeData, "aggregate metric column %d", col)
			}
		}

		if !found {
			if err := s.checkMemory(tree.Len(), first); err != nil {
				tree.Clear(false)
				return err
			}
		}
	}
	if err := s.raw.Err(); err != nil {
		return err
	}

	s.entries = make([]*aggEntry, 0, tree.Len())
	tree.Ascend(func(e *aggEntry) bool {
		s.entries = append(s.entries, e)
		return true
	})
	return nil
}

// checkMemory projects the cache size from the first entry, assuming every
// entry costs the same.
func (s *AggregateScanner) checkMemory(entries int, first *aggEntry) error {
	perEntry := int64(RowOverheadBytes)
	for _, a := range first.aggs {
		perEntry += int64(a.MemBytes())
	}
	projected := int64(entries) * perEntry
	if projected <= s.table.memoryCap {
		return nil
	}
	s.table.metrics.CapViolation(s.table.name)
	s.table.logger.Error("aggregation memory cap exceeded",
		zap.Int("entries", entries),
		zap.Int64("per_entry_bytes", perEntry),
		zap.Int64("projected_bytes", projected),
		zap.Int64("cap_bytes", s.table.memoryCap),
	)
	return errors.Wrapf(errors.ErrMemoryCapExceeded, errors.ErrorTypeCapacity,
		"%d entries of about %d bytes exceed %d bytes", entries, perEntry, s.table.memoryCap)
}

func (s *AggregateScanner) fill(e *aggEntry) error {
	s.out.Clear()
	for _, c := range s.req.Dimensions.Indexes() {
		s.out.Set(c, e.key.Get(c))
	}

	cs := s.table.info.CodeSystem()
	s.outBuf = s.outBuf[:0]
	for i, col := range s.metrics {
		state := e.aggs[i].State()
		if state == nil {
			continue
		}
		start := len(s.outBuf)
		var err error
		s.outBuf, err = cs.EncodeColumnValue(col, state, s.outBuf)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeData, "encode aggregate of column %d", col)
		}
		s.out.Set(col, s.outBuf[start:len(s.outBuf):len(s.outBuf)])
	}
	return nil
}

// Record returns the current group. It is valid until the next call to Next.
func (s *AggregateScanner) Record() *Record { return s.out }

// Err returns the error that stopped the scan, if any
func (s *AggregateScanner) Err() error { return s.err }

// ScannedRowCount returns the raw scan's row count
func (s *AggregateScanner) ScannedRowCount() int { return s.raw.ScannedRowCount() }

// ScannedRowBlockCount returns the raw scan's row block count
func (s *AggregateScanner) ScannedRowBlockCount() int { return s.raw.ScannedRowBlockCount() }

// GroupCount returns the number of groups once aggregation has run
func (s *AggregateScanner) GroupCount() int { return len(s.entries) }

// Close discards the aggregation state. It is safe to call at any point and
// more than once.
func (s *AggregateScanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.entries = nil
	if !s.started {
		s.started = true
		s.span.End()
	}
	return s.raw.Close()
}

package gridtable

import (
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/logger"
	"github.com/ajitpratap0/gridtable/pkg/metrics"
)

var scanSeq atomic.Uint64

// ScanRequest selects rows of a grid table
type ScanRequest struct {
	// Start is the inclusive lower primary-key bound. Nil is unbounded.
	Start *Record
	// EndExclusive is the exclusive upper primary-key bound. Nil is unbounded.
	EndExclusive *Record
	// Columns to materialize. The empty set means every column.
	Columns ColumnSet
	// Filter is evaluated on materialized rows before they are yielded
	Filter Filter
}

// Iterator is the pull protocol shared by the raw and aggregating scanners.
//
// The record returned by Record is owned by the iterator and is overwritten
// by the next call to Next. Callers that keep a row past one step must copy
// it with Record.Copy.
type Iterator interface {
	Next() bool
	Record() *Record
	Err() error
	Close() error
	ScannedRowCount() int
	ScannedRowBlockCount() int
}

var (
	_ Iterator = (*RawScanner)(nil)
	_ Iterator = (*AggregateScanner)(nil)
)

// segmentPlan lists, for one needed column block, which of its columns to
// materialize in storage order.
type segmentPlan struct {
	block int
	cols  []int
	keep  []bool
}

// RawScanner reads row blocks in key order, decodes only the needed column
// blocks, and yields rows inside the requested range that pass the filter.
type RawScanner struct {
	ctx    context.Context
	table  *GridTable
	span   trace.Span
	timer  *metrics.Timer
	logger *zap.Logger

	req     ScanRequest
	cols    ColumnSet
	decoded ColumnSet
	plan    []segmentPlan
	pkCmp   func(a, b *Record) int

	reader BlockReader
	rec    *Record
	blk    *rowBlock
	decs   []blockDecoder
	row    int

	scannedRows   int
	scannedBlocks int
	yielded       int

	done     bool
	closed   bool
	finished bool
	err      error
}

func newRawScanner(ctx context.Context, t *GridTable, req ScanRequest, span trace.Span) (*RawScanner, error) {
	info := t.info
	cols := req.Columns
	if cols.IsEmpty() {
		cols = info.AllColumns()
	}
	if cols.Max() >= info.ColumnCount() {
		return nil, errors.Construction("scan requests undeclared column %d", cols.Max())
	}
	decoded := cols.Union(info.PrimaryKey())
	if req.Filter != nil {
		fc := req.Filter.Columns()
		if fc.Max() >= info.ColumnCount() {
			return nil, errors.Construction("filter reads undeclared column %d", fc.Max())
		}
		decoded = decoded.Union(fc)
	}

	var plan []segmentPlan
	for _, blk := range info.blocksFor(decoded).Indexes() {
		set := info.ColumnBlocks()[blk]
		p := segmentPlan{block: blk, cols: set.Indexes(), keep: make([]bool, set.Cardinality())}
		for i, c := range p.cols {
			p.keep[i] = decoded.Contains(c)
		}
		plan = append(plan, p)
	}

	reader, err := t.store.ReadBlocks(ctx, AllBlocks)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "open block reader")
	}

	scanID := strconv.FormatUint(scanSeq.Add(1), 10)
	span.SetAttributes(attribute.String("scan.id", scanID), attribute.String("scan.columns", cols.String()))
	return &RawScanner{
		ctx:     ctx,
		table:   t,
		span:    span,
		timer:   t.metrics.StartTimer(t.name, "scan"),
		logger:  t.logger.With(zap.String(string(logger.ScanIDKey), scanID)),
		req:     req,
		cols:    cols,
		decoded: decoded,
		plan:    plan,
		pkCmp:   KeyComparator(info.PrimaryKey()),
		reader:  reader,
		rec:     NewRecord(info),
		decs:    make([]blockDecoder, len(plan)),
	}, nil
}

// Next advances to the next matching row
func (s *RawScanner) Next() bool {
	if s.closed {
		if s.err == nil {
			s.err = errors.Wrap(errors.ErrScannerClosed, errors.ErrorTypeUnsupported, "next after close")
		}
		return false
	}
	if s.done {
		return false
	}

	for {
		if s.blk == nil || s.row >= s.blk.rows {
			if !s.nextBlock() {
				s.finish()
				return false
			}
			continue
		}

		if err := s.decodeRow(); err != nil {
			s.err = err
			s.finish()
			return false
		}
		s.row++

		if s.req.Start != nil && s.pkCmp(s.rec, s.req.Start) < 0 {
			continue
		}
		if s.req.EndExclusive != nil && s.pkCmp(s.rec, s.req.EndExclusive) >= 0 {
			s.finish()
			return false
		}
		if s.req.Filter != nil {
			ok, err := s.req.Filter.Evaluate(s.rec)
			if err != nil {
				s.err = err
				s.finish()
				return false
			}
			if !ok {
				continue
			}
		}
		s.hideUnrequested()
		s.yielded++
		return true
	}
}

// nextBlock loads the next block that may hold rows in range. Blocks wholly
// below Start are skipped without counting; the first block at or past
// EndExclusive ends the scan.
func (s *RawScanner) nextBlock() bool {
	info := s.table.info
	for {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
		payload, err := s.reader.Next()
		if stderrors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			s.err = errors.Wrap(err, errors.ErrorTypeInternal, "read row block")
			return false
		}
		blk, err := decodeRowBlock(info, payload)
		if err != nil {
			s.err = err
			return false
		}
		if blk.rows == 0 {
			continue
		}
		if s.req.Start != nil && s.pkCmp(pkRecord(info, blk.last), s.req.Start) < 0 {
			continue
		}
		if s.req.EndExclusive != nil && s.pkCmp(pkRecord(info, blk.first), s.req.EndExclusive) >= 0 {
			return false
		}

		s.blk = blk
		s.row = 0
		for i, p := range s.plan {
			s.decs[i] = blockDecoder{buf: blk.segments[p.block]}
		}
		s.scannedBlocks++
		s.scannedRows += blk.rows
		s.table.metrics.BlockScanned(s.table.name, blk.rows)
		return true
	}
}

func (s *RawScanner) decodeRow() error {
	s.rec.Clear()
	for i := range s.plan {
		p := &s.plan[i]
		d := &s.decs[i]
		for j, c := range p.cols {
			if p.keep[j] {
				s.rec.Set(c, d.cell())
			} else {
				d.skipCell()
			}
		}
		if d.err != nil {
			return d.err
		}
	}
	return nil
}

// hideUnrequested unsets columns decoded only for range checks or the filter
func (s *RawScanner) hideUnrequested() {
	if s.decoded.Cardinality() == s.cols.Cardinality() {
		return
	}
	for _, c := range s.decoded.Indexes() {
		if !s.cols.Contains(c) {
			s.rec.Set(c, nil)
		}
	}
}

// Record returns the current row. It is valid until the next call to Next.
func (s *RawScanner) Record() *Record { return s.rec }

// Err returns the error that stopped the scan, if any
func (s *RawScanner) Err() error { return s.err }

// ScannedRowCount returns the rows of every visited block
func (s *RawScanner) ScannedRowCount() int { return s.scannedRows }

// ScannedRowBlockCount returns the number of visited blocks
func (s *RawScanner) ScannedRowBlockCount() int { return s.scannedBlocks }

// YieldedRowCount returns the rows returned by Next so far
func (s *RawScanner) YieldedRowCount() int { return s.yielded }

func (s *RawScanner) finish() {
	s.done = true
	if s.finished {
		return
	}
	s.finished = true
	s.timer.Stop()
	s.table.metrics.RowsYielded(s.table.name, "raw", s.yielded)
	s.span.SetAttributes(
		attribute.Int("rows.scanned", s.scannedRows),
		attribute.Int("row_blocks.scanned", s.scannedBlocks),
		attribute.Int("rows.yielded", s.yielded),
	)
	endSpan(s.span, s.err)
	s.logger.Debug("scan finished",
		zap.Int("scanned_rows", s.scannedRows),
		zap.Int("scanned_row_blocks", s.scannedBlocks),
		zap.Int("yielded_rows", s.yielded),
		zap.Error(s.err),
	)
}

// Close releases the block reader. It is safe to call at any point and more
// than once.
func (s *RawScanner) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.finish()
	s.blk = nil
	return s.reader.Close()
}

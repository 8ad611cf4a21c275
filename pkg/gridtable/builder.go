package gridtable

import (
	"context"
	stderrors "errors"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/metrics"
)

// Builder serializes records into row blocks and flushes them to the block
// store. Records must arrive in non-decreasing primary-key order; the order
// is not checked. A Builder is not safe for concurrent use.
type Builder struct {
	ctx   context.Context
	table *GridTable
	span  trace.Span
	timer *metrics.Timer
	mode  string

	w *rowBlockWriter
	// replacing is set while w holds the store's last block
	replacing bool
	dirty     bool

	baseRows int
	appended int
	blocks   int
	closed   bool
}

func newBuilder(ctx context.Context, t *GridTable, span trace.Span, mode string) *Builder {
	return &Builder{
		ctx:   ctx,
		table: t,
		span:  span,
		timer: t.metrics.StartTimer(t.name, mode),
		mode:  mode,
		w:     newRowBlockWriter(t.info),
	}
}

// openLastBlock counts the rows already stored and, when the last block has
// room left, loads it so new rows keep filling it.
func (b *Builder) openLastBlock() error {
	rd, err := b.table.store.ReadBlocks(b.ctx, AllBlocks)
	if err != nil {
		return err
	}
	defer rd.Close()

	var (
		last     []byte
		lastRows int
	)
	for {
		payload, err := rd.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		blk, err := decodeRowBlock(b.table.info, payload)
		if err != nil {
			return err
		}
		b.baseRows += blk.rows
		b.blocks++
		last, lastRows = payload, blk.rows
	}

	info := b.table.info
	if last == nil || (info.IsRowBlockEnabled() && lastRows >= info.RowBlockSize()) {
		return nil
	}
	if err := b.w.load(last); err != nil {
		return err
	}
	b.baseRows -= b.w.rows
	b.replacing = true
	return nil
}

// Write adds one record
func (b *Builder) Write(rec *Record) error {
	if b.closed {
		return errors.Wrap(errors.ErrBuilderClosed, errors.ErrorTypeUnsupported, "write after close")
	}
	info := b.table.info
	if n := rec.EncodedLength(); n > info.MaxRecordLength() {
		return errors.Wrapf(errors.ErrRecordTooLong, errors.ErrorTypeCapacity,
			"record of %d bytes exceeds max record length %d", n, info.MaxRecordLength())
	}

	b.w.add(rec)
	b.dirty = true
	b.appended++
	if info.IsRowBlockEnabled() && b.w.rows >= info.RowBlockSize() {
		return b.flush()
	}
	return nil
}

func (b *Builder) flush() error {
	if !b.dirty {
		return nil
	}
	payload := b.w.encode()
	var err error
	if b.replacing {
		err = b.table.store.ReplaceLastBlock(b.ctx, payload)
	} else {
		err = b.table.store.AppendBlock(b.ctx, payload)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "flush row block")
	}
	if !b.replacing {
		b.blocks++
	}

	b.table.metrics.BlockWritten(b.table.name)
	b.table.logger.Debug("row block flushed",
		zap.String("mode", b.mode),
		zap.Int("rows", b.w.rows),
		zap.Int("bytes", len(payload)),
		zap.Bool("replaced", b.replacing),
	)

	b.baseRows += b.w.rows
	b.replacing = false
	b.dirty = false
	b.w.reset()
	return nil
}

// Close flushes the pending block. Closing twice fails with ErrBuilderClosed.
func (b *Builder) Close() error {
	if b.closed {
		return errors.Wrap(errors.ErrBuilderClosed, errors.ErrorTypeUnsupported, "close after close")
	}
	b.closed = true
	err := b.flush()

	b.timer.Stop()
	b.table.metrics.RowsWritten(b.table.name, b.appended)
	b.span.SetAttributes(
		attribute.Int("rows.appended", b.appended),
		attribute.Int("rows.total", b.WrittenRowCount()),
		attribute.Int("row_blocks.total", b.WrittenRowBlockCount()),
	)
	endSpan(b.span, err)
	if err != nil {
		return err
	}
	b.table.logger.Debug("builder closed",
		zap.String("mode", b.mode),
		zap.Int("appended_rows", b.appended),
		zap.Int("total_rows", b.WrittenRowCount()),
		zap.Int("total_row_blocks", b.WrittenRowBlockCount()),
	)
	return nil
}

// WrittenRowCount returns the rows the table holds including this builder's
// pending rows.
func (b *Builder) WrittenRowCount() int {
	return b.baseRows + b.w.rows
}

// WrittenRowBlockCount returns the row blocks the table holds including a
// pending new block.
func (b *Builder) WrittenRowBlockCount() int {
	if b.w.rows > 0 && !b.replacing {
		return b.blocks + 1
	}
	return b.blocks
}

// AppendedRowCount returns the rows written through this builder
func (b *Builder) AppendedRowCount() int { return b.appended }

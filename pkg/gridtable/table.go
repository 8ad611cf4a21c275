package gridtable

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/logger"
	"github.com/ajitpratap0/gridtable/pkg/metrics"
)

// DefaultMemoryCap bounds the projected memory of one aggregation cache
const DefaultMemoryCap int64 = 500 << 20

const tracerName = "github.com/ajitpratap0/gridtable/pkg/gridtable"

// GridTable binds a schema to a block store and hands out builders and
// scanners over it. It holds no per-scan state.
type GridTable struct {
	info      *Info
	store     BlockStore
	name      string
	logger    *zap.Logger
	metrics   *metrics.Collector
	tracer    trace.Tracer
	memoryCap int64
}

// Option configures a GridTable
type Option func(*GridTable)

// WithName sets the table name used in logs and metric labels
func WithName(name string) Option {
	return func(t *GridTable) { t.name = name }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(t *GridTable) { t.logger = l }
}

// WithMetrics sets the metrics collector
func WithMetrics(c *metrics.Collector) Option {
	return func(t *GridTable) { t.metrics = c }
}

// WithTracer sets the tracer used for build and scan spans
func WithTracer(tr trace.Tracer) Option {
	return func(t *GridTable) { t.tracer = tr }
}

// WithMemoryCap sets the aggregation memory cap in bytes. Values <= 0 keep
// the default.
func WithMemoryCap(bytes int64) Option {
	return func(t *GridTable) {
		if bytes > 0 {
			t.memoryCap = bytes
		}
	}
}

// New creates a grid table over store
func New(info *Info, store BlockStore, opts ...Option) *GridTable {
	t := &GridTable{
		info:      info,
		store:     store,
		name:      "gridtable",
		memoryCap: DefaultMemoryCap,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logger.Get()
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(tracerName)
	}
	t.logger = t.logger.With(zap.String(string(logger.TableKey), t.name))
	return t
}

// Info returns the table schema
func (t *GridTable) Info() *Info { return t.info }

// Name returns the table name
func (t *GridTable) Name() string { return t.name }

// MemoryCap returns the aggregation memory cap in bytes
func (t *GridTable) MemoryCap() int64 { return t.memoryCap }

// Rebuild truncates the store and returns a builder that writes the table
// from scratch.
func (t *GridTable) Rebuild(ctx context.Context) (*Builder, error) {
	ctx, span := t.tracer.Start(ctx, "gridtable.rebuild", trace.WithAttributes(attribute.String("table", t.name)))
	if err := t.store.Truncate(ctx); err != nil {
		endSpan(span, err)
		return nil, err
	}
	return newBuilder(ctx, t, span, "rebuild"), nil
}

// Append returns a builder that adds rows after the existing ones. A last
// block that is not full keeps being filled before new blocks are started.
func (t *GridTable) Append(ctx context.Context) (*Builder, error) {
	ctx, span := t.tracer.Start(ctx, "gridtable.append", trace.WithAttributes(attribute.String("table", t.name)))
	b := newBuilder(ctx, t, span, "append")
	if err := b.openLastBlock(); err != nil {
		endSpan(span, err)
		return nil, err
	}
	return b, nil
}

// Scan returns a raw scanner for req
func (t *GridTable) Scan(ctx context.Context, req ScanRequest) (*RawScanner, error) {
	ctx, span := t.tracer.Start(ctx, "gridtable.scan", trace.WithAttributes(attribute.String("table", t.name)))
	s, err := newRawScanner(ctx, t, req, span)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	return s, nil
}

// ScanAndAggregate returns a scanner that groups the rows of req by its
// dimensions and aggregates its metrics.
func (t *GridTable) ScanAndAggregate(ctx context.Context, req AggregateRequest) (*AggregateScanner, error) {
	ctx, span := t.tracer.Start(ctx, "gridtable.aggregate", trace.WithAttributes(attribute.String("table", t.name)))
	s, err := newAggregateScanner(ctx, t, req, span)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}
	return s, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

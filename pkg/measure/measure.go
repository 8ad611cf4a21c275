// Package measure provides the mergeable aggregators grid tables use for
// metric columns: count, sum, min and max.
package measure

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
)

// Function names
const (
	FuncCount = "count"
	FuncSum   = "sum"
	FuncMin   = "min"
	FuncMax   = "max"
)

// New creates the aggregator for fn over a column of type dt. Names are
// matched case-insensitively.
func New(fn string, dt datatype.DataType) (gridtable.MeasureAggregator, error) {
	switch strings.ToLower(strings.TrimSpace(fn)) {
	case FuncCount:
		switch dt.Kind {
		case datatype.KindDate, datatype.KindTimestamp, datatype.KindBoolean:
			return nil, errors.Wrapf(errors.ErrUnsupportedAggregation, errors.ErrorTypeUnsupported,
				"count over %s column", dt.Name())
		}
		return &Count{}, nil
	case FuncSum:
		switch dt.Kind {
		case datatype.KindBigint, datatype.KindInteger:
			return &LongSum{dt: dt}, nil
		case datatype.KindDouble:
			return &DoubleSum{}, nil
		case datatype.KindDecimal:
			return &DecimalSum{}, nil
		default:
			return nil, errors.Wrapf(errors.ErrUnsupportedAggregation, errors.ErrorTypeUnsupported,
				"sum over %s column", dt.Name())
		}
	case FuncMin:
		return &Extreme{dt: dt, max: false}, nil
	case FuncMax:
		return &Extreme{dt: dt, max: true}, nil
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedAggregation, errors.ErrorTypeUnsupported,
			"aggregation function %q", fn)
	}
}

// Count counts every aggregated row, nil values included. Its state is
// written back into the metric column, so varchar columns carry the count
// as decimal text.
type Count struct {
	n int64
}

func (c *Count) Aggregate(any) error { c.n++; return nil }
func (c *Count) State() any          { return c.n }
func (c *Count) MemBytes() int       { return 8 }
func (c *Count) Reset()              { c.n = 0 }

// LongSum sums bigint and integer columns as int64. Nil values are skipped;
// the state stays nil until a value arrives.
type LongSum struct {
	dt   datatype.DataType
	sum  int64
	seen bool
}

func (s *LongSum) Aggregate(v any) error {
	if v == nil {
		return nil
	}
	n, err := datatype.DataType{Kind: datatype.KindBigint}.Normalize(v)
	if err != nil {
		return err
	}
	s.sum += n.(int64)
	s.seen = true
	return nil
}

func (s *LongSum) State() any {
	if !s.seen {
		return nil
	}
	return s.sum
}

func (s *LongSum) MemBytes() int { return 16 }
func (s *LongSum) Reset()        { s.sum, s.seen = 0, false }

// DoubleSum sums double columns
type DoubleSum struct {
	sum  float64
	seen bool
}

func (s *DoubleSum) Aggregate(v any) error {
	if v == nil {
		return nil
	}
	f, err := datatype.DataType{Kind: datatype.KindDouble}.Normalize(v)
	if err != nil {
		return err
	}
	s.sum += f.(float64)
	s.seen = true
	return nil
}

func (s *DoubleSum) State() any {
	if !s.seen {
		return nil
	}
	return s.sum
}

func (s *DoubleSum) MemBytes() int { return 16 }
func (s *DoubleSum) Reset()        { s.sum, s.seen = 0, false }

// DecimalSum sums decimal columns exactly
type DecimalSum struct {
	sum  decimal.Decimal
	seen bool
}

func (s *DecimalSum) Aggregate(v any) error {
	if v == nil {
		return nil
	}
	d, err := datatype.DataType{Kind: datatype.KindDecimal}.Normalize(v)
	if err != nil {
		return err
	}
	s.sum = s.sum.Add(d.(decimal.Decimal))
	s.seen = true
	return nil
}

func (s *DecimalSum) State() any {
	if !s.seen {
		return nil
	}
	return s.sum
}

// MemBytes grows with the magnitude of the running sum
func (s *DecimalSum) MemBytes() int {
	return 40 + len(s.sum.Coefficient().Bits())*8
}

func (s *DecimalSum) Reset() { s.sum, s.seen = decimal.Decimal{}, false }

// Extreme keeps the minimum or maximum value under the column type's order
type Extreme struct {
	dt  datatype.DataType
	max bool
	v   any
}

func (e *Extreme) Aggregate(v any) error {
	if v == nil {
		return nil
	}
	if e.v == nil {
		nv, err := e.dt.Normalize(v)
		if err != nil {
			return err
		}
		e.v = nv
		return nil
	}
	c, err := e.dt.Compare(v, e.v)
	if err != nil {
		return err
	}
	if (e.max && c > 0) || (!e.max && c < 0) {
		nv, err := e.dt.Normalize(v)
		if err != nil {
			return err
		}
		e.v = nv
	}
	return nil
}

func (e *Extreme) State() any { return e.v }

func (e *Extreme) MemBytes() int {
	if s, ok := e.v.(string); ok {
		return 16 + len(s)
	}
	return 24
}

func (e *Extreme) Reset() { e.v = nil }

// Package codesystem provides code systems for grid tables.
//
// SampleCodeSystem encodes every column type into a compact binary form.
// Fixed-width numeric and temporal encodings flip the sign bit so that
// byte order matches value order, which keeps primary-key range pruning
// correct. Decimal columns are stored as their canonical string and are not
// order-preserving; they should not be used as primary-key columns.
//
// DictionaryCodeSystem replaces chosen varchar columns with fixed-width
// dictionary ids and delegates every other column.
package codesystem

import (
	"encoding/binary"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/measure"
)

// DefaultVarcharMaxLength bounds varchar columns declared without a length
const DefaultVarcharMaxLength = 256

const decimalMaxLength = 40

const secondsPerDay = 24 * 60 * 60

// SampleCodeSystem is the reference code system. It must be bound to a
// schema through InfoBuilder before use.
type SampleCodeSystem struct {
	types      []datatype.DataType
	varcharMax int
}

var (
	_ gridtable.CodeSystem    = (*SampleCodeSystem)(nil)
	_ gridtable.Initializer   = (*SampleCodeSystem)(nil)
	_ gridtable.LengthBounded = (*SampleCodeSystem)(nil)
)

// SampleOption configures a SampleCodeSystem
type SampleOption func(*SampleCodeSystem)

// WithVarcharMaxLength bounds varchar columns declared without a length
func WithVarcharMaxLength(n int) SampleOption {
	return func(cs *SampleCodeSystem) {
		if n > 0 {
			cs.varcharMax = n
		}
	}
}

// NewSample creates an unbound SampleCodeSystem
func NewSample(opts ...SampleOption) *SampleCodeSystem {
	cs := &SampleCodeSystem{varcharMax: DefaultVarcharMaxLength}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// Init binds the code system to the schema's column types. A bound code
// system may be shared only by infos with the same column types.
func (cs *SampleCodeSystem) Init(info *gridtable.Info) error {
	types := info.ColumnTypes()
	if cs.types != nil {
		if !slices.Equal(cs.types, types) {
			return errors.Construction("code system is already bound to a different schema")
		}
		return nil
	}
	cs.types = append([]datatype.DataType(nil), types...)
	return nil
}

func (cs *SampleCodeSystem) typeOf(col int) (datatype.DataType, error) {
	if cs.types == nil {
		return datatype.DataType{}, errors.New(errors.ErrorTypeInternal, "code system is not bound to a schema")
	}
	if col < 0 || col >= len(cs.types) {
		return datatype.DataType{}, errors.Newf(errors.ErrorTypeConstruction, "column %d is not declared", col)
	}
	return cs.types[col], nil
}

// MaxLength returns the largest encoding of column col
func (cs *SampleCodeSystem) MaxLength(col int) int {
	dt, err := cs.typeOf(col)
	if err != nil {
		return 0
	}
	switch dt.Kind {
	case datatype.KindVarchar:
		if dt.Precision > 0 {
			return dt.Precision
		}
		return cs.varcharMax
	case datatype.KindBigint, datatype.KindDouble, datatype.KindTimestamp:
		return 8
	case datatype.KindInteger, datatype.KindDate:
		return 4
	case datatype.KindBoolean:
		return 1
	case datatype.KindDecimal:
		if dt.Precision > 0 {
			return dt.Precision + 3
		}
		return decimalMaxLength
	default:
		return 0
	}
}

// EncodeColumnValue appends the encoding of value to dst
func (cs *SampleCodeSystem) EncodeColumnValue(col int, value any, dst []byte) ([]byte, error) {
	dt, err := cs.typeOf(col)
	if err != nil {
		return dst, err
	}
	v, err := dt.Normalize(value)
	if err != nil {
		return dst, errors.Wrapf(err, errors.ErrorTypeData, "column %d", col)
	}

	switch dt.Kind {
	case datatype.KindVarchar:
		s := v.(string)
		if limit := cs.MaxLength(col); len(s) > limit {
			return dst, errors.Newf(errors.ErrorTypeCapacity, "column %d: %d bytes exceed varchar limit %d", col, len(s), limit)
		}
		return append(dst, s...), nil
	case datatype.KindBigint:
		return binary.BigEndian.AppendUint64(dst, uint64(v.(int64))^(1<<63)), nil //nolint:gosec // G115: sign flip
	case datatype.KindInteger:
		return binary.BigEndian.AppendUint32(dst, uint32(v.(int32))^(1<<31)), nil //nolint:gosec // G115: sign flip
	case datatype.KindDouble:
		return binary.BigEndian.AppendUint64(dst, orderedFloatBits(v.(float64))), nil
	case datatype.KindDecimal:
		return append(dst, v.(decimal.Decimal).String()...), nil
	case datatype.KindDate:
		days := floorDiv(v.(time.Time).Unix(), secondsPerDay)
		return binary.BigEndian.AppendUint32(dst, uint32(int32(days))^(1<<31)), nil //nolint:gosec // G115: dates fit in int32 days
	case datatype.KindTimestamp:
		return binary.BigEndian.AppendUint64(dst, uint64(v.(time.Time).UnixMilli())^(1<<63)), nil //nolint:gosec // G115: sign flip
	case datatype.KindBoolean:
		if v.(bool) {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	default:
		return dst, errors.Newf(errors.ErrorTypeUnsupported, "column %d: cannot encode %s", col, dt.Name())
	}
}

// DecodeColumnValue decodes the bytes of column col
func (cs *SampleCodeSystem) DecodeColumnValue(col int, b []byte) (any, error) {
	dt, err := cs.typeOf(col)
	if err != nil {
		return nil, err
	}
	if want := fixedWidth(dt.Kind); want > 0 && len(b) != want {
		return nil, errors.Newf(errors.ErrorTypeData, "column %d: %s needs %d bytes, got %d", col, dt.Name(), want, len(b))
	}

	switch dt.Kind {
	case datatype.KindVarchar:
		return string(b), nil
	case datatype.KindBigint:
		return int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil //nolint:gosec // G115: sign flip
	case datatype.KindInteger:
		return int32(binary.BigEndian.Uint32(b) ^ (1 << 31)), nil //nolint:gosec // G115: sign flip
	case datatype.KindDouble:
		return floatFromOrderedBits(binary.BigEndian.Uint64(b)), nil
	case datatype.KindDecimal:
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeData, "column %d", col)
		}
		return d, nil
	case datatype.KindDate:
		days := int32(binary.BigEndian.Uint32(b) ^ (1 << 31)) //nolint:gosec // G115: sign flip
		return time.Unix(int64(days)*secondsPerDay, 0).UTC(), nil
	case datatype.KindTimestamp:
		ms := int64(binary.BigEndian.Uint64(b) ^ (1 << 63)) //nolint:gosec // G115: sign flip
		return time.UnixMilli(ms).UTC(), nil
	case datatype.KindBoolean:
		return b[0] != 0, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupported, "column %d: cannot decode %s", col, dt.Name())
	}
}

// NewMetricsAggregator creates the aggregator fn over column col
func (cs *SampleCodeSystem) NewMetricsAggregator(fn string, col int) (gridtable.MeasureAggregator, error) {
	dt, err := cs.typeOf(col)
	if err != nil {
		return nil, err
	}
	return measure.New(fn, dt)
}

func fixedWidth(k datatype.Kind) int {
	switch k {
	case datatype.KindBigint, datatype.KindDouble, datatype.KindTimestamp:
		return 8
	case datatype.KindInteger, datatype.KindDate:
		return 4
	case datatype.KindBoolean:
		return 1
	default:
		return 0
	}
}

// orderedFloatBits maps IEEE bits so unsigned order matches float order
func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | 1<<63
}

func floatFromOrderedBits(bits uint64) float64 {
	if bits&(1<<63) != 0 {
		return math.Float64frombits(bits &^ (1 << 63))
	}
	return math.Float64frombits(^bits)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Package datatype describes the column types a grid table can hold and the
// canonical Go representation of their decoded values.
package datatype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the logical type of a column
type Kind int

const (
	KindVarchar Kind = iota
	KindBigint
	KindInteger
	KindDouble
	KindDecimal
	KindDate
	KindTimestamp
	KindBoolean
)

// DateLayout is the textual form accepted for date values
const DateLayout = "2006-01-02"

// TimestampLayout is the textual form accepted for timestamp values
const TimestampLayout = "2006-01-02 15:04:05"

func (k Kind) String() string {
	switch k {
	case KindVarchar:
		return "varchar"
	case KindBigint:
		return "bigint"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// DataType is a column type tag. Precision applies to varchar (max length)
// and decimal; Scale applies to decimal only.
type DataType struct {
	Kind      Kind
	Precision int
	Scale     int
}

// Parse parses a type name such as "varchar", "varchar(64)", "bigint" or
// "decimal(19,4)".
func Parse(name string) (DataType, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	base, args := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return DataType{}, fmt.Errorf("malformed type %q", name)
		}
		base, args = strings.TrimSpace(s[:i]), s[i+1:len(s)-1]
	}

	var dt DataType
	switch base {
	case "varchar", "string", "char":
		dt.Kind = KindVarchar
	case "bigint", "long":
		dt.Kind = KindBigint
	case "integer", "int", "smallint", "tinyint":
		dt.Kind = KindInteger
	case "double", "float", "real":
		dt.Kind = KindDouble
	case "decimal", "numeric":
		dt.Kind = KindDecimal
	case "date":
		dt.Kind = KindDate
	case "timestamp", "datetime":
		dt.Kind = KindTimestamp
	case "boolean", "bool":
		dt.Kind = KindBoolean
	default:
		return DataType{}, fmt.Errorf("unknown data type %q", name)
	}

	if args != "" {
		parts := strings.Split(args, ",")
		if len(parts) > 2 {
			return DataType{}, fmt.Errorf("malformed type %q", name)
		}
		p, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || p < 0 {
			return DataType{}, fmt.Errorf("malformed precision in %q", name)
		}
		dt.Precision = p
		if len(parts) == 2 {
			sc, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err != nil || sc < 0 {
				return DataType{}, fmt.Errorf("malformed scale in %q", name)
			}
			dt.Scale = sc
		}
	}
	return dt, nil
}

// MustParse is like Parse but panics on error. Intended for static schemas.
func MustParse(name string) DataType {
	dt, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return dt
}

// Name returns the canonical type name
func (t DataType) Name() string {
	switch {
	case t.Kind == KindDecimal && t.Precision > 0:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case t.Kind == KindVarchar && t.Precision > 0:
		return fmt.Sprintf("varchar(%d)", t.Precision)
	default:
		return t.Kind.String()
	}
}

func (t DataType) String() string { return t.Name() }

// IsNumeric reports whether values of the type can be summed
func (t DataType) IsNumeric() bool {
	switch t.Kind {
	case KindBigint, KindInteger, KindDouble, KindDecimal:
		return true
	default:
		return false
	}
}

// Normalize coerces a Go value into the canonical decoded type of t:
// string, int64, int32, float64, decimal.Decimal, time.Time (UTC) or bool.
func (t DataType) Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case KindVarchar:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case int32:
			return strconv.FormatInt(int64(x), 10), nil
		case int:
			return strconv.Itoa(x), nil
		}
	case KindBigint:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int16:
			return int64(x), nil
		case int8:
			return int64(x), nil
		case uint32:
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as bigint: %w", x, err)
			}
			return n, nil
		}
	case KindInteger:
		switch x := v.(type) {
		case int32:
			return x, nil
		case int:
			return toInt32(int64(x))
		case int64:
			return toInt32(x)
		case int16:
			return int32(x), nil
		case int8:
			return int32(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as integer: %w", x, err)
			}
			return int32(n), nil
		}
	case KindDouble:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case decimal.Decimal:
			f, _ := x.Float64()
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as double: %w", x, err)
			}
			return f, nil
		}
	case KindDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case string:
			d, err := decimal.NewFromString(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as decimal: %w", x, err)
			}
			return d, nil
		case int64:
			return decimal.NewFromInt(x), nil
		case int:
			return decimal.NewFromInt(int64(x)), nil
		case int32:
			return decimal.NewFromInt32(x), nil
		case float64:
			return decimal.NewFromFloat(x), nil
		}
	case KindDate:
		switch x := v.(type) {
		case time.Time:
			y, m, d := x.UTC().Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		case string:
			ts, err := time.Parse(DateLayout, strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as date: %w", x, err)
			}
			return ts, nil
		}
	case KindTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC().Truncate(time.Millisecond), nil
		case int64:
			return time.UnixMilli(x).UTC(), nil
		case string:
			ts, err := time.Parse(TimestampLayout, strings.TrimSpace(x))
			if err != nil {
				ts, err = time.Parse(time.RFC3339Nano, strings.TrimSpace(x))
			}
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as timestamp: %w", x, err)
			}
			return ts.UTC().Truncate(time.Millisecond), nil
		}
	case KindBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q as boolean: %w", x, err)
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, t.Name())
}

func toInt32(n int64) (any, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("value %d overflows integer", n)
	}
	return int32(n), nil
}

// Compare orders two values of type t. Both values are normalized first;
// nil sorts before any non-nil value.
func (t DataType) Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, nil
		case a == nil:
			return -1, nil
		default:
			return 1, nil
		}
	}
	na, err := t.Normalize(a)
	if err != nil {
		return 0, err
	}
	nb, err := t.Normalize(b)
	if err != nil {
		return 0, err
	}

	switch x := na.(type) {
	case string:
		return strings.Compare(x, nb.(string)), nil
	case int64:
		return cmpOrdered(x, nb.(int64)), nil
	case int32:
		return cmpOrdered(x, nb.(int32)), nil
	case float64:
		return cmpOrdered(x, nb.(float64)), nil
	case decimal.Decimal:
		return x.Cmp(nb.(decimal.Decimal)), nil
	case time.Time:
		return x.Compare(nb.(time.Time)), nil
	case bool:
		y := nb.(bool)
		switch {
		case x == y:
			return 0, nil
		case !x:
			return -1, nil
		default:
			return 1, nil
		}
	}
	return 0, fmt.Errorf("cannot compare values of %s", t.Name())
}

// Equal reports whether two values are equal under t
func (t DataType) Equal(a, b any) bool {
	c, err := t.Compare(a, b)
	return err == nil && c == 0
}

func cmpOrdered[T int32 | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

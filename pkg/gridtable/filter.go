package gridtable

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// Filter is a predicate pushed down into a scan. Columns reports the columns
// Evaluate reads so the scanner can materialize them.
type Filter interface {
	Columns() ColumnSet
	Evaluate(rec *Record) (bool, error)
}

// Op is a comparison operator
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

type compareFilter struct {
	col   int
	op    Op
	value any
}

// Compare keeps rows whose column col compares to value as op says. A nil
// column never matches.
func Compare(col int, op Op, value any) Filter {
	return &compareFilter{col: col, op: op, value: value}
}

// Eq is shorthand for Compare(col, OpEq, value)
func Eq(col int, value any) Filter { return Compare(col, OpEq, value) }

func (f *compareFilter) Columns() ColumnSet { return NewColumnSet(f.col) }

func (f *compareFilter) Evaluate(rec *Record) (bool, error) {
	if rec.Get(f.col) == nil {
		return false, nil
	}
	v, err := rec.Value(f.col)
	if err != nil {
		return false, err
	}
	c, err := rec.Info().ColumnType(f.col).Compare(v, f.value)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrorTypeData, "compare column %d", f.col)
	}
	switch f.op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	default:
		return false, errors.Newf(errors.ErrorTypeUnsupported, "unknown operator %q", f.op)
	}
}

func (f *compareFilter) String() string {
	return fmt.Sprintf("$%d %s %v", f.col, f.op, f.value)
}

type inFilter struct {
	col    int
	values []any
}

// In keeps rows whose column col equals one of values
func In(col int, values ...any) Filter {
	return &inFilter{col: col, values: values}
}

func (f *inFilter) Columns() ColumnSet { return NewColumnSet(f.col) }

func (f *inFilter) Evaluate(rec *Record) (bool, error) {
	if rec.Get(f.col) == nil {
		return false, nil
	}
	v, err := rec.Value(f.col)
	if err != nil {
		return false, err
	}
	dt := rec.Info().ColumnType(f.col)
	for _, want := range f.values {
		c, err := dt.Compare(v, want)
		if err != nil {
			return false, errors.Wrapf(err, errors.ErrorTypeData, "compare column %d", f.col)
		}
		if c == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (f *inFilter) String() string {
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("$%d in (%s)", f.col, strings.Join(parts, ", "))
}

type nullFilter struct{ col int }

// IsNull keeps rows whose column col is nil
func IsNull(col int) Filter { return nullFilter{col: col} }

func (f nullFilter) Columns() ColumnSet { return NewColumnSet(f.col) }

func (f nullFilter) Evaluate(rec *Record) (bool, error) { return rec.Get(f.col) == nil, nil }

func (f nullFilter) String() string { return fmt.Sprintf("$%d is null", f.col) }

type logicalFilter struct {
	and      bool
	children []Filter
}

// And keeps rows every child keeps. And() keeps everything.
func And(children ...Filter) Filter { return &logicalFilter{and: true, children: children} }

// Or keeps rows any child keeps. Or() keeps nothing.
func Or(children ...Filter) Filter { return &logicalFilter{children: children} }

func (f *logicalFilter) Columns() ColumnSet {
	cols := NewColumnSet()
	for _, c := range f.children {
		cols = cols.Union(c.Columns())
	}
	return cols
}

func (f *logicalFilter) Evaluate(rec *Record) (bool, error) {
	for _, c := range f.children {
		ok, err := c.Evaluate(rec)
		if err != nil {
			return false, err
		}
		if ok != f.and {
			return ok, nil
		}
	}
	return f.and, nil
}

func (f *logicalFilter) String() string {
	sep := " or "
	if f.and {
		sep = " and "
	}
	parts := make([]string, len(f.children))
	for i, c := range f.children {
		parts[i] = fmt.Sprint(c)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

type notFilter struct{ child Filter }

// Not inverts child
func Not(child Filter) Filter { return notFilter{child: child} }

func (f notFilter) Columns() ColumnSet { return f.child.Columns() }

func (f notFilter) Evaluate(rec *Record) (bool, error) {
	ok, err := f.child.Evaluate(rec)
	return !ok && err == nil, err
}

func (f notFilter) String() string { return fmt.Sprintf("not %v", f.child) }

type funcFilter struct {
	cols ColumnSet
	fn   func(rec *Record) (bool, error)
}

// FilterFunc adapts fn into a Filter that reads cols
func FilterFunc(cols ColumnSet, fn func(rec *Record) (bool, error)) Filter {
	return funcFilter{cols: cols, fn: fn}
}

func (f funcFilter) Columns() ColumnSet { return f.cols }

func (f funcFilter) Evaluate(rec *Record) (bool, error) { return f.fn(rec) }

package codesystem

import (
	"strings"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/dictionary"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/measure"
)

// DictionaryCodeSystem stores the columns that have a dictionary as
// big-endian ids of the dictionary's id width. Other columns go to the
// wrapped code system.
type DictionaryCodeSystem struct {
	inner gridtable.CodeSystem
	dicts map[int]dictionary.Dictionary
}

var (
	_ gridtable.CodeSystem    = (*DictionaryCodeSystem)(nil)
	_ gridtable.Initializer   = (*DictionaryCodeSystem)(nil)
	_ gridtable.LengthBounded = (*DictionaryCodeSystem)(nil)
)

// NewDictionary wraps inner with dictionaries keyed by column index
func NewDictionary(inner gridtable.CodeSystem, dicts map[int]dictionary.Dictionary) *DictionaryCodeSystem {
	return &DictionaryCodeSystem{inner: inner, dicts: dicts}
}

// Init checks that dictionary columns are varchar and binds the inner code
// system.
func (cs *DictionaryCodeSystem) Init(info *gridtable.Info) error {
	for col := range cs.dicts {
		if col < 0 || col >= info.ColumnCount() {
			return errors.Construction("dictionary for undeclared column %d", col)
		}
		if info.ColumnType(col).Kind != datatype.KindVarchar {
			return errors.Construction("dictionary on column %d of type %s", col, info.ColumnType(col).Name())
		}
	}
	if init, ok := cs.inner.(gridtable.Initializer); ok {
		return init.Init(info)
	}
	return nil
}

// MaxLength returns the id width for dictionary columns
func (cs *DictionaryCodeSystem) MaxLength(col int) int {
	if d, ok := cs.dicts[col]; ok {
		return d.IDWidth()
	}
	if lb, ok := cs.inner.(gridtable.LengthBounded); ok {
		return lb.MaxLength(col)
	}
	return gridtable.DefaultMaxRecordLength
}

// EncodeColumnValue appends the dictionary id of a string value
func (cs *DictionaryCodeSystem) EncodeColumnValue(col int, value any, dst []byte) ([]byte, error) {
	d, ok := cs.dicts[col]
	if !ok {
		return cs.inner.EncodeColumnValue(col, value, dst)
	}
	v, err := datatype.DataType{Kind: datatype.KindVarchar}.Normalize(value)
	if err != nil {
		return dst, errors.Wrapf(err, errors.ErrorTypeData, "column %d", col)
	}
	id, err := d.IDOf(v.(string))
	if err != nil {
		return dst, errors.Wrapf(err, errors.ErrorTypeData, "column %d", col)
	}
	for shift := 8 * (d.IDWidth() - 1); shift >= 0; shift -= 8 {
		dst = append(dst, byte(id>>shift))
	}
	return dst, nil
}

// DecodeColumnValue maps an id back to its string
func (cs *DictionaryCodeSystem) DecodeColumnValue(col int, b []byte) (any, error) {
	d, ok := cs.dicts[col]
	if !ok {
		return cs.inner.DecodeColumnValue(col, b)
	}
	if len(b) != d.IDWidth() {
		return nil, errors.Newf(errors.ErrorTypeData, "column %d: id needs %d bytes, got %d", col, d.IDWidth(), len(b))
	}
	id := 0
	for _, x := range b {
		id = id<<8 | int(x)
	}
	return d.ValueOf(id)
}

// NewMetricsAggregator delegates to the wrapped code system. Only min and
// max are allowed on dictionary columns, whose results are always in the
// dictionary.
func (cs *DictionaryCodeSystem) NewMetricsAggregator(fn string, col int) (gridtable.MeasureAggregator, error) {
	if _, ok := cs.dicts[col]; ok {
		switch strings.ToLower(strings.TrimSpace(fn)) {
		case measure.FuncMin, measure.FuncMax:
		default:
			return nil, errors.Wrapf(errors.ErrUnsupportedAggregation, errors.ErrorTypeUnsupported,
				"%s over dictionary column %d", fn, col)
		}
	}
	return cs.inner.NewMetricsAggregator(fn, col)
}

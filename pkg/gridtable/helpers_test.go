package gridtable

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// textCodes stores every column as its varchar bytes
type textCodes struct{}

func (textCodes) EncodeColumnValue(_ int, v any, dst []byte) ([]byte, error) {
	s, err := datatype.MustParse("varchar").Normalize(v)
	if err != nil {
		return dst, err
	}
	return append(dst, s.(string)...), nil
}

func (textCodes) DecodeColumnValue(_ int, b []byte) (any, error) { return string(b), nil }

func (textCodes) NewMetricsAggregator(fn string, _ int) (MeasureAggregator, error) {
	return nil, errors.Wrapf(errors.ErrUnsupportedAggregation, errors.ErrorTypeUnsupported, "function %q", fn)
}

func textInfo(t *testing.T, cols int, configure func(b *InfoBuilder)) *Info {
	t.Helper()
	types := make([]datatype.DataType, cols)
	for i := range types {
		types[i] = datatype.MustParse("varchar")
	}
	b := NewInfoBuilder().SetCodeSystem(textCodes{}).SetColumns(types...).SetPrimaryKey(NewColumnSet(0))
	if configure != nil {
		configure(b)
	}
	info, err := b.Build()
	require.NoError(t, err)
	return info
}

func textRecord(t *testing.T, info *Info, values ...any) *Record {
	t.Helper()
	rec, err := NewRecord(info).SetValues(values...)
	require.NoError(t, err)
	return rec
}

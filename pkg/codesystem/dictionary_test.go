package codesystem

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/dictionary"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
)

func TestDictionaryCodeSystem(t *testing.T) {
	names := dictionary.Build([]string{"Tea", "Coffee", "Juice"})
	cs := NewDictionary(NewSample(), map[int]dictionary.Dictionary{0: names})
	info := bind(t, cs, "varchar", "bigint")
	assert.Equal(t, 1+8, info.MaxRecordLength())

	coffee, err := cs.EncodeColumnValue(0, "Coffee", nil)
	require.NoError(t, err)
	tea, err := cs.EncodeColumnValue(0, "Tea", nil)
	require.NoError(t, err)
	assert.Len(t, coffee, 1)
	assert.Equal(t, -1, bytes.Compare(coffee, tea))

	v, err := cs.DecodeColumnValue(0, tea)
	require.NoError(t, err)
	assert.Equal(t, "Tea", v)

	_, err = cs.EncodeColumnValue(0, "Milk", nil)
	assert.Error(t, err)
	_, err = cs.DecodeColumnValue(0, []byte{0, 1})
	assert.Error(t, err)

	n, err := cs.EncodeColumnValue(1, int64(5), nil)
	require.NoError(t, err)
	back, err := cs.DecodeColumnValue(1, n)
	require.NoError(t, err)
	assert.Equal(t, int64(5), back)

	agg, err := cs.NewMetricsAggregator("max", 0)
	require.NoError(t, err)
	require.NoError(t, agg.Aggregate("Tea"))
	assert.Equal(t, "Tea", agg.State())

	for _, fn := range []string{"count", "sum"} {
		_, err = cs.NewMetricsAggregator(fn, 0)
		assert.ErrorIs(t, err, errors.ErrUnsupportedAggregation, fn)
	}
	_, err = cs.NewMetricsAggregator("count", 1)
	assert.NoError(t, err)
}

func TestDictionaryCodeSystemRejectsNonVarchar(t *testing.T) {
	cs := NewDictionary(NewSample(), map[int]dictionary.Dictionary{1: dictionary.Build([]string{"a"})})
	_, err := gridtable.NewInfoBuilder().
		SetCodeSystem(cs).
		SetColumns(datatype.MustParse("varchar"), datatype.MustParse("bigint")).
		SetPrimaryKey(gridtable.NewColumnSet(0)).
		Build()
	assert.Error(t, err)
}

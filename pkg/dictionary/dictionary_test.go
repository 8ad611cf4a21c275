package dictionary

import (
	"fmt"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

func TestBuildIsOrderPreserving(t *testing.T) {
	d := Build([]string{"pear", "apple", "zoo", "apple", "mango"})
	require.Equal(t, 4, d.Size())

	prev := -1
	for _, v := range []string{"apple", "mango", "pear", "zoo"} {
		id, err := d.IDOf(v)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id

		back, err := d.ValueOf(id)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}

	_, err := d.IDOf("kiwi")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = d.ValueOf(4)
	assert.Error(t, err)
}

func TestIDWidth(t *testing.T) {
	assert.Equal(t, 1, Build(nil).IDWidth())
	assert.Equal(t, 1, Build(nValues(256)).IDWidth())
	assert.Equal(t, 2, Build(nValues(257)).IDWidth())
	assert.Equal(t, 3, Build(nValues(70000)).IDWidth())
}

func nValues(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("v%06d", i)
	}
	return out
}

func TestJSONRoundTrip(t *testing.T) {
	d := Build([]string{"b", "a", "c"})
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":["a","b","c"]}`, string(b))

	var back SortedDictionary
	require.NoError(t, json.Unmarshal(b, &back))
	id, err := back.IDOf("c")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	assert.Error(t, json.Unmarshal([]byte(`{"values":["b","a"]}`), &back))
}

func TestBuildForColumns(t *testing.T) {
	rows := [][]string{
		{"2015-01-14", "Coffee", "Food"},
		{"2015-01-14", "Tea", "Food"},
		{"2015-01-15", "", "Drink"},
	}
	dicts := BuildForColumns(rows, []int{1, 2})
	require.Len(t, dicts, 2)
	assert.Equal(t, []string{"Coffee", "Tea"}, dicts[1].Values())
	assert.Equal(t, []string{"Drink", "Food"}, dicts[2].Values())
}

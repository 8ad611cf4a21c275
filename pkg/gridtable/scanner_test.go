package gridtable_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/testutil"
)

func sampleTable(t *testing.T) *gridtable.GridTable {
	t.Helper()
	table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	testutil.Rebuild(t, table, testutil.SampleRows())
	return table
}

func dateKey(t *testing.T, info *gridtable.Info, date string) *gridtable.Record {
	t.Helper()
	rec := gridtable.NewRecord(info)
	require.NoError(t, rec.SetValue(testutil.ColDate, date))
	return rec
}

func names(rows [][]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[testutil.ColName]
	}
	return out
}

func TestRangeScan(t *testing.T) {
	table := sampleTable(t)
	info := table.Info()

	tests := []struct {
		name          string
		start, end    string
		want          []any
		scannedBlocks int
		scannedRows   int
	}{
		{"middle", "2015-01-15", "2015-01-16", []any{"Xu", "Dong", "Jason"}, 2, 8},
		{"tail", "2015-01-17", "", []any{"Kejia"}, 1, 2},
		{"head", "", "2015-01-15", []any{"Yang", "Luke"}, 1, 4},
		{"empty", "2015-01-20", "", []any{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := gridtable.ScanRequest{}
			if tt.start != "" {
				req.Start = dateKey(t, info, tt.start)
			}
			if tt.end != "" {
				req.EndExclusive = dateKey(t, info, tt.end)
			}
			s, err := table.Scan(context.Background(), req)
			require.NoError(t, err)
			rows := testutil.Drain(t, s)
			assert.Equal(t, tt.want, names(rows))
			assert.Equal(t, tt.scannedBlocks, s.ScannedRowBlockCount())
			assert.Equal(t, tt.scannedRows, s.ScannedRowCount())
		})
	}
}

func TestColumnPruning(t *testing.T) {
	table := sampleTable(t)
	s, err := table.Scan(context.Background(), gridtable.ScanRequest{
		Columns: gridtable.NewColumnSet(testutil.ColName),
	})
	require.NoError(t, err)

	n := 0
	for s.Next() {
		rec := s.Record()
		assert.NotNil(t, rec.Get(testutil.ColName))
		for _, c := range []int{testutil.ColDate, testutil.ColCategory, testutil.ColQuantity, testutil.ColPrice} {
			assert.Nil(t, rec.Get(c), "column %d", c)
		}
		n++
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, s.ScannedRowCount())
}

func TestPredicatePushdown(t *testing.T) {
	table := sampleTable(t)
	_, all := fullScan(t, table)

	filters := map[string]gridtable.Filter{
		"eq":      gridtable.Eq(testutil.ColName, "Xu"),
		"ge date": gridtable.Compare(testutil.ColDate, gridtable.OpGe, "2015-01-16"),
		"in":      gridtable.In(testutil.ColName, "Luke", "George", "Nobody"),
		"and":     gridtable.And(gridtable.Compare(testutil.ColDate, gridtable.OpLt, "2015-01-16"), gridtable.Compare(testutil.ColName, gridtable.OpNe, "Xu")),
		"or":      gridtable.Or(gridtable.Eq(testutil.ColName, "Kejia"), gridtable.Eq(testutil.ColName, "Yang")),
		"not":     gridtable.Not(gridtable.Eq(testutil.ColCategory, "Food")),
		"func": gridtable.FilterFunc(gridtable.NewColumnSet(testutil.ColName), func(rec *gridtable.Record) (bool, error) {
			return len(rec.Get(testutil.ColName)) > 4, nil
		}),
	}
	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			s, err := table.Scan(context.Background(), gridtable.ScanRequest{
				Columns: gridtable.NewColumnSet(testutil.ColName, testutil.ColPrice),
				Filter:  f,
			})
			require.NoError(t, err)
			got := names(testutil.Drain(t, s))

			assert.Equal(t, 10, s.ScannedRowCount(), "scanned rows must not depend on the filter")
			assert.Equal(t, 3, s.ScannedRowBlockCount())
			assert.Equal(t, len(got), s.YieldedRowCount())

			// got must be an order-preserving subsequence of all
			j := 0
			for _, row := range all {
				if j < len(got) && row[testutil.ColName] == got[j] {
					j++
				}
			}
			assert.Equal(t, len(got), j, "filtered rows %v are not a subsequence", got)
		})
	}
}

func TestFilterResults(t *testing.T) {
	table := sampleTable(t)
	scan := func(f gridtable.Filter) []any {
		s, err := table.Scan(context.Background(), gridtable.ScanRequest{Filter: f})
		require.NoError(t, err)
		return names(testutil.Drain(t, s))
	}
	assert.Equal(t, []any{"Xu"}, scan(gridtable.Eq(testutil.ColName, "Xu")))
	assert.Equal(t, []any{"Yang", "Luke"}, scan(gridtable.Compare(testutil.ColDate, gridtable.OpLe, "2015-01-14")))
	assert.Equal(t, []any{"Yang", "Kejia"}, scan(gridtable.Or(gridtable.Eq(testutil.ColName, "Kejia"), gridtable.Eq(testutil.ColName, "Yang"))))
	assert.Empty(t, scan(gridtable.Not(gridtable.Eq(testutil.ColCategory, "Food"))))
	assert.Empty(t, scan(gridtable.IsNull(testutil.ColName)))
	assert.Len(t, scan(gridtable.And()), 10)
	assert.Empty(t, scan(gridtable.Or()))
}

func TestFilterError(t *testing.T) {
	table := sampleTable(t)
	s, err := table.Scan(context.Background(), gridtable.ScanRequest{
		Filter: gridtable.Compare(testutil.ColQuantity, gridtable.OpGt, "not a number"),
	})
	require.NoError(t, err)
	assert.False(t, s.Next())
	assert.True(t, errors.IsType(s.Err(), errors.ErrorTypeData))
	require.NoError(t, s.Close())
}

func TestScanUndeclaredColumn(t *testing.T) {
	table := sampleTable(t)
	_, err := table.Scan(context.Background(), gridtable.ScanRequest{Columns: gridtable.NewColumnSet(9)})
	assert.ErrorIs(t, err, errors.ErrInvalidSchema)
	_, err = table.Scan(context.Background(), gridtable.ScanRequest{Filter: gridtable.IsNull(7)})
	assert.ErrorIs(t, err, errors.ErrInvalidSchema)
}

func TestClosedScanner(t *testing.T) {
	table := sampleTable(t)
	s, err := table.Scan(context.Background(), gridtable.ScanRequest{})
	require.NoError(t, err)

	require.True(t, s.Next())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), errors.ErrScannerClosed)

	never, err := table.Scan(context.Background(), gridtable.ScanRequest{})
	require.NoError(t, err)
	assert.NoError(t, never.Close())
}

func TestCancelledContext(t *testing.T) {
	table := sampleTable(t)
	ctx, cancel := context.WithCancel(context.Background())
	s, err := table.Scan(ctx, gridtable.ScanRequest{})
	require.NoError(t, err)
	cancel()
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), context.Canceled)
	require.NoError(t, s.Close())
}

func TestRecordReuseAndCopy(t *testing.T) {
	table := sampleTable(t)
	s, err := table.Scan(context.Background(), gridtable.ScanRequest{})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Next())
	first := s.Record()
	kept := first.Copy()
	require.True(t, s.Next())
	assert.Same(t, first, s.Record())

	v, err := kept.Value(testutil.ColName)
	require.NoError(t, err)
	assert.Equal(t, "Yang", v)
	v, err = s.Record().Value(testutil.ColName)
	require.NoError(t, err)
	assert.Equal(t, "Luke", v)
}

package gridtable_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/codesystem"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/metrics"
	"github.com/ajitpratap0/gridtable/pkg/testutil"
)

func fullScan(t *testing.T, table *gridtable.GridTable) (*gridtable.RawScanner, [][]any) {
	t.Helper()
	s, err := table.Scan(context.Background(), gridtable.ScanRequest{})
	require.NoError(t, err)
	rows := testutil.Drain(t, s)
	return s, rows
}

func TestBasics(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.BasicInfo(t))
	b := testutil.Rebuild(t, table, testutil.SampleRows())
	assert.Equal(t, 10, b.WrittenRowCount())
	assert.Equal(t, 1, b.WrittenRowBlockCount())

	s, rows := fullScan(t, table)
	assert.Equal(t, b.WrittenRowBlockCount(), s.ScannedRowBlockCount())
	assert.Equal(t, b.WrittenRowCount(), s.ScannedRowCount())
	require.Len(t, rows, 10)
	assert.Equal(t, "Yang", rows[0][testutil.ColName])
	assert.Equal(t, time.Date(2015, 1, 14, 0, 0, 0, 0, time.UTC), rows[0][testutil.ColDate])
	assert.Equal(t, int32(10), rows[9][testutil.ColQuantity])
}

func TestAdvanced(t *testing.T) {
	table, store := testutil.NewTable(t, testutil.AdvancedInfo(t))
	b := testutil.Rebuild(t, table, testutil.SampleRows())
	assert.Equal(t, 10, b.WrittenRowCount())
	assert.Equal(t, 3, b.WrittenRowBlockCount())

	n, err := store.BlockCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	s, rows := fullScan(t, table)
	assert.Equal(t, b.WrittenRowBlockCount(), s.ScannedRowBlockCount())
	assert.Equal(t, b.WrittenRowCount(), s.ScannedRowCount())
	assert.Len(t, rows, 10)
}

func TestAppend(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	rows := testutil.SampleRows()

	b, err := table.Append(context.Background())
	require.NoError(t, err)
	testutil.WriteAll(t, b, table.Info(), rows[:4])
	assert.Equal(t, 1, b.WrittenRowBlockCount())
	assert.Equal(t, 4, b.WrittenRowCount())

	b, err = table.Append(context.Background())
	require.NoError(t, err)
	testutil.WriteAll(t, b, table.Info(), rows[4:7])
	assert.Equal(t, 2, b.WrittenRowBlockCount())
	assert.Equal(t, 7, b.WrittenRowCount())
	assert.Equal(t, 3, b.AppendedRowCount())

	last := testutil.AppendInBatches(t, table, rows[7:], 2, 1)
	assert.Equal(t, 3, last.WrittenRowBlockCount())
	assert.Equal(t, 10, last.WrittenRowCount())
	assert.Equal(t, 1, last.AppendedRowCount())

	s, scanned := fullScan(t, table)
	assert.Equal(t, 3, s.ScannedRowBlockCount())
	assert.Equal(t, 10, s.ScannedRowCount())

	rebuilt, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	testutil.Rebuild(t, rebuilt, rows)
	_, want := fullScan(t, rebuilt)
	assert.Equal(t, want, scanned)
}

func TestAppendWithoutRowBlocks(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.BasicInfo(t))
	last := testutil.AppendInBatches(t, table, testutil.SampleRows(), 4, 3, 2, 1)
	assert.Equal(t, 1, last.WrittenRowBlockCount())
	assert.Equal(t, 10, last.WrittenRowCount())

	s, _ := fullScan(t, table)
	assert.Equal(t, 1, s.ScannedRowBlockCount())
	assert.Equal(t, 10, s.ScannedRowCount())
}

func TestEmptyAppendKeepsStore(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	testutil.Rebuild(t, table, testutil.SampleRows()[:6])

	b, err := table.Append(context.Background())
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.Equal(t, 6, b.WrittenRowCount())
	assert.Equal(t, 2, b.WrittenRowBlockCount())
	assert.Equal(t, 0, b.AppendedRowCount())
}

func TestRebuildReplacesData(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	testutil.Rebuild(t, table, testutil.SampleRows())
	b := testutil.Rebuild(t, table, testutil.SampleRows()[:2])
	assert.Equal(t, 2, b.WrittenRowCount())

	s, rows := fullScan(t, table)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, s.ScannedRowBlockCount())
}

func TestRecordTooLong(t *testing.T) {
	info, err := gridtable.NewInfoBuilder().
		SetCodeSystem(codesystem.NewSample()).
		SetColumns(testutil.BasicInfo(t).ColumnTypes()...).
		SetPrimaryKey(gridtable.NewColumnSet(0)).
		SetMaxRecordLength(16).
		Build()
	require.NoError(t, err)
	table, _ := testutil.NewTable(t, info)

	b, err := table.Rebuild(context.Background())
	require.NoError(t, err)
	rec := gridtable.NewRecord(info)
	_, err = rec.SetValues(testutil.SampleRows()[0]...)
	require.NoError(t, err)

	err = b.Write(rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRecordTooLong)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCapacity))
}

func TestBuilderClosed(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.BasicInfo(t))
	b := testutil.Rebuild(t, table, testutil.SampleRows())

	rec := gridtable.NewRecord(table.Info())
	_, err := rec.SetValues(testutil.SampleRows()[0]...)
	require.NoError(t, err)
	assert.ErrorIs(t, b.Write(rec), errors.ErrBuilderClosed)
	assert.ErrorIs(t, b.Close(), errors.ErrBuilderClosed)
}

func TestMetricsWiring(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t), gridtable.WithMetrics(collector))
	testutil.Rebuild(t, table, testutil.SampleRows())
	fullScan(t, table)

	families, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() != nil {
				got[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 10.0, got["gridtable_rows_written_total"])
	assert.Equal(t, 3.0, got["gridtable_row_blocks_written_total"])
	assert.Equal(t, 10.0, got["gridtable_rows_scanned_total"])
	assert.Equal(t, 3.0, got["gridtable_row_blocks_scanned_total"])
	assert.Equal(t, 10.0, got["gridtable_rows_yielded_total"])
}

// Package testutil provides loggers, contexts and sample-table fixtures for
// grid table tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/gridtable/pkg/codesystem"
	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/memstore"
)

// Sample table columns
const (
	ColDate = iota
	ColName
	ColCategory
	ColQuantity
	ColPrice
)

// SamplePrice is the price of every sample row
var SamplePrice = decimal.RequireFromString("10.5")

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// SampleRows returns ten sales rows over four dates, sorted by date. Every
// row has category "Food", quantity 10 and price 10.5.
func SampleRows() [][]any {
	people := []struct{ date, name string }{
		{"2015-01-14", "Yang"},
		{"2015-01-14", "Luke"},
		{"2015-01-15", "Xu"},
		{"2015-01-15", "Dong"},
		{"2015-01-15", "Jason"},
		{"2015-01-16", "Mahone"},
		{"2015-01-16", "Shaofeng"},
		{"2015-01-16", "Qianhao"},
		{"2015-01-16", "George"},
		{"2015-01-17", "Kejia"},
	}
	rows := make([][]any, len(people))
	for i, p := range people {
		rows[i] = []any{p.date, p.name, "Food", int32(10), SamplePrice}
	}
	return rows
}

// SampleRowsPerDate maps each sample date to its row count
func SampleRowsPerDate() map[string]int {
	return map[string]int{"2015-01-14": 2, "2015-01-15": 3, "2015-01-16": 4, "2015-01-17": 1}
}

func sampleBuilder(cs gridtable.CodeSystem) *gridtable.InfoBuilder {
	return gridtable.NewInfoBuilder().
		SetCodeSystem(cs).
		SetColumns(
			datatype.MustParse("date"),
			datatype.MustParse("varchar"),
			datatype.MustParse("varchar"),
			datatype.MustParse("integer"),
			datatype.MustParse("decimal"),
		).
		SetPrimaryKey(gridtable.NewColumnSet(ColDate))
}

// BasicInfo describes the sample table with one column block and unbounded
// row blocks.
func BasicInfo(t testing.TB) *gridtable.Info {
	t.Helper()
	info, err := sampleBuilder(codesystem.NewSample()).Build()
	require.NoError(t, err)
	return info
}

// AdvancedInfo describes the sample table with column blocks {0,1,2} and
// {3,4} and four rows per row block.
func AdvancedInfo(t testing.TB) *gridtable.Info {
	t.Helper()
	info, err := sampleBuilder(codesystem.NewSample()).
		EnableColumnBlock(
			gridtable.NewColumnSet(ColDate, ColName, ColCategory),
			gridtable.NewColumnSet(ColQuantity, ColPrice),
		).
		EnableRowBlock(4).
		Build()
	require.NoError(t, err)
	return info
}

// NewTable creates a table over a fresh memory store, logging to the test
func NewTable(t *testing.T, info *gridtable.Info, opts ...gridtable.Option) (*gridtable.GridTable, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	opts = append([]gridtable.Option{gridtable.WithName(t.Name()), gridtable.WithLogger(TestLogger(t))}, opts...)
	return gridtable.New(info, store, opts...), store
}

// WriteAll writes rows through b, reusing one record, and closes b
func WriteAll(t testing.TB, b *gridtable.Builder, info *gridtable.Info, rows [][]any) {
	t.Helper()
	rec := gridtable.NewRecord(info)
	for _, row := range rows {
		_, err := rec.SetValues(row...)
		require.NoError(t, err)
		require.NoError(t, b.Write(rec))
	}
	require.NoError(t, b.Close())
}

// Rebuild writes rows into table from scratch
func Rebuild(t testing.TB, table *gridtable.GridTable, rows [][]any) *gridtable.Builder {
	t.Helper()
	b, err := table.Rebuild(context.Background())
	require.NoError(t, err)
	WriteAll(t, b, table.Info(), rows)
	return b
}

// AppendInBatches appends rows in consecutive batches of the given sizes,
// one builder per batch, and returns the last builder.
func AppendInBatches(t testing.TB, table *gridtable.GridTable, rows [][]any, sizes ...int) *gridtable.Builder {
	t.Helper()
	var last *gridtable.Builder
	for _, n := range sizes {
		require.LessOrEqual(t, n, len(rows))
		b, err := table.Append(context.Background())
		require.NoError(t, err)
		WriteAll(t, b, table.Info(), rows[:n])
		rows = rows[n:]
		last = b
	}
	require.Empty(t, rows, "batch sizes must cover every row")
	return last
}

// Drain decodes every remaining row of it, closes it and returns the rows
func Drain(t testing.TB, it gridtable.Iterator) [][]any {
	t.Helper()
	var out [][]any
	for it.Next() {
		values, err := it.Record().Values()
		require.NoError(t, err)
		out = append(out, values)
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	return out
}

package gridtable_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/testutil"
)

type AggregateSuite struct {
	testutil.TableSuite
}

func TestAggregateSuite(t *testing.T) {
	suite.Run(t, new(AggregateSuite))
}

func (s *AggregateSuite) byDate() gridtable.AggregateRequest {
	return gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColDate, testutil.ColCategory),
		Metrics:    gridtable.NewColumnSet(testutil.ColQuantity, testutil.ColPrice),
		AggrFuncs:  []string{"count", "sum"},
	}
}

func (s *AggregateSuite) TestCountAndSumPerDate() {
	it, err := s.Table.ScanAndAggregate(s.Context(), s.byDate())
	s.Require().NoError(err)
	rows := testutil.Drain(s.T(), it)

	perDate := testutil.SampleRowsPerDate()
	s.Require().Len(rows, len(perDate))
	var prev time.Time
	for _, row := range rows {
		day := row[testutil.ColDate].(time.Time)
		s.True(day.After(prev), "groups must come out in dimension order")
		prev = day

		n := perDate[day.Format(datatype.DateLayout)]
		s.Nil(row[testutil.ColName])
		s.Equal("Food", row[testutil.ColCategory])
		s.Equal(int32(n), row[testutil.ColQuantity])
		s.True(testutil.SamplePrice.Mul(decimal.NewFromInt(int64(n))).Equal(row[testutil.ColPrice].(decimal.Decimal)),
			"sum for %s is %v", day, row[testutil.ColPrice])
	}
	s.Equal(s.Builder.WrittenRowCount(), it.ScannedRowCount())
	s.Equal(s.Builder.WrittenRowBlockCount(), it.ScannedRowBlockCount())
	s.Equal(len(perDate), it.GroupCount())
}

func (s *AggregateSuite) TestSingleGroup() {
	req := gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColCategory),
		Metrics:    gridtable.NewColumnSet(testutil.ColQuantity, testutil.ColPrice),
		AggrFuncs:  []string{"sum", "max"},
	}
	it, err := s.Table.ScanAndAggregate(s.Context(), req)
	s.Require().NoError(err)
	rows := testutil.Drain(s.T(), it)

	s.Require().Len(rows, 1)
	s.Equal(int32(100), rows[0][testutil.ColQuantity])
	s.True(testutil.SamplePrice.Equal(rows[0][testutil.ColPrice].(decimal.Decimal)))
	s.Nil(rows[0][testutil.ColDate])
}

func (s *AggregateSuite) TestFilteredRange() {
	req := s.byDate()
	req.Start = dateKey(s.T(), s.Table.Info(), "2015-01-15")
	req.EndExclusive = dateKey(s.T(), s.Table.Info(), "2015-01-17")
	req.Filter = gridtable.Compare(testutil.ColName, gridtable.OpNe, "Xu")

	it, err := s.Table.ScanAndAggregate(s.Context(), req)
	s.Require().NoError(err)
	rows := testutil.Drain(s.T(), it)

	s.Require().Len(rows, 2)
	s.Equal(int32(2), rows[0][testutil.ColQuantity])
	s.Equal(int32(4), rows[1][testutil.ColQuantity])
}

func (s *AggregateSuite) TestGroupsIgnoreOtherColumns() {
	info := s.Table.Info()
	b, err := s.Table.Rebuild(s.Context())
	s.Require().NoError(err)
	testutil.WriteAll(s.T(), b, info, [][]any{
		{"2015-01-14", "a", "Food", int32(1), "1.5"},
		{"2015-01-14", "b", "Food", int32(2), "2.5"},
		{"2015-01-14", "c", "Toys", int32(3), "3.5"},
		{"2015-01-14", "d", "Food", int32(4), "4.5"},
		{"2015-01-15", "e", "Food", int32(5), "5.5"},
	})

	it, err := s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColCategory),
		Metrics:    gridtable.NewColumnSet(testutil.ColQuantity, testutil.ColPrice),
		AggrFuncs:  []string{"sum", "min"},
	})
	s.Require().NoError(err)
	rows := testutil.Drain(s.T(), it)

	s.Require().Len(rows, 2)
	s.Equal("Food", rows[0][testutil.ColCategory])
	s.Equal(int32(12), rows[0][testutil.ColQuantity])
	s.True(decimal.RequireFromString("1.5").Equal(rows[0][testutil.ColPrice].(decimal.Decimal)))
	s.Equal("Toys", rows[1][testutil.ColCategory])
	s.Equal(int32(3), rows[1][testutil.ColQuantity])
}

func (s *AggregateSuite) TestCountOverVarchar() {
	it, err := s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColDate),
		Metrics:    gridtable.NewColumnSet(testutil.ColName),
		AggrFuncs:  []string{"count"},
	})
	s.Require().NoError(err)
	rows := testutil.Drain(s.T(), it)

	s.Require().Len(rows, 4)
	got := make([]any, len(rows))
	for i, row := range rows {
		got[i] = row[testutil.ColName]
	}
	s.Equal([]any{"2", "3", "4", "1"}, got)
}

func (s *AggregateSuite) TestIntegerSumOverflow() {
	info := s.Table.Info()
	b, err := s.Table.Rebuild(s.Context())
	s.Require().NoError(err)
	rows := testutil.SampleRows()
	for _, row := range rows {
		row[testutil.ColQuantity] = int32(1 << 30)
	}
	testutil.WriteAll(s.T(), b, info, rows)

	it, err := s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColCategory),
		Metrics:    gridtable.NewColumnSet(testutil.ColQuantity),
		AggrFuncs:  []string{"sum"},
	})
	s.Require().NoError(err)
	defer it.Close()

	s.False(it.Next())
	s.Require().Error(it.Err())
	s.True(errors.IsType(it.Err(), errors.ErrorTypeData))
	s.Contains(it.Err().Error(), "overflows integer")
}

func (s *AggregateSuite) TestEmptyInput() {
	req := s.byDate()
	req.Filter = gridtable.Eq(testutil.ColName, "Nobody")
	it, err := s.Table.ScanAndAggregate(s.Context(), req)
	s.Require().NoError(err)
	s.Empty(testutil.Drain(s.T(), it))
	s.Equal(10, it.ScannedRowCount())
}

func (s *AggregateSuite) TestClosedBeforeNext() {
	it, err := s.Table.ScanAndAggregate(s.Context(), s.byDate())
	s.Require().NoError(err)
	s.Require().NoError(it.Close())
	s.Require().NoError(it.Close())
	s.False(it.Next())
	s.ErrorIs(it.Err(), errors.ErrScannerClosed)
}

func (s *AggregateSuite) TestConstructionErrors() {
	tests := map[string]gridtable.AggregateRequest{
		"overlap": {
			Dimensions: gridtable.NewColumnSet(testutil.ColDate, testutil.ColQuantity),
			Metrics:    gridtable.NewColumnSet(testutil.ColQuantity),
			AggrFuncs:  []string{"sum"},
		},
		"function count": {
			Dimensions: gridtable.NewColumnSet(testutil.ColDate),
			Metrics:    gridtable.NewColumnSet(testutil.ColQuantity, testutil.ColPrice),
			AggrFuncs:  []string{"sum"},
		},
		"undeclared": {
			Dimensions: gridtable.NewColumnSet(testutil.ColDate),
			Metrics:    gridtable.NewColumnSet(8),
			AggrFuncs:  []string{"sum"},
		},
	}
	for name, req := range tests {
		s.Run(name, func() {
			_, err := s.Table.ScanAndAggregate(s.Context(), req)
			s.ErrorIs(err, errors.ErrInvalidSchema)
			s.True(errors.IsType(err, errors.ErrorTypeConstruction))
		})
	}

	_, err := s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColDate),
		Metrics:    gridtable.NewColumnSet(testutil.ColPrice),
		AggrFuncs:  []string{"median"},
	})
	s.ErrorIs(err, errors.ErrUnsupportedAggregation)

	_, err = s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColDate),
		Metrics:    gridtable.NewColumnSet(testutil.ColName),
		AggrFuncs:  []string{"sum"},
	})
	s.ErrorIs(err, errors.ErrUnsupportedAggregation)

	_, err = s.Table.ScanAndAggregate(s.Context(), gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColCategory),
		Metrics:    gridtable.NewColumnSet(testutil.ColDate),
		AggrFuncs:  []string{"count"},
	})
	s.ErrorIs(err, errors.ErrUnsupportedAggregation)
	s.True(errors.IsType(err, errors.ErrorTypeUnsupported))
}

// Every group costs 40 + 8 (count) + 48 (decimal sum) = 96 bytes, whatever
// the width of its dimension values.
func TestMemoryCap(t *testing.T) {
	metrics := gridtable.NewColumnSet(testutil.ColQuantity, testutil.ColPrice)
	byName := gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColName),
		Metrics:    metrics,
		AggrFuncs:  []string{"count", "sum"},
	}
	byDate := gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(testutil.ColDate, testutil.ColCategory),
		Metrics:    metrics,
		AggrFuncs:  []string{"count", "sum"},
	}

	tests := []struct {
		name    string
		req     gridtable.AggregateRequest
		cap     int64
		groups  int
		wantErr bool
	}{
		{"first entry over cap", byName, 1, 0, true},
		{"second entry over cap", byName, 150, 0, true},
		{"fits", byName, 2000, 10, false},
		{"four dates at the cap", byDate, 384, 4, false},
		{"four dates under the cap", byDate, 390, 4, false},
		{"fourth date over cap", byDate, 383, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _ := testutil.NewTable(t, testutil.AdvancedInfo(t), gridtable.WithMemoryCap(tt.cap))
			testutil.Rebuild(t, table, testutil.SampleRows())
			assert.Equal(t, tt.cap, table.MemoryCap())

			ctx, cancel := testutil.TestContext(t)
			defer cancel()
			it, err := table.ScanAndAggregate(ctx, tt.req)
			require.NoError(t, err)
			defer it.Close()

			n := 0
			for it.Next() {
				n++
			}
			if tt.wantErr {
				assert.Zero(t, n, "no partial output after a cap violation")
				assert.ErrorIs(t, it.Err(), errors.ErrMemoryCapExceeded)
				assert.True(t, errors.IsType(it.Err(), errors.ErrorTypeCapacity))
				assert.False(t, it.Next())
				return
			}
			require.NoError(t, it.Err())
			assert.Equal(t, tt.groups, n)
		})
	}
}

func TestDefaultMemoryCap(t *testing.T) {
	table, _ := testutil.NewTable(t, testutil.BasicInfo(t), gridtable.WithMemoryCap(0))
	assert.Equal(t, gridtable.DefaultMemoryCap, table.MemoryCap())
	assert.Equal(t, int64(500<<20), table.MemoryCap())
}

package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajitpratap0/gridtable/pkg/config"
	"github.com/ajitpratap0/gridtable/pkg/datatype"
)

// sampleTableConfig describes the built-in sales table: date, name,
// category, quantity and price, keyed by date, with two column blocks and
// four rows per row block.
func sampleTableConfig(name string) config.TableConfig {
	if name == "" {
		name = "sales"
	}
	return config.TableConfig{
		Name:         name,
		Columns:      []string{"date", "varchar", "varchar", "integer", "decimal"},
		PrimaryKey:   []int{0},
		ColumnBlocks: [][]int{{0, 1, 2}, {3, 4}},
		RowBlockSize: 4,
	}
}

func sampleRows() [][]string {
	return [][]string{
		{"2015-01-14", "Yang", "Food", "10", "10.5"},
		{"2015-01-14", "Luke", "Food", "10", "10.5"},
		{"2015-01-15", "Xu", "Food", "10", "10.5"},
		{"2015-01-15", "Dong", "Food", "10", "10.5"},
		{"2015-01-15", "Jason", "Food", "10", "10.5"},
		{"2015-01-16", "Mahone", "Food", "10", "10.5"},
		{"2015-01-16", "Shaofeng", "Food", "10", "10.5"},
		{"2015-01-16", "Qianhao", "Food", "10", "10.5"},
		{"2015-01-16", "George", "Food", "10", "10.5"},
		{"2015-01-17", "Kejia", "Food", "10", "10.5"},
	}
}

func formatValue(dt datatype.DataType, v any) string {
	switch x := v.(type) {
	case time.Time:
		if dt.Kind == datatype.KindDate {
			return x.Format(datatype.DateLayout)
		}
		return x.Format(datatype.TimestampLayout)
	case decimal.Decimal:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

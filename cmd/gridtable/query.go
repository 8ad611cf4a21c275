package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/config"
	"github.com/ajitpratap0/gridtable/pkg/dictionary"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/compressed"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/memstore"
)

// queryOptions holds the flags of the query command
type queryOptions struct {
	csvFile   string
	header    bool
	columns   []int
	groupBy   []int
	metrics   []string
	where     []string
	start     []string
	end       []string
	dictCols  []int
	appendCSV string
}

func newQueryCommand(configFile *string) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Load rows into a grid table and scan or aggregate them",
		Long: `Load rows from a CSV file into an in-memory grid table described by the
configuration, then run a range scan or an aggregation over it.
Without --csv and without table columns in the configuration, a built-in
ten-row sales table is used.

Examples:
  gridtable query --where "2 = Food" --start 2015-01-15 --end 2015-01-17
  gridtable query --group-by 0 --metric 3:count --metric 4:sum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := setup(ctx, *configFile, "query", cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close(context.Background())
			return runQuery(ctx, env, cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.csvFile, "csv", "", "CSV file of rows to load; empty cells are null")
	f.BoolVar(&opts.header, "header", false, "Skip the first CSV line")
	f.StringVar(&opts.appendCSV, "append", "", "CSV file appended after the initial load")
	f.IntSliceVar(&opts.columns, "columns", nil, "Columns to return from a raw scan (default all)")
	f.IntSliceVar(&opts.groupBy, "group-by", nil, "Dimension columns of an aggregation")
	f.StringArrayVar(&opts.metrics, "metric", nil, "Metric as COLUMN:FUNCTION, e.g. 3:sum (repeatable)")
	f.StringArrayVar(&opts.where, "where", nil, `Filter as "COLUMN OP VALUE", e.g. "3 >= 10" (repeatable, and-ed)`)
	f.StringSliceVar(&opts.start, "start", nil, "Inclusive primary-key lower bound, one value per key column")
	f.StringSliceVar(&opts.end, "end", nil, "Exclusive primary-key upper bound, one value per key column")
	f.IntSliceVar(&opts.dictCols, "dict", nil, "Varchar columns to store as dictionary ids")
	return cmd
}

func runQuery(ctx context.Context, env *environment, out io.Writer, opts queryOptions) error {
	tableCfg := env.cfg.Table
	var rows [][]string
	switch {
	case opts.csvFile != "":
		if len(tableCfg.Columns) == 0 {
			return errors.New(errors.ErrorTypeConfig, "--csv needs table columns in the configuration")
		}
		var err error
		if rows, err = readCSV(opts.csvFile, opts.header); err != nil {
			return err
		}
	case len(tableCfg.Columns) == 0:
		tableCfg = sampleTableConfig(tableCfg.Name)
		rows = sampleRows()
	default:
		return errors.New(errors.ErrorTypeConfig, "table columns are configured but no --csv was given")
	}

	var extra [][]string
	if opts.appendCSV != "" {
		var err error
		if extra, err = readCSV(opts.appendCSV, opts.header); err != nil {
			return err
		}
	}

	dictCols := append(slices.Clone(tableCfg.DictionaryColumns), opts.dictCols...)
	info, err := buildInfo(&tableCfg, dictCols, append(slices.Clone(rows), extra...))
	if err != nil {
		return err
	}

	store, err := compressed.New(memstore.New(), &env.cfg.Compression)
	if err != nil {
		return err
	}
	table := gridtable.New(info, store,
		gridtable.WithName(tableCfg.Name),
		gridtable.WithLogger(env.log),
		gridtable.WithMetrics(env.collector),
		gridtable.WithMemoryCap(env.cfg.Aggregation.MemoryCapBytes),
	)

	if err := load(ctx, table, rows, false); err != nil {
		return err
	}
	if len(extra) > 0 {
		if err := load(ctx, table, extra, true); err != nil {
			return err
		}
	}

	filter, err := parseFilters(opts.where)
	if err != nil {
		return err
	}
	start, err := keyRecord(info, opts.start)
	if err != nil {
		return err
	}
	end, err := keyRecord(info, opts.end)
	if err != nil {
		return err
	}

	var (
		it   gridtable.Iterator
		cols gridtable.ColumnSet
	)
	if len(opts.metrics) > 0 {
		req, err := aggregateRequest(opts.groupBy, opts.metrics)
		if err != nil {
			return err
		}
		req.Start, req.EndExclusive, req.Filter = start, end, filter
		agg, err := table.ScanAndAggregate(ctx, req)
		if err != nil {
			return err
		}
		it, cols = agg, req.Dimensions.Union(req.Metrics)
	} else {
		raw, err := table.Scan(ctx, gridtable.ScanRequest{
			Start:        start,
			EndExclusive: end,
			Columns:      gridtable.NewColumnSet(opts.columns...),
			Filter:       filter,
		})
		if err != nil {
			return err
		}
		it, cols = raw, gridtable.NewColumnSet(opts.columns...)
		if cols.IsEmpty() {
			cols = info.AllColumns()
		}
	}
	defer it.Close()

	n, err := printRows(out, it, cols)
	if err != nil {
		return err
	}
	env.log.Info("query finished",
		zap.Int("rows", n),
		zap.Int("scanned_rows", it.ScannedRowCount()),
		zap.Int("scanned_row_blocks", it.ScannedRowBlockCount()),
	)
	return nil
}

// buildInfo builds the schema, with dictionaries over every row when dictCols
// is not empty.
func buildInfo(tableCfg *config.TableConfig, dictCols []int, rows [][]string) (*gridtable.Info, error) {
	if len(dictCols) == 0 {
		return tableCfg.BuildInfo()
	}
	dicts := make(map[int]dictionary.Dictionary, len(dictCols))
	for col, d := range dictionary.BuildForColumns(rows, dictCols) {
		dicts[col] = d
	}
	return tableCfg.BuildInfoWithDictionaries(dicts)
}

// load sorts rows by primary key and writes them through a rebuild or an
// append builder.
func load(ctx context.Context, table *gridtable.GridTable, rows [][]string, appendRows bool) error {
	info := table.Info()
	recs := make([]*gridtable.Record, 0, len(rows))
	values := make([]any, info.ColumnCount())
	for i, row := range rows {
		if len(row) != info.ColumnCount() {
			return errors.Newf(errors.ErrorTypeData, "row %d has %d cells, table has %d columns", i+1, len(row), info.ColumnCount())
		}
		for c, cell := range row {
			values[c] = nil
			if cell != "" {
				values[c] = cell
			}
		}
		rec, err := gridtable.NewRecord(info).SetValues(values...)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeData, "row %d", i+1)
		}
		recs = append(recs, rec)
	}
	slices.SortStableFunc(recs, gridtable.KeyComparator(info.PrimaryKey()))

	var (
		b   *gridtable.Builder
		err error
	)
	if appendRows {
		b, err = table.Append(ctx)
	} else {
		b, err = table.Rebuild(ctx)
	}
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := b.Write(rec); err != nil {
			_ = b.Close()
			return err
		}
	}
	return b.Close()
}

func readCSV(path string, header bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "read %s", path)
	}
	if header && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

var filterOps = map[string]gridtable.Op{
	"=": gridtable.OpEq, "==": gridtable.OpEq, "!=": gridtable.OpNe,
	"<": gridtable.OpLt, "<=": gridtable.OpLe, ">": gridtable.OpGt, ">=": gridtable.OpGe,
}

// parseFilters parses "COLUMN OP VALUE" expressions into one conjunction.
// The value "null" with = or != tests for null.
func parseFilters(exprs []string) (gridtable.Filter, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	filters := make([]gridtable.Filter, 0, len(exprs))
	for _, expr := range exprs {
		parts := strings.SplitN(strings.TrimSpace(expr), " ", 3)
		if len(parts) != 3 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "filter %q is not COLUMN OP VALUE", expr)
		}
		col, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "filter %q column", expr)
		}
		op, ok := filterOps[parts[1]]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "filter %q has unknown operator %q", expr, parts[1])
		}
		value := strings.TrimSpace(parts[2])
		switch {
		case value == "null" && op == gridtable.OpEq:
			filters = append(filters, gridtable.IsNull(col))
		case value == "null" && op == gridtable.OpNe:
			filters = append(filters, gridtable.Not(gridtable.IsNull(col)))
		default:
			filters = append(filters, gridtable.Compare(col, op, value))
		}
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return gridtable.And(filters...), nil
}

// keyRecord fills the primary-key columns of a record with values in key
// column order. No values means an unbounded side.
func keyRecord(info *gridtable.Info, values []string) (*gridtable.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	pk := info.PrimaryKey().Indexes()
	if len(values) != len(pk) {
		return nil, errors.Newf(errors.ErrorTypeConfig, "key bound has %d values, primary key has %d columns", len(values), len(pk))
	}
	rec := gridtable.NewRecord(info)
	for i, col := range pk {
		if err := rec.SetValue(col, values[i]); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "key column %d", col)
		}
	}
	return rec, nil
}

// aggregateRequest parses COLUMN:FUNCTION metrics. Functions are taken in
// ascending metric column order.
func aggregateRequest(groupBy []int, metrics []string) (gridtable.AggregateRequest, error) {
	byCol := make(map[int]string, len(metrics))
	cols := make([]int, 0, len(metrics))
	for _, metric := range metrics {
		colText, fn, ok := strings.Cut(metric, ":")
		if !ok || fn == "" {
			return gridtable.AggregateRequest{}, errors.Newf(errors.ErrorTypeConfig, "metric %q is not COLUMN:FUNCTION", metric)
		}
		col, err := strconv.Atoi(colText)
		if err != nil {
			return gridtable.AggregateRequest{}, errors.Wrapf(err, errors.ErrorTypeConfig, "metric %q column", metric)
		}
		if _, dup := byCol[col]; dup {
			return gridtable.AggregateRequest{}, errors.Newf(errors.ErrorTypeConfig, "column %d has more than one metric", col)
		}
		byCol[col] = strings.ToLower(fn)
		cols = append(cols, col)
	}
	slices.Sort(cols)
	fns := make([]string, len(cols))
	for i, c := range cols {
		fns[i] = byCol[c]
	}
	return gridtable.AggregateRequest{
		Dimensions: gridtable.NewColumnSet(groupBy...),
		Metrics:    gridtable.NewColumnSet(cols...),
		AggrFuncs:  fns,
	}, nil
}

// printRows writes cols of every row, tab separated, and returns the count
func printRows(out io.Writer, it gridtable.Iterator, cols gridtable.ColumnSet) (int, error) {
	idx := cols.Indexes()
	cells := make([]string, len(idx))
	n := 0
	for it.Next() {
		rec := it.Record()
		for i, c := range idx {
			if rec.Get(c) == nil {
				cells[i] = "null"
				continue
			}
			v, err := rec.Value(c)
			if err != nil {
				return n, err
			}
			cells[i] = formatValue(rec.Info().ColumnType(c), v)
		}
		if _, err := fmt.Fprintln(out, strings.Join(cells, "\t")); err != nil {
			return n, err
		}
		n++
	}
	return n, it.Err()
}

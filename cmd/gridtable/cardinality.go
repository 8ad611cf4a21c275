package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/sampling"
)

func newCardinalityCommand() *cobra.Command {
	var (
		csvFile string
		header  bool
		cuboids []string
		base    string
	)

	cmd := &cobra.Command{
		Use:   "cardinality",
		Short: "Estimate distinct row counts of cuboids over CSV rows",
		Long: `Estimate, with HyperLogLog, the number of distinct rows of each cuboid over
the rowkey columns of a CSV file. Cuboid ids are bitmasks over the base cuboid
and may be given in decimal, 0x or 0b form.

Example:
  gridtable cardinality --csv rows.csv --cuboid 0b110 --cuboid 0b011`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readCSV(csvFile, header)
			if err != nil {
				return err
			}
			return runCardinality(cmd.OutOrStdout(), rows, cuboids, base)
		},
	}

	f := cmd.Flags()
	f.StringVar(&csvFile, "csv", "", "CSV file of rowkey values (required)")
	f.BoolVar(&header, "header", false, "Skip the first CSV line")
	f.StringArrayVar(&cuboids, "cuboid", nil, "Cuboid id to estimate (repeatable, default the base cuboid)")
	f.StringVar(&base, "base", "", "Base cuboid id (default every CSV column)")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func runCardinality(out io.Writer, rows [][]string, cuboidArgs []string, baseArg string) error {
	if len(rows) == 0 {
		return errors.New(errors.ErrorTypeData, "no rows to sample")
	}
	rowkeyLen := len(rows[0])
	if rowkeyLen > 63 {
		return errors.Newf(errors.ErrorTypeConfig, "%d rowkey columns exceed 63", rowkeyLen)
	}

	base := uint64(1)<<rowkeyLen - 1
	if baseArg != "" {
		var err error
		if base, err = strconv.ParseUint(baseArg, 0, 64); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "base cuboid %q", baseArg)
		}
	}
	ids := []uint64{base}
	if len(cuboidArgs) > 0 {
		ids = ids[:0]
		for _, arg := range cuboidArgs {
			id, err := strconv.ParseUint(arg, 0, 64)
			if err != nil {
				return errors.Wrapf(err, errors.ErrorTypeConfig, "cuboid %q", arg)
			}
			ids = append(ids, id)
		}
	}

	s, err := sampling.NewSampler(rowkeyLen, ids, base)
	if err != nil {
		return err
	}
	for _, row := range rows {
		s.Add(row)
	}

	fmt.Fprintf(out, "rows\t%d\n", s.Rows())
	for _, id := range ids {
		est, _ := s.Estimate(id)
		fmt.Fprintf(out, "%#b\t%v\t%d\n", id, sampling.CuboidColumns(id, base, rowkeyLen), est)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "gridtable",
		Short: "GridTable - block-organized table engine",
		Long: `GridTable stores rows in primary-key order as row blocks split into column blocks.
It scans key ranges with predicate pushdown, aggregates by dimension under a
memory cap, estimates cuboid cardinalities and finds Kafka offsets by time.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "GridTable v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newQueryCommand(&configFile))
	root.AddCommand(newCardinalityCommand())
	root.AddCommand(newOffsetCommand(&configFile))
	return root
}

// Package gridtable is an embedded columnar grid-table engine: a fixed-schema,
// sorted, block-organized store with bulk append, range and predicate
// scanning, and group-by aggregation over encoded byte columns.
//
// # Architecture
//
// Rows are kept in primary-key order. A table is a sequence of row blocks;
// each row block is split into column blocks so a scan decodes only the
// column blocks it needs.
//
// 1. Schema: an immutable Info built with InfoBuilder names the column
// types, the primary key, the column-block partition and the row-block size.
//
// 2. Encoding: a pluggable CodeSystem turns values into bytes and creates
// aggregators. The sample code system keeps byte order equal to value order.
// The dictionary code system stores varchar columns as dictionary ids.
//
// 3. Storage: a BlockStore holds opaque row-block payloads. The memory store
// and the compressing decorator are provided.
//
// 4. Scanning: RawScanner yields rows of a key range that pass a Filter.
// AggregateScanner groups them by dimension columns under a memory cap.
//
// # Quick Start
//
//	info, err := gridtable.NewInfoBuilder().
//	    SetCodeSystem(codesystem.NewSample()).
//	    SetColumns(datatype.MustParse("date"), datatype.MustParse("integer")).
//	    SetPrimaryKey(gridtable.NewColumnSet(0)).
//	    EnableRowBlock(4).
//	    Build()
//	table := gridtable.New(info, memstore.New())
//
//	b, err := table.Rebuild(ctx)
//	rec := gridtable.NewRecord(info)
//	_, err = rec.SetValues("2015-01-14", int32(10))
//	err = b.Write(rec)
//	err = b.Close()
//
//	s, err := table.ScanAndAggregate(ctx, gridtable.AggregateRequest{
//	    Dimensions: gridtable.NewColumnSet(0),
//	    Metrics:    gridtable.NewColumnSet(1),
//	    AggrFuncs:  []string{"sum"},
//	})
//	for s.Next() {
//	    fmt.Println(s.Record())
//	}
//
// # Key Packages
//
//   - pkg/gridtable: schema, records, builder, scanners and filters
//   - pkg/gridtable/memstore, pkg/gridtable/compressed: block stores
//   - pkg/codesystem: sample and dictionary code systems
//   - pkg/measure: count, sum, min and max aggregators
//   - pkg/dictionary: order-preserving string dictionaries
//   - pkg/sampling: per-cuboid HyperLogLog cardinality estimates
//   - pkg/kafka: timestamp to offset lookup over a Kafka partition
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: ambient stack
//
// # Command Line
//
//	gridtable query --group-by 0 --metric 3:count --metric 4:sum
//	gridtable cardinality --csv rows.csv --cuboid 0b110
//	gridtable offset --topic sales --partition 0 --timestamp 2015-01-15T00:00:00Z
package gridtable

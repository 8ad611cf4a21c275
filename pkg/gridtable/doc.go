// Package gridtable implements the grid table: a sorted table of encoded
// byte columns stored as row blocks split into column blocks.
//
// A GridTable binds an immutable Info to a BlockStore. Builders obtained
// from Rebuild and Append write records in primary-key order; RawScanner and
// AggregateScanner read them back through the Iterator pull protocol.
package gridtable

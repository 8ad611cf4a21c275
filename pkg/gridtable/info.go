package gridtable

import (
	"github.com/ajitpratap0/gridtable/pkg/datatype"
	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// DefaultMaxRecordLength is used when neither the builder nor the code
// system bounds the encoded record length.
const DefaultMaxRecordLength = 64 * 1024

// Info is the immutable schema descriptor of a grid table. It is shared
// read-only by every record, builder and scanner of the table.
type Info struct {
	codeSystem      CodeSystem
	colTypes        []datatype.DataType
	colAll          ColumnSet
	primaryKey      ColumnSet
	colBlocks       []ColumnSet
	colBlockOf      []int
	colBlocksAll    ColumnSet
	rowBlockSize    int
	maxRecordLength int
}

// CodeSystem returns the table's code system
func (i *Info) CodeSystem() CodeSystem { return i.codeSystem }

// ColumnCount returns the number of columns
func (i *Info) ColumnCount() int { return len(i.colTypes) }

// ColumnType returns the declared type of column col
func (i *Info) ColumnType(col int) datatype.DataType { return i.colTypes[col] }

// ColumnTypes returns all declared column types. The slice must not be modified.
func (i *Info) ColumnTypes() []datatype.DataType { return i.colTypes }

// AllColumns returns the set of every column
func (i *Info) AllColumns() ColumnSet { return i.colAll }

// PrimaryKey returns the primary-key columns that define sort order
func (i *Info) PrimaryKey() ColumnSet { return i.primaryKey }

// ColumnBlocks returns the column-block partition. Without column blocks
// enabled there is a single block holding every column.
func (i *Info) ColumnBlocks() []ColumnSet { return i.colBlocks }

// ColumnBlockOf returns the index of the column block holding col
func (i *Info) ColumnBlockOf(col int) int { return i.colBlockOf[col] }

// RowBlockSize returns rows per row block, or 0 when row blocks are unbounded
func (i *Info) RowBlockSize() int { return i.rowBlockSize }

// IsRowBlockEnabled reports whether row blocks have a size limit
func (i *Info) IsRowBlockEnabled() bool { return i.rowBlockSize > 0 }

// MaxRecordLength returns the maximum encoded length of one record
func (i *Info) MaxRecordLength() int { return i.maxRecordLength }

// blocksFor returns the column-block indexes that hold any column of cols
func (i *Info) blocksFor(cols ColumnSet) ColumnSet {
	blocks := make([]int, 0, len(i.colBlocks))
	for b, set := range i.colBlocks {
		if set.Intersects(cols) {
			blocks = append(blocks, b)
		}
	}
	return NewColumnSet(blocks...)
}

// InfoBuilder assembles and validates an Info
type InfoBuilder struct {
	codeSystem      CodeSystem
	colTypes        []datatype.DataType
	primaryKey      ColumnSet
	colBlocks       []ColumnSet
	rowBlockSize    int
	maxRecordLength int
}

// NewInfoBuilder returns an empty builder
func NewInfoBuilder() *InfoBuilder {
	return &InfoBuilder{}
}

// SetCodeSystem sets the code system
func (b *InfoBuilder) SetCodeSystem(cs CodeSystem) *InfoBuilder {
	b.codeSystem = cs
	return b
}

// SetColumns sets the ordered column types
func (b *InfoBuilder) SetColumns(types ...datatype.DataType) *InfoBuilder {
	b.colTypes = append([]datatype.DataType(nil), types...)
	return b
}

// SetPrimaryKey sets the primary-key columns
func (b *InfoBuilder) SetPrimaryKey(pk ColumnSet) *InfoBuilder {
	b.primaryKey = pk
	return b
}

// EnableColumnBlock partitions columns into column blocks
func (b *InfoBuilder) EnableColumnBlock(blocks ...ColumnSet) *InfoBuilder {
	b.colBlocks = append([]ColumnSet(nil), blocks...)
	return b
}

// EnableRowBlock limits the number of rows per row block
func (b *InfoBuilder) EnableRowBlock(rowsPerBlock int) *InfoBuilder {
	b.rowBlockSize = rowsPerBlock
	return b
}

// SetMaxRecordLength overrides the derived maximum record length
func (b *InfoBuilder) SetMaxRecordLength(n int) *InfoBuilder {
	b.maxRecordLength = n
	return b
}

// Build validates the configuration and returns the immutable Info
func (b *InfoBuilder) Build() (*Info, error) {
	if b.codeSystem == nil {
		return nil, errors.Construction("code system is required")
	}
	n := len(b.colTypes)
	if n == 0 {
		return nil, errors.Construction("at least one column is required")
	}
	if b.primaryKey.IsEmpty() {
		return nil, errors.Construction("primary key must not be empty")
	}
	if b.primaryKey.Max() >= n {
		return nil, errors.Construction("primary key column %d is not declared", b.primaryKey.Max())
	}
	if b.rowBlockSize < 0 {
		return nil, errors.Construction("row block size must not be negative, got %d", b.rowBlockSize)
	}
	if b.maxRecordLength < 0 {
		return nil, errors.Construction("max record length must not be negative, got %d", b.maxRecordLength)
	}

	info := &Info{
		codeSystem:   b.codeSystem,
		colTypes:     append([]datatype.DataType(nil), b.colTypes...),
		colAll:       ColumnRange(0, n),
		primaryKey:   b.primaryKey,
		rowBlockSize: b.rowBlockSize,
		colBlockOf:   make([]int, n),
	}

	if len(b.colBlocks) == 0 {
		info.colBlocks = []ColumnSet{info.colAll}
	} else {
		seen := NewColumnSet()
		for i, blk := range b.colBlocks {
			if blk.IsEmpty() {
				return nil, errors.Construction("column block %d is empty", i)
			}
			if blk.Max() >= n {
				return nil, errors.Construction("column block %d references undeclared column %d", i, blk.Max())
			}
			if blk.Intersects(seen) {
				return nil, errors.Construction("column block %d overlaps a previous block", i)
			}
			seen = seen.Union(blk)
		}
		if seen.Cardinality() != n {
			return nil, errors.Construction("column blocks cover %d of %d columns", seen.Cardinality(), n)
		}
		info.colBlocks = append([]ColumnSet(nil), b.colBlocks...)
	}
	for blk, set := range info.colBlocks {
		for _, c := range set.Indexes() {
			info.colBlockOf[c] = blk
		}
	}
	info.colBlocksAll = ColumnRange(0, len(info.colBlocks))

	if init, ok := b.codeSystem.(Initializer); ok {
		if err := init.Init(info); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConstruction, "code system rejected schema")
		}
	}

	switch {
	case b.maxRecordLength > 0:
		info.maxRecordLength = b.maxRecordLength
	default:
		info.maxRecordLength = DefaultMaxRecordLength
		if lb, ok := b.codeSystem.(LengthBounded); ok {
			total := 0
			for c := 0; c < n; c++ {
				total += lb.MaxLength(c)
			}
			info.maxRecordLength = total
		}
	}

	return info, nil
}

package gridtable

// CodeSystem is the pluggable strategy that gives column bytes a meaning.
// The engine never interprets column bytes itself; every encode, decode and
// aggregator instantiation goes through the table's CodeSystem.
//
// For every value v a column's type can hold, DecodeColumnValue(col,
// EncodeColumnValue(col, v, nil)) must equal v.
type CodeSystem interface {
	// EncodeColumnValue appends the encoding of value for column col to dst
	// and returns the extended slice.
	EncodeColumnValue(col int, value any, dst []byte) ([]byte, error)

	// DecodeColumnValue decodes the bytes of column col. The returned value
	// must not alias b.
	DecodeColumnValue(col int, b []byte) (any, error)

	// NewMetricsAggregator creates an aggregator for function fn over column
	// col. Unknown functions fail with an error wrapping
	// errors.ErrUnsupportedAggregation.
	NewMetricsAggregator(fn string, col int) (MeasureAggregator, error)
}

// Initializer is implemented by code systems that need the schema they are
// bound to. InfoBuilder.Build calls Init exactly once.
type Initializer interface {
	Init(info *Info) error
}

// LengthBounded is implemented by code systems that know the maximum encoded
// length of each column. It lets Info derive its max record length.
type LengthBounded interface {
	MaxLength(col int) int
}

// MeasureAggregator is a mergeable accumulator for one metric function over
// one column within one group.
type MeasureAggregator interface {
	// Aggregate merges one decoded value
	Aggregate(value any) error
	// State returns the current result in the column's decoded type
	State() any
	// MemBytes estimates the memory held by the aggregator
	MemBytes() int
	// Reset returns the aggregator to its initial state
	Reset()
}

package gridtable

import "context"

// BlockRange selects stored row blocks [Start, End). A negative End reads
// to the last block.
type BlockRange struct {
	Start int
	End   int
}

// AllBlocks selects every stored block
var AllBlocks = BlockRange{Start: 0, End: -1}

// BlockStore is the append-only, block-segmented persistence the grid table
// writes row blocks to. Payloads are opaque to the store.
type BlockStore interface {
	// Truncate drops every stored block
	Truncate(ctx context.Context) error
	// AppendBlock stores payload as the new last block
	AppendBlock(ctx context.Context, payload []byte) error
	// ReplaceLastBlock overwrites the last block. It fails on an empty store.
	ReplaceLastBlock(ctx context.Context, payload []byte) error
	// ReadBlocks returns a sequential reader over the selected blocks
	ReadBlocks(ctx context.Context, r BlockRange) (BlockReader, error)
	// BlockCount returns the number of stored blocks
	BlockCount(ctx context.Context) (int, error)
}

// BlockReader reads block payloads in store order. Next returns io.EOF after
// the last block. Returned payloads must not be modified.
type BlockReader interface {
	Next() ([]byte, error)
	Close() error
}

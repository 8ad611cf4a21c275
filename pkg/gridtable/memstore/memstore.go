// Package memstore is an in-memory block store for grid tables.
package memstore

import (
	"context"
	"io"
	"sync"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
)

// Store keeps row-block payloads in a slice. Readers see the blocks that
// existed when ReadBlocks was called.
type Store struct {
	mu     sync.RWMutex
	blocks [][]byte
	bytes  int
}

var _ gridtable.BlockStore = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{}
}

// Truncate drops every block
func (s *Store) Truncate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = nil
	s.bytes = 0
	return nil
}

// AppendBlock stores a copy of payload as the new last block
func (s *Store) AppendBlock(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, append([]byte(nil), payload...))
	s.bytes += len(payload)
	return nil
}

// ReplaceLastBlock overwrites the last block with a copy of payload
func (s *Store) ReplaceLastBlock(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return errors.New(errors.ErrorTypeNotFound, "no block to replace")
	}
	last := len(s.blocks) - 1
	s.bytes += len(payload) - len(s.blocks[last])
	s.blocks[last] = append([]byte(nil), payload...)
	return nil
}

// ReadBlocks returns a reader over a snapshot of the selected blocks
func (s *Store) ReadBlocks(ctx context.Context, r gridtable.BlockRange) (gridtable.BlockReader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	end := r.End
	if end < 0 || end > len(s.blocks) {
		end = len(s.blocks)
	}
	if r.Start < 0 || r.Start > end {
		return nil, errors.Newf(errors.ErrorTypeConstruction, "invalid block range [%d, %d)", r.Start, r.End)
	}
	snapshot := make([][]byte, end-r.Start)
	copy(snapshot, s.blocks[r.Start:end])
	return &reader{blocks: snapshot}, nil
}

// BlockCount returns the number of stored blocks
func (s *Store) BlockCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks), nil
}

// Size returns the total payload bytes held
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

type reader struct {
	blocks [][]byte
	pos    int
	closed bool
}

func (r *reader) Next() ([]byte, error) {
	if r.closed {
		return nil, errors.New(errors.ErrorTypeUnsupported, "read from closed block reader")
	}
	if r.pos >= len(r.blocks) {
		return nil, io.EOF
	}
	b := r.blocks[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) Close() error {
	r.closed = true
	r.blocks = nil
	return nil
}

// Package compressed wraps a block store so row-block payloads are stored
// compressed.
package compressed

import (
	"context"

	"github.com/ajitpratap0/gridtable/pkg/compression"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
)

// Store compresses payloads on write and decompresses them on read
type Store struct {
	inner gridtable.BlockStore
	comp  compression.Compressor
}

var _ gridtable.BlockStore = (*Store)(nil)

// New wraps inner with the compressor described by cfg
func New(inner gridtable.BlockStore, cfg *compression.Config) (*Store, error) {
	comp, err := compression.NewCompressor(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create block compressor")
	}
	return &Store{inner: inner, comp: comp}, nil
}

// Algorithm returns the compression algorithm in use
func (s *Store) Algorithm() compression.Algorithm { return s.comp.Algorithm() }

// Truncate drops every block of the inner store
func (s *Store) Truncate(ctx context.Context) error { return s.inner.Truncate(ctx) }

// AppendBlock compresses payload and appends it
func (s *Store) AppendBlock(ctx context.Context, payload []byte) error {
	frame, err := s.comp.Compress(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "compress row block")
	}
	return s.inner.AppendBlock(ctx, frame)
}

// ReplaceLastBlock compresses payload and replaces the last block with it
func (s *Store) ReplaceLastBlock(ctx context.Context, payload []byte) error {
	frame, err := s.comp.Compress(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "compress row block")
	}
	return s.inner.ReplaceLastBlock(ctx, frame)
}

// ReadBlocks returns a reader that decompresses each block
func (s *Store) ReadBlocks(ctx context.Context, r gridtable.BlockRange) (gridtable.BlockReader, error) {
	rd, err := s.inner.ReadBlocks(ctx, r)
	if err != nil {
		return nil, err
	}
	return &reader{inner: rd, comp: s.comp}, nil
}

// BlockCount returns the inner store's block count
func (s *Store) BlockCount(ctx context.Context) (int, error) { return s.inner.BlockCount(ctx) }

type reader struct {
	inner gridtable.BlockReader
	comp  compression.Compressor
}

func (r *reader) Next() ([]byte, error) {
	frame, err := r.inner.Next()
	if err != nil {
		return nil, err
	}
	payload, err := r.comp.Decompress(frame)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decompress row block")
	}
	return payload, nil
}

func (r *reader) Close() error { return r.inner.Close() }

// Package sampling estimates the row count of every cuboid of a cube from a
// sample of flat-table rows, one HyperLogLog sketch per cuboid.
package sampling

import (
	"encoding/binary"
	"math/bits"

	"github.com/axiomhq/hyperloglog"
	"github.com/spaolacci/murmur3"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// CuboidColumns returns the rowkey column positions a cuboid keeps. The
// highest set bit of baseCuboidID maps to column 0 and each lower bit to the
// next column.
func CuboidColumns(cuboidID, baseCuboidID uint64, rowkeyLen int) []int {
	if baseCuboidID == 0 {
		return nil
	}
	mask := uint64(1) << (63 - bits.LeadingZeros64(baseCuboidID))
	cols := make([]int, 0, bits.OnesCount64(cuboidID))
	for i := 0; i < rowkeyLen && mask != 0; i++ {
		if mask&cuboidID != 0 {
			cols = append(cols, i)
		}
		mask >>= 1
	}
	return cols
}

// Sampler feeds rows into one sketch per cuboid
type Sampler struct {
	rowkeyLen int
	cuboids   []uint64
	cols      [][]int
	sketches  []*hyperloglog.Sketch

	cellHashes [][4]byte
	buf        []byte
	rows       int
}

// NewSampler creates a sampler for the given cuboids. Rows passed to Add
// hold the rowkey columns first, in rowkey order.
func NewSampler(rowkeyLen int, cuboids []uint64, baseCuboidID uint64) (*Sampler, error) {
	if rowkeyLen <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "rowkey length must be positive, got %d", rowkeyLen)
	}
	if baseCuboidID == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "base cuboid id must not be zero")
	}
	s := &Sampler{
		rowkeyLen:  rowkeyLen,
		cuboids:    append([]uint64(nil), cuboids...),
		cols:       make([][]int, len(cuboids)),
		sketches:   make([]*hyperloglog.Sketch, len(cuboids)),
		cellHashes: make([][4]byte, rowkeyLen),
		buf:        make([]byte, 0, 4*rowkeyLen),
	}
	for i, id := range cuboids {
		if id&^baseCuboidID != 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "cuboid %d is not a subset of base cuboid %d", id, baseCuboidID)
		}
		s.cols[i] = CuboidColumns(id, baseCuboidID, rowkeyLen)
		s.sketches[i] = hyperloglog.New14()
	}
	return s, nil
}

// Add samples one row. A missing or empty cell hashes like the integer 0.
func (s *Sampler) Add(row []string) {
	for i := 0; i < s.rowkeyLen; i++ {
		var h uint32
		if i < len(row) && row[i] != "" {
			h = murmur3.Sum32([]byte(row[i]))
		} else {
			var zero [4]byte
			h = murmur3.Sum32(zero[:])
		}
		binary.LittleEndian.PutUint32(s.cellHashes[i][:], h)
	}

	var out [4]byte
	for i, cols := range s.cols {
		s.buf = s.buf[:0]
		for _, c := range cols {
			s.buf = append(s.buf, s.cellHashes[c][:]...)
		}
		binary.LittleEndian.PutUint32(out[:], murmur3.Sum32(s.buf))
		s.sketches[i].Insert(out[:])
	}
	s.rows++
}

// Rows returns the number of rows added
func (s *Sampler) Rows() int { return s.rows }

// Estimate returns the estimated distinct row count of cuboid id
func (s *Sampler) Estimate(id uint64) (uint64, bool) {
	for i, c := range s.cuboids {
		if c == id {
			return s.sketches[i].Estimate(), true
		}
	}
	return 0, false
}

// Sketches returns the sketch of every cuboid
func (s *Sampler) Sketches() map[uint64]*hyperloglog.Sketch {
	out := make(map[uint64]*hyperloglog.Sketch, len(s.cuboids))
	for i, id := range s.cuboids {
		out[id] = s.sketches[i]
	}
	return out
}

// Sample runs a Sampler over rows and returns its sketches
func Sample(rowkeyLen int, cuboids []uint64, baseCuboidID uint64, rows [][]string) (map[uint64]*hyperloglog.Sketch, error) {
	s, err := NewSampler(rowkeyLen, cuboids, baseCuboidID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.Add(row)
	}
	return s.Sketches(), nil
}

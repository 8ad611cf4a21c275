package gridtable

import (
	"encoding/binary"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// rowBlockVersion is the first byte of every row-block payload
const rowBlockVersion byte = 1

// Row-block payload layout:
//
//	version      byte
//	rows         uvarint
//	first pk     per pk column: cell
//	last pk      per pk column: cell
//	segments     uvarint count, then per column block: uvarint length + bytes
//
// A segment holds, row after row, every column of its column block as a
// cell. A cell is uvarint(len+1) followed by len bytes; 0 marks a nil column.

// rowBlockWriter accumulates rows for one row block
type rowBlockWriter struct {
	info     *Info
	rows     int
	first    [][]byte
	last     [][]byte
	segments [][]byte
}

func newRowBlockWriter(info *Info) *rowBlockWriter {
	return &rowBlockWriter{
		info:     info,
		segments: make([][]byte, len(info.ColumnBlocks())),
	}
}

func (w *rowBlockWriter) reset() {
	w.rows = 0
	w.first = nil
	w.last = nil
	for i := range w.segments {
		w.segments[i] = w.segments[i][:0]
	}
}

func (w *rowBlockWriter) add(rec *Record) {
	for blk, set := range w.info.ColumnBlocks() {
		seg := w.segments[blk]
		for _, c := range set.Indexes() {
			seg = appendCell(seg, rec.Get(c))
		}
		w.segments[blk] = seg
	}
	pk := w.pkOf(rec)
	if w.rows == 0 {
		w.first = pk
	}
	w.last = pk
	w.rows++
}

// pkOf deep-copies the primary-key cells of rec
func (w *rowBlockWriter) pkOf(rec *Record) [][]byte {
	pk := w.info.PrimaryKey().Indexes()
	out := make([][]byte, len(pk))
	for i, c := range pk {
		if b := rec.Get(c); b != nil {
			out[i] = append(make([]byte, 0, len(b)), b...)
		}
	}
	return out
}

func (w *rowBlockWriter) encode() []byte {
	size := 1 + binary.MaxVarintLen64*2
	for _, seg := range w.segments {
		size += binary.MaxVarintLen64 + len(seg)
	}
	for i := range w.first {
		size += 2*binary.MaxVarintLen64 + len(w.first[i]) + len(w.last[i])
	}

	out := make([]byte, 0, size)
	out = append(out, rowBlockVersion)
	out = binary.AppendUvarint(out, uint64(w.rows))
	for _, b := range w.first {
		out = appendCell(out, b)
	}
	for _, b := range w.last {
		out = appendCell(out, b)
	}
	out = binary.AppendUvarint(out, uint64(len(w.segments)))
	for _, seg := range w.segments {
		out = binary.AppendUvarint(out, uint64(len(seg)))
		out = append(out, seg...)
	}
	return out
}

// load replaces the writer state with a stored payload so more rows can be
// added to it.
func (w *rowBlockWriter) load(payload []byte) error {
	blk, err := decodeRowBlock(w.info, payload)
	if err != nil {
		return err
	}
	w.rows = blk.rows
	w.first = cloneCells(blk.first)
	w.last = cloneCells(blk.last)
	for i, seg := range blk.segments {
		w.segments[i] = append(w.segments[i][:0], seg...)
	}
	return nil
}

// rowBlock is a decoded row-block header with views over its segments
type rowBlock struct {
	rows     int
	first    [][]byte
	last     [][]byte
	segments [][]byte
}

func decodeRowBlock(info *Info, payload []byte) (*rowBlock, error) {
	d := blockDecoder{buf: payload}
	if v := d.byte(); v != rowBlockVersion {
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported row block version %d", v)
	}
	blk := &rowBlock{rows: int(d.uvarint())} //nolint:gosec // G115: row counts fit in int
	npk := info.PrimaryKey().Cardinality()
	blk.first = make([][]byte, npk)
	blk.last = make([][]byte, npk)
	for i := range blk.first {
		blk.first[i] = d.cell()
	}
	for i := range blk.last {
		blk.last[i] = d.cell()
	}
	nseg := int(d.uvarint()) //nolint:gosec // G115: bounded by the check below
	if d.err == nil && nseg != len(info.ColumnBlocks()) {
		return nil, errors.Newf(errors.ErrorTypeData, "row block has %d segments, schema has %d column blocks",
			nseg, len(info.ColumnBlocks()))
	}
	blk.segments = make([][]byte, nseg)
	for i := range blk.segments {
		n := int(d.uvarint()) //nolint:gosec // G115: checked by take
		blk.segments[i] = d.take(n)
	}
	if d.err != nil {
		return nil, d.err
	}
	return blk, nil
}

// pkRecord builds a record holding only the given pk cells
func pkRecord(info *Info, cells [][]byte) *Record {
	rec := NewRecord(info)
	for i, c := range info.PrimaryKey().Indexes() {
		rec.Set(c, cells[i])
	}
	return rec
}

func appendCell(dst, b []byte) []byte {
	if b == nil {
		return binary.AppendUvarint(dst, 0)
	}
	dst = binary.AppendUvarint(dst, uint64(len(b))+1)
	return append(dst, b...)
}

func cloneCells(cells [][]byte) [][]byte {
	out := make([][]byte, len(cells))
	for i, b := range cells {
		if b != nil {
			out[i] = append(make([]byte, 0, len(b)), b...)
		}
	}
	return out
}

// blockDecoder reads a payload front to back. The first failure sticks.
type blockDecoder struct {
	buf []byte
	off int
	err error
}

func (d *blockDecoder) fail() {
	if d.err == nil {
		d.err = errors.Newf(errors.ErrorTypeData, "truncated row block at offset %d", d.off)
	}
}

func (d *blockDecoder) byte() byte {
	if d.err != nil || d.off >= len(d.buf) {
		d.fail()
		return 0
	}
	b := d.buf[d.off]
	d.off++
	return b
}

func (d *blockDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.off:])
	if n <= 0 {
		d.fail()
		return 0
	}
	d.off += n
	return v
}

func (d *blockDecoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf)-d.off {
		d.fail()
		return nil
	}
	b := d.buf[d.off : d.off+n : d.off+n]
	d.off += n
	return b
}

func (d *blockDecoder) cell() []byte {
	n := d.uvarint()
	if n == 0 || d.err != nil {
		return nil
	}
	return d.take(int(n - 1)) //nolint:gosec // G115: checked by take
}

func (d *blockDecoder) skipCell() {
	n := d.uvarint()
	if n == 0 || d.err != nil {
		return
	}
	if int(n-1) > len(d.buf)-d.off { //nolint:gosec // G115: compared against buffer size
		d.fail()
		return
	}
	d.off += int(n - 1) //nolint:gosec // G115: checked above
}

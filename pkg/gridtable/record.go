package gridtable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// Record is a mutable, reusable row: one byte slice per column, each either
// a view into a backing buffer or an owned copy. A nil column is not
// materialized.
//
// Records handed out by scanners are reused across iteration steps. A
// record that must outlive the current step has to be copied with Copy or
// CopyColumns before the scanner advances.
type Record struct {
	info *Info
	cols [][]byte
	buf  []byte
	offs []int
}

// NewRecord creates an empty record for the table described by info
func NewRecord(info *Info) *Record {
	return &Record{
		info: info,
		cols: make([][]byte, info.ColumnCount()),
	}
}

// Info returns the schema the record belongs to
func (r *Record) Info() *Info { return r.info }

// Get returns the encoded bytes of column col (nil when not materialized)
func (r *Record) Get(col int) []byte { return r.cols[col] }

// Set installs b as the bytes of column col without copying
func (r *Record) Set(col int, b []byte) { r.cols[col] = b }

// Clear unsets every column
func (r *Record) Clear() {
	for i := range r.cols {
		r.cols[i] = nil
	}
}

// SetValues encodes one value per column, in column order, into the
// record's own buffer. It returns the record to allow chained writes.
func (r *Record) SetValues(values ...any) (*Record, error) {
	if len(values) != len(r.cols) {
		return r, errors.Newf(errors.ErrorTypeData, "expected %d values, got %d", len(r.cols), len(values))
	}
	cs := r.info.CodeSystem()
	if r.buf == nil {
		r.buf = make([]byte, 0, 64)
	}
	r.buf = r.buf[:0]
	if cap(r.offs) < len(values)+1 {
		r.offs = make([]int, len(values)+1)
	}
	r.offs = r.offs[:len(values)+1]

	var err error
	for col, v := range values {
		r.offs[col] = len(r.buf)
		if v == nil {
			r.offs[col] = -1
			continue
		}
		r.buf, err = cs.EncodeColumnValue(col, v, r.buf)
		if err != nil {
			return r, errors.Wrapf(err, errors.ErrorTypeData, "encode column %d", col)
		}
	}
	r.offs[len(values)] = len(r.buf)

	for col := range values {
		start := r.offs[col]
		if start < 0 {
			r.cols[col] = nil
			continue
		}
		end := len(r.buf)
		for next := col + 1; next <= len(values); next++ {
			if r.offs[next] >= 0 {
				end = r.offs[next]
				break
			}
		}
		r.cols[col] = r.buf[start:end:end]
	}
	return r, nil
}

// SetValue encodes a single column into a freshly allocated slice
func (r *Record) SetValue(col int, v any) error {
	if v == nil {
		r.cols[col] = nil
		return nil
	}
	b, err := r.info.CodeSystem().EncodeColumnValue(col, v, make([]byte, 0, 16))
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeData, "encode column %d", col)
	}
	r.cols[col] = b
	return nil
}

// Value decodes column col. Unmaterialized columns decode to nil.
func (r *Record) Value(col int) (any, error) {
	if r.cols[col] == nil {
		return nil, nil
	}
	return r.info.CodeSystem().DecodeColumnValue(col, r.cols[col])
}

// Values decodes every column
func (r *Record) Values() ([]any, error) {
	out := make([]any, len(r.cols))
	for col := range r.cols {
		v, err := r.Value(col)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

// EncodedLength returns the total bytes of all materialized columns
func (r *Record) EncodedLength() int {
	n := 0
	for _, c := range r.cols {
		n += len(c)
	}
	return n
}

// Copy deep-copies every column
func (r *Record) Copy() *Record {
	return r.CopyColumns(r.info.AllColumns())
}

// CopyColumns deep-copies the given columns into one new buffer; other
// columns of the copy are unset.
func (r *Record) CopyColumns(cols ColumnSet) *Record {
	size := 0
	for _, c := range cols.Indexes() {
		size += len(r.cols[c])
	}
	out := NewRecord(r.info)
	out.buf = make([]byte, 0, size)
	for _, c := range cols.Indexes() {
		if r.cols[c] == nil {
			continue
		}
		start := len(out.buf)
		out.buf = append(out.buf, r.cols[c]...)
		out.cols[c] = out.buf[start:len(out.buf):len(out.buf)]
	}
	return out
}

// CompareColumns orders r and o by the bytes of cols, in ascending column
// order. A nil column sorts before any bytes, including empty ones.
// Encodings are expected to be order-preserving for key columns.
func (r *Record) CompareColumns(o *Record, cols ColumnSet) int {
	for _, c := range cols.Indexes() {
		a, b := r.cols[c], o.cols[c]
		if (a == nil) != (b == nil) {
			if a == nil {
				return -1
			}
			return 1
		}
		if d := bytes.Compare(a, b); d != 0 {
			return d
		}
	}
	return 0
}

// EqualColumns reports whether r and o hold the same bytes in cols
func (r *Record) EqualColumns(o *Record, cols ColumnSet) bool {
	for _, c := range cols.Indexes() {
		a, b := r.cols[c], o.cols[c]
		if (a == nil) != (b == nil) || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

// HashColumns hashes the bytes of cols. Records equal under EqualColumns
// hash equally.
func (r *Record) HashColumns(cols ColumnSet) uint64 {
	d := xxhash.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, c := range cols.Indexes() {
		var tag uint64
		if r.cols[c] != nil {
			tag = uint64(len(r.cols[c])) + 1
		}
		n := binary.PutUvarint(lenBuf[:], tag)
		_, _ = d.Write(lenBuf[:n])
		_, _ = d.Write(r.cols[c])
	}
	return d.Sum64()
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for col := range r.cols {
		if col > 0 {
			b.WriteString(", ")
		}
		if r.cols[col] == nil {
			b.WriteString("null")
			continue
		}
		v, err := r.Value(col)
		if err != nil {
			fmt.Fprintf(&b, "%x", r.cols[col])
			continue
		}
		fmt.Fprintf(&b, "%v", v)
	}
	b.WriteByte(']')
	return b.String()
}

// KeyComparator returns an ordering over records restricted to cols. It is
// the only way the engine treats two rows as "the same key".
func KeyComparator(cols ColumnSet) func(a, b *Record) int {
	return func(a, b *Record) int {
		return a.CompareColumns(b, cols)
	}
}

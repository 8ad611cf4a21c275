package gridtable

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// ColumnSet is an immutable set of column indexes. The zero value and nil are
// both the empty set.
type ColumnSet struct {
	bm   *roaring.Bitmap
	idxs []int // ascending, cached for hot loops
}

// NewColumnSet creates a set from column indexes
func NewColumnSet(cols ...int) ColumnSet {
	bm := roaring.New()
	for _, c := range cols {
		if c < 0 {
			continue
		}
		bm.Add(uint32(c)) //nolint:gosec // G115: column indexes are small and non-negative
	}
	return fromBitmap(bm)
}

// ColumnRange returns the set {from, from+1, ..., to-1}
func ColumnRange(from, to int) ColumnSet {
	bm := roaring.New()
	if to > from && from >= 0 {
		bm.AddRange(uint64(from), uint64(to))
	}
	return fromBitmap(bm)
}

func fromBitmap(bm *roaring.Bitmap) ColumnSet {
	arr := bm.ToArray()
	idxs := make([]int, len(arr))
	for i, v := range arr {
		idxs[i] = int(v)
	}
	return ColumnSet{bm: bm, idxs: idxs}
}

func (s ColumnSet) bitmap() *roaring.Bitmap {
	if s.bm == nil {
		return roaring.New()
	}
	return s.bm
}

// Contains reports whether col is in the set
func (s ColumnSet) Contains(col int) bool {
	if s.bm == nil || col < 0 {
		return false
	}
	return s.bm.Contains(uint32(col)) //nolint:gosec // G115: checked non-negative
}

// Cardinality returns the number of columns in the set
func (s ColumnSet) Cardinality() int { return len(s.idxs) }

// IsEmpty reports whether the set has no columns
func (s ColumnSet) IsEmpty() bool { return len(s.idxs) == 0 }

// Indexes returns the columns in ascending order. The slice must not be modified.
func (s ColumnSet) Indexes() []int { return s.idxs }

// Max returns the largest column, or -1 for the empty set
func (s ColumnSet) Max() int {
	if len(s.idxs) == 0 {
		return -1
	}
	return s.idxs[len(s.idxs)-1]
}

// Intersects reports whether the sets share a column
func (s ColumnSet) Intersects(o ColumnSet) bool {
	if s.bm == nil || o.bm == nil {
		return false
	}
	return s.bm.Intersects(o.bm)
}

// Union returns s ∪ o
func (s ColumnSet) Union(o ColumnSet) ColumnSet {
	return fromBitmap(roaring.Or(s.bitmap(), o.bitmap()))
}

// Intersect returns s ∩ o
func (s ColumnSet) Intersect(o ColumnSet) ColumnSet {
	return fromBitmap(roaring.And(s.bitmap(), o.bitmap()))
}

// Difference returns s \ o
func (s ColumnSet) Difference(o ColumnSet) ColumnSet {
	return fromBitmap(roaring.AndNot(s.bitmap(), o.bitmap()))
}

// Equal reports whether both sets hold the same columns
func (s ColumnSet) Equal(o ColumnSet) bool {
	if len(s.idxs) != len(o.idxs) {
		return false
	}
	for i := range s.idxs {
		if s.idxs[i] != o.idxs[i] {
			return false
		}
	}
	return true
}

func (s ColumnSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range s.idxs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(c))
	}
	b.WriteByte('}')
	return b.String()
}

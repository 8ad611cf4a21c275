// Package dictionary builds order-preserving string dictionaries for
// dimension columns. Ids follow the sorted order of the distinct values, so
// comparing ids compares the values they stand for.
package dictionary

import (
	"slices"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

// Dictionary maps the values of one column to dense integer ids and back
type Dictionary interface {
	IDOf(value string) (int, error)
	ValueOf(id int) (string, error)
	Size() int
	// IDWidth is the number of bytes needed to store any id
	IDWidth() int
}

// SortedDictionary assigns ids 0..n-1 to n distinct values in ascending order
type SortedDictionary struct {
	values []string
	ids    map[string]int
}

var _ Dictionary = (*SortedDictionary)(nil)

// Build creates a dictionary from values. Duplicates are ignored.
func Build(values []string) *SortedDictionary {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return fromSorted(sorted)
}

func fromSorted(values []string) *SortedDictionary {
	ids := make(map[string]int, len(values))
	for i, v := range values {
		ids[v] = i
	}
	return &SortedDictionary{values: values, ids: ids}
}

// IDOf returns the id of value
func (d *SortedDictionary) IDOf(value string) (int, error) {
	id, ok := d.ids[value]
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeNotFound, "value %q is not in the dictionary", value)
	}
	return id, nil
}

// ValueOf returns the value with the given id
func (d *SortedDictionary) ValueOf(id int) (string, error) {
	if id < 0 || id >= len(d.values) {
		return "", errors.Newf(errors.ErrorTypeNotFound, "id %d is outside the dictionary of %d values", id, len(d.values))
	}
	return d.values[id], nil
}

// Size returns the number of distinct values
func (d *SortedDictionary) Size() int { return len(d.values) }

// IDWidth returns the bytes needed for the largest id, at least 1
func (d *SortedDictionary) IDWidth() int {
	width := 1
	for n := len(d.values) - 1; n > 0xff; n >>= 8 {
		width++
	}
	return width
}

// Values returns the values in id order. The slice must not be modified.
func (d *SortedDictionary) Values() []string { return d.values }

type dictionaryJSON struct {
	Values []string `json:"values"`
}

// MarshalJSON writes the values in id order
func (d *SortedDictionary) MarshalJSON() ([]byte, error) {
	return json.Marshal(dictionaryJSON{Values: d.values})
}

// UnmarshalJSON restores a dictionary. Values must be sorted and distinct.
func (d *SortedDictionary) UnmarshalJSON(b []byte) error {
	var raw dictionaryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "decode dictionary")
	}
	for i := 1; i < len(raw.Values); i++ {
		if raw.Values[i-1] >= raw.Values[i] {
			return errors.Newf(errors.ErrorTypeData, "dictionary values not strictly ascending at %d", i)
		}
	}
	*d = *fromSorted(raw.Values)
	return nil
}

// BuildForColumns builds one dictionary per listed column from a single pass
// over raw rows. Empty cells are treated as null and left out.
func BuildForColumns(rows [][]string, columns []int) map[int]*SortedDictionary {
	distinct := make(map[int]map[string]struct{}, len(columns))
	for _, c := range columns {
		distinct[c] = make(map[string]struct{})
	}
	for _, row := range rows {
		for _, c := range columns {
			if c >= len(row) || row[c] == "" {
				continue
			}
			distinct[c][row[c]] = struct{}{}
		}
	}

	out := make(map[int]*SortedDictionary, len(columns))
	for c, set := range distinct {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		slices.Sort(values)
		out[c] = fromSorted(values)
	}
	return out
}

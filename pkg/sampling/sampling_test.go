package sampling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/errors"
)

func TestCuboidColumns(t *testing.T) {
	tests := []struct {
		cuboid, base uint64
		n            int
		want         []int
	}{
		{0b111, 0b111, 3, []int{0, 1, 2}},
		{0b100, 0b111, 3, []int{0}},
		{0b011, 0b111, 3, []int{1, 2}},
		{0b101, 0b111, 3, []int{0, 2}},
		{0, 0b111, 3, []int{}},
		{0b1010, 0b1111, 4, []int{0, 2}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%b", tt.cuboid), func(t *testing.T) {
			assert.Equal(t, tt.want, CuboidColumns(tt.cuboid, tt.base, tt.n))
		})
	}
}

func TestSampleEstimates(t *testing.T) {
	// 3 rowkey columns: a has 10 values, b has 5, c is constant
	var rows [][]string
	for i := 0; i < 1000; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("a%d", i%10),
			fmt.Sprintf("b%d", i%5),
			"c",
		})
	}
	cuboids := []uint64{0b111, 0b110, 0b100, 0b010, 0b001}
	sketches, err := Sample(3, cuboids, 0b111, rows)
	require.NoError(t, err)
	require.Len(t, sketches, len(cuboids))

	want := map[uint64]uint64{
		0b111: 10, // b is a function of a
		0b110: 10,
		0b100: 10,
		0b010: 5,
		0b001: 1,
	}
	for id, n := range want {
		assert.InDelta(t, float64(n), float64(sketches[id].Estimate()), 1, "cuboid %b", id)
	}
}

func TestSamplerNullCells(t *testing.T) {
	s, err := NewSampler(2, []uint64{0b11, 0b10}, 0b11)
	require.NoError(t, err)
	s.Add([]string{"", "x"})
	s.Add([]string{"", "y"})
	s.Add([]string{"v"})
	s.Add([]string{"v", ""})

	assert.Equal(t, 4, s.Rows())
	n, ok := s.Estimate(0b10)
	require.True(t, ok)
	assert.InDelta(t, 2, float64(n), 0.5)
	n, ok = s.Estimate(0b11)
	require.True(t, ok)
	assert.InDelta(t, 3, float64(n), 0.5)

	_, ok = s.Estimate(0b01)
	assert.False(t, ok)
}

func TestNewSamplerErrors(t *testing.T) {
	_, err := NewSampler(0, nil, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	_, err = NewSampler(2, nil, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	_, err = NewSampler(2, []uint64{0b100}, 0b11)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

package compressed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridtable/pkg/compression"
	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/gridtable"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/compressed"
	"github.com/ajitpratap0/gridtable/pkg/gridtable/memstore"
	"github.com/ajitpratap0/gridtable/pkg/testutil"
)

func TestCompressedTable(t *testing.T) {
	plain, _ := testutil.NewTable(t, testutil.AdvancedInfo(t))
	testutil.Rebuild(t, plain, testutil.SampleRows())
	s, err := plain.Scan(context.Background(), gridtable.ScanRequest{})
	require.NoError(t, err)
	want := testutil.Drain(t, s)

	for _, algo := range []compression.Algorithm{
		compression.None, compression.Gzip, compression.Snappy,
		compression.LZ4, compression.Zstd, compression.S2,
	} {
		t.Run(string(algo), func(t *testing.T) {
			inner := memstore.New()
			store, err := compressed.New(inner, &compression.Config{Algorithm: algo, Level: compression.Default})
			require.NoError(t, err)
			assert.Equal(t, algo, store.Algorithm())

			table := gridtable.New(testutil.AdvancedInfo(t), store, gridtable.WithLogger(testutil.TestLogger(t)))
			last := testutil.AppendInBatches(t, table, testutil.SampleRows(), 4, 3, 2, 1)
			assert.Equal(t, 3, last.WrittenRowBlockCount())

			n, err := store.BlockCount(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			s, err := table.Scan(context.Background(), gridtable.ScanRequest{})
			require.NoError(t, err)
			assert.Equal(t, want, testutil.Drain(t, s))
			assert.Equal(t, 10, s.ScannedRowCount())
		})
	}
}

func TestCompressedCorruptFrame(t *testing.T) {
	inner := memstore.New()
	require.NoError(t, inner.AppendBlock(context.Background(), []byte("not a zstd frame")))

	store, err := compressed.New(inner, &compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)
	rd, err := store.ReadBlocks(context.Background(), gridtable.AllBlocks)
	require.NoError(t, err)
	defer rd.Close()

	_, err = rd.Next()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := compressed.New(memstore.New(), &compression.Config{Algorithm: "brotli"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

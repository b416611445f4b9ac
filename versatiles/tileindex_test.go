package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
)

func TestTileIndexRoundTripRelativeToAbsolute(t *testing.T) {
	ti := NewTileIndex(4)
	ti.Set(0, blob.ByteRange{Offset: 1000, Length: 10})
	ti.Set(2, blob.ByteRange{Offset: 1010, Length: 20})
	// slot 1 and 3 stay empty, meaning absent.

	const base = 1000
	b, err := ti.ToBlob(base)
	require.NoError(t, err)

	got, err := TileIndexFromBlob(b, base)
	require.NoError(t, err)
	require.Equal(t, 4, got.Len())

	r0, ok := got.Get(0)
	require.True(t, ok)
	assert.Equal(t, blob.ByteRange{Offset: 1000, Length: 10}, r0)

	r2, ok := got.Get(2)
	require.True(t, ok)
	assert.Equal(t, blob.ByteRange{Offset: 1010, Length: 20}, r2)

	_, ok = got.Get(1)
	assert.False(t, ok)
}

func TestTileIndexFromBlobRejectsBadLength(t *testing.T) {
	ti := NewTileIndex(1)
	ti.Set(0, blob.ByteRange{Offset: 0, Length: 5})
	b, err := ti.ToBlob(0)
	require.NoError(t, err)

	raw, err := compress.DecompressBrotli(b)
	require.NoError(t, err)
	truncated := blob.New(raw.Bytes()[:raw.Len()-1])
	recompressed, err := compress.CompressBrotli(truncated)
	require.NoError(t, err)

	_, err = TileIndexFromBlob(recompressed, 0)
	assert.Error(t, err)
}

func TestByteSize(t *testing.T) {
	ti := NewTileIndex(7)
	assert.Equal(t, 7*tileIndexRecordSize, ti.ByteSize())
}

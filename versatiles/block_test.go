package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
)

func TestBlockDefinitionLocalAndGlobalBBox(t *testing.T) {
	def := BlockDefinition{
		Level: 10, X: 2, Y: 3,
		XMin: 5, YMin: 6, XMax: 20, YMax: 21,
		TileRange: blob.ByteRange{Offset: 100, Length: 50},
	}
	local, err := def.LocalBBox()
	require.NoError(t, err)
	assert.EqualValues(t, 5, local.XMin())
	assert.EqualValues(t, 20, local.XMax())

	global, err := def.GlobalBBox()
	require.NoError(t, err)
	assert.EqualValues(t, 2*256+5, global.XMin())
	assert.EqualValues(t, 3*256+6, global.YMin())
	assert.EqualValues(t, 2*256+20, global.XMax())
	assert.EqualValues(t, 3*256+21, global.YMax())
}

func TestBlockDefinitionTileCount(t *testing.T) {
	def := BlockDefinition{Level: 8, XMin: 0, YMin: 0, XMax: 9, YMax: 9}
	assert.EqualValues(t, 100, def.TileCount())
}

func TestBlockIndexRoundTrip(t *testing.T) {
	idx := NewBlockIndex()
	idx.Insert(BlockDefinition{Level: 5, X: 0, Y: 0, XMax: 10, YMax: 10, TileRange: blob.ByteRange{Offset: 10, Length: 20}})
	idx.Insert(BlockDefinition{Level: 5, X: 1, Y: 0, XMax: 255, YMax: 255, TileRange: blob.ByteRange{Offset: 30, Length: 40}})

	b, err := idx.ToBlob()
	require.NoError(t, err)

	got, err := BlockIndexFromBlob(b)
	require.NoError(t, err)
	assert.True(t, idx.Equal(got))
	assert.Len(t, got.All(), 2)
}

func TestBlockIndexGetMissing(t *testing.T) {
	idx := NewBlockIndex()
	_, ok := idx.Get(0, 0, 0)
	assert.False(t, ok)
}

func TestBlockIndexFromBlobRejectsBadLength(t *testing.T) {
	bad, err := compress.CompressBrotli(blob.New([]byte{1, 2, 3}))
	require.NoError(t, err)
	_, err = BlockIndexFromBlob(bad)
	assert.Error(t, err)
}

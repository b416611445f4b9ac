package mbtiles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

func TestFlipYIsItsOwnInverse(t *testing.T) {
	for level := uint8(0); level < 10; level++ {
		for y := uint32(0); y < uint32(1)<<level && y < 20; y++ {
			assert.Equal(t, y, flipY(level, flipY(level, y)))
		}
	}
}

func mustTileCoord(t *testing.T, level uint8, x, y uint32) tiles.TileCoord {
	t.Helper()
	c, err := tiles.NewTileCoord(level, x, y)
	require.NoError(t, err)
	return c
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mbtiles")
	w, err := NewWriter(path)
	require.NoError(t, err)

	tj := tilejson.New("", "")
	tj.Name = "roundtrip"
	mn, mx := uint8(3), uint8(3)
	tj.MinZoom = &mn
	tj.MaxZoom = &mx
	w.SetTileJSON(tj)

	c1 := mustTileCoord(t, 3, 2, 5)
	c2 := mustTileCoord(t, 3, 3, 5)
	items := []tilestream.Item[container.Tile]{
		{Coord: c1, Value: container.Tile{Coord: c1, Data: blob.New([]byte("tile-one")), Compression: compress.Gzip}},
		{Coord: c2, Value: container.Tile{Coord: c2, Data: blob.New([]byte("tile-two")), Compression: compress.Gzip}},
	}
	meta := container.TileSourceMetadata{TileFormat: compress.MVT, TileCompression: compress.Gzip}
	require.NoError(t, w.WriteTileStream(context.Background(), meta, tilestream.FromSlice(items)))
	require.NoError(t, w.Close())

	r, err := Open(context.Background(), path, 2)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "roundtrip", r.TileJSON().Name)
	assert.Equal(t, compress.MVT, r.Metadata().TileFormat)

	tile, ok, err := r.GetTile(context.Background(), c1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tile-one", tile.Data.AsString())

	missing := mustTileCoord(t, 3, 0, 0)
	_, ok, err = r.GetTile(context.Background(), missing)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetTileStreamRespectsBBoxAndYFlip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.mbtiles")
	w, err := NewWriter(path)
	require.NoError(t, err)

	coords := []tiles.TileCoord{
		mustTileCoord(t, 4, 1, 1),
		mustTileCoord(t, 4, 2, 2),
		mustTileCoord(t, 4, 10, 10),
	}
	items := make([]tilestream.Item[container.Tile], 0, len(coords))
	for i, c := range coords {
		items = append(items, tilestream.Item[container.Tile]{
			Coord: c,
			Value: container.Tile{Coord: c, Data: blob.New([]byte{byte(i)}), Compression: compress.Uncompressed},
		})
	}
	meta := container.TileSourceMetadata{TileFormat: compress.PNG, TileCompression: compress.Uncompressed}
	require.NoError(t, w.WriteTileStream(context.Background(), meta, tilestream.FromSlice(items)))
	require.NoError(t, w.Close())

	r, err := Open(context.Background(), path, 1)
	require.NoError(t, err)
	defer r.Close()

	narrow, err := tiles.FromMinMax(4, 0, 0, 5, 5)
	require.NoError(t, err)
	out, err := r.GetTileStream(context.Background(), narrow).ToSlice()
	require.NoError(t, err)
	assert.Len(t, out, 2)

	sizes, err := r.GetTileSizeStream(context.Background(), narrow).ToSlice()
	require.NoError(t, err)
	assert.Len(t, sizes, 2)
	for _, s := range sizes {
		assert.Equal(t, uint32(1), s.Value)
	}
}

func TestBBoxPyramidInferredFromTiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyramid.mbtiles")
	w, err := NewWriter(path)
	require.NoError(t, err)

	coords := []tiles.TileCoord{
		mustTileCoord(t, 2, 0, 0),
		mustTileCoord(t, 2, 3, 3),
	}
	items := make([]tilestream.Item[container.Tile], 0, len(coords))
	for _, c := range coords {
		items = append(items, tilestream.Item[container.Tile]{
			Coord: c,
			Value: container.Tile{Coord: c, Data: blob.New([]byte("x")), Compression: compress.Uncompressed},
		})
	}
	meta := container.TileSourceMetadata{TileFormat: compress.PNG, TileCompression: compress.Uncompressed}
	require.NoError(t, w.WriteTileStream(context.Background(), meta, tilestream.FromSlice(items)))
	require.NoError(t, w.Close())

	r, err := Open(context.Background(), path, 1)
	require.NoError(t, err)
	defer r.Close()

	meta2 := r.Metadata()
	zmin, ok := meta2.BBoxPyramid.GetZoomMin()
	require.True(t, ok)
	zmax, ok := meta2.BBoxPyramid.GetZoomMax()
	require.True(t, ok)
	assert.EqualValues(t, 2, zmin)
	assert.EqualValues(t, 2, zmax)
}

func TestFormatFromMBTilesRejectsUnknown(t *testing.T) {
	_, _, err := formatFromMBTiles("bmp")
	assert.Error(t, err)
}

package versatiles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/dataio"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

func buildArchive(t *testing.T, coords []tiles.TileCoord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.versatiles")
	w, err := dataio.NewFileWriter(path)
	require.NoError(t, err)

	items := make([]tilestream.Item[container.Tile], 0, len(coords))
	for i, c := range coords {
		payload, err := compress.CompressGzip(blob.New([]byte{byte(i), byte(i + 1)}))
		require.NoError(t, err)
		items = append(items, tilestream.Item[container.Tile]{
			Coord: c,
			Value: container.Tile{Coord: c, Data: payload, Compression: compress.Gzip},
		})
	}
	writer := NewWriter(w, WriterOptions{})
	require.NoError(t, writer.WriteTileStream(context.Background(), sourceMeta(), tilestream.FromSlice(items)))
	return path
}

func openArchive(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := dataio.NewFileReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	rd, err := Open(context.Background(), r)
	require.NoError(t, err)
	return rd
}

func TestReaderMetadataReflectsHeader(t *testing.T) {
	path := buildArchive(t, []tiles.TileCoord{mustCoord(t, 6, 1, 1)})
	rd := openArchive(t, path)
	meta := rd.Metadata()
	assert.Equal(t, compress.MVT, meta.TileFormat)
	assert.Equal(t, compress.Gzip, meta.TileCompression)
}

func TestReaderGetTileSizeStreamDoesNotReadPayload(t *testing.T) {
	coords := []tiles.TileCoord{mustCoord(t, 6, 1, 1), mustCoord(t, 6, 2, 2)}
	path := buildArchive(t, coords)

	raw, err := dataio.NewFileReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	cr := &countingReader{Reader: raw}
	rd, err := Open(context.Background(), cr)
	require.NoError(t, err)

	full, err := tiles.FromMinMax(6, 0, 0, 63, 63)
	require.NoError(t, err)
	cr.reads = 0
	out, err := rd.GetTileSizeStream(context.Background(), full).ToSlice()
	require.NoError(t, err)
	assert.Len(t, out, 2)
	for _, item := range out {
		assert.Greater(t, item.Value, uint32(0))
	}
	// Only the block's tile-index footer and tile index are read.
	assert.Equal(t, 2, cr.reads)
}

func TestReaderGetTileStreamRespectsBBox(t *testing.T) {
	coords := []tiles.TileCoord{mustCoord(t, 6, 1, 1), mustCoord(t, 6, 40, 40)}
	path := buildArchive(t, coords)
	rd := openArchive(t, path)

	narrow, err := tiles.FromMinMax(6, 0, 0, 5, 5)
	require.NoError(t, err)
	out, err := rd.GetTileStream(context.Background(), narrow).ToSlice()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, coords[0], out[0].Coord)
}

// countingReader wraps a dataio.Reader and counts ReadRange calls, so
// tests can assert on how many underlying reads a stream actually issues.
type countingReader struct {
	dataio.Reader
	reads int
}

func (c *countingReader) ReadRange(ctx context.Context, r blob.ByteRange) (blob.Blob, error) {
	c.reads++
	return c.Reader.ReadRange(ctx, r)
}

func TestReaderGetTileStreamCoalescesAdjacentTileReads(t *testing.T) {
	coords := []tiles.TileCoord{
		mustCoord(t, 6, 1, 1), mustCoord(t, 6, 2, 1), mustCoord(t, 6, 3, 1),
		mustCoord(t, 6, 1, 2), mustCoord(t, 6, 2, 2), mustCoord(t, 6, 3, 2),
	}
	path := buildArchive(t, coords)

	raw, err := dataio.NewFileReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	cr := &countingReader{Reader: raw}
	rd, err := Open(context.Background(), cr)
	require.NoError(t, err)

	full, err := tiles.FromMinMax(6, 0, 0, 63, 63)
	require.NoError(t, err)
	cr.reads = 0
	out, err := rd.GetTileStream(context.Background(), full).ToSlice()
	require.NoError(t, err)
	require.Len(t, out, len(coords))

	// header/meta/block-index reads already happened during Open; the
	// count covers the block's two tile-index reads (footer and index)
	// plus the adjacently-written tile payloads, which should coalesce
	// into far fewer ReadRange calls than one per tile.
	assert.Less(t, cr.reads, len(coords))
}

func TestReaderIndexCacheReturnsSameIndexOnRepeatLookup(t *testing.T) {
	path := buildArchive(t, []tiles.TileCoord{mustCoord(t, 6, 1, 1)})
	rd := openArchive(t, path)

	def, ok := rd.blockIndex.Get(6, 0, 0)
	require.True(t, ok)
	first, err := rd.getBlockTileIndex(context.Background(), def)
	require.NoError(t, err)
	second, err := rd.getBlockTileIndex(context.Background(), def)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

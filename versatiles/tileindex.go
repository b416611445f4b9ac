package versatiles

import (
	"encoding/binary"
	"fmt"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
)

// tileIndexRecordSize is the fixed, big-endian on-disk size of one
// TileIndex record: offset:u64 BE, length:u32 BE.
const tileIndexRecordSize = 12

// TileIndex holds one ByteRange per tile slot of a block's local bbox,
// in row-major order. A zero-length range means the tile is absent.
type TileIndex struct {
	ranges []blob.ByteRange
}

// NewTileIndex allocates an index with n empty slots.
func NewTileIndex(n int) *TileIndex {
	return &TileIndex{ranges: make([]blob.ByteRange, n)}
}

// Len returns the number of tile slots.
func (ti *TileIndex) Len() int {
	return len(ti.ranges)
}

// Set records the range for tile slot i.
func (ti *TileIndex) Set(i int, r blob.ByteRange) {
	ti.ranges[i] = r
}

// Get returns the range recorded for tile slot i, and whether it is
// non-empty (present).
func (ti *TileIndex) Get(i int) (blob.ByteRange, bool) {
	r := ti.ranges[i]
	return r, !r.IsEmpty()
}

// ToBlob serializes the index as 12-byte records with ranges relative to
// tilesBase, Brotli-compressed.
func (ti *TileIndex) ToBlob(tilesBase uint64) (blob.Blob, error) {
	raw := make([]byte, len(ti.ranges)*tileIndexRecordSize)
	for i, r := range ti.ranges {
		off := i * tileIndexRecordSize
		if r.IsEmpty() {
			continue
		}
		relOffset := r.Offset - tilesBase
		binary.BigEndian.PutUint64(raw[off:off+8], relOffset)
		binary.BigEndian.PutUint32(raw[off+8:off+12], uint32(r.Length))
	}
	return compress.CompressBrotli(blob.New(raw))
}

// TileIndexFromBlob decompresses and parses a Brotli-compressed
// TileIndex blob, biasing every offset by tilesBase so ranges become
// absolute file offsets.
func TileIndexFromBlob(b blob.Blob, tilesBase uint64) (*TileIndex, error) {
	raw, err := compress.DecompressBrotli(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress tile index: %w", err)
	}
	data := raw.Bytes()
	if len(data)%tileIndexRecordSize != 0 {
		return nil, fmt.Errorf("tile index length %d is not a multiple of %d", len(data), tileIndexRecordSize)
	}
	n := len(data) / tileIndexRecordSize
	ti := NewTileIndex(n)
	for i := 0; i < n; i++ {
		off := i * tileIndexRecordSize
		relOffset := binary.BigEndian.Uint64(data[off : off+8])
		length := binary.BigEndian.Uint32(data[off+8 : off+12])
		if length == 0 {
			continue
		}
		ti.ranges[i] = blob.ByteRange{Offset: tilesBase + relOffset, Length: uint64(length)}
	}
	return ti, nil
}

// ByteSize estimates the index's decoded in-memory footprint, used by
// the reader's LRU cache to account for cached entries by size rather
// than item count.
func (ti *TileIndex) ByteSize() int {
	return len(ti.ranges) * tileIndexRecordSize
}

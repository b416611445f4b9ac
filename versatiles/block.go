package versatiles

import (
	"encoding/binary"
	"fmt"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/tiles"
)

// blockDefinitionSize is the fixed, big-endian on-disk size of one
// BlockDefinition record.
const blockDefinitionSize = 29

// BlockDefinition locates one 256x256-tile block of the grid and its
// local bbox (in block-local 0..=255 coordinates) within the archive.
type BlockDefinition struct {
	Level     uint8
	X, Y      uint32 // block coordinate: the block covers global tiles [X*256, X*256+255]
	XMin      uint8
	YMin      uint8
	XMax      uint8
	YMax      uint8
	TileRange blob.ByteRange
}

// LocalBBox returns the block's tile bbox in block-local coordinates
// (0..=255 on each axis).
func (d BlockDefinition) LocalBBox() (tiles.TileBBox, error) {
	return tiles.FromMinMax(d.Level, uint32(d.XMin), uint32(d.YMin), uint32(d.XMax), uint32(d.YMax))
}

// GlobalBBox returns the block's tile bbox in the full grid's global
// coordinates.
func (d BlockDefinition) GlobalBBox() (tiles.TileBBox, error) {
	return tiles.FromMinMax(d.Level,
		d.X*256+uint32(d.XMin), d.Y*256+uint32(d.YMin),
		d.X*256+uint32(d.XMax), d.Y*256+uint32(d.YMax))
}

// TileCount returns the number of tile slots this block's local bbox
// covers.
func (d BlockDefinition) TileCount() uint64 {
	bbox, err := d.LocalBBox()
	if err != nil {
		return 0
	}
	return bbox.CountTiles()
}

func (d BlockDefinition) toBlob() blob.Blob {
	b := make([]byte, blockDefinitionSize)
	b[0] = d.Level
	binary.BigEndian.PutUint32(b[1:5], d.X)
	binary.BigEndian.PutUint32(b[5:9], d.Y)
	b[9] = d.XMin
	b[10] = d.YMin
	b[11] = d.XMax
	b[12] = d.YMax
	binary.BigEndian.PutUint64(b[13:21], d.TileRange.Offset)
	binary.BigEndian.PutUint64(b[21:29], d.TileRange.Length)
	return blob.New(b)
}

func blockDefinitionFromBytes(d []byte) BlockDefinition {
	return BlockDefinition{
		Level: d[0],
		X:     binary.BigEndian.Uint32(d[1:5]),
		Y:     binary.BigEndian.Uint32(d[5:9]),
		XMin:  d[9],
		YMin:  d[10],
		XMax:  d[11],
		YMax:  d[12],
		TileRange: blob.ByteRange{
			Offset: binary.BigEndian.Uint64(d[13:21]),
			Length: binary.BigEndian.Uint64(d[21:29]),
		},
	}
}

// BlockIndex is the set of every block in the archive, keyed by
// (level, x, y).
type BlockIndex struct {
	blocks map[blockKey]BlockDefinition
}

type blockKey struct {
	level uint8
	x, y  uint32
}

// NewBlockIndex returns an empty index.
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{blocks: make(map[blockKey]BlockDefinition)}
}

// Insert adds or replaces the block at (d.Level, d.X, d.Y).
func (idx *BlockIndex) Insert(d BlockDefinition) {
	idx.blocks[blockKey{d.Level, d.X, d.Y}] = d
}

// Get looks up the block at the given block coordinate.
func (idx *BlockIndex) Get(level uint8, x, y uint32) (BlockDefinition, bool) {
	d, ok := idx.blocks[blockKey{level, x, y}]
	return d, ok
}

// All returns every block definition, in no particular order.
func (idx *BlockIndex) All() []BlockDefinition {
	out := make([]BlockDefinition, 0, len(idx.blocks))
	for _, d := range idx.blocks {
		out = append(out, d)
	}
	return out
}

// ToBlob serializes the index as the concatenation of 29-byte records,
// Brotli-compressed.
func (idx *BlockIndex) ToBlob() (blob.Blob, error) {
	raw := make([]byte, 0, len(idx.blocks)*blockDefinitionSize)
	for _, d := range idx.blocks {
		raw = append(raw, d.toBlob().Bytes()...)
	}
	return compress.CompressBrotli(blob.New(raw))
}

// BlockIndexFromBlob decompresses and parses a Brotli-compressed
// BlockIndex blob.
func BlockIndexFromBlob(b blob.Blob) (*BlockIndex, error) {
	raw, err := compress.DecompressBrotli(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress block index: %w", err)
	}
	data := raw.Bytes()
	if len(data)%blockDefinitionSize != 0 {
		return nil, fmt.Errorf("block index length %d is not a multiple of %d", len(data), blockDefinitionSize)
	}
	idx := NewBlockIndex()
	for off := 0; off < len(data); off += blockDefinitionSize {
		d := blockDefinitionFromBytes(data[off : off+blockDefinitionSize])
		idx.Insert(d)
	}
	return idx, nil
}

// Equal reports whether two indexes hold the same set of block
// definitions, as a multiset (order-independent).
func (idx *BlockIndex) Equal(other *BlockIndex) bool {
	if len(idx.blocks) != len(other.blocks) {
		return false
	}
	for k, d := range idx.blocks {
		od, ok := other.blocks[k]
		if !ok || d != od {
			return false
		}
	}
	return true
}

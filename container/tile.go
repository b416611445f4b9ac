// Package container defines the TileSource/TileSink contracts shared by
// every concrete codec (.versatiles, MBTiles, TAR): a tile is read or
// written through these interfaces without the caller knowing which
// on-disk format backs it.
package container

import (
	"fmt"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/tiles"
)

// Tile is a single tile's payload tagged with the compression algorithm
// its bytes are currently wrapped in.
type Tile struct {
	Coord       tiles.TileCoord
	Data        blob.Blob
	Compression compress.Algorithm
}

// IntoBlob returns the tile's payload recompressed to target, leaving t
// untouched.
func (t Tile) IntoBlob(target compress.Algorithm) (blob.Blob, error) {
	if t.Compression == target {
		return t.Data, nil
	}
	raw, err := compress.Decompress(t.Data, t.Compression)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decompress tile %s: %w", t.Coord, err)
	}
	if target == compress.Uncompressed {
		return raw, nil
	}
	out, err := compress.Compress(raw, target)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress tile %s to %v: %w", t.Coord, target, err)
	}
	return out, nil
}

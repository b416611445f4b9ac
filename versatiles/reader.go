package versatiles

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/dataio"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// coalesceGap is the maximum byte gap between two tile ranges that still
// lets the streaming reader merge them into one underlying read.
const coalesceGap = 64 * 1024

// maxChunkBytes bounds how large a single coalesced read is allowed to
// grow, so a dense block of tiles doesn't turn into one huge read.
const maxChunkBytes = 64 * 1024 * 1024

// DefaultIndexCacheSize is the default byte budget for the reader's
// decoded-TileIndex cache (spec.md §3 Lifecycle: 100 MB).
const DefaultIndexCacheSize = 100 * 1024 * 1024

// Reader opens a .versatiles archive for read-only access: a block
// index built from the file's compressed BlockIndex, and a size-bounded
// LRU of decoded per-block TileIndex values.
type Reader struct {
	r           dataio.Reader
	header      FileHeader
	blockIndex  *BlockIndex
	bboxPyramid tiles.TileBBoxPyramid
	tileJSON    *tilejson.TileJSON

	cacheMu    sync.Mutex
	cache      *lru.Cache[blockKey, *TileIndex]
	cacheBytes int
	cacheMax   int
}

// Open parses the header, block index, and meta segment of an already
// opened dataio.Reader.
func Open(ctx context.Context, r dataio.Reader) (*Reader, error) {
	headerBlob, err := r.ReadRange(ctx, blob.ByteRange{Offset: 0, Length: HeaderSize})
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header, err := HeaderFromBlob(headerBlob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	tj := tilejson.New("", "")
	if !header.MetaRange.IsEmpty() {
		metaBlob, err := r.ReadRange(ctx, header.MetaRange)
		if err != nil {
			return nil, fmt.Errorf("failed to read meta segment: %w", err)
		}
		raw, err := compress.Decompress(metaBlob, header.TileCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress meta segment: %w", err)
		}
		parsed, err := tilejson.FromJSON(raw.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to parse tilejson: %w", err)
		}
		tj = parsed
	}

	blockIndex := NewBlockIndex()
	pyramid := tiles.NewEmptyPyramid()
	if !header.BlocksRange.IsEmpty() {
		blocksBlob, err := r.ReadRange(ctx, header.BlocksRange)
		if err != nil {
			return nil, fmt.Errorf("failed to read block index: %w", err)
		}
		blockIndex, err = BlockIndexFromBlob(blocksBlob)
		if err != nil {
			return nil, fmt.Errorf("failed to parse block index: %w", err)
		}
		for _, def := range blockIndex.All() {
			g, err := def.GlobalBBox()
			if err != nil {
				return nil, fmt.Errorf("failed to compute global bbox for block: %w", err)
			}
			pyramid.IncludeBBox(g)
		}
	}

	cache, err := lru.New[blockKey, *TileIndex](1 << 20) // item-count ceiling; real eviction is by cacheMax bytes
	if err != nil {
		return nil, fmt.Errorf("failed to create tile index cache: %w", err)
	}

	return &Reader{
		r:           r,
		header:      header,
		blockIndex:  blockIndex,
		bboxPyramid: pyramid,
		tileJSON:    tj,
		cache:       cache,
		cacheMax:    DefaultIndexCacheSize,
	}, nil
}

// SourceType implements container.TileSource.
func (rd *Reader) SourceType() container.SourceType {
	return container.ContainerSource("versatiles", "")
}

// Metadata implements container.TileSource.
func (rd *Reader) Metadata() container.TileSourceMetadata {
	return container.TileSourceMetadata{
		TileFormat:      rd.header.TileFormat,
		TileCompression: rd.header.TileCompression,
		BBoxPyramid:     rd.bboxPyramid,
		Traversal:       container.AnyOrder,
		MaxBlockSize:    256,
	}
}

// TileJSON implements container.TileSource.
func (rd *Reader) TileJSON() *tilejson.TileJSON {
	return rd.tileJSON
}

func (rd *Reader) getBlockTileIndex(ctx context.Context, def BlockDefinition) (*TileIndex, error) {
	k := blockKey{def.Level, def.X, def.Y}

	rd.cacheMu.Lock()
	if ti, ok := rd.cache.Get(k); ok {
		rd.cacheMu.Unlock()
		return ti, nil
	}
	rd.cacheMu.Unlock()

	footerRange := blob.ByteRange{Offset: def.TileRange.End() - 4, Length: 4}
	footerBlob, err := rd.r.ReadRange(ctx, footerRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile index footer: %w", err)
	}
	indexLen := uint64(binary.BigEndian.Uint32(footerBlob.Bytes()))

	indexRange := blob.ByteRange{Offset: def.TileRange.End() - 4 - indexLen, Length: indexLen}
	indexBlob, err := rd.r.ReadRange(ctx, indexRange)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile index: %w", err)
	}

	ti, err := TileIndexFromBlob(indexBlob, def.TileRange.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tile index: %w", err)
	}

	rd.cacheMu.Lock()
	defer rd.cacheMu.Unlock()
	for rd.cacheBytes+ti.ByteSize() > rd.cacheMax && rd.cache.Len() > 0 {
		_, evicted, _ := rd.cache.GetOldest()
		rd.cache.RemoveOldest()
		if evicted != nil {
			rd.cacheBytes -= evicted.ByteSize()
		}
	}
	rd.cache.Add(k, ti)
	rd.cacheBytes += ti.ByteSize()
	return ti, nil
}

// GetTile implements container.TileSource.
func (rd *Reader) GetTile(ctx context.Context, coord tiles.TileCoord) (container.Tile, bool, error) {
	def, ok := rd.blockIndex.Get(coord.Level, coord.X>>8, coord.Y>>8)
	if !ok {
		return container.Tile{}, false, nil
	}
	global, err := def.GlobalBBox()
	if err != nil {
		return container.Tile{}, false, err
	}
	if !global.Contains(coord) {
		return container.Tile{}, false, nil
	}

	localBBox, err := def.LocalBBox()
	if err != nil {
		return container.Tile{}, false, err
	}
	localCoord, err := tiles.NewTileCoord(coord.Level, coord.X&0xff, coord.Y&0xff)
	if err != nil {
		return container.Tile{}, false, err
	}
	idx, err := localBBox.IndexOf(localCoord)
	if err != nil {
		return container.Tile{}, false, nil
	}

	tileIndex, err := rd.getBlockTileIndex(ctx, def)
	if err != nil {
		return container.Tile{}, false, err
	}
	rng, present := tileIndex.Get(int(idx))
	if !present {
		return container.Tile{}, false, nil
	}

	data, err := rd.r.ReadRange(ctx, rng)
	if err != nil {
		return container.Tile{}, false, fmt.Errorf("failed to read tile %s: %w", coord, err)
	}
	return container.Tile{Coord: coord, Data: data, Compression: rd.header.TileCompression}, true, nil
}

// tileRangeItem pairs a tile coordinate with its on-disk byte range, ahead
// of coalescing adjacent ranges into a single read.
type tileRangeItem struct {
	coord tiles.TileCoord
	rng   blob.ByteRange
}

// loadBlockTiles reads every item's payload, coalescing ranges that are
// within coalesceGap of each other into chunks of at most maxChunkBytes and
// issuing one dataio.Reader.ReadRange per chunk, then slicing each tile's
// bytes back out of its chunk's super-blob by offset subtraction.
func (rd *Reader) loadBlockTiles(ctx context.Context, items []tileRangeItem) (map[tiles.TileCoord]blob.Blob, error) {
	sorted := make([]tileRangeItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].rng.Offset < sorted[j].rng.Offset })

	result := make(map[tiles.TileCoord]blob.Blob, len(items))
	i := 0
	for i < len(sorted) {
		chunk := sorted[i].rng
		j := i + 1
		for j < len(sorted) {
			next := sorted[j].rng
			if !chunk.WithinGap(next, coalesceGap) {
				break
			}
			merged := blob.ByteRange{Offset: chunk.Offset, Length: next.End() - chunk.Offset}
			if merged.Length > maxChunkBytes {
				break
			}
			chunk = merged
			j++
		}

		data, err := rd.r.ReadRange(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to read tile chunk %s: %w", chunk, err)
		}
		for k := i; k < j; k++ {
			rng := sorted[k].rng
			start := int(rng.Offset - chunk.Offset)
			result[sorted[k].coord] = data.Slice(start, start+int(rng.Length))
		}
		i = j
	}
	return result, nil
}

// presentItems walks used (the requested bbox, already restricted by the
// caller to the block's global bbox), looks up each coordinate's local
// slot in tileIndex, and returns the present ones in block tile-index
// order.
func presentItems(bbox, used tiles.TileBBox, def BlockDefinition, tileIndex *TileIndex) ([]tileRangeItem, error) {
	localBBox, err := def.LocalBBox()
	if err != nil {
		return nil, err
	}
	var items []tileRangeItem
	for _, c := range used.Coords() {
		localCoord, err := tiles.NewTileCoord(c.Level, c.X&0xff, c.Y&0xff)
		if err != nil {
			return nil, err
		}
		idx, err := localBBox.IndexOf(localCoord)
		if err != nil {
			continue
		}
		rng, present := tileIndex.Get(int(idx))
		if !present {
			continue
		}
		items = append(items, tileRangeItem{coord: c, rng: rng})
	}
	return items, nil
}

// GetTileStream implements container.TileSource: it enumerates every
// block overlapping bbox and yields each present tile within it, reading
// each block's tiles through loadBlockTiles so adjacent tiles share one
// underlying read instead of one read per tile.
func (rd *Reader) GetTileStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[container.Tile] {
	blockBBox := bbox.ScaledDown(256)
	blockCoords := blockBBox.Coords()
	bi := 0
	var pending []container.Tile
	pendingIdx := 0

	return tilestream.New(func() (tilestream.Item[container.Tile], bool, error) {
		for {
			if pendingIdx < len(pending) {
				t := pending[pendingIdx]
				pendingIdx++
				return tilestream.Item[container.Tile]{Coord: t.Coord, Value: t}, true, nil
			}
			if bi >= len(blockCoords) {
				return tilestream.Item[container.Tile]{}, false, nil
			}
			blockCoord := blockCoords[bi]
			bi++
			def, ok := rd.blockIndex.Get(blockCoord.Level, blockCoord.X, blockCoord.Y)
			if !ok {
				continue
			}
			global, err := def.GlobalBBox()
			if err != nil {
				log.Printf("versatiles: dropping block %s: %v", blockCoord, err)
				continue
			}
			used := bbox
			if err := used.IntersectWith(global); err != nil {
				continue
			}

			tileIndex, err := rd.getBlockTileIndex(ctx, def)
			if err != nil {
				log.Printf("versatiles: dropping block %s: failed to load tile index: %v", blockCoord, err)
				continue
			}
			items, err := presentItems(bbox, used, def, tileIndex)
			if err != nil {
				log.Printf("versatiles: dropping block %s: %v", blockCoord, err)
				continue
			}
			if len(items) == 0 {
				continue
			}

			loaded, err := rd.loadBlockTiles(ctx, items)
			if err != nil {
				log.Printf("versatiles: dropping block %s: %v", blockCoord, err)
				continue
			}
			pending = pending[:0]
			for _, it := range items {
				data, ok := loaded[it.coord]
				if !ok {
					continue
				}
				pending = append(pending, container.Tile{Coord: it.coord, Data: data, Compression: rd.header.TileCompression})
			}
			pendingIdx = 0
		}
	})
}

// GetTileSizeStream implements container.TileSource: it reports each
// present tile's stored length without reading its payload.
func (rd *Reader) GetTileSizeStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[uint32] {
	blockBBox := bbox.ScaledDown(256)
	blockCoords := blockBBox.Coords()
	bi := 0
	var pending []tiles.TileCoord
	pendingIdx := 0
	var currentIndex *TileIndex
	var currentLocalBBox tiles.TileBBox

	return tilestream.New(func() (tilestream.Item[uint32], bool, error) {
		for {
			for pendingIdx < len(pending) {
				c := pending[pendingIdx]
				pendingIdx++
				localCoord, err := tiles.NewTileCoord(c.Level, c.X&0xff, c.Y&0xff)
				if err != nil {
					return tilestream.Item[uint32]{}, false, err
				}
				idx, err := currentLocalBBox.IndexOf(localCoord)
				if err != nil {
					continue
				}
				rng, present := currentIndex.Get(int(idx))
				if !present {
					continue
				}
				return tilestream.Item[uint32]{Coord: c, Value: uint32(rng.Length)}, true, nil
			}
			if bi >= len(blockCoords) {
				return tilestream.Item[uint32]{}, false, nil
			}
			blockCoord := blockCoords[bi]
			bi++
			def, ok := rd.blockIndex.Get(blockCoord.Level, blockCoord.X, blockCoord.Y)
			if !ok {
				continue
			}
			global, err := def.GlobalBBox()
			if err != nil {
				continue
			}
			used := bbox
			if err := used.IntersectWith(global); err != nil {
				continue
			}
			localBBox, err := def.LocalBBox()
			if err != nil {
				continue
			}
			ti, err := rd.getBlockTileIndex(ctx, def)
			if err != nil {
				return tilestream.Item[uint32]{}, false, err
			}
			currentIndex = ti
			currentLocalBBox = localBBox
			pending = used.Coords()
			pendingIdx = 0
		}
	})
}

// Close releases the underlying dataio.Reader.
func (rd *Reader) Close() error {
	return rd.r.Close()
}

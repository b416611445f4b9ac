// Package convert implements the pipeline that moves tiles from one
// TileSource to one TileSink: zoom/bbox filtering, coordinate flips, and
// recompression to a target algorithm, with progress reported against an
// addressed tile-id set computed up front.
package convert

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// Options controls how Convert derives its target pyramid, format, and
// tile coordinates from a source.
type Options struct {
	MinZoom    *uint8
	MaxZoom    *uint8
	BBox       *tiles.GeoBBox
	BBoxBorder uint32
	Compress   *compress.Algorithm
	FlipY      bool
	SwapXY     bool

	// Quiet suppresses the progress bar.
	Quiet bool
}

// Convert drains source into sink, applying options along the way.
func Convert(ctx context.Context, source container.TileSource, sink container.TileSink, options Options) error {
	meta := source.Metadata()

	pyramid, err := effectivePyramid(meta.BBoxPyramid, options)
	if err != nil {
		return fmt.Errorf("failed to derive target pyramid: %w", err)
	}

	targetCompression := meta.TileCompression
	if options.Compress != nil {
		targetCompression = *options.Compress
	}

	targetMeta := container.TileSourceMetadata{
		TileFormat:      meta.TileFormat,
		TileCompression: targetCompression,
		BBoxPyramid:     pyramid,
		Traversal:       meta.Traversal,
		MaxBlockSize:    meta.MaxBlockSize,
	}

	addressed := addressedTileIDs(pyramid)
	total := int64(addressed.GetCardinality())

	bar := newProgressReporter(total, "converting tiles", options.Quiet)
	defer bar.Close()

	limit := tilestream.DefaultLimits().CPUBound

	levels := pyramid.IterLevels()
	levelIdx := 0
	var current []tilestream.Item[container.Tile]
	currentIdx := 0

	next := func() (tilestream.Item[container.Tile], bool, error) {
		for {
			if currentIdx < len(current) {
				item := current[currentIdx]
				currentIdx++
				bar.Add(1)
				return item, true, nil
			}
			if levelIdx >= len(levels) {
				return tilestream.Item[container.Tile]{}, false, nil
			}
			levelBBox := levels[levelIdx]
			levelIdx++
			if levelBBox.IsEmpty() {
				continue
			}

			transformed := transformStream(source.GetTileStream(ctx, levelBBox), options)
			out, err := tilestream.MapParallelTry(ctx, transformed, limit,
				func(_ tiles.TileCoord, t container.Tile) (container.Tile, error) {
					return recompress(t, targetCompression)
				})
			if err != nil {
				return tilestream.Item[container.Tile]{}, false, err
			}
			current = out
			currentIdx = 0
		}
	}

	return sink.WriteTileStream(ctx, targetMeta, tilestream.New(next))
}

// transformStream applies flip_y/swap_xy to every tile's coordinate ahead
// of recompression, since neither operation changes payload bytes.
func transformStream(s *tilestream.Stream[container.Tile], options Options) *tilestream.Stream[container.Tile] {
	return tilestream.New(func() (tilestream.Item[container.Tile], bool, error) {
		item, ok, err := s.Next()
		if err != nil || !ok {
			return tilestream.Item[container.Tile]{}, ok, err
		}
		coord := item.Coord
		if options.SwapXY {
			coord.X, coord.Y = coord.Y, coord.X
		}
		if options.FlipY {
			coord.Y = coord.MaxCoord() - coord.Y
		}
		tile := item.Value
		tile.Coord = coord
		return tilestream.Item[container.Tile]{Coord: coord, Value: tile}, true, nil
	})
}

// recompress re-wraps a tile's payload in target, leaving it untouched if
// it is already there.
func recompress(t container.Tile, target compress.Algorithm) (container.Tile, error) {
	if t.Compression == target {
		return t, nil
	}
	data, err := t.IntoBlob(target)
	if err != nil {
		return container.Tile{}, fmt.Errorf("failed to recompress tile %s: %w", t.Coord, err)
	}
	return container.Tile{Coord: t.Coord, Data: data, Compression: target}, nil
}

// effectivePyramid intersects base with the zoom and bbox filters in
// options: zoom limits zero out levels outside [min_zoom, max_zoom], and
// bbox is applied per level via from_geo and expanded by bbox_border
// tiles on every side.
func effectivePyramid(base tiles.TileBBoxPyramid, options Options) (tiles.TileBBoxPyramid, error) {
	pyramid := base

	minZoom, maxZoom := uint8(0), uint8(tiles.MaxZoomLevel-1)
	if options.MinZoom != nil {
		minZoom = *options.MinZoom
	}
	if options.MaxZoom != nil {
		maxZoom = *options.MaxZoom
	}
	for z := 0; z < tiles.MaxZoomLevel; z++ {
		if uint8(z) < minZoom || uint8(z) > maxZoom {
			empty, err := tiles.NewEmptyBBox(uint8(z))
			if err != nil {
				return tiles.TileBBoxPyramid{}, err
			}
			pyramid.SetLevelBBox(empty)
		}
	}

	if options.BBox != nil {
		if err := options.BBox.Check(); err != nil {
			return tiles.TileBBoxPyramid{}, fmt.Errorf("invalid bbox filter: %w", err)
		}
		for z := 0; z < tiles.MaxZoomLevel; z++ {
			level := pyramid.GetLevelBBox(uint8(z))
			if level.IsEmpty() {
				continue
			}
			geoBox, err := tiles.FromGeo(uint8(z), *options.BBox)
			if err != nil {
				return tiles.TileBBoxPyramid{}, err
			}
			if options.BBoxBorder > 0 {
				geoBox.ExpandBy(options.BBoxBorder, options.BBoxBorder, options.BBoxBorder, options.BBoxBorder)
			}
			if err := level.IntersectWith(geoBox); err != nil {
				return tiles.TileBBoxPyramid{}, err
			}
			pyramid.SetLevelBBox(level)
		}
	}

	return pyramid, nil
}

// tileID packs a coordinate into a single uint64 key for the roaring64
// accumulator: 5 bits of level, then 29 bits each of x and y below it.
// Unlike teacher's ZxyToID this doesn't preserve Hilbert order -- nothing
// here depends on cluster locality, only on set membership and count.
func tileID(coord tiles.TileCoord) uint64 {
	return uint64(coord.Level)<<58 | uint64(coord.X)<<29 | uint64(coord.Y)
}

// addressedTileIDs computes the full set of tile coordinates pyramid
// addresses, ahead of streaming, so Convert's progress bar has an exact
// total without a second pass over the source.
func addressedTileIDs(pyramid tiles.TileBBoxPyramid) *roaring64.Bitmap {
	ids := roaring64.New()
	for _, level := range pyramid.IterLevels() {
		if level.IsEmpty() {
			continue
		}
		for _, coord := range level.Coords() {
			ids.Add(tileID(coord))
		}
	}
	return ids
}

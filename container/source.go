package container

import (
	"context"

	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// Traversal advertises the grouping a writer produced its tiles in, so a
// consumer can choose a matching read strategy (e.g. sequential block
// reads for AnyOrder vs. recursive descent for DepthFirst).
type Traversal uint8

const (
	AnyOrder Traversal = iota
	DepthFirst
	ZOrder
)

func (t Traversal) String() string {
	switch t {
	case AnyOrder:
		return "any-order"
	case DepthFirst:
		return "depth-first"
	case ZOrder:
		return "z-order"
	default:
		return "unknown"
	}
}

// SourceType tags a TileSource with its provenance: a leaf container
// reading from a concrete backend, a processor transforming another
// source, or a composite merging several.
type SourceType struct {
	Kind   SourceKind
	Name   string
	Input  string   // set for Container and Processor
	Inputs []string // set for Composite
}

type SourceKind uint8

const (
	KindContainer SourceKind = iota
	KindProcessor
	KindComposite
)

func ContainerSource(name, input string) SourceType {
	return SourceType{Kind: KindContainer, Name: name, Input: input}
}

func ProcessorSource(name, input string) SourceType {
	return SourceType{Kind: KindProcessor, Name: name, Input: input}
}

func CompositeSource(name string, inputs []string) SourceType {
	return SourceType{Kind: KindComposite, Name: name, Inputs: inputs}
}

// TileSourceMetadata summarizes a source's fixed properties: the format
// and compression every tile is stored in, the region of the tile grid it
// covers, how its writer grouped tiles, and the largest block size it
// uses (1..=256).
type TileSourceMetadata struct {
	TileFormat      compress.TileFormat
	TileCompression compress.Algorithm
	BBoxPyramid     tiles.TileBBoxPyramid
	Traversal       Traversal
	MaxBlockSize    uint16
}

// TileSource is the read contract every codec (.versatiles, MBTiles, TAR)
// and every processing stage (recompressor, filter, merge) implements.
type TileSource interface {
	SourceType() SourceType
	Metadata() TileSourceMetadata
	TileJSON() *tilejson.TileJSON

	// GetTile returns the tile at coord, or ok=false if it is absent.
	// An error indicates an I/O failure, not absence.
	GetTile(ctx context.Context, coord tiles.TileCoord) (t Tile, ok bool, err error)

	// GetTileStream streams every present tile within bbox, in the
	// source's natural (block-grid) order.
	GetTileStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[Tile]

	// GetTileSizeStream streams the compressed byte length of every
	// present tile within bbox, without reading tile payloads.
	GetTileSizeStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[uint32]
}

// TileSink is the write contract every codec's writer implements: it
// drains stream fully, observing sourceMeta for its (format, compression)
// defaults and bbox pyramid.
type TileSink interface {
	WriteTileStream(ctx context.Context, sourceMeta TileSourceMetadata, stream *tilestream.Stream[Tile]) error
}

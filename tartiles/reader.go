// Package tartiles implements the TAR container codec: one tile per
// archive entry at path "./{z}/{y}/{x}.{ext}", with the extension
// encoding both tile format and compression (pbf, pbf.gz, pbf.br, png,
// jpg, webp). Every entry in an archive must share the same format.
package tartiles

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

type tarByteRange struct {
	offset int64
	length int64
}

// Reader opens a .tar file written by Writer (or any archive matching the
// same layout), indexing every entry's byte range up front so tiles can
// be read with a single positioned pread afterward.
type Reader struct {
	path        string
	file        *os.File
	tileMap     map[tiles.TileCoord]tarByteRange
	format      compress.TileFormat
	compression compress.Algorithm
	bboxPyramid tiles.TileBBoxPyramid
}

// countingReader tracks how many bytes have been pulled through it, so the
// offset of a tar entry's payload in the underlying file can be recovered
// without archive/tar exposing it directly.
type countingReader struct {
	r   io.Reader
	pos int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += int64(n)
	return n, err
}

// Open indexes every regular file entry in path. Entries must be named
// "./z/y/x.ext"; an entry whose extension implies a different tile
// format or compression than the first entry's is rejected (jpg and
// jpeg, which both mean JPEG, may be mixed).
func Open(ctx context.Context, path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tar archive %q: %w", path, err)
	}

	cr := &countingReader{r: file}
	tr := tar.NewReader(cr)

	r := &Reader{
		path:        path,
		file:        file,
		tileMap:     make(map[tiles.TileCoord]tarByteRange),
		compression: compress.Uncompressed,
		bboxPyramid: tiles.NewEmptyPyramid(),
	}
	var formatSet bool

	for {
		select {
		case <-ctx.Done():
			file.Close()
			return nil, ctx.Err()
		default:
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read tar entry in %q: %w", path, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		coord, format, compression, err := parseTarPath(header.Name)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to parse tar entry %q: %w", header.Name, err)
		}
		if !formatSet {
			r.format = format
			r.compression = compression
			formatSet = true
		} else if r.format != format || r.compression != compression {
			file.Close()
			return nil, fmt.Errorf(
				"tar archive %q mixes tile formats: entry %q is %v/%v, earlier entries are %v/%v",
				path, header.Name, format, compression, r.format, r.compression)
		}

		r.tileMap[coord] = tarByteRange{offset: cr.pos, length: header.Size}
		r.bboxPyramid.IncludeCoord(coord)
	}

	return r, nil
}

// parseTarPath parses "./z/y/x.ext" into a coordinate and the format/
// compression its extension encodes.
func parseTarPath(name string) (tiles.TileCoord, compress.TileFormat, compress.Algorithm, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 4 || parts[0] != "." {
		return tiles.TileCoord{}, 0, 0, fmt.Errorf(
			"expected a path of the form \"./z/y/x.ext\", got %q", name)
	}

	z, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, fmt.Errorf("bad zoom level %q: %w", parts[1], err)
	}
	y, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, fmt.Errorf("bad y coordinate %q: %w", parts[2], err)
	}

	segments := strings.SplitN(parts[3], ".", 2)
	if len(segments) != 2 {
		return tiles.TileCoord{}, 0, 0, fmt.Errorf("filename %q is missing an extension", parts[3])
	}
	x, err := strconv.ParseUint(segments[0], 10, 32)
	if err != nil {
		return tiles.TileCoord{}, 0, 0, fmt.Errorf("bad x coordinate %q: %w", segments[0], err)
	}

	format, compression, err := formatFromExtension(segments[1])
	if err != nil {
		return tiles.TileCoord{}, 0, 0, err
	}

	coord, err := tiles.NewTileCoord(uint8(z), uint32(x), uint32(y))
	if err != nil {
		return tiles.TileCoord{}, 0, 0, err
	}
	return coord, format, compression, nil
}

func formatFromExtension(ext string) (compress.TileFormat, compress.Algorithm, error) {
	switch ext {
	case "png":
		return compress.PNG, compress.Uncompressed, nil
	case "jpg", "jpeg":
		return compress.JPEG, compress.Uncompressed, nil
	case "webp":
		return compress.WEBP, compress.Uncompressed, nil
	case "pbf":
		return compress.MVT, compress.Uncompressed, nil
	case "pbf.gz":
		return compress.MVT, compress.Gzip, nil
	case "pbf.br":
		return compress.MVT, compress.Brotli, nil
	default:
		return compress.UnknownFormat, compress.Uncompressed, fmt.Errorf("unknown tile extension %q", ext)
	}
}

func extensionFor(format compress.TileFormat, algorithm compress.Algorithm) (string, error) {
	switch format {
	case compress.PNG:
		return "png", nil
	case compress.JPEG:
		return "jpg", nil
	case compress.WEBP:
		return "webp", nil
	case compress.MVT:
		switch algorithm {
		case compress.Uncompressed:
			return "pbf", nil
		case compress.Gzip:
			return "pbf.gz", nil
		case compress.Brotli:
			return "pbf.br", nil
		}
	}
	return "", fmt.Errorf("no tar extension for format %v / %v", format, algorithm)
}

// SourceType implements container.TileSource.
func (r *Reader) SourceType() container.SourceType {
	return container.ContainerSource("tar", r.path)
}

// Metadata implements container.TileSource.
func (r *Reader) Metadata() container.TileSourceMetadata {
	return container.TileSourceMetadata{
		TileFormat:      r.format,
		TileCompression: r.compression,
		BBoxPyramid:     r.bboxPyramid,
		Traversal:       container.AnyOrder,
		MaxBlockSize:    256,
	}
}

// TileJSON implements container.TileSource. TAR archives carry no
// embedded metadata document.
func (r *Reader) TileJSON() *tilejson.TileJSON {
	return nil
}

func (r *Reader) readRange(rng tarByteRange) (blob.Blob, error) {
	buf := make([]byte, rng.length)
	if _, err := r.file.ReadAt(buf, rng.offset); err != nil {
		return blob.Blob{}, fmt.Errorf("failed to read tar entry at offset %d: %w", rng.offset, err)
	}
	return blob.New(buf), nil
}

// GetTile implements container.TileSource.
func (r *Reader) GetTile(ctx context.Context, coord tiles.TileCoord) (container.Tile, bool, error) {
	rng, ok := r.tileMap[coord]
	if !ok {
		return container.Tile{}, false, nil
	}
	data, err := r.readRange(rng)
	if err != nil {
		return container.Tile{}, false, err
	}
	return container.Tile{Coord: coord, Data: data, Compression: r.compression}, true, nil
}

func (r *Reader) coordsIn(bbox tiles.TileBBox) []tiles.TileCoord {
	var out []tiles.TileCoord
	for coord := range r.tileMap {
		if coord.Level == bbox.Level && bbox.Contains(coord) {
			out = append(out, coord)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// GetTileStream implements container.TileSource.
func (r *Reader) GetTileStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[container.Tile] {
	coords := r.coordsIn(bbox)
	i := 0
	return tilestream.New(func() (tilestream.Item[container.Tile], bool, error) {
		if i >= len(coords) {
			return tilestream.Item[container.Tile]{}, false, nil
		}
		coord := coords[i]
		i++
		data, err := r.readRange(r.tileMap[coord])
		if err != nil {
			return tilestream.Item[container.Tile]{}, false, err
		}
		tile := container.Tile{Coord: coord, Data: data, Compression: r.compression}
		return tilestream.Item[container.Tile]{Coord: coord, Value: tile}, true, nil
	})
}

// GetTileSizeStream implements container.TileSource.
func (r *Reader) GetTileSizeStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[uint32] {
	coords := r.coordsIn(bbox)
	i := 0
	return tilestream.New(func() (tilestream.Item[uint32], bool, error) {
		if i >= len(coords) {
			return tilestream.Item[uint32]{}, false, nil
		}
		coord := coords[i]
		i++
		rng := r.tileMap[coord]
		return tilestream.Item[uint32]{Coord: coord, Value: uint32(rng.length)}, true, nil
	})
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}

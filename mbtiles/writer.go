package mbtiles

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// Writer opens or creates an .mbtiles file: `metadata` and `tiles`
// tables are created if missing (rows already in an existing file are
// kept, and a tile at the same coordinate is replaced), tiles inserted with their row flipped from XYZ to TMS, and
// metadata keys derived from the attached TileJSON document.
type Writer struct {
	conn     *sqlite.Conn
	tileJSON *tilejson.TileJSON
}

// NewWriter opens (creating if necessary) path for writing and creates
// the MBTiles schema.
func NewWriter(path string) (*Writer, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("failed to create mbtiles file %q: %w", path, err)
	}
	w := &Writer{conn: conn}
	if err := w.exec(`CREATE TABLE IF NOT EXISTS metadata (name TEXT, value TEXT)`); err != nil {
		conn.Close()
		return nil, err
	}
	if err := w.exec(`CREATE TABLE IF NOT EXISTS tiles (
		zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`); err != nil {
		conn.Close()
		return nil, err
	}
	if err := w.exec(`CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row)`); err != nil {
		conn.Close()
		return nil, err
	}
	return w, nil
}

// SetTileJSON attaches the metadata document to be flushed into the
// `metadata` table once the tile stream has been written.
func (w *Writer) SetTileJSON(tj *tilejson.TileJSON) {
	w.tileJSON = tj
}

func (w *Writer) exec(sql string) error {
	stmt, _, err := w.conn.PrepareTransient(sql)
	if err != nil {
		return fmt.Errorf("failed to prepare %q: %w", sql, err)
	}
	defer stmt.Finalize()
	if _, err := stmt.Step(); err != nil {
		return fmt.Errorf("failed to execute %q: %w", sql, err)
	}
	return nil
}

// WriteTileStream implements container.TileSink.
func (w *Writer) WriteTileStream(ctx context.Context, sourceMeta container.TileSourceMetadata, stream *tilestream.Stream[container.Tile]) error {
	if err := w.exec("BEGIN"); err != nil {
		return err
	}

	insert, _, err := w.conn.PrepareTransient(
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare tile insert: %w", err)
	}
	defer insert.Finalize()

	wantCompression := mbtilesCompression(sourceMeta.TileFormat)

	for {
		item, ok, err := stream.Next()
		if err != nil {
			return fmt.Errorf("failed reading source tile stream: %w", err)
		}
		if !ok {
			break
		}
		coord := item.Coord
		row := flipY(coord.Level, coord.Y)

		data, err := item.Value.IntoBlob(wantCompression)
		if err != nil {
			return fmt.Errorf("failed to coerce tile %s to mbtiles compression %s: %w", coord, wantCompression, err)
		}

		insert.BindInt64(1, int64(coord.Level))
		insert.BindInt64(2, int64(coord.X))
		insert.BindInt64(3, int64(row))
		insert.BindBytes(4, data.Bytes())
		if _, err := insert.Step(); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", coord, err)
		}
		insert.Reset()
		insert.ClearBindings()
	}

	if err := w.exec("COMMIT"); err != nil {
		return err
	}
	return w.writeMetadata(sourceMeta)
}

func (w *Writer) writeMetadata(sourceMeta container.TileSourceMetadata) error {
	entries := map[string]string{"format": formatToMBTiles(sourceMeta.TileFormat)}
	if w.tileJSON != nil {
		if w.tileJSON.Name != "" {
			entries["name"] = w.tileJSON.Name
		}
		if w.tileJSON.Attribution != "" {
			entries["attribution"] = w.tileJSON.Attribution
		}
		if w.tileJSON.Description != "" {
			entries["description"] = w.tileJSON.Description
		}
		if w.tileJSON.MinZoom != nil {
			entries["minzoom"] = fmt.Sprintf("%d", *w.tileJSON.MinZoom)
		}
		if w.tileJSON.MaxZoom != nil {
			entries["maxzoom"] = fmt.Sprintf("%d", *w.tileJSON.MaxZoom)
		}
		if w.tileJSON.Bounds != nil {
			b := *w.tileJSON.Bounds
			entries["bounds"] = fmt.Sprintf("%g,%g,%g,%g", b[0], b[1], b[2], b[3])
		}
	}

	insert, _, err := w.conn.PrepareTransient("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer insert.Finalize()

	for key, value := range entries {
		insert.BindText(1, key)
		insert.BindText(2, value)
		if _, err := insert.Step(); err != nil {
			return fmt.Errorf("failed to write metadata key %q: %w", key, err)
		}
		insert.Reset()
		insert.ClearBindings()
	}
	return nil
}

// mbtilesCompression is the compression formatFromMBTiles will assume on
// read-back for format: vector tiles are always stored gzip-compressed,
// every raster format is always stored uncompressed. WriteTileStream
// coerces every incoming tile to this before insertion, regardless of
// what compression the source happened to hand it in.
func mbtilesCompression(f compress.TileFormat) compress.Algorithm {
	if f == compress.MVT {
		return compress.Gzip
	}
	return compress.Uncompressed
}

func formatToMBTiles(f compress.TileFormat) string {
	switch f {
	case compress.MVT:
		return "pbf"
	case compress.PNG:
		return "png"
	case compress.JPEG:
		return "jpg"
	case compress.WEBP:
		return "webp"
	default:
		return f.String()
	}
}

// Close finalizes the file.
func (w *Writer) Close() error {
	return w.conn.Close()
}

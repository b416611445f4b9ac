// Package mbtiles implements the MBTiles container codec: tiles and
// metadata stored in a SQLite database's `tiles`/`metadata` tables, with
// the TMS-to-XYZ y-flip applied at every read and write boundary.
package mbtiles

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"zombiezen.com/go/sqlite"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/tilejson"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// flipY converts between XYZ and TMS row numbering; MBTiles' own
// definition of the transform is its own inverse.
func flipY(level uint8, y uint32) uint32 {
	return (uint32(1)<<level - 1) - y
}

// Reader opens an .mbtiles file read-only, inferring its tile format/
// compression from the metadata table and its bbox pyramid from the
// tiles table.
type Reader struct {
	pool        *connPool
	path        string
	format      compress.TileFormat
	compression compress.Algorithm
	tileJSON    *tilejson.TileJSON
	bboxPyramid tiles.TileBBoxPyramid
}

// Open connects to path with a connection pool sized to poolSize
// (spec.md §4.7: "bounded connection pool, size = logical CPUs").
func Open(ctx context.Context, path string, poolSize int) (*Reader, error) {
	pool, err := openConnPool(path, poolSize, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open mbtiles pool for %q: %w", path, err)
	}

	r := &Reader{pool: pool, path: path, compression: compress.Uncompressed}
	conn, err := pool.take(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take mbtiles connection: %w", err)
	}
	defer pool.put(conn)

	if err := r.loadMetadata(conn); err != nil {
		return nil, err
	}
	if err := r.loadBBoxPyramid(conn); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) loadMetadata(conn *sqlite.Conn) error {
	tj := tilejson.New("", "")
	jsonMeta := make(map[string]any)

	stmt, _, err := conn.PrepareTransient("SELECT name, value FROM metadata")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata query: %w", err)
	}
	defer stmt.Finalize()

	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return fmt.Errorf("failed to read mbtiles metadata: %w", err)
		}
		if !hasRow {
			break
		}
		key := stmt.ColumnText(0)
		value := stmt.ColumnText(1)
		switch key {
		case "format":
			format, compression, err := formatFromMBTiles(value)
			if err != nil {
				return err
			}
			r.format = format
			r.compression = compression
		case "bounds":
			bounds, err := parseFloatCSV(value, 4)
			if err != nil {
				return fmt.Errorf("bad bounds metadata: %w", err)
			}
			b := [4]float64{bounds[0], bounds[1], bounds[2], bounds[3]}
			tj.Bounds = &b
		case "minzoom":
			z, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return fmt.Errorf("bad minzoom metadata: %w", err)
			}
			zz := uint8(z)
			tj.MinZoom = &zz
		case "maxzoom":
			z, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return fmt.Errorf("bad maxzoom metadata: %w", err)
			}
			zz := uint8(z)
			tj.MaxZoom = &zz
		case "json":
			var nested map[string]any
			if err := json.Unmarshal([]byte(value), &nested); err != nil {
				return fmt.Errorf("metadata \"json\" key is not a JSON object: %w", err)
			}
			for k, v := range nested {
				jsonMeta[k] = v
			}
		case "name":
			tj.Name = value
		case "attribution":
			tj.Attribution = value
		case "description":
			tj.Description = value
		}
	}

	if layers, ok := jsonMeta["vector_layers"]; ok {
		raw, err := json.Marshal(layers)
		if err != nil {
			return fmt.Errorf("failed to re-marshal vector_layers metadata: %w", err)
		}
		var vl tilejson.VectorLayers
		if err := json.Unmarshal(raw, &vl); err != nil {
			return fmt.Errorf("failed to parse vector_layers metadata: %w", err)
		}
		tj.VectorLayers = vl
	}
	r.tileJSON = tj
	return nil
}

func formatFromMBTiles(value string) (compress.TileFormat, compress.Algorithm, error) {
	switch value {
	case "jpg", "jpeg":
		return compress.JPEG, compress.Uncompressed, nil
	case "png":
		return compress.PNG, compress.Uncompressed, nil
	case "webp":
		return compress.WEBP, compress.Uncompressed, nil
	case "pbf":
		return compress.MVT, compress.Gzip, nil
	default:
		return compress.UnknownFormat, compress.Uncompressed, fmt.Errorf("unrecognized mbtiles format %q", value)
	}
}

func parseFloatCSV(value string, n int) ([]float64, error) {
	reader := csv.NewReader(strings.NewReader(value))
	record, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(record) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(record))
	}
	out := make([]float64, n)
	for i, s := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// loadBBoxPyramid computes the per-level tile extent by probing each
// level's tile_row range in two steps (see levelBBox), rather than a
// single MIN/MAX(tile_row) scan per zoom level.
func (r *Reader) loadBBoxPyramid(conn *sqlite.Conn) error {
	pyramid := tiles.NewEmptyPyramid()

	levelStmt, _, err := conn.PrepareTransient("SELECT DISTINCT zoom_level FROM tiles ORDER BY zoom_level")
	if err != nil {
		return fmt.Errorf("failed to prepare zoom level query: %w", err)
	}
	defer levelStmt.Finalize()

	var levels []uint8
	for {
		hasRow, err := levelStmt.Step()
		if err != nil {
			return fmt.Errorf("failed to enumerate mbtiles zoom levels: %w", err)
		}
		if !hasRow {
			break
		}
		levels = append(levels, uint8(levelStmt.ColumnInt64(0)))
	}

	for _, level := range levels {
		bbox, err := r.levelBBox(conn, level)
		if err != nil {
			return err
		}
		pyramid.IncludeBBox(bbox)
	}
	r.bboxPyramid = pyramid
	return nil
}

// simpleQuery runs a single aggregate query against the tiles table and
// returns its one result column.
func simpleQuery(conn *sqlite.Conn, sqlValue, sqlWhere string) (int64, error) {
	query := "SELECT " + sqlValue + " FROM tiles"
	if sqlWhere != "" {
		query += " WHERE " + sqlWhere
	}
	stmt, _, err := conn.PrepareTransient(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare %q: %w", query, err)
	}
	defer stmt.Finalize()
	hasRow, err := stmt.Step()
	if err != nil || !hasRow {
		return 0, fmt.Errorf("failed to execute %q: %w", query, err)
	}
	return stmt.ColumnInt64(0), nil
}

// levelBBox probes tile_row's range in two steps instead of one
// MIN/MAX(tile_row) scan: tile_row is the rightmost column of the
// tiles table's index, and SQLite can't optimize MIN/MAX down to a
// single index lookup on it the way it can for tile_column. The first
// query narrows tile_row to an estimate using only the three known
// tile_column values (min, middle, max); the second broadens that
// estimate back out with a `tile_row <= estimate` (or `>=`) bound, which
// SQLite resolves far faster than scanning the whole level.
func (r *Reader) levelBBox(conn *sqlite.Conn, level uint8) (tiles.TileBBox, error) {
	prefix := fmt.Sprintf("zoom_level = %d", level)

	x0, err := simpleQuery(conn, "MIN(tile_column)", prefix)
	if err != nil {
		return tiles.TileBBox{}, err
	}
	x1, err := simpleQuery(conn, "MAX(tile_column)", prefix)
	if err != nil {
		return tiles.TileBBox{}, err
	}
	xc := (x0 + x1) / 2

	estimateWhere := fmt.Sprintf("%s AND (tile_column = %d OR tile_column = %d OR tile_column = %d)", prefix, x0, xc, x1)
	y0, err := simpleQuery(conn, "MIN(tile_row)", estimateWhere)
	if err != nil {
		return tiles.TileBBox{}, err
	}
	y1, err := simpleQuery(conn, "MAX(tile_row)", estimateWhere)
	if err != nil {
		return tiles.TileBBox{}, err
	}

	y0, err = simpleQuery(conn, "MIN(tile_row)", fmt.Sprintf("%s AND tile_row <= %d", prefix, y0))
	if err != nil {
		return tiles.TileBBox{}, err
	}
	y1, err = simpleQuery(conn, "MAX(tile_row)", fmt.Sprintf("%s AND tile_row >= %d", prefix, y1))
	if err != nil {
		return tiles.TileBBox{}, err
	}

	maxValue := int64(1)<<level - 1
	clamp := func(v int64) uint32 {
		switch {
		case v < 0:
			return 0
		case v > maxValue:
			return uint32(maxValue)
		default:
			return uint32(v)
		}
	}

	// Flip TMS rows to XYZ; min/max swap under the flip.
	yMin := flipY(level, clamp(y1))
	yMax := flipY(level, clamp(y0))
	return tiles.FromMinMax(level, clamp(x0), yMin, clamp(x1), yMax)
}

// SourceType implements container.TileSource.
func (r *Reader) SourceType() container.SourceType {
	return container.ContainerSource("mbtiles", r.path)
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

// TileJSON implements container.TileSource.
func (r *Reader) TileJSON() *tilejson.TileJSON {
	return r.tileJSON
}

// GetTile implements container.TileSource.
func (r *Reader) GetTile(ctx context.Context, coord tiles.TileCoord) (container.Tile, bool, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return container.Tile{}, false, fmt.Errorf("failed to take mbtiles connection: %w", err)
	}
	defer r.pool.put(conn)

	stmt, _, err := conn.PrepareTransient(
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		return container.Tile{}, false, fmt.Errorf("failed to prepare tile query: %w", err)
	}
	defer stmt.Finalize()

	row := flipY(coord.Level, coord.Y)
	stmt.BindInt64(1, int64(coord.Level))
	stmt.BindInt64(2, int64(coord.X))
	stmt.BindInt64(3, int64(row))

	hasRow, err := stmt.Step()
	if err != nil {
		return container.Tile{}, false, fmt.Errorf("failed to query tile %s: %w", coord, err)
	}
	if !hasRow {
		return container.Tile{}, false, nil
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(stmt.ColumnReader(0)); err != nil {
		return container.Tile{}, false, fmt.Errorf("failed to read tile %s payload: %w", coord, err)
	}
	return container.Tile{Coord: coord, Data: blob.New(buf.Bytes()), Compression: r.compression}, true, nil
}

type mbtilesRow struct {
	x, row uint32
	data   []byte
}

// queryRows eagerly loads every matching row for bbox. MBTiles' y-flip
// means the bbox's XYZ row range maps to a descending TMS range, so the
// query bounds are flipped once rather than flipping rows one at a time.
func (r *Reader) queryRows(ctx context.Context, bbox tiles.TileBBox) ([]mbtilesRow, error) {
	conn, err := r.pool.take(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take mbtiles connection: %w", err)
	}
	defer r.pool.put(conn)

	tmsRowMin := flipY(bbox.Level, bbox.YMax())
	tmsRowMax := flipY(bbox.Level, bbox.YMin())

	stmt, _, err := conn.PrepareTransient(`SELECT tile_column, tile_row, tile_data FROM tiles
		WHERE zoom_level = ? AND tile_column BETWEEN ? AND ? AND tile_row BETWEEN ? AND ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare range query: %w", err)
	}
	defer stmt.Finalize()

	stmt.BindInt64(1, int64(bbox.Level))
	stmt.BindInt64(2, int64(bbox.XMin()))
	stmt.BindInt64(3, int64(bbox.XMax()))
	stmt.BindInt64(4, int64(tmsRowMin))
	stmt.BindInt64(5, int64(tmsRowMax))

	var rows []mbtilesRow
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, fmt.Errorf("failed to query mbtiles rows: %w", err)
		}
		if !hasRow {
			break
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(stmt.ColumnReader(2)); err != nil {
			return nil, fmt.Errorf("failed to read tile payload: %w", err)
		}
		rows = append(rows, mbtilesRow{
			x:    uint32(stmt.ColumnInt64(0)),
			row:  uint32(stmt.ColumnInt64(1)),
			data: buf.Bytes(),
		})
	}
	return rows, nil
}

// GetTileStream implements container.TileSource.
func (r *Reader) GetTileStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[container.Tile] {
	rows, err := r.queryRows(ctx, bbox)
	i := 0
	return tilestream.New(func() (tilestream.Item[container.Tile], bool, error) {
		if err != nil {
			return tilestream.Item[container.Tile]{}, false, err
		}
		if i >= len(rows) {
			return tilestream.Item[container.Tile]{}, false, nil
		}
		row := rows[i]
		i++
		coord, cerr := tiles.NewTileCoord(bbox.Level, row.x, flipY(bbox.Level, row.row))
		if cerr != nil {
			return tilestream.Item[container.Tile]{}, false, cerr
		}
		tile := container.Tile{Coord: coord, Data: blob.New(row.data), Compression: r.compression}
		return tilestream.Item[container.Tile]{Coord: coord, Value: tile}, true, nil
	})
}

// GetTileSizeStream implements container.TileSource.
func (r *Reader) GetTileSizeStream(ctx context.Context, bbox tiles.TileBBox) *tilestream.Stream[uint32] {
	rows, err := r.queryRows(ctx, bbox)
	i := 0
	return tilestream.New(func() (tilestream.Item[uint32], bool, error) {
		if err != nil {
			return tilestream.Item[uint32]{}, false, err
		}
		if i >= len(rows) {
			return tilestream.Item[uint32]{}, false, nil
		}
		row := rows[i]
		i++
		coord, cerr := tiles.NewTileCoord(bbox.Level, row.x, flipY(bbox.Level, row.row))
		if cerr != nil {
			return tilestream.Item[uint32]{}, false, cerr
		}
		return tilestream.Item[uint32]{Coord: coord, Value: uint32(len(row.data))}, true, nil
	})
}

// Close releases the connection pool.
func (r *Reader) Close() error {
	return r.pool.Close()
}

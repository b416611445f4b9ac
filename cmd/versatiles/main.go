// Command versatiles converts and inspects tile containers
// (.versatiles, .mbtiles, .tar) from the command line.
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/versatiles-org/go-versatiles/compress"
	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/convert"
	"github.com/versatiles-org/go-versatiles/dataio"
	"github.com/versatiles-org/go-versatiles/mbtiles"
	"github.com/versatiles-org/go-versatiles/tartiles"
	"github.com/versatiles-org/go-versatiles/tiles"
	"github.com/versatiles-org/go-versatiles/versatiles"
)

var cli struct {
	Convert convertCmd `cmd:"" help:"convert a tile container from one format to another"`
	Serve   serveCmd   `cmd:"" help:"serve tiles over HTTP (not implemented)"`
	Probe   probeCmd   `cmd:"" help:"print a container's metadata"`
	Compare compareCmd `cmd:"" help:"diff two containers' tile sets (not implemented)"`
}

// logger is the CLI-boundary structured logger: convert logs its start,
// its success and a failed conversion through it, while errors returned
// up to kong are still reported to the user via FatalIfErrorf.
var logger *zap.Logger

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx := kong.Parse(&cli,
		kong.Name("versatiles"),
		kong.Description("convert and inspect .versatiles/.mbtiles/.tar tile containers"),
		kong.UsageOnError(),
	)
	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

type convertCmd struct {
	Input  string `arg:"" help:"input container path"`
	Output string `arg:"" help:"output container path"`

	MinZoom    *uint8 `help:"drop zoom levels below this"`
	MaxZoom    *uint8 `help:"drop zoom levels above this"`
	BBox       string `help:"west,south,east,north geographic bbox filter"`
	BBoxBorder uint32 `help:"expand the bbox filter by this many tiles on every side"`
	Compress   string `help:"recompress tiles to: none, gzip, brotli" enum:"none,gzip,brotli," default:""`
	FlipY      bool   `help:"flip every tile's y coordinate"`
	SwapXY     bool   `help:"swap every tile's x/y coordinates"`
	Quiet      bool   `help:"suppress the progress bar"`
}

func (c *convertCmd) Run() error {
	ctx := context.Background()
	start := time.Now()
	logger.Info("convert starting", zap.String("input", c.Input), zap.String("output", c.Output))

	source, closeSource, err := openSource(ctx, c.Input)
	if err != nil {
		return err
	}
	defer closeSource()

	sink, closeSink, err := openSink(c.Output)
	if err != nil {
		return err
	}

	options, err := c.toOptions()
	if err != nil {
		return err
	}

	if err := convert.Convert(ctx, source, sink, options); err != nil {
		logger.Error("convert failed", zap.String("input", c.Input), zap.String("output", c.Output), zap.Error(err))
		return fmt.Errorf("conversion failed: %w", err)
	}
	if err := closeSink(); err != nil {
		return err
	}
	logger.Info("convert finished", zap.String("input", c.Input), zap.String("output", c.Output), zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *convertCmd) toOptions() (convert.Options, error) {
	options := convert.Options{
		MinZoom:    c.MinZoom,
		MaxZoom:    c.MaxZoom,
		BBoxBorder: c.BBoxBorder,
		FlipY:      c.FlipY,
		SwapXY:     c.SwapXY,
		Quiet:      c.Quiet,
	}

	if c.BBox != "" {
		box, err := parseBBox(c.BBox)
		if err != nil {
			return convert.Options{}, err
		}
		options.BBox = &box
	}

	switch c.Compress {
	case "none":
		a := compress.Uncompressed
		options.Compress = &a
	case "gzip":
		a := compress.Gzip
		options.Compress = &a
	case "brotli":
		a := compress.Brotli
		options.Compress = &a
	case "":
		// leave target compression equal to the source's
	}
	return options, nil
}

func parseBBox(s string) (tiles.GeoBBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return tiles.GeoBBox{}, fmt.Errorf("bbox %q must have 4 comma-separated values (west,south,east,north)", s)
	}
	var values [4]float64
	for i, p := range parts {
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%g", &values[i]); err != nil {
			return tiles.GeoBBox{}, fmt.Errorf("bbox %q: bad number %q: %w", s, p, err)
		}
	}
	return tiles.NewGeoBBox(values[0], values[1], values[2], values[3])
}

// openSource opens path as a container.TileSource, dispatching on its
// file extension, and returns a matching close function.
func openSource(ctx context.Context, path string) (container.TileSource, func() error, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".versatiles":
		r, err := dataio.OpenReader(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %q: %w", path, err)
		}
		source, err := versatiles.Open(ctx, r)
		if err != nil {
			r.Close()
			return nil, nil, err
		}
		return source, source.Close, nil
	case ".mbtiles":
		source, err := mbtiles.Open(ctx, path, runtime.NumCPU())
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil
	case ".tar":
		source, err := tartiles.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return source, source.Close, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized input container extension %q (expected .versatiles, .mbtiles, or .tar)", ext)
	}
}

// openSink opens path as a container.TileSink, dispatching on its file
// extension, and returns a matching close/finalize function that must be
// called after the stream is fully written.
func openSink(path string) (container.TileSink, func() error, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".versatiles":
		w, err := dataio.CreateWriter(context.Background(), path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %q: %w", path, err)
		}
		sink := versatiles.NewWriter(w, versatiles.WriterOptions{})
		// WriteTileStream closes w itself once the header is patched.
		return sink, func() error { return nil }, nil
	case ".mbtiles":
		sink, err := mbtiles.NewWriter(path)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	case ".tar":
		return tartiles.NewWriter(path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unrecognized output container extension %q (expected .versatiles, .mbtiles, or .tar)", ext)
	}
}

type serveCmd struct {
	Path string `arg:"" help:"container path or bucket URL to serve"`
}

func (c *serveCmd) Run() error {
	return fmt.Errorf("serve is not implemented: an HTTP tile server is out of scope for this module")
}

type probeCmd struct {
	Path string `arg:"" help:"container path to inspect"`
}

func (c *probeCmd) Run() error {
	ctx := context.Background()

	source, closeSource, err := openSource(ctx, c.Path)
	if err != nil {
		return err
	}
	defer closeSource()

	meta := source.Metadata()
	fmt.Printf("source type: %s\n", source.SourceType().Name)
	fmt.Printf("tile format: %s\n", meta.TileFormat)
	fmt.Printf("tile compression: %s\n", meta.TileCompression)
	fmt.Printf("traversal: %s\n", meta.Traversal)
	fmt.Printf("max block size: %d\n", meta.MaxBlockSize)

	if zmin, ok := meta.BBoxPyramid.GetZoomMin(); ok {
		fmt.Printf("zoom min: %d\n", zmin)
	}
	if zmax, ok := meta.BBoxPyramid.GetZoomMax(); ok {
		fmt.Printf("zoom max: %d\n", zmax)
	}
	if bbox, ok := meta.BBoxPyramid.GetGeoBBox(); ok {
		fmt.Printf("bounds: %f,%f %f,%f\n", bbox.West, bbox.South, bbox.East, bbox.North)
	}
	fmt.Printf("tile count: %d\n", meta.BBoxPyramid.CountTiles())
	for _, level := range meta.BBoxPyramid.IterLevels() {
		fmt.Printf("  level %2d: %s (%d tiles)\n", level.Level, level, level.CountTiles())
	}

	if tj := source.TileJSON(); tj != nil {
		if tj.Name != "" {
			fmt.Printf("name: %s\n", tj.Name)
		}
		if tj.Description != "" {
			fmt.Printf("description: %s\n", tj.Description)
		}
		if tj.Attribution != "" {
			fmt.Printf("attribution: %s\n", tj.Attribution)
		}
		if len(tj.VectorLayers) > 0 {
			fmt.Println("vector layers:")
			for name := range tj.VectorLayers {
				fmt.Printf("  %s\n", name)
			}
		}
	}
	return nil
}

type compareCmd struct {
	Left  string `arg:""`
	Right string `arg:""`
}

func (c *compareCmd) Run() error {
	return fmt.Errorf("compare is not implemented")
}

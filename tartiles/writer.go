package tartiles

import (
	"archive/tar"
	"context"
	"fmt"
	"os"

	"github.com/versatiles-org/go-versatiles/container"
	"github.com/versatiles-org/go-versatiles/tilestream"
)

// Writer creates a .tar archive, one entry per tile at "./z/y/x.ext".
type Writer struct {
	path string
}

// NewWriter returns a Writer that will (over)write path on WriteTileStream.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// WriteTileStream implements container.TileSink. Every tile in stream is
// written as one archive entry, named by its coordinate and the single
// extension implied by sourceMeta's format and compression.
func (w *Writer) WriteTileStream(ctx context.Context, sourceMeta container.TileSourceMetadata, stream *tilestream.Stream[container.Tile]) error {
	ext, err := extensionFor(sourceMeta.TileFormat, sourceMeta.TileCompression)
	if err != nil {
		return err
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create tar archive %q: %w", w.path, err)
	}
	tw := tar.NewWriter(file)

	for {
		select {
		case <-ctx.Done():
			tw.Close()
			file.Close()
			return ctx.Err()
		default:
		}

		item, ok, err := stream.Next()
		if err != nil {
			tw.Close()
			file.Close()
			return fmt.Errorf("failed reading source tile stream: %w", err)
		}
		if !ok {
			break
		}

		coord := item.Coord
		data := item.Value.Data.Bytes()
		name := fmt.Sprintf("./%d/%d/%d.%s", coord.Level, coord.Y, coord.X, ext)

		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Size:     int64(len(data)),
			Mode:     0644,
		}
		if err := tw.WriteHeader(header); err != nil {
			tw.Close()
			file.Close()
			return fmt.Errorf("failed to write tar header for %s: %w", coord, err)
		}
		if _, err := tw.Write(data); err != nil {
			tw.Close()
			file.Close()
			return fmt.Errorf("failed to write tile %s payload: %w", coord, err)
		}
	}

	if err := tw.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalize tar archive %q: %w", w.path, err)
	}
	return file.Close()
}

package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/versatiles-org/go-versatiles/blob"
	"golang.org/x/image/webp"
)

// TileFormat identifies the payload format of a tile's uncompressed
// content, independent of whatever Algorithm its bytes happen to be
// wrapped in on disk.
type TileFormat uint8

const (
	UnknownFormat TileFormat = iota
	MVT
	PNG
	JPEG
	WEBP
	AVIF
)

func (f TileFormat) String() string {
	switch f {
	case MVT:
		return "mvt"
	case PNG:
		return "png"
	case JPEG:
		return "jpg"
	case WEBP:
		return "webp"
	case AVIF:
		return "avif"
	default:
		return "unknown"
	}
}

// IsRaster reports whether a format holds a decodable raster image as
// opposed to an opaque vector-tile payload.
func (f TileFormat) IsRaster() bool {
	switch f {
	case PNG, JPEG, WEBP, AVIF:
		return true
	default:
		return false
	}
}

// TranscodeRaster decodes a raster tile in `from` format and re-encodes it
// in `to` format. MVT tiles are never transcoded: only the raster formats
// carry a pixel grid that can be round-tripped through image.Image.
func TranscodeRaster(b blob.Blob, from, to TileFormat) (blob.Blob, error) {
	if from == to {
		return b, nil
	}
	if !from.IsRaster() || !to.IsRaster() {
		return blob.Blob{}, fmt.Errorf("cannot transcode %v to %v: both formats must be raster", from, to)
	}

	img, err := decodeRaster(b, from)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decode %v tile: %w", from, err)
	}

	var buf bytes.Buffer
	switch to {
	case PNG:
		if err := png.Encode(&buf, img); err != nil {
			return blob.Blob{}, fmt.Errorf("failed to encode png tile: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return blob.Blob{}, fmt.Errorf("failed to encode jpeg tile: %w", err)
		}
	case WEBP, AVIF:
		// No encoder for these formats exists anywhere in the module's
		// dependency set; decoding webp is supported (golang.org/x/image/webp)
		// but producing it is not.
		return blob.Blob{}, fmt.Errorf("encoding to %v is not supported", to)
	default:
		return blob.Blob{}, fmt.Errorf("unsupported target raster format %v", to)
	}
	return blob.New(buf.Bytes()), nil
}

func decodeRaster(b blob.Blob, format TileFormat) (image.Image, error) {
	switch format {
	case PNG:
		return png.Decode(b.AsReader())
	case JPEG:
		return jpeg.Decode(b.AsReader())
	case WEBP:
		return webp.Decode(b.AsReader())
	default:
		return nil, fmt.Errorf("unsupported source raster format %v", format)
	}
}

// Package versatiles implements the .versatiles container codec: the
// 62-byte file header, the per-block BlockDefinition/BlockIndex, the
// per-tile TileIndex, and the reader/writer built on top of them.
package versatiles

import (
	"encoding/binary"
	"fmt"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
)

// HeaderSize is the fixed, big-endian binary header size.
const HeaderSize = 62

// magicWord is the 28-byte, non-null-terminated magic prefix every
// archive opens with.
const magicWord = "OpenCloudTiles-Container-v1:"

func init() {
	if len(magicWord) != 28 {
		panic("magicWord must be exactly 28 bytes")
	}
}

// FileHeader is the archive's fixed 62-byte leading record.
type FileHeader struct {
	TileFormat      compress.TileFormat
	TileCompression compress.Algorithm
	MetaRange       blob.ByteRange
	BlocksRange     blob.ByteRange
}

func formatToTag(f compress.TileFormat) (byte, error) {
	switch f {
	case compress.PNG:
		return 0, nil
	case compress.JPEG:
		return 1, nil
	case compress.WEBP:
		return 2, nil
	case compress.MVT:
		return 16, nil
	default:
		return 0, fmt.Errorf("tile format %v has no container tag", f)
	}
}

func tagToFormat(tag byte) (compress.TileFormat, error) {
	switch tag {
	case 0:
		return compress.PNG, nil
	case 1:
		return compress.JPEG, nil
	case 2:
		return compress.WEBP, nil
	case 16:
		return compress.MVT, nil
	default:
		return compress.UnknownFormat, fmt.Errorf("unknown tile format tag %d", tag)
	}
}

func compressionToTag(a compress.Algorithm) (byte, error) {
	switch a {
	case compress.Uncompressed, compress.Gzip, compress.Brotli:
		return byte(a), nil
	default:
		return 0, fmt.Errorf("compression algorithm %v has no container tag", a)
	}
}

func tagToCompression(tag byte) (compress.Algorithm, error) {
	switch tag {
	case 0:
		return compress.Uncompressed, nil
	case 1:
		return compress.Gzip, nil
	case 2:
		return compress.Brotli, nil
	default:
		return compress.Uncompressed, fmt.Errorf("unknown compression tag %d", tag)
	}
}

// ToBlob serializes h to its canonical 62-byte on-disk representation.
func (h FileHeader) ToBlob() (blob.Blob, error) {
	formatTag, err := formatToTag(h.TileFormat)
	if err != nil {
		return blob.Blob{}, err
	}
	compressionTag, err := compressionToTag(h.TileCompression)
	if err != nil {
		return blob.Blob{}, err
	}

	b := make([]byte, HeaderSize)
	copy(b[0:28], magicWord)
	b[28] = formatTag
	b[29] = compressionTag
	binary.BigEndian.PutUint64(b[30:38], h.MetaRange.Offset)
	binary.BigEndian.PutUint64(b[38:46], h.MetaRange.Length)
	binary.BigEndian.PutUint64(b[46:54], h.BlocksRange.Offset)
	binary.BigEndian.PutUint64(b[54:62], h.BlocksRange.Length)
	return blob.New(b), nil
}

// HeaderFromBlob parses a 62-byte header blob, rejecting a bad magic word
// or an unrecognized format/compression tag.
func HeaderFromBlob(b blob.Blob) (FileHeader, error) {
	if b.Len() != HeaderSize {
		return FileHeader{}, fmt.Errorf("header must be %d bytes, got %d", HeaderSize, b.Len())
	}
	d := b.Bytes()
	if string(d[0:28]) != magicWord {
		return FileHeader{}, fmt.Errorf("bad magic word: container is not a .versatiles archive")
	}
	format, err := tagToFormat(d[28])
	if err != nil {
		return FileHeader{}, err
	}
	compression, err := tagToCompression(d[29])
	if err != nil {
		return FileHeader{}, err
	}
	return FileHeader{
		TileFormat:      format,
		TileCompression: compression,
		MetaRange: blob.ByteRange{
			Offset: binary.BigEndian.Uint64(d[30:38]),
			Length: binary.BigEndian.Uint64(d[38:46]),
		},
		BlocksRange: blob.ByteRange{
			Offset: binary.BigEndian.Uint64(d[46:54]),
			Length: binary.BigEndian.Uint64(d[54:62]),
		},
	}, nil
}

// Equal reports whether two headers hold identical field values.
func (h FileHeader) Equal(o FileHeader) bool {
	return h.TileFormat == o.TileFormat &&
		h.TileCompression == o.TileCompression &&
		h.MetaRange == o.MetaRange &&
		h.BlocksRange == o.BlocksRange
}

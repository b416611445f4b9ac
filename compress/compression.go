// Package compress implements the blob compression engine: gzip/brotli
// codecs, a compression-goal optimizer that picks the best encoding for a
// target set of allowed algorithms, and raster/vector tile transcoding.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/versatiles-org/go-versatiles/blob"
)

// Algorithm identifies a compression codec applied to a tile or index blob.
type Algorithm uint8

const (
	Uncompressed Algorithm = iota
	Gzip
	Brotli
)

func (a Algorithm) String() string {
	switch a {
	case Uncompressed:
		return "uncompressed"
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	default:
		return fmt.Sprintf("algorithm(%d)", a)
	}
}

// AlgorithmSet is a bitset of allowed Algorithm values.
type AlgorithmSet uint8

func SetOf(algorithms ...Algorithm) AlgorithmSet {
	var s AlgorithmSet
	for _, a := range algorithms {
		s = s.With(a)
	}
	return s
}

func (s AlgorithmSet) With(a Algorithm) AlgorithmSet {
	return s | (1 << a)
}

func (s AlgorithmSet) Contains(a Algorithm) bool {
	return s&(1<<a) != 0
}

func (s AlgorithmSet) IsEmpty() bool {
	return s == 0
}

// Goal controls how hard optimize_compression works to shrink a blob.
type Goal uint8

const (
	UseBestCompression Goal = iota
	UseFastCompression
	IsIncompressible
)

// Target bundles the set of algorithms a pipeline stage is allowed to
// produce with a goal describing how aggressively to pick among them.
type Target struct {
	Allowed AlgorithmSet
	Goal    Goal
}

// TargetFromSet builds a Target from an explicit set of allowed
// algorithms, defaulting to UseBestCompression.
func TargetFromSet(allowed AlgorithmSet) Target {
	return Target{Allowed: allowed, Goal: UseBestCompression}
}

// TargetFromAlgorithm restricts the target to a single algorithm.
func TargetFromAlgorithm(a Algorithm) Target {
	return TargetFromSet(SetOf(a))
}

// TargetNone restricts the target to Uncompressed only.
func TargetNone() Target {
	return TargetFromAlgorithm(Uncompressed)
}

func (t *Target) SetFastCompression() { t.Goal = UseFastCompression }
func (t *Target) SetIncompressible()  { t.Goal = IsIncompressible }

func (t Target) Contains(a Algorithm) bool { return t.Allowed.Contains(a) }
func (t *Target) Insert(a Algorithm)       { t.Allowed = t.Allowed.With(a) }

// Optimize compresses or decompresses b so its encoding matches target,
// given that b is currently encoded with "from". Uncompressed must always
// be one of target's allowed algorithms.
func Optimize(b blob.Blob, from Algorithm, target Target) (blob.Blob, Algorithm, error) {
	if target.Allowed.IsEmpty() {
		return blob.Blob{}, 0, fmt.Errorf("at least one compression algorithm must be allowed")
	}
	if !target.Contains(Uncompressed) {
		return blob.Blob{}, 0, fmt.Errorf("'uncompressed' must always be supported")
	}

	if target.Goal != UseBestCompression && target.Contains(from) {
		return b, from, nil
	}

	switch from {
	case Uncompressed:
		if target.Goal != IsIncompressible {
			if target.Contains(Brotli) {
				out, err := CompressBrotli(b)
				return out, Brotli, err
			}
			if target.Contains(Gzip) {
				out, err := CompressGzip(b)
				return out, Gzip, err
			}
		}
		return b, Uncompressed, nil

	case Gzip:
		if target.Goal != IsIncompressible && target.Contains(Brotli) {
			decompressed, err := DecompressGzip(b)
			if err != nil {
				return blob.Blob{}, 0, fmt.Errorf("failed to decompress gzip blob: %w", err)
			}
			out, err := CompressBrotli(decompressed)
			if err != nil {
				return blob.Blob{}, 0, fmt.Errorf("failed to compress brotli blob: %w", err)
			}
			return out, Brotli, nil
		}
		if target.Contains(Gzip) {
			return b, Gzip, nil
		}
		decompressed, err := DecompressGzip(b)
		if err != nil {
			return blob.Blob{}, 0, fmt.Errorf("failed to decompress gzip blob: %w", err)
		}
		return decompressed, Uncompressed, nil

	case Brotli:
		if target.Contains(Brotli) {
			return b, Brotli, nil
		}
		decompressed, err := DecompressBrotli(b)
		if err != nil {
			return blob.Blob{}, 0, fmt.Errorf("failed to decompress brotli blob: %w", err)
		}
		if target.Goal != IsIncompressible && target.Contains(Gzip) {
			out, err := CompressGzip(decompressed)
			if err != nil {
				return blob.Blob{}, 0, fmt.Errorf("failed to compress gzip blob: %w", err)
			}
			return out, Gzip, nil
		}
		return decompressed, Uncompressed, nil

	default:
		return blob.Blob{}, 0, fmt.Errorf("unsupported compression algorithm %v", from)
	}
}

// Recompress transcodes b from one algorithm to another.
func Recompress(b blob.Blob, from, to Algorithm) (blob.Blob, error) {
	if from == to {
		return b, nil
	}
	decompressed, err := Decompress(b, from)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decompress using %v: %w", from, err)
	}
	recompressed, err := Compress(decompressed, to)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress using %v: %w", to, err)
	}
	return recompressed, nil
}

// Compress encodes b with the given algorithm.
func Compress(b blob.Blob, a Algorithm) (blob.Blob, error) {
	switch a {
	case Uncompressed:
		return b, nil
	case Gzip:
		return CompressGzip(b)
	case Brotli:
		return CompressBrotli(b)
	default:
		return blob.Blob{}, fmt.Errorf("unsupported compression algorithm %v", a)
	}
}

// Decompress decodes b, which is encoded with the given algorithm.
func Decompress(b blob.Blob, a Algorithm) (blob.Blob, error) {
	switch a {
	case Uncompressed:
		return b, nil
	case Gzip:
		return DecompressGzip(b)
	case Brotli:
		return DecompressBrotli(b)
	default:
		return blob.Blob{}, fmt.Errorf("unsupported compression algorithm %v", a)
	}
}

// CompressGzip gzip-encodes b at the best compression level.
func CompressGzip(b blob.Blob) (blob.Blob, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress data using gzip: %w", err)
	}
	if _, err := w.Write(b.Bytes()); err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress data using gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress data using gzip: %w", err)
	}
	return blob.New(buf.Bytes()), nil
}

// DecompressGzip decodes a gzip-encoded blob.
func DecompressGzip(b blob.Blob) (blob.Blob, error) {
	r, err := gzip.NewReader(bytes.NewReader(b.Bytes()))
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decompress data using gzip: %w", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decompress data using gzip: %w", err)
	}
	return blob.New(data), nil
}

// CompressBrotli brotli-encodes b at quality 10 (one below brotli's
// maximum of 11) with a 2^19-byte window.
func CompressBrotli(b blob.Blob) (blob.Blob, error) {
	return compressBrotliAt(b, 10, 19)
}

// CompressBrotliFast brotli-encodes b at a lower quality for speed.
func CompressBrotliFast(b blob.Blob) (blob.Blob, error) {
	return compressBrotliAt(b, 3, 16)
}

func compressBrotliAt(b blob.Blob, quality, lgwin int) (blob.Blob, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterOptions(&buf, brotli.WriterOptions{Quality: quality, LGWin: lgwin})
	if _, err := w.Write(b.Bytes()); err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress data using brotli: %w", err)
	}
	if err := w.Close(); err != nil {
		return blob.Blob{}, fmt.Errorf("failed to compress data using brotli: %w", err)
	}
	return blob.New(buf.Bytes()), nil
}

// DecompressBrotli decodes a brotli-encoded blob.
func DecompressBrotli(b blob.Blob) (blob.Blob, error) {
	r := brotli.NewReader(bytes.NewReader(b.Bytes()))
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to decompress data using brotli: %w", err)
	}
	return blob.New(data), nil
}

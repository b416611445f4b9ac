// Package blob holds the owned byte buffer and byte-range types shared by
// every container codec in this module.
package blob

import (
	"bytes"
	"io"
)

// Blob is an owned, immutable view of bytes. It is the only currency passed
// across component boundaries: readers return Blobs, compressors consume and
// produce Blobs, writers append Blobs.
type Blob struct {
	data []byte
}

// New wraps a byte slice as a Blob. The slice is taken as-is, not copied.
func New(data []byte) Blob {
	return Blob{data: data}
}

// NewFromString wraps a string's bytes as a Blob.
func NewFromString(s string) Blob {
	return Blob{data: []byte(s)}
}

// Empty is the zero-length Blob.
var Empty = Blob{}

// Bytes returns the underlying byte slice. Callers must not mutate it.
func (b Blob) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes in the blob.
func (b Blob) Len() int {
	return len(b.data)
}

// AsString returns the blob's bytes reinterpreted as a string without a
// UTF-8 validity check.
func (b Blob) AsString() string {
	return string(b.data)
}

// AsReader returns a zero-copy io.Reader over the blob's bytes.
func (b Blob) AsReader() io.Reader {
	return bytes.NewReader(b.data)
}

// Slice returns a zero-copy view into the blob between [start, end).
func (b Blob) Slice(start, end int) Blob {
	return Blob{data: b.data[start:end]}
}

// Equal reports whether two blobs hold identical bytes.
func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b.data, other.data)
}

// Concat returns a new Blob formed by concatenating the given blobs.
func Concat(blobs ...Blob) Blob {
	total := 0
	for _, bl := range blobs {
		total += bl.Len()
	}
	out := make([]byte, 0, total)
	for _, bl := range blobs {
		out = append(out, bl.data...)
	}
	return Blob{data: out}
}

package blob

import "fmt"

// ByteRange is an (offset, length) pair describing a span of a file. It is
// used everywhere on-disk framing needs to point at a region: meta, block
// index, tile index and tile payload locations all reuse this one type.
type ByteRange struct {
	Offset uint64
	Length uint64
}

// EmptyRange is the canonical (0, 0) range meaning "nothing written here".
var EmptyRange = ByteRange{}

// IsEmpty reports whether the range has zero length.
func (r ByteRange) IsEmpty() bool {
	return r.Length == 0
}

// End returns the offset one past the end of the range.
func (r ByteRange) End() uint64 {
	return r.Offset + r.Length
}

// Adjacent reports whether r2 begins exactly where r ends, i.e. the two
// ranges could be coalesced into one contiguous span.
func (r ByteRange) Adjacent(r2 ByteRange) bool {
	return r.End() == r2.Offset
}

// WithinGap reports whether r2 starts no more than gap bytes after r ends,
// used by the streaming reader to decide whether two tile ranges should be
// coalesced into a single underlying read.
func (r ByteRange) WithinGap(r2 ByteRange, gap uint64) bool {
	if r2.Offset < r.End() {
		return false
	}
	return r2.Offset-r.End() <= gap
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Offset, r.End())
}

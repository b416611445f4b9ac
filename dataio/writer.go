package dataio

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gcblob "gocloud.dev/blob"

	"github.com/versatiles-org/go-versatiles/blob"
)

// Writer is an append/overwrite-at-offset sink: the versatiles writer
// needs both (it streams tile data and indexes forward, then rewrites the
// header once final offsets are known).
type Writer interface {
	io.Closer
	// Append writes b to the end of the resource and returns the offset
	// it was written at.
	Append(b blob.Blob) (uint64, error)
	// WriteAt overwrites length(b) bytes starting at offset. Used to
	// patch the fixed-size header once the archive's layout is final.
	WriteAt(b blob.Blob, offset uint64) error
}

// CreateWriter opens a Writer for path: a local file for plain paths and
// file:// URLs, otherwise a gocloud.dev/blob bucket object. Both support
// WriteAt patching; the bucket writer keeps the whole output in memory,
// applies patches there, and uploads it on Close.
func CreateWriter(ctx context.Context, path string) (Writer, error) {
	switch {
	case strings.HasPrefix(path, "file://"):
		return NewFileWriter(strings.TrimPrefix(path, "file://"))
	case strings.Contains(path, "://"):
		return newCloudWriter(ctx, path)
	default:
		return NewFileWriter(path)
	}
}

// FileWriter appends to and patches a local file.
type FileWriter struct {
	file   *os.File
	offset uint64
}

func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %q: %w", path, err)
	}
	return &FileWriter{file: f}, nil
}

func (w *FileWriter) Append(b blob.Blob) (uint64, error) {
	offset := w.offset
	n, err := w.file.WriteAt(b.Bytes(), int64(offset))
	if err != nil {
		return 0, fmt.Errorf("failed to append %d bytes: %w", b.Len(), err)
	}
	w.offset += uint64(n)
	return offset, nil
}

func (w *FileWriter) WriteAt(b blob.Blob, offset uint64) error {
	_, err := w.file.WriteAt(b.Bytes(), int64(offset))
	if err != nil {
		return fmt.Errorf("failed to write %d bytes at offset %d: %w", b.Len(), offset, err)
	}
	return nil
}

func (w *FileWriter) Close() error {
	return w.file.Close()
}

// cloudWriter buffers its entire output in memory and flushes it to the
// bucket object on Close, since gocloud.dev/blob exposes no range-write
// primitive. This matches how the teacher's BucketAdapter treats cloud
// storage as read-mostly: writes go through conversion once, not
// incrementally served.
type cloudWriter struct {
	bucket *gcblob.Bucket
	key    string
	buf    []byte
}

func newCloudWriter(ctx context.Context, rawURL string) (*cloudWriter, error) {
	idx := strings.LastIndex(rawURL, "/")
	if idx < 0 {
		return nil, fmt.Errorf("invalid cloud writer target %q", rawURL)
	}
	bucketURL, key := rawURL[:idx], rawURL[idx+1:]
	bucket, err := gcblob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", bucketURL, err)
	}
	return &cloudWriter{bucket: bucket, key: key}, nil
}

func (w *cloudWriter) Append(b blob.Blob) (uint64, error) {
	offset := uint64(len(w.buf))
	w.buf = append(w.buf, b.Bytes()...)
	return offset, nil
}

func (w *cloudWriter) WriteAt(b blob.Blob, offset uint64) error {
	end := offset + uint64(b.Len())
	if end > uint64(len(w.buf)) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[offset:end], b.Bytes())
	return nil
}

func (w *cloudWriter) Close() error {
	ctx := context.Background()
	writer, err := w.bucket.NewWriter(ctx, w.key, nil)
	if err != nil {
		return err
	}
	if _, err := writer.Write(w.buf); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return w.bucket.Close()
}

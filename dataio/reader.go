// Package dataio implements the DataReader/DataWriter abstraction over
// local files, HTTP range requests, in-memory blobs, and gocloud.dev's
// pluggable cloud-storage drivers (S3, GCS, Azure). Every container codec
// reads and writes through these interfaces instead of touching *os.File
// directly, so a .versatiles archive can be read from any backend without
// the reader/writer code knowing which one it is.
package dataio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	gcblob "gocloud.dev/blob"

	"github.com/versatiles-org/go-versatiles/blob"
)

// Reader is a random-access byte source: everything the versatiles,
// mbtiles, and tar codecs need to pull a range of bytes out of a single
// opened archive, regardless of where it actually lives.
type Reader interface {
	io.Closer
	// ReadRange returns the bytes in r.
	ReadRange(ctx context.Context, r blob.ByteRange) (blob.Blob, error)
	// Size returns the total length of the underlying resource.
	Size(ctx context.Context) (uint64, error)
}

// OpenReader dispatches on path's scheme and opens the matching Reader
// implementation: "file://" or a bare path for local files, "http://" and
// "https://" for range-request HTTP, anything else is handed to
// gocloud.dev/blob (s3://, gs://, azblob://, ...).
func OpenReader(ctx context.Context, path string) (Reader, error) {
	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return NewHTTPReader(path, http.DefaultClient), nil
	case strings.HasPrefix(path, "file://"):
		return NewFileReader(strings.TrimPrefix(path, "file://"))
	case strings.Contains(path, "://"):
		return newCloudReader(ctx, path)
	default:
		return NewFileReader(path)
	}
}

// FileReader reads byte ranges from a local file via pread, without
// disturbing a shared file offset.
type FileReader struct {
	file *os.File
}

func NewFileReader(path string) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	return &FileReader{file: f}, nil
}

func (r *FileReader) ReadRange(ctx context.Context, rng blob.ByteRange) (blob.Blob, error) {
	buf := make([]byte, rng.Length)
	n, err := r.file.ReadAt(buf, int64(rng.Offset))
	if err != nil && !(err == io.EOF && uint64(n) == rng.Length) {
		return blob.Blob{}, fmt.Errorf("failed to read range %s: %w", rng, err)
	}
	return blob.New(buf), nil
}

func (r *FileReader) Size(ctx context.Context) (uint64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

func (r *FileReader) Close() error {
	return r.file.Close()
}

// HTTPClient lets tests swap in a mock transport, the same seam the
// teacher repo's HTTPBucket exposes.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPReader reads byte ranges from a remote URL via HTTP Range headers.
type HTTPReader struct {
	url    string
	client HTTPClient
}

func NewHTTPReader(url string, client HTTPClient) *HTTPReader {
	return &HTTPReader{url: url, client: client}
}

func (r *HTTPReader) ReadRange(ctx context.Context, rng blob.ByteRange) (blob.Blob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return blob.Blob{}, err
	}
	if rng.Length > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", rng.Offset, rng.End()-1))
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to fetch %s: %w", rng, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return blob.Blob{}, fmt.Errorf("unexpected HTTP status %d fetching %s", resp.StatusCode, rng)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return blob.Blob{}, err
	}
	return blob.New(data), nil
}

func (r *HTTPReader) Size(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("server did not report a content length for %s", r.url)
	}
	return uint64(resp.ContentLength), nil
}

func (r *HTTPReader) Close() error {
	return nil
}

// MemoryReader serves byte ranges out of an in-memory blob. Used by tests
// and by callers that have already fetched a whole archive into memory.
type MemoryReader struct {
	data blob.Blob
}

func NewMemoryReader(data blob.Blob) *MemoryReader {
	return &MemoryReader{data: data}
}

func (r *MemoryReader) ReadRange(ctx context.Context, rng blob.ByteRange) (blob.Blob, error) {
	end := rng.Offset + rng.Length
	if end > uint64(r.data.Len()) {
		return blob.Blob{}, fmt.Errorf("range %s exceeds blob length %d", rng, r.data.Len())
	}
	return r.data.Slice(int(rng.Offset), int(end)), nil
}

func (r *MemoryReader) Size(ctx context.Context) (uint64, error) {
	return uint64(r.data.Len()), nil
}

func (r *MemoryReader) Close() error {
	return nil
}

// cloudReader adapts a gocloud.dev/blob bucket + key to the Reader
// interface, mirroring the teacher's BucketAdapter.
type cloudReader struct {
	bucket *gcblob.Bucket
	key    string
}

func newCloudReader(ctx context.Context, rawURL string) (*cloudReader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	bucketURL := rawURL[:len(rawURL)-len(u.Path)]
	bucket, err := gcblob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %q: %w", bucketURL, err)
	}
	return &cloudReader{bucket: bucket, key: key}, nil
}

func (r *cloudReader) ReadRange(ctx context.Context, rng blob.ByteRange) (blob.Blob, error) {
	reader, err := r.bucket.NewRangeReader(ctx, r.key, int64(rng.Offset), int64(rng.Length), nil)
	if err != nil {
		return blob.Blob{}, fmt.Errorf("failed to read range %s from %q: %w", rng, r.key, err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return blob.Blob{}, err
	}
	return blob.New(buf.Bytes()), nil
}

func (r *cloudReader) Size(ctx context.Context) (uint64, error) {
	attrs, err := r.bucket.Attributes(ctx, r.key)
	if err != nil {
		return 0, err
	}
	return uint64(attrs.Size), nil
}

func (r *cloudReader) Close() error {
	return r.bucket.Close()
}

package dataio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versatiles-org/go-versatiles/blob"
)

func TestMemoryReaderRange(t *testing.T) {
	data := blob.New([]byte("0123456789"))
	r := NewMemoryReader(data)
	out, err := r.ReadRange(context.Background(), blob.ByteRange{Offset: 2, Length: 4})
	require.NoError(t, err)
	assert.Equal(t, "2345", out.AsString())

	size, err := r.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)
}

func TestMemoryReaderRangeOutOfBounds(t *testing.T) {
	data := blob.New([]byte("abc"))
	r := NewMemoryReader(data)
	_, err := r.ReadRange(context.Background(), blob.ByteRange{Offset: 0, Length: 100})
	assert.Error(t, err)
}

func TestFileReaderWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.bin")
	w, err := NewFileWriter(path)
	require.NoError(t, err)
	off1, err := w.Append(blob.New([]byte("hello ")))
	require.NoError(t, err)
	assert.EqualValues(t, 0, off1)
	off2, err := w.Append(blob.New([]byte("world")))
	require.NoError(t, err)
	assert.EqualValues(t, 6, off2)
	require.NoError(t, w.WriteAt(blob.New([]byte("HELLO")), 0))
	require.NoError(t, w.Close())

	r, err := NewFileReader(path)
	require.NoError(t, err)
	defer r.Close()
	size, err := r.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	out, err := r.ReadRange(context.Background(), blob.ByteRange{Offset: 0, Length: 11})
	require.NoError(t, err)
	assert.Equal(t, "HELLO world", out.AsString())
}

type mockRoundTripper struct {
	body       string
	statusCode int
}

func (m mockRoundTripper) Do(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewReader([]byte(m.body))),
		Header:     make(http.Header),
	}, nil
}

func TestHTTPReaderRange(t *testing.T) {
	client := mockRoundTripper{body: "partial-bytes", statusCode: http.StatusPartialContent}
	r := NewHTTPReader("http://example.test/archive.versatiles", client)
	out, err := r.ReadRange(context.Background(), blob.ByteRange{Offset: 0, Length: 13})
	require.NoError(t, err)
	assert.Equal(t, "partial-bytes", out.AsString())
}

func TestHTTPReaderRejectsErrorStatus(t *testing.T) {
	client := mockRoundTripper{body: "", statusCode: http.StatusNotFound}
	r := NewHTTPReader("http://example.test/missing", client)
	_, err := r.ReadRange(context.Background(), blob.ByteRange{Offset: 0, Length: 1})
	assert.Error(t, err)
}

func TestOpenReaderDispatchesOnScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	r, err := OpenReader(context.Background(), path)
	require.NoError(t, err)
	defer r.Close()
	_, ok := r.(*FileReader)
	assert.True(t, ok)
}

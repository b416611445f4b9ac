package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versatiles-org/go-versatiles/blob"
)

func generateTestData(size int) blob.Blob {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i) + byte(i*7)
	}
	return blob.New(data)
}

func TestGzipRoundTrip(t *testing.T) {
	data := generateTestData(10_000)
	compressed, err := CompressGzip(data)
	require.NoError(t, err)
	decompressed, err := DecompressGzip(compressed)
	require.NoError(t, err)
	assert.True(t, data.Equal(decompressed))
}

func TestBrotliRoundTrip(t *testing.T) {
	data := generateTestData(10_000)
	compressed, err := CompressBrotli(data)
	require.NoError(t, err)
	decompressed, err := DecompressBrotli(compressed)
	require.NoError(t, err)
	assert.True(t, data.Equal(decompressed))
}

func TestOptimizeRejectsEmptyTarget(t *testing.T) {
	_, _, err := Optimize(blob.New([]byte("x")), Uncompressed, Target{})
	assert.Error(t, err)
}

func TestOptimizeRequiresUncompressedAllowed(t *testing.T) {
	target := TargetFromAlgorithm(Gzip)
	_, _, err := Optimize(blob.New([]byte("x")), Uncompressed, target)
	assert.Error(t, err)
}

func TestOptimizePrefersBrotliFromUncompressed(t *testing.T) {
	data := generateTestData(1_000)
	target := TargetFromSet(SetOf(Uncompressed, Gzip, Brotli))
	out, algo, err := Optimize(data, Uncompressed, target)
	require.NoError(t, err)
	assert.Equal(t, Brotli, algo)
	decompressed, err := DecompressBrotli(out)
	require.NoError(t, err)
	assert.True(t, data.Equal(decompressed))
}

func TestOptimizeKeepsCurrentWhenNotSeekingBest(t *testing.T) {
	data := generateTestData(1_000)
	gz, err := CompressGzip(data)
	require.NoError(t, err)

	target := TargetFromSet(SetOf(Uncompressed, Gzip, Brotli))
	target.SetFastCompression()
	out, algo, err := Optimize(gz, Gzip, target)
	require.NoError(t, err)
	assert.Equal(t, Gzip, algo)
	assert.True(t, gz.Equal(out))
}

func TestOptimizeRecompressesGzipToBrotliWhenSeekingBest(t *testing.T) {
	data := generateTestData(1_000)
	gz, err := CompressGzip(data)
	require.NoError(t, err)

	target := TargetFromSet(SetOf(Uncompressed, Gzip, Brotli))
	out, algo, err := Optimize(gz, Gzip, target)
	require.NoError(t, err)
	assert.Equal(t, Brotli, algo)
	decompressed, err := DecompressBrotli(out)
	require.NoError(t, err)
	assert.True(t, data.Equal(decompressed))
}

func TestOptimizeFallsBackToUncompressedWhenGzipDisallowed(t *testing.T) {
	data := generateTestData(1_000)
	gz, err := CompressGzip(data)
	require.NoError(t, err)

	target := TargetFromAlgorithm(Uncompressed)
	out, algo, err := Optimize(gz, Gzip, target)
	require.NoError(t, err)
	assert.Equal(t, Uncompressed, algo)
	assert.True(t, data.Equal(out))
}

func TestRecompressSameAlgorithmIsNoop(t *testing.T) {
	data := generateTestData(100)
	out, err := Recompress(data, Gzip, Gzip)
	require.NoError(t, err)
	assert.True(t, data.Equal(out))
}

func TestRecompressGzipToBrotli(t *testing.T) {
	data := generateTestData(1_000)
	gz, err := CompressGzip(data)
	require.NoError(t, err)
	br, err := Recompress(gz, Gzip, Brotli)
	require.NoError(t, err)
	decompressed, err := DecompressBrotli(br)
	require.NoError(t, err)
	assert.True(t, data.Equal(decompressed))
}

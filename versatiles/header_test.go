package versatiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versatiles-org/go-versatiles/blob"
	"github.com/versatiles-org/go-versatiles/compress"
)

func TestHeaderRoundTripIsExactly62Bytes(t *testing.T) {
	h := FileHeader{
		TileFormat:      compress.MVT,
		TileCompression: compress.Brotli,
		MetaRange:       blob.ByteRange{Offset: 62, Length: 100},
		BlocksRange:     blob.ByteRange{Offset: 162, Length: 200},
	}
	b, err := h.ToBlob()
	require.NoError(t, err)
	assert.Equal(t, HeaderSize, b.Len())

	got, err := HeaderFromBlob(b)
	require.NoError(t, err)
	assert.True(t, h.Equal(got))
}

func TestHeaderFromBlobRejectsBadMagic(t *testing.T) {
	raw := make([]byte, HeaderSize)
	copy(raw, "not-a-versatiles-header----!")
	_, err := HeaderFromBlob(blob.New(raw))
	assert.Error(t, err)
}

func TestHeaderFromBlobRejectsWrongLength(t *testing.T) {
	_, err := HeaderFromBlob(blob.New([]byte("short")))
	assert.Error(t, err)
}

func TestHeaderFromBlobRejectsUnknownTags(t *testing.T) {
	h := FileHeader{TileFormat: compress.PNG, TileCompression: compress.Uncompressed}
	b, err := h.ToBlob()
	require.NoError(t, err)
	raw := b.Bytes()
	raw[28] = 99
	_, err = HeaderFromBlob(blob.New(raw))
	assert.Error(t, err)
}

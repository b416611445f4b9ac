package compress

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versatiles-org/go-versatiles/blob"
)

func samplePNG(t *testing.T) blob.Blob {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 50), G: uint8(y * 50), B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return blob.New(buf.Bytes())
}

func TestTranscodeRasterSameFormatIsNoop(t *testing.T) {
	data := samplePNG(t)
	out, err := TranscodeRaster(data, PNG, PNG)
	require.NoError(t, err)
	assert.True(t, data.Equal(out))
}

func TestTranscodeRasterPNGToJPEG(t *testing.T) {
	data := samplePNG(t)
	out, err := TranscodeRaster(data, PNG, JPEG)
	require.NoError(t, err)
	assert.Greater(t, out.Len(), 0)
}

func TestTranscodeRasterRejectsVectorFormat(t *testing.T) {
	_, err := TranscodeRaster(blob.New([]byte("not a tile")), MVT, PNG)
	assert.Error(t, err)
}

func TestTranscodeRasterRejectsWebpEncode(t *testing.T) {
	data := samplePNG(t)
	_, err := TranscodeRaster(data, PNG, WEBP)
	assert.Error(t, err)
}

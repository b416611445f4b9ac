package tilejson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/versatiles-org/go-versatiles/tiles"
)

func TestNewSetsFixedFields(t *testing.T) {
	tj := New("https://example.test/tiles", ".pbf")
	assert.Equal(t, "3.0.0", tj.TileJSON)
	assert.Equal(t, "xyz", tj.Scheme)
	assert.Equal(t, []string{"https://example.test/tiles/{z}/{x}/{y}.pbf"}, tj.Tiles)
}

func TestSetBoundsFromPyramid(t *testing.T) {
	bbox, err := tiles.NewGeoBBox(8.0653, 51.3563, 12.3528, 52.2564)
	require.NoError(t, err)
	p := tiles.PyramidFromGeoBBox(2, 9, bbox)

	tj := New("https://example.test/tiles", ".pbf")
	tj.SetBoundsFromPyramid(p)

	require.NotNil(t, tj.Bounds)
	require.NotNil(t, tj.Center)
	require.NotNil(t, tj.MinZoom)
	require.NotNil(t, tj.MaxZoom)
	assert.EqualValues(t, 2, *tj.MinZoom)
	assert.EqualValues(t, 9, *tj.MaxZoom)
}

func TestMergeOverwritesScalarsAndMergesLayers(t *testing.T) {
	a := New("https://a.test", ".pbf")
	a.Name = "base"
	a.VectorLayers = VectorLayers{"water": VectorLayer{Fields: map[string]string{"class": "string"}}}

	b := New("https://b.test", ".pbf")
	b.Name = "override"
	b.Attribution = "© Example"
	b.VectorLayers = VectorLayers{"water": VectorLayer{Fields: map[string]string{"name": "string"}}}

	a.Merge(b)

	assert.Equal(t, "override", a.Name)
	assert.Equal(t, "© Example", a.Attribution)
	assert.Equal(t, map[string]string{"class": "string", "name": "string"}, a.VectorLayers["water"].Fields)
}

func TestCheckPropagatesLayerErrors(t *testing.T) {
	tj := New("https://a.test", ".pbf")
	tj.VectorLayers = VectorLayers{"bad": VectorLayer{Fields: map[string]string{"": "string"}}}
	assert.Error(t, tj.Check())
}

func TestToJSONFromJSONRoundTrip(t *testing.T) {
	tj := New("https://a.test", ".pbf")
	tj.Name = "roundtrip"
	data, err := tj.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, tj.Name, back.Name)
	assert.Equal(t, tj.TileJSON, back.TileJSON)
}

package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyPyramid(t *testing.T) {
	p := NewEmptyPyramid()
	assert.True(t, p.IsEmpty())
	_, ok := p.GetZoomMin()
	assert.False(t, ok)
	_, ok = p.GetZoomMax()
	assert.False(t, ok)
	assert.Equal(t, uint64(0), p.CountTiles())
}

func TestFullPyramid(t *testing.T) {
	p := NewFullPyramid(8)
	assert.False(t, p.IsEmpty())
	assert.True(t, p.IsFull(8))
	for lvl := 9; lvl < MaxZoomLevel; lvl++ {
		assert.True(t, p.GetLevelBBox(uint8(lvl)).IsEmpty())
	}
}

func TestPyramidIntersect(t *testing.T) {
	p1 := NewEmptyPyramid()
	p1.Intersect(NewEmptyPyramid())
	assert.True(t, p1.IsEmpty())

	p2 := NewFullPyramid(8)
	p2.Intersect(NewEmptyPyramid())
	assert.True(t, p2.IsEmpty())

	p3 := NewFullPyramid(8)
	p3.Intersect(NewFullPyramid(8))
	assert.True(t, p3.IsFull(8))
}

func TestPyramidIntersectGeoBBox(t *testing.T) {
	p := NewFullPyramid(8)
	geo, err := NewGeoBBox(8.0653, 51.3563, 12.3528, 52.2564)
	require.NoError(t, err)
	p.IntersectGeoBBox(geo)

	assert.Equal(t, mustBBox(t, 0, 0, 0, 0, 0), p.GetLevelBBox(0))
	assert.Equal(t, mustBBox(t, 1, 1, 0, 1, 0), p.GetLevelBBox(1))
	assert.Equal(t, mustBBox(t, 2, 2, 1, 2, 1), p.GetLevelBBox(2))
	assert.Equal(t, mustBBox(t, 3, 4, 2, 4, 2), p.GetLevelBBox(3))
	assert.Equal(t, mustBBox(t, 8, 133, 84, 136, 85), p.GetLevelBBox(8))
}

func TestPyramidIncludeCoord(t *testing.T) {
	p := NewEmptyPyramid()
	p.IncludeCoord(TileCoord{Level: 3, X: 1, Y: 2})
	p.IncludeCoord(TileCoord{Level: 3, X: 4, Y: 5})
	p.IncludeCoord(TileCoord{Level: 8, X: 6, Y: 7})

	assert.True(t, p.GetLevelBBox(0).IsEmpty())
	assert.Equal(t, mustBBox(t, 3, 1, 2, 4, 5), p.GetLevelBBox(3))
	assert.Equal(t, mustBBox(t, 8, 6, 7, 6, 7), p.GetLevelBBox(8))
	assert.True(t, p.GetLevelBBox(9).IsEmpty())
}

func TestPyramidIncludeBBox(t *testing.T) {
	p := NewEmptyPyramid()
	p.IncludeBBox(mustBBox(t, 4, 1, 2, 3, 4))
	p.IncludeBBox(mustBBox(t, 4, 5, 6, 7, 8))

	assert.Equal(t, mustBBox(t, 4, 1, 2, 7, 8), p.GetLevelBBox(4))
	assert.True(t, p.GetLevelBBox(3).IsEmpty())
	assert.True(t, p.GetLevelBBox(5).IsEmpty())
}

func TestPyramidIncludeBBoxPyramid(t *testing.T) {
	p1 := NewEmptyPyramid()
	p2 := NewFullPyramid(2)
	p1.IncludeBBoxPyramid(p2)

	assert.True(t, p1.GetLevelBBox(0).IsFull())
	assert.True(t, p1.GetLevelBBox(1).IsFull())
	assert.True(t, p1.GetLevelBBox(2).IsFull())
	assert.True(t, p1.GetLevelBBox(3).IsEmpty())
}

func TestPyramidContainsCoord(t *testing.T) {
	p := NewEmptyPyramid()
	p.IncludeBBox(mustBBox(t, 10, 100, 200, 300, 400))
	assert.False(t, p.ContainsCoord(TileCoord{Level: 10, X: 99, Y: 200}))
	assert.True(t, p.ContainsCoord(TileCoord{Level: 10, X: 100, Y: 200}))
	assert.True(t, p.ContainsCoord(TileCoord{Level: 10, X: 300, Y: 400}))
	assert.False(t, p.ContainsCoord(TileCoord{Level: 10, X: 301, Y: 400}))
	assert.False(t, p.ContainsCoord(TileCoord{Level: 11, X: 300, Y: 400}))
}

func TestPyramidOverlapsBBox(t *testing.T) {
	p := NewEmptyPyramid()
	p.IncludeBBox(mustBBox(t, 10, 100, 200, 300, 400))
	assert.False(t, p.OverlapsBBox(mustBBox(t, 10, 0, 0, 99, 200)))
	assert.True(t, p.OverlapsBBox(mustBBox(t, 10, 0, 0, 100, 200)))
	assert.True(t, p.OverlapsBBox(mustBBox(t, 10, 300, 400, 500, 600)))
	assert.False(t, p.OverlapsBBox(mustBBox(t, 11, 300, 400, 500, 600)))
}

func TestPyramidZoomMinMax(t *testing.T) {
	p := NewFullPyramid(5)
	p.SetZoomMin(2)
	min, ok := p.GetZoomMin()
	require.True(t, ok)
	assert.EqualValues(t, 2, min)

	p.SetZoomMax(4)
	max, ok := p.GetZoomMax()
	require.True(t, ok)
	assert.EqualValues(t, 4, max)
}

func TestPyramidGetGoodZoom(t *testing.T) {
	p := NewFullPyramid(5)
	zoom, ok := p.GetGoodZoom()
	require.True(t, ok)
	assert.LessOrEqual(t, zoom, uint8(5))
}

func TestPyramidGeoCenter(t *testing.T) {
	p := NewFullPyramid(2)
	bbox, ok := p.GetGeoBBox()
	require.True(t, ok)
	assert.InDelta(t, -180, bbox.West, 1)

	center, ok := p.GetGeoCenter()
	require.True(t, ok)
	assert.InDelta(t, 0, center.Lon, 1)
}

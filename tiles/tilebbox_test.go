package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMinAndSize(t *testing.T) {
	b, err := FromMinWH(2, 1, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), b.XMin())
	assert.Equal(t, uint32(1), b.YMin())
	assert.Equal(t, uint32(2), b.XMax())
	assert.Equal(t, uint32(2), b.YMax())
}

func TestFromMinAndMax(t *testing.T) {
	b, err := FromMinMax(3, 1, 2, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), b.Width())
	assert.Equal(t, uint32(4), b.Height())

	_, err = FromMinMax(3, 5, 2, 4, 5)
	assert.Error(t, err)
}

func TestNewFullAndEmpty(t *testing.T) {
	full, err := NewFull(3)
	require.NoError(t, err)
	assert.True(t, full.IsFull())
	assert.False(t, full.IsEmpty())

	empty, err := NewEmptyBBox(3)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, uint64(0), empty.CountTiles())
}

func TestFromGeoKnownValues(t *testing.T) {
	geo, err := NewGeoBBox(8.0653, 51.3563, 12.3528, 52.2564)
	require.NoError(t, err)
	b, err := FromGeo(9, geo)
	require.NoError(t, err)
	want, err := FromMinMax(9, 267, 168, 273, 170)
	require.NoError(t, err)
	assert.Equal(t, want, b)
}

func TestContains(t *testing.T) {
	b, err := FromMinMax(4, 2, 2, 5, 5)
	require.NoError(t, err)
	assert.True(t, b.Contains(TileCoord{Level: 4, X: 2, Y: 2}))
	assert.True(t, b.Contains(TileCoord{Level: 4, X: 5, Y: 5}))
	assert.False(t, b.Contains(TileCoord{Level: 4, X: 6, Y: 5}))
	assert.False(t, b.Contains(TileCoord{Level: 3, X: 2, Y: 2}))
}

func TestInclude(t *testing.T) {
	b, err := NewEmptyBBox(4)
	require.NoError(t, err)
	b.Include(3, 3)
	assert.Equal(t, uint32(3), b.XMin())
	assert.Equal(t, uint32(3), b.XMax())

	b.Include(1, 5)
	assert.Equal(t, uint32(1), b.XMin())
	assert.Equal(t, uint32(3), b.XMax())
	assert.Equal(t, uint32(3), b.YMin())
	assert.Equal(t, uint32(5), b.YMax())
}

func TestIncludeCoordLevelMismatch(t *testing.T) {
	b, err := FromMinMax(4, 0, 0, 1, 1)
	require.NoError(t, err)
	err = b.IncludeCoord(TileCoord{Level: 5, X: 0, Y: 0})
	assert.Error(t, err)
}

func TestExpandBy(t *testing.T) {
	b, err := FromMinMax(4, 5, 5, 6, 6)
	require.NoError(t, err)
	b.ExpandBy(1, 1, 1, 1)
	assert.Equal(t, uint32(4), b.XMin())
	assert.Equal(t, uint32(4), b.YMin())
	assert.Equal(t, uint32(7), b.XMax())
	assert.Equal(t, uint32(7), b.YMax())

	empty, err := NewEmptyBBox(4)
	require.NoError(t, err)
	empty.ExpandBy(1, 1, 1, 1)
	assert.True(t, empty.IsEmpty())
}

func TestIncludeBBox(t *testing.T) {
	a, err := FromMinMax(4, 1, 2, 3, 4)
	require.NoError(t, err)
	b, err := FromMinMax(4, 5, 6, 7, 8)
	require.NoError(t, err)
	require.NoError(t, a.IncludeBBox(b))
	assert.Equal(t, uint32(1), a.XMin())
	assert.Equal(t, uint32(2), a.YMin())
	assert.Equal(t, uint32(7), a.XMax())
	assert.Equal(t, uint32(8), a.YMax())
}

func TestIntersectWith(t *testing.T) {
	a, err := FromMinMax(4, 0, 0, 10, 10)
	require.NoError(t, err)
	b, err := FromMinMax(4, 5, 5, 15, 15)
	require.NoError(t, err)
	require.NoError(t, a.IntersectWith(b))
	assert.Equal(t, uint32(5), a.XMin())
	assert.Equal(t, uint32(5), a.YMin())
	assert.Equal(t, uint32(10), a.XMax())
	assert.Equal(t, uint32(10), a.YMax())

	c, err := FromMinMax(4, 0, 0, 1, 1)
	require.NoError(t, err)
	d, err := FromMinMax(4, 5, 5, 6, 6)
	require.NoError(t, err)
	require.NoError(t, c.IntersectWith(d))
	assert.True(t, c.IsEmpty())
}

func TestOverlapsBBox(t *testing.T) {
	a, err := FromMinMax(10, 100, 200, 300, 400)
	require.NoError(t, err)
	ok, err := a.OverlapsBBox(mustBBox(t, 10, 0, 0, 100, 200))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.OverlapsBBox(mustBBox(t, 10, 0, 0, 99, 200))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.OverlapsBBox(mustBBox(t, 11, 300, 400, 500, 600))
	assert.Error(t, err)
}

func mustBBox(t *testing.T, level uint8, xMin, yMin, xMax, yMax uint32) TileBBox {
	t.Helper()
	b, err := FromMinMax(level, xMin, yMin, xMax, yMax)
	require.NoError(t, err)
	return b
}

func TestShiftByClampsAtZero(t *testing.T) {
	b, err := FromMinMax(4, 2, 2, 3, 3)
	require.NoError(t, err)
	b.ShiftBy(-5, -5)
	assert.Equal(t, uint32(0), b.XMin())
	assert.Equal(t, uint32(0), b.YMin())
}

func TestScaleDownRequiresPowerOfTwo(t *testing.T) {
	b, err := FromMinMax(4, 0, 0, 15, 15)
	require.NoError(t, err)
	assert.Panics(t, func() { b.ScaleDown(3) })

	b.ScaleDown(4)
	assert.Equal(t, uint32(0), b.XMin())
	assert.Equal(t, uint32(3), b.XMax())
}

func TestScaleUpPreservesInclusiveMax(t *testing.T) {
	b, err := FromMinMax(2, 1, 1, 2, 2)
	require.NoError(t, err)
	b.ScaleUp(2)
	assert.Equal(t, uint32(2), b.XMin())
	assert.Equal(t, uint32(5), b.XMax())
}

func TestLevelUpDown(t *testing.T) {
	b, err := FromMinMax(4, 2, 2, 3, 3)
	require.NoError(t, err)
	up := b.LeveledUp()
	assert.EqualValues(t, 5, up.Level)
	down := up.LeveledDown()
	assert.Equal(t, b, down)
}

func TestRoundAlignsToBlockSize(t *testing.T) {
	b, err := FromMinMax(8, 5, 5, 10, 10)
	require.NoError(t, err)
	b.Round(4)
	assert.Equal(t, uint32(4), b.XMin())
	assert.Equal(t, uint32(11), b.XMax())
}

func TestFlipY(t *testing.T) {
	b, err := FromMinMax(4, 0, 0, 0, 0)
	require.NoError(t, err)
	b.FlipY()
	assert.Equal(t, uint32(15), b.YMin())
	assert.Equal(t, uint32(15), b.YMax())
}

func TestIterCoordsRowMajor(t *testing.T) {
	b, err := FromMinMax(4, 0, 0, 1, 1)
	require.NoError(t, err)
	coords := b.Coords()
	require.Len(t, coords, 4)
	assert.Equal(t, TileCoord{Level: 4, X: 0, Y: 0}, coords[0])
	assert.Equal(t, TileCoord{Level: 4, X: 1, Y: 0}, coords[1])
	assert.Equal(t, TileCoord{Level: 4, X: 0, Y: 1}, coords[2])
	assert.Equal(t, TileCoord{Level: 4, X: 1, Y: 1}, coords[3])
}

func TestIndexOfAndCoordAtIndex(t *testing.T) {
	b, err := FromMinMax(4, 2, 2, 5, 5)
	require.NoError(t, err)
	idx, err := b.IndexOf(TileCoord{Level: 4, X: 3, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), idx)

	coord, err := b.CoordAtIndex(5)
	require.NoError(t, err)
	assert.Equal(t, TileCoord{Level: 4, X: 3, Y: 3}, coord)
}

func TestGetQuadrant(t *testing.T) {
	b, err := FromMinMax(4, 0, 0, 3, 3)
	require.NoError(t, err)
	q0, err := b.GetQuadrant(0)
	require.NoError(t, err)
	assert.Equal(t, mustBBox(t, 4, 0, 0, 1, 1), q0)

	q3, err := b.GetQuadrant(3)
	require.NoError(t, err)
	assert.Equal(t, mustBBox(t, 4, 2, 2, 3, 3), q3)
}

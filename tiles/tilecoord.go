// Package tiles implements the tile coordinate and bounding-box algebra
// shared by every codec and the conversion pipeline: a single tile address
// (TileCoord), a rectangular run of tiles at one zoom level (TileBBox), a
// per-level stack of those rectangles (TileBBoxPyramid), and the
// geographic bounding box (GeoBBox) used to carve pyramids out of lon/lat
// extents.
package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxLevel is the highest zoom level representable: coordinates are stored
// as u32 but the container format caps levels at 31 so that 1<<level never
// overflows a u32 max-count computation.
const MaxLevel = 31

// TileCoord addresses a single tile by zoom level and XYZ grid position.
// Y grows downward (north to south), matching the web/XYZ tiling scheme.
type TileCoord struct {
	Level uint8
	X, Y  uint32
}

// NewTileCoord validates level and, against it, x and y: level must be
// <= MaxLevel, and x and y must each be < 2^level.
func NewTileCoord(level uint8, x, y uint32) (TileCoord, error) {
	if level > MaxLevel {
		return TileCoord{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	max := uint32(1)<<level - 1
	if x > max {
		return TileCoord{}, fmt.Errorf("x (%d) must be < 2^%d", x, level)
	}
	if y > max {
		return TileCoord{}, fmt.Errorf("y (%d) must be < 2^%d", y, level)
	}
	return TileCoord{Level: level, X: x, Y: y}, nil
}

// CoordFromGeo locates the tile that contains the given longitude/latitude
// at the given zoom level.
func CoordFromGeo(lon, lat float64, level uint8) (TileCoord, error) {
	if level > MaxLevel {
		return TileCoord{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	t := maptile.At(orb.Point{lon, lat}, maptile.Zoom(level))
	return TileCoord{Level: level, X: t.X, Y: t.Y}, nil
}

// AsGeo returns the longitude/latitude of the tile's northwest corner.
func (c TileCoord) AsGeo() (lon, lat float64) {
	bound := maptile.New(c.X, c.Y, maptile.Zoom(c.Level)).Bound()
	return bound.Left(), bound.Top()
}

// MaxCoord returns the largest valid x or y coordinate at this level
// (2^level - 1).
func (c TileCoord) MaxCoord() uint32 {
	return (uint32(1) << c.Level) - 1
}

func (c TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Level, c.X, c.Y)
}

// Equal reports whether two coordinates address the same tile.
func (c TileCoord) Equal(o TileCoord) bool {
	return c.Level == o.Level && c.X == o.X && c.Y == o.Y
}

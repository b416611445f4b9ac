package tiles

import "fmt"

// TileBBox is a rectangular run of tiles at a single zoom level, given as
// an inclusive [x_min, x_max] x [y_min, y_max] range. A box with width or
// height zero is empty, regardless of its min/max fields.
type TileBBox struct {
	Level uint8
	xMin  uint32
	yMin  uint32
	width uint32
	height uint32
}

func maxCount(level uint8) uint32 {
	return uint32(1) << level
}

// FromMinWH builds a box from its minimum corner and dimensions.
func FromMinWH(level uint8, xMin, yMin, width, height uint32) (TileBBox, error) {
	if level > MaxLevel {
		return TileBBox{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	max := maxCount(level) - 1
	if xMin > max {
		return TileBBox{}, fmt.Errorf("x_min (%d) must be <= max (%d)", xMin, max)
	}
	if yMin > max {
		return TileBBox{}, fmt.Errorf("y_min (%d) must be <= max (%d)", yMin, max)
	}
	xMax := xMin + width - 1
	if xMax > max {
		return TileBBox{}, fmt.Errorf("x_max (%d) must be <= max (%d)", xMax, max)
	}
	yMax := yMin + height - 1
	if yMax > max {
		return TileBBox{}, fmt.Errorf("y_max (%d) must be <= max (%d)", yMax, max)
	}
	return TileBBox{Level: level, xMin: xMin, yMin: yMin, width: width, height: height}, nil
}

// FromMinMax builds a box from its inclusive min and max corners.
func FromMinMax(level uint8, xMin, yMin, xMax, yMax uint32) (TileBBox, error) {
	if level > MaxLevel {
		return TileBBox{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	max := maxCount(level) - 1
	if xMin > xMax {
		return TileBBox{}, fmt.Errorf("x_min (%d) must be <= x_max (%d)", xMin, xMax)
	}
	if yMin > yMax {
		return TileBBox{}, fmt.Errorf("y_min (%d) must be <= y_max (%d)", yMin, yMax)
	}
	if xMax > max {
		return TileBBox{}, fmt.Errorf("x_max (%d) must be <= max (%d)", xMax, max)
	}
	if yMax > max {
		return TileBBox{}, fmt.Errorf("y_max (%d) must be <= max (%d)", yMax, max)
	}
	return TileBBox{Level: level, xMin: xMin, yMin: yMin, width: xMax - xMin + 1, height: yMax - yMin + 1}, nil
}

// NewFull returns a box covering the entire tile grid at the given level.
func NewFull(level uint8) (TileBBox, error) {
	if level > MaxLevel {
		return TileBBox{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	max := maxCount(level)
	return FromMinWH(level, 0, 0, max, max)
}

// NewEmptyBBox returns an empty box at the given level.
func NewEmptyBBox(level uint8) (TileBBox, error) {
	if level > MaxLevel {
		return TileBBox{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	return TileBBox{Level: level}, nil
}

// FromGeo locates the smallest box at level that covers bbox. A tiny
// epsilon is nudged inward from each edge so that a boundary exactly on a
// tile edge doesn't pull in the neighboring tile.
func FromGeo(level uint8, bbox GeoBBox) (TileBBox, error) {
	if level > MaxLevel {
		return TileBBox{}, fmt.Errorf("level (%d) must be <= %d", level, MaxLevel)
	}
	if err := bbox.Check(); err != nil {
		return TileBBox{}, err
	}
	pMin, err := CoordFromGeo(bbox.West+1e-10, bbox.North-1e-10, level)
	if err != nil {
		return TileBBox{}, err
	}
	pMax, err := CoordFromGeo(bbox.East-1e-10, bbox.South+1e-10, level)
	if err != nil {
		return TileBBox{}, err
	}
	return FromMinMax(level, pMin.X, pMin.Y, pMax.X, pMax.Y)
}

// IsEmpty reports whether the box contains no tiles.
func (b TileBBox) IsEmpty() bool {
	return b.width == 0 || b.height == 0
}

// Width returns the box's width in tiles, 0 if empty.
func (b TileBBox) Width() uint32 { return b.width }

// Height returns the box's height in tiles, 0 if empty.
func (b TileBBox) Height() uint32 { return b.height }

// XMin returns the minimum x-coordinate.
func (b TileBBox) XMin() uint32 { return b.xMin }

// YMin returns the minimum y-coordinate.
func (b TileBBox) YMin() uint32 { return b.yMin }

// XMax returns the maximum x-coordinate.
func (b TileBBox) XMax() uint32 {
	if b.xMin+b.width == 0 {
		return 0
	}
	return b.xMin + b.width - 1
}

// YMax returns the maximum y-coordinate.
func (b TileBBox) YMax() uint32 {
	if b.yMin+b.height == 0 {
		return 0
	}
	return b.yMin + b.height - 1
}

func (b *TileBBox) setWidth(width uint32) {
	max := maxCount(b.Level) - b.xMin
	if width < max {
		b.width = width
	} else {
		b.width = max
	}
}

func (b *TileBBox) setHeight(height uint32) {
	max := maxCount(b.Level) - b.yMin
	if height < max {
		b.height = height
	} else {
		b.height = max
	}
}

func (b *TileBBox) setXMin(xMin uint32) {
	xMax := b.XMax()
	b.xMin = xMin
	b.setXMax(xMax)
}

func (b *TileBBox) setYMin(yMin uint32) {
	yMax := b.YMax()
	b.yMin = yMin
	b.setYMax(yMax)
}

func (b *TileBBox) setXMax(xMax uint32) {
	if xMax >= b.xMin {
		max := maxCount(b.Level) - 1
		top := xMax
		if top > max {
			top = max
		}
		b.width = top - b.xMin + 1
	} else {
		b.width = 0
	}
}

func (b *TileBBox) setYMax(yMax uint32) {
	if yMax >= b.yMin {
		max := maxCount(b.Level) - 1
		top := yMax
		if top > max {
			top = max
		}
		b.height = top - b.yMin + 1
	} else {
		b.height = 0
	}
}

// CountTiles returns the number of tiles covered by the box.
func (b TileBBox) CountTiles() uint64 {
	return uint64(b.width) * uint64(b.height)
}

// IsFull reports whether the box covers the entire grid at its level.
func (b TileBBox) IsFull() bool {
	max := maxCount(b.Level)
	return b.xMin == 0 && b.yMin == 0 && b.width == max && b.height == max
}

// Contains reports whether coord lies within the box and matches its level.
func (b TileBBox) Contains(coord TileCoord) bool {
	return coord.Level == b.Level &&
		coord.X >= b.xMin && coord.X < b.xMin+b.width &&
		coord.Y >= b.yMin && coord.Y < b.yMin+b.height
}

// SetEmpty clears the box to empty, in place.
func (b *TileBBox) SetEmpty() {
	b.width = 0
	b.height = 0
}

// SetFull sets the box to cover the entire grid at its level, in place.
func (b *TileBBox) SetFull() {
	max := maxCount(b.Level)
	b.xMin = 0
	b.yMin = 0
	b.width = max
	b.height = max
}

// Include expands the box to cover (x, y), initializing it if currently
// empty.
func (b *TileBBox) Include(x, y uint32) {
	if b.IsEmpty() {
		b.xMin = x
		b.yMin = y
		b.width = 1
		b.height = 1
		return
	}
	if x < b.xMin {
		b.setXMin(x)
	} else if x > b.XMax() {
		b.setXMax(x)
	}
	if y < b.yMin {
		b.setYMin(y)
	} else if y > b.YMax() {
		b.setYMax(y)
	}
}

// IncludeCoord expands the box to cover coord. coord must share the box's
// level.
func (b *TileBBox) IncludeCoord(coord TileCoord) error {
	if coord.Level != b.Level {
		return fmt.Errorf("cannot include TileCoord with z=%d into TileBBox at z=%d", coord.Level, b.Level)
	}
	b.Include(coord.X, coord.Y)
	return nil
}

// ExpandBy grows the box outward by the given margins on each side,
// saturating at the grid edges. A no-op on an empty box.
func (b *TileBBox) ExpandBy(xMin, yMin, xMax, yMax uint32) {
	if b.IsEmpty() {
		return
	}
	newXMax := saturatingAdd(b.XMax(), xMax)
	newYMax := saturatingAdd(b.YMax(), yMax)
	b.xMin = saturatingSub(b.xMin, xMin)
	b.yMin = saturatingSub(b.yMin, yMin)
	b.setXMax(newXMax)
	b.setYMax(newYMax)
}

func saturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(sum)
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

// ContainsBBox reports whether b fully contains other. Both must share a
// level.
func (b TileBBox) ContainsBBox(other TileBBox) (bool, error) {
	if b.Level != other.Level {
		return false, fmt.Errorf("cannot compare TileBBox with level=%d with TileBBox with level=%d", other.Level, b.Level)
	}
	if b.IsEmpty() || other.IsEmpty() {
		return false, nil
	}
	return b.xMin <= other.xMin && b.XMax() >= other.XMax() &&
		b.yMin <= other.yMin && b.YMax() >= other.YMax(), nil
}

// IncludeBBox merges other's extent into b, in place. Both must share a
// level.
func (b *TileBBox) IncludeBBox(other TileBBox) error {
	if b.Level != other.Level {
		return fmt.Errorf("cannot include TileBBox with level=%d into TileBBox with level=%d", other.Level, b.Level)
	}
	if other.IsEmpty() {
		return nil
	}
	if b.IsEmpty() {
		*b = other
		return nil
	}
	xMax := maxU32(b.XMax(), other.XMax())
	yMax := maxU32(b.YMax(), other.YMax())
	b.xMin = minU32(b.xMin, other.xMin)
	b.yMin = minU32(b.yMin, other.yMin)
	b.setXMax(xMax)
	b.setYMax(yMax)
	return nil
}

// IntersectWith narrows b to the overlap with other, in place. Both must
// share a level.
func (b *TileBBox) IntersectWith(other TileBBox) error {
	if b.Level != other.Level {
		return fmt.Errorf("cannot intersect TileBBox at zoom level %d with TileBBox at zoom level %d", other.Level, b.Level)
	}
	if b.IsEmpty() || other.IsEmpty() {
		b.SetEmpty()
		return nil
	}
	xMax := minU32(b.XMax(), other.XMax())
	yMax := minU32(b.YMax(), other.YMax())
	b.xMin = maxU32(b.xMin, other.xMin)
	b.yMin = maxU32(b.yMin, other.yMin)
	b.setXMax(xMax)
	b.setYMax(yMax)
	return nil
}

// IntersectWithPyramid narrows b to its overlap with pyramid's box at b's
// own level.
func (b *TileBBox) IntersectWithPyramid(pyramid *TileBBoxPyramid) {
	_ = b.IntersectWith(pyramid.GetLevelBBox(b.Level))
}

// OverlapsBBox reports whether b and other's tile ranges intersect. Both
// must share a level.
func (b TileBBox) OverlapsBBox(other TileBBox) (bool, error) {
	if b.Level != other.Level {
		return false, fmt.Errorf("cannot compare TileBBox with level=%d with TileBBox with level=%d", other.Level, b.Level)
	}
	if b.IsEmpty() || other.IsEmpty() {
		return false, nil
	}
	return b.xMin <= other.XMax() && b.XMax() >= other.xMin &&
		b.yMin <= other.YMax() && b.YMax() >= other.yMin, nil
}

// ToGeoBBox projects the box back to a geographic bounding box.
func (b TileBBox) ToGeoBBox() GeoBBox {
	minCoord := TileCoord{Level: b.Level, X: b.xMin, Y: b.YMax() + 1}
	maxCoord := TileCoord{Level: b.Level, X: b.XMax() + 1, Y: b.yMin}
	west, south := minCoord.AsGeo()
	east, north := maxCoord.AsGeo()
	return GeoBBox{West: west, South: south, East: east, North: north}
}

// ShiftBy moves the box by (dx, dy), clamping the resulting minimum
// corner at 0.
func (b *TileBBox) ShiftBy(dx, dy int64) {
	newX := int64(b.xMin) + dx
	if newX < 0 {
		newX = 0
	}
	newY := int64(b.yMin) + dy
	if newY < 0 {
		newY = 0
	}
	b.ShiftTo(uint32(newX), uint32(newY))
}

// ShiftTo relocates the box's minimum corner to (xMin, yMin), clamping its
// maximum corner to the grid edge if it would overflow.
func (b *TileBBox) ShiftTo(xMin, yMin uint32) {
	b.xMin = xMin
	b.yMin = yMin
	max := maxCount(b.Level) - 1
	if b.XMax() > max {
		b.setXMax(max)
	}
	if b.YMax() > max {
		b.setYMax(max)
	}
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// ScaleDown divides the box's coordinates by scale, which must be a power
// of two.
func (b *TileBBox) ScaleDown(scale uint32) {
	if scale == 0 {
		panic("scale must be greater than 0")
	}
	if !isPowerOfTwo(scale) {
		panic("scale must be a power of two")
	}
	xMax := b.XMax() / scale
	yMax := b.YMax() / scale
	b.xMin /= scale
	b.yMin /= scale
	b.setXMax(xMax)
	b.setYMax(yMax)
}

// ScaledDown returns a copy of b scaled down by scale.
func (b TileBBox) ScaledDown(scale uint32) TileBBox {
	c := b
	c.ScaleDown(scale)
	return c
}

// ScaleUp multiplies the box's coordinates by scale, in place.
func (b *TileBBox) ScaleUp(scale uint32) {
	if scale == 0 {
		panic("scale must be greater than 0")
	}
	xMax := (b.XMax()+1)*scale - 1
	yMax := (b.YMax()+1)*scale - 1
	b.xMin *= scale
	b.yMin *= scale
	b.setXMax(xMax)
	b.setYMax(yMax)
}

// ScaledUp returns a copy of b scaled up by scale.
func (b TileBBox) ScaledUp(scale uint32) TileBBox {
	c := b
	c.ScaleUp(scale)
	return c
}

// LevelUp moves the box one zoom level deeper (doubling its extent).
func (b *TileBBox) LevelUp() {
	if b.Level >= 31 {
		panic("level must be less than 31")
	}
	b.Level++
	b.ScaleUp(2)
}

// LevelDown moves the box one zoom level shallower (halving its extent).
func (b *TileBBox) LevelDown() {
	if b.Level <= 0 {
		panic("level must be greater than 0")
	}
	b.Level--
	b.ScaleDown(2)
}

// LeveledUp returns a copy of b one level deeper.
func (b TileBBox) LeveledUp() TileBBox {
	c := b
	c.LevelUp()
	return c
}

// LeveledDown returns a copy of b one level shallower.
func (b TileBBox) LeveledDown() TileBBox {
	c := b
	c.LevelDown()
	return c
}

// AtLevel returns a copy of b rescaled to the given level.
func (b TileBBox) AtLevel(level uint8) TileBBox {
	if level > 31 {
		panic(fmt.Sprintf("level (%d) must be <= 31", level))
	}
	var out TileBBox
	if level > b.Level {
		scale := uint32(1) << (level - b.Level)
		out = b.ScaledUp(scale)
	} else {
		scale := uint32(1) << (b.Level - level)
		out = b.ScaledDown(scale)
	}
	out.Level = level
	return out
}

// MinCorner returns the box's minimum-corner coordinate.
func (b TileBBox) MinCorner() TileCoord {
	return TileCoord{Level: b.Level, X: b.xMin, Y: b.yMin}
}

// MaxCorner returns the box's maximum-corner coordinate.
func (b TileBBox) MaxCorner() TileCoord {
	return TileCoord{Level: b.Level, X: b.XMax(), Y: b.YMax()}
}

// Dimensions returns (width, height) in tiles.
func (b TileBBox) Dimensions() (uint32, uint32) {
	return b.width, b.height
}

// GetQuadrant splits b into four equal quadrants and returns the one at
// index 0 (top-left), 1 (top-right), 2 (bottom-left) or 3 (bottom-right).
// b's width and height must both be even.
func (b TileBBox) GetQuadrant(quadrant uint8) (TileBBox, error) {
	if b.IsEmpty() {
		return b, nil
	}
	if quadrant > 3 {
		return TileBBox{}, fmt.Errorf("quadrant must be in 0..3")
	}
	if b.width%2 != 0 {
		return TileBBox{}, fmt.Errorf("cannot get quadrant of a TileBBox with odd width")
	}
	if b.height%2 != 0 {
		return TileBBox{}, fmt.Errorf("cannot get quadrant of a TileBBox with odd height")
	}
	x, y := b.xMin, b.yMin
	w, h := b.width/2, b.height/2
	switch quadrant {
	case 0:
		return FromMinWH(b.Level, x, y, w, h)
	case 1:
		return FromMinWH(b.Level, x+w, y, w, h)
	case 2:
		return FromMinWH(b.Level, x, y+h, w, h)
	default:
		return FromMinWH(b.Level, x+w, y+h, w, h)
	}
}

// IterCoords calls fn for every tile coordinate in the box, in row-major
// order.
func (b TileBBox) IterCoords(fn func(TileCoord)) {
	if b.IsEmpty() {
		return
	}
	for y := b.yMin; y <= b.YMax(); y++ {
		for x := b.xMin; x <= b.XMax(); x++ {
			fn(TileCoord{Level: b.Level, X: x, Y: y})
		}
	}
}

// Coords collects IterCoords' output into a slice.
func (b TileBBox) Coords() []TileCoord {
	out := make([]TileCoord, 0, b.CountTiles())
	b.IterCoords(func(c TileCoord) { out = append(out, c) })
	return out
}

// IterBBoxGrid splits b into a grid of sub-boxes at most size x size
// tiles each, calling fn for every non-empty cell.
func (b TileBBox) IterBBoxGrid(size uint32, fn func(TileBBox)) {
	if size == 0 {
		panic("size must be greater than 0")
	}
	level := b.Level
	max := maxCount(level) - 1
	meta := b
	meta.ScaleDown(size)
	meta.IterCoords(func(coord TileCoord) {
		x := coord.X * size
		y := coord.Y * size
		xMax := x + size - 1
		if xMax > max {
			xMax = max
		}
		yMax := y + size - 1
		if yMax > max {
			yMax = max
		}
		cell, err := FromMinMax(level, x, y, xMax, yMax)
		if err != nil {
			return
		}
		_ = cell.IntersectWith(b)
		if !cell.IsEmpty() {
			fn(cell)
		}
	})
}

// BBoxGrid collects IterBBoxGrid's output into a slice.
func (b TileBBox) BBoxGrid(size uint32) []TileBBox {
	var out []TileBBox
	b.IterBBoxGrid(size, func(cell TileBBox) { out = append(out, cell) })
	return out
}

// IndexOf returns coord's 0-based row-major index within b.
func (b TileBBox) IndexOf(coord TileCoord) (uint64, error) {
	if !b.Contains(coord) {
		return 0, fmt.Errorf("coordinate %s is not within the bounding box %s", coord, b)
	}
	x := uint64(coord.X - b.xMin)
	y := uint64(coord.Y - b.yMin)
	return y*uint64(b.width) + x, nil
}

// CoordAtIndex returns the tile at the given 0-based row-major index.
func (b TileBBox) CoordAtIndex(index uint64) (TileCoord, error) {
	if index >= b.CountTiles() {
		return TileCoord{}, fmt.Errorf("index %d out of bounds", index)
	}
	width := uint64(b.width)
	x := uint32(index%width) + b.xMin
	y := uint32(index/width) + b.yMin
	return NewTileCoord(b.Level, x, y)
}

// Round expands b outward so its edges align to blockSize multiples.
func (b *TileBBox) Round(blockSize uint32) {
	xMax := divCeil(b.XMax()+1, blockSize)*blockSize - 1
	yMax := divCeil(b.YMax()+1, blockSize)*blockSize - 1
	b.xMin = (b.xMin / blockSize) * blockSize
	b.yMin = (b.yMin / blockSize) * blockSize
	b.setXMax(xMax)
	b.setYMax(yMax)
}

// Rounded returns a copy of b rounded to blockSize.
func (b TileBBox) Rounded(blockSize uint32) TileBBox {
	c := b
	c.Round(blockSize)
	return c
}

func divCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// MaxCoordAtLevel returns the largest valid coordinate at b's level.
func (b TileBBox) MaxCoordAtLevel() uint32 {
	return maxCount(b.Level) - 1
}

func (b TileBBox) String() string {
	return fmt.Sprintf("%d:[%d,%d,%d,%d]", b.Level, b.xMin, b.yMin, b.XMax(), b.YMax())
}

// FlipY mirrors the box vertically within its level's grid.
func (b *TileBBox) FlipY() {
	if !b.IsEmpty() {
		b.ShiftTo(b.xMin, b.MaxCoordAtLevel()-b.YMax())
	}
}

// SwapXY exchanges the box's x and y axes, in place.
func (b *TileBBox) SwapXY() {
	if !b.IsEmpty() {
		b.xMin, b.yMin = b.yMin, b.xMin
		b.width, b.height = b.height, b.width
	}
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

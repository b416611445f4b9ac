package tiles

// MaxZoomLevel is the number of levels held by a TileBBoxPyramid (0..31).
const MaxZoomLevel = 32

// TileBBoxPyramid stacks one TileBBox per zoom level 0..31, tracking which
// region of the tile grid is of interest at each level independently.
// Levels outside the area of interest are left empty.
type TileBBoxPyramid struct {
	levelBBox [MaxZoomLevel]TileBBox
}

// NewFullPyramid returns a pyramid with full coverage from level 0 through
// maxZoomLevel; higher levels are empty.
func NewFullPyramid(maxZoomLevel uint8) TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := 0; z < MaxZoomLevel; z++ {
		if z <= int(maxZoomLevel) {
			p.levelBBox[z], _ = NewFull(uint8(z))
		} else {
			p.levelBBox[z], _ = NewEmptyBBox(uint8(z))
		}
	}
	return p
}

// NewEmptyPyramid returns a pyramid with every level empty.
func NewEmptyPyramid() TileBBoxPyramid {
	var p TileBBoxPyramid
	for z := 0; z < MaxZoomLevel; z++ {
		p.levelBBox[z], _ = NewEmptyBBox(uint8(z))
	}
	return p
}

// PyramidFromGeoBBox builds a pyramid by intersecting bbox with every
// level in [zoomMin, zoomMax]; levels outside that range are left empty.
func PyramidFromGeoBBox(zoomMin, zoomMax uint8, bbox GeoBBox) TileBBoxPyramid {
	p := NewEmptyPyramid()
	for z := int(zoomMin); z <= int(zoomMax); z++ {
		b, err := FromGeo(uint8(z), bbox)
		if err == nil {
			p.SetLevelBBox(b)
		}
	}
	return p
}

// IntersectGeoBBox narrows every level of the pyramid to its overlap with
// geoBBox, in place.
func (p *TileBBoxPyramid) IntersectGeoBBox(geoBBox GeoBBox) {
	for z := 0; z < MaxZoomLevel; z++ {
		b, err := FromGeo(uint8(z), geoBBox)
		if err != nil {
			continue
		}
		_ = p.levelBBox[z].IntersectWith(b)
	}
}

// AddBorder expands every level's box outward by the given margins.
func (p *TileBBoxPyramid) AddBorder(xMin, yMin, xMax, yMax uint32) {
	for z := range p.levelBBox {
		p.levelBBox[z].ExpandBy(xMin, yMin, xMax, yMax)
	}
}

// Intersect narrows this pyramid to its overlap with other, level by
// level, in place.
func (p *TileBBoxPyramid) Intersect(other TileBBoxPyramid) {
	for z := range p.levelBBox {
		_ = p.levelBBox[z].IntersectWith(other.levelBBox[z])
	}
}

// GetLevelBBox returns the box at the given level.
func (p *TileBBoxPyramid) GetLevelBBox(level uint8) TileBBox {
	return p.levelBBox[level]
}

// SetLevelBBox replaces the box at bbox's own level.
func (p *TileBBoxPyramid) SetLevelBBox(bbox TileBBox) {
	p.levelBBox[bbox.Level] = bbox
}

// IncludeCoord expands the box at coord's level to cover coord.
func (p *TileBBoxPyramid) IncludeCoord(coord TileCoord) {
	p.levelBBox[coord.Level].Include(coord.X, coord.Y)
}

// IncludeBBox merges bbox into the pyramid's box at bbox's own level.
func (p *TileBBoxPyramid) IncludeBBox(bbox TileBBox) {
	_ = p.levelBBox[bbox.Level].IncludeBBox(bbox)
}

// IncludeBBoxPyramid merges every non-empty level of other into p.
func (p *TileBBoxPyramid) IncludeBBoxPyramid(other TileBBoxPyramid) {
	for _, b := range other.IterLevels() {
		_ = p.levelBBox[b.Level].IncludeBBox(b)
	}
}

// ContainsCoord reports whether the pyramid covers coord at its level.
func (p *TileBBoxPyramid) ContainsCoord(coord TileCoord) bool {
	if int(coord.Level) >= MaxZoomLevel {
		return false
	}
	return p.levelBBox[coord.Level].Contains(coord)
}

// OverlapsBBox reports whether the pyramid overlaps bbox at bbox's level.
func (p *TileBBoxPyramid) OverlapsBBox(bbox TileBBox) bool {
	if int(bbox.Level) >= MaxZoomLevel {
		return false
	}
	ok, err := p.levelBBox[bbox.Level].OverlapsBBox(bbox)
	if err != nil {
		return false
	}
	return ok
}

// IterLevels returns every non-empty box in the pyramid, ordered by level.
func (p *TileBBoxPyramid) IterLevels() []TileBBox {
	var out []TileBBox
	for _, b := range p.levelBBox {
		if !b.IsEmpty() {
			out = append(out, b)
		}
	}
	return out
}

// GetZoomMin returns the lowest level with any tiles, and false if the
// pyramid is entirely empty.
func (p *TileBBoxPyramid) GetZoomMin() (uint8, bool) {
	for _, b := range p.levelBBox {
		if !b.IsEmpty() {
			return b.Level, true
		}
	}
	return 0, false
}

// GetZoomMax returns the highest level with any tiles, and false if the
// pyramid is entirely empty.
func (p *TileBBoxPyramid) GetZoomMax() (uint8, bool) {
	for i := len(p.levelBBox) - 1; i >= 0; i-- {
		b := p.levelBBox[i]
		if !b.IsEmpty() {
			return b.Level, true
		}
	}
	return 0, false
}

// GetGoodZoom scans from the highest level downward and returns the first
// one with more than 10 tiles.
func (p *TileBBoxPyramid) GetGoodZoom() (uint8, bool) {
	for i := len(p.levelBBox) - 1; i >= 0; i-- {
		b := p.levelBBox[i]
		if b.CountTiles() > 10 {
			return b.Level, true
		}
	}
	return 0, false
}

// SetZoomMin clears every level below zoomMin.
func (p *TileBBoxPyramid) SetZoomMin(zoomMin uint8) {
	for i := range p.levelBBox {
		if uint8(i) < zoomMin {
			p.levelBBox[i].SetEmpty()
		}
	}
}

// SetZoomMax clears every level above zoomMax.
func (p *TileBBoxPyramid) SetZoomMax(zoomMax uint8) {
	for i := range p.levelBBox {
		if uint8(i) > zoomMax {
			p.levelBBox[i].SetEmpty()
		}
	}
}

// CountTiles sums the tile count across all levels.
func (p *TileBBoxPyramid) CountTiles() uint64 {
	var total uint64
	for _, b := range p.levelBBox {
		total += b.CountTiles()
	}
	return total
}

// IsEmpty reports whether every level is empty.
func (p *TileBBoxPyramid) IsEmpty() bool {
	for _, b := range p.levelBBox {
		if !b.IsEmpty() {
			return false
		}
	}
	return true
}

// IsFull reports whether every level up to maxZoomLevel is full coverage
// and every level beyond it is empty.
func (p *TileBBoxPyramid) IsFull(maxZoomLevel uint8) bool {
	for _, b := range p.levelBBox {
		if b.Level <= maxZoomLevel {
			if !b.IsFull() {
				return false
			}
		} else if !b.IsEmpty() {
			return false
		}
	}
	return true
}

// GetGeoBBox projects the pyramid's highest non-empty level to a
// geographic bounding box.
func (p *TileBBoxPyramid) GetGeoBBox() (GeoBBox, bool) {
	maxZoom, ok := p.GetZoomMax()
	if !ok {
		return GeoBBox{}, false
	}
	return p.GetLevelBBox(maxZoom).ToGeoBBox(), true
}

// GetGeoCenter returns a geographic center point and a suggested zoom
// level (two levels above the minimum, capped at the maximum).
func (p *TileBBoxPyramid) GetGeoCenter() (GeoCenter, bool) {
	bbox, ok := p.GetGeoBBox()
	if !ok {
		return GeoCenter{}, false
	}
	zoomMin, ok := p.GetZoomMin()
	if !ok {
		return GeoCenter{}, false
	}
	zoomMax, _ := p.GetZoomMax()
	zoom := zoomMin + 2
	if zoom > zoomMax {
		zoom = zoomMax
	}
	return GeoCenter{
		Lon:  (bbox.West + bbox.East) / 2,
		Lat:  (bbox.South + bbox.North) / 2,
		Zoom: zoom,
	}, true
}

// Equal reports whether two pyramids cover the same tiles at every level.
func (p TileBBoxPyramid) Equal(other TileBBoxPyramid) bool {
	for level := 0; level < MaxZoomLevel; level++ {
		b0 := p.levelBBox[level]
		b1 := other.levelBBox[level]
		if b0.IsEmpty() != b1.IsEmpty() {
			return false
		}
		if b0.IsEmpty() {
			continue
		}
		if b0 != b1 {
			return false
		}
	}
	return true
}

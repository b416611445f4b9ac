package tiles

import "fmt"

// GeoBBox is a geographic bounding box in WGS84 longitude/latitude,
// ordered (west, south, east, north) — the same layout GeoJSON bboxes use.
type GeoBBox struct {
	West, South, East, North float64
}

// NewGeoBBox builds a GeoBBox and validates it.
func NewGeoBBox(west, south, east, north float64) (GeoBBox, error) {
	b := GeoBBox{West: west, South: south, East: east, North: north}
	return b, b.Check()
}

// Check reports whether the box's coordinates are within valid WGS84
// ranges and west/south do not exceed east/north.
func (b GeoBBox) Check() error {
	if b.West < -180 || b.West > 180 {
		return fmt.Errorf("west (%f) out of range", b.West)
	}
	if b.East < -180 || b.East > 180 {
		return fmt.Errorf("east (%f) out of range", b.East)
	}
	if b.South < -90 || b.South > 90 {
		return fmt.Errorf("south (%f) out of range", b.South)
	}
	if b.North < -90 || b.North > 90 {
		return fmt.Errorf("north (%f) out of range", b.North)
	}
	if b.West > b.East {
		return fmt.Errorf("west (%f) must be <= east (%f)", b.West, b.East)
	}
	if b.South > b.North {
		return fmt.Errorf("south (%f) must be <= north (%f)", b.South, b.North)
	}
	return nil
}

func (b GeoBBox) String() string {
	return fmt.Sprintf("[%f,%f,%f,%f]", b.West, b.South, b.East, b.North)
}

// GeoCenter is a geographic center point paired with a suggested zoom
// level, as stored in a TileJSON document's "center" field.
type GeoCenter struct {
	Lon, Lat float64
	Zoom     uint8
}

package tilejson

import (
	"encoding/json"
	"fmt"

	"github.com/versatiles-org/go-versatiles/tiles"
)

// TileJSON is the metadata document attached to every tile source,
// following the TileJSON 3.0.0 specification.
type TileJSON struct {
	TileJSON     string       `json:"tilejson"`
	Scheme       string       `json:"scheme"`
	Tiles        []string     `json:"tiles"`
	VectorLayers VectorLayers `json:"vector_layers,omitempty"`
	Attribution  string       `json:"attribution,omitempty"`
	Description  string       `json:"description,omitempty"`
	Name         string       `json:"name,omitempty"`
	Version      string       `json:"version,omitempty"`
	Bounds       *[4]float64  `json:"bounds,omitempty"`
	Center       *[3]float64  `json:"center,omitempty"`
	MinZoom      *uint8       `json:"minzoom,omitempty"`
	MaxZoom      *uint8       `json:"maxzoom,omitempty"`
}

// New returns a TileJSON document with the fixed fields every source
// needs: version "3.0.0", "xyz" scheme, and a tile URL template built
// from baseURL and extension (e.g. ".pbf", ".png").
func New(baseURL, extension string) *TileJSON {
	return &TileJSON{
		TileJSON: "3.0.0",
		Scheme:   "xyz",
		Tiles:    []string{fmt.Sprintf("%s/{z}/{x}/{y}%s", baseURL, extension)},
	}
}

// SetBoundsFromPyramid derives Bounds, Center, MinZoom, and MaxZoom from
// the area of interest tracked by p.
func (t *TileJSON) SetBoundsFromPyramid(p tiles.TileBBoxPyramid) {
	if bbox, ok := p.GetGeoBBox(); ok {
		bounds := [4]float64{bbox.West, bbox.South, bbox.East, bbox.North}
		t.Bounds = &bounds
	}
	if center, ok := p.GetGeoCenter(); ok {
		c := [3]float64{center.Lon, center.Lat, float64(center.Zoom)}
		t.Center = &c
	}
	if zmin, ok := p.GetZoomMin(); ok {
		t.MinZoom = &zmin
	}
	if zmax, ok := p.GetZoomMax(); ok {
		t.MaxZoom = &zmax
	}
}

// Merge folds other into t: VectorLayers are merged layer by layer,
// scalar fields are overwritten when other's value is non-empty, and
// bounds/center/zoom are overwritten when other sets them.
func (t *TileJSON) Merge(other *TileJSON) {
	if other == nil {
		return
	}
	t.VectorLayers = t.VectorLayers.Merge(other.VectorLayers)
	if other.Attribution != "" {
		t.Attribution = other.Attribution
	}
	if other.Description != "" {
		t.Description = other.Description
	}
	if other.Name != "" {
		t.Name = other.Name
	}
	if other.Version != "" {
		t.Version = other.Version
	}
	if other.Bounds != nil {
		t.Bounds = other.Bounds
	}
	if other.Center != nil {
		t.Center = other.Center
	}
	if other.MinZoom != nil {
		t.MinZoom = other.MinZoom
	}
	if other.MaxZoom != nil {
		t.MaxZoom = other.MaxZoom
	}
}

// Check validates every vector layer in t.
func (t *TileJSON) Check() error {
	for id, layer := range t.VectorLayers {
		if err := layer.Check(); err != nil {
			return fmt.Errorf("vector layer %q: %w", id, err)
		}
	}
	return nil
}

// MarshalJSON and UnmarshalJSON are satisfied by the struct tags above;
// ToJSON/FromJSON are thin convenience wrappers matching the teacher's
// GetTilejson helper shape.
func (t *TileJSON) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

func FromJSON(data []byte) (*TileJSON, error) {
	var t TileJSON
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse tilejson: %w", err)
	}
	return &t, nil
}

// Package tilejson implements the TileJSON 3.0.0 document model attached
// to every tile source: bounds, zoom range, attribution, and the
// vector_layers schema describing a vector tile's feature layers.
package tilejson

import (
	"fmt"
	"sort"
	"unicode"
)

// VectorLayer describes one layer of a vector tile schema: its field
// names/types and the zoom range it's present at.
type VectorLayer struct {
	Fields      map[string]string
	Description string
	MinZoom     *uint8
	MaxZoom     *uint8
}

// Check validates the layer against the TileJSON 3.0.0 vector_layers
// constraints (§3.3): field names must be non-empty, <=255 chars,
// alphanumeric or underscore; zoom levels must be <=30 and minzoom <= maxzoom.
func (l VectorLayer) Check() error {
	for key := range l.Fields {
		if key == "" {
			return fmt.Errorf("empty field name")
		}
		if len(key) > 255 {
			return fmt.Errorf("field name too long: %q", key)
		}
		for _, r := range key {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
				return fmt.Errorf("invalid field name %q: must be alphanumeric or underscore", key)
			}
		}
	}
	if l.MinZoom != nil && *l.MinZoom > 30 {
		return fmt.Errorf("minzoom too high: %d", *l.MinZoom)
	}
	if l.MaxZoom != nil {
		if *l.MaxZoom > 30 {
			return fmt.Errorf("maxzoom too high: %d", *l.MaxZoom)
		}
		if l.MinZoom != nil && *l.MinZoom > *l.MaxZoom {
			return fmt.Errorf("minzoom must be <= maxzoom, found min=%d, max=%d", *l.MinZoom, *l.MaxZoom)
		}
	}
	return nil
}

// Merge folds other's fields into l: fields are unioned (other wins on
// conflict), description is overwritten if other has one, minzoom takes
// the smaller of the two, maxzoom the larger.
func (l *VectorLayer) Merge(other VectorLayer) {
	if l.Fields == nil {
		l.Fields = map[string]string{}
	}
	for k, v := range other.Fields {
		l.Fields[k] = v
	}
	if other.Description != "" {
		l.Description = other.Description
	}
	if other.MinZoom != nil {
		z := *other.MinZoom
		if l.MinZoom != nil && *l.MinZoom < z {
			z = *l.MinZoom
		}
		l.MinZoom = &z
	}
	if other.MaxZoom != nil {
		z := *other.MaxZoom
		if l.MaxZoom != nil && *l.MaxZoom > z {
			z = *l.MaxZoom
		}
		l.MaxZoom = &z
	}
}

// VectorLayers is the full "vector_layers" collection, keyed by layer id.
type VectorLayers map[string]VectorLayer

// Merge folds other's layers into vl: unknown ids are inserted outright,
// known ids have their layer merged via VectorLayer.Merge.
func (vl VectorLayers) Merge(other VectorLayers) VectorLayers {
	if vl == nil {
		vl = VectorLayers{}
	}
	for id, layer := range other {
		if existing, ok := vl[id]; ok {
			existing.Merge(layer)
			vl[id] = existing
		} else {
			vl[id] = layer
		}
	}
	return vl
}

// LayerIDs returns every layer id in lexicographic order.
func (vl VectorLayers) LayerIDs() []string {
	ids := make([]string, 0, len(vl))
	for id := range vl {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ContainsIDs reports whether every given id is present.
func (vl VectorLayers) ContainsIDs(ids ...string) bool {
	for _, id := range ids {
		if _, ok := vl[id]; !ok {
			return false
		}
	}
	return true
}

// TileSchema names a recognizable vector tile schema, used to pick default
// styling when one isn't supplied explicitly.
type TileSchema uint8

const (
	SchemaUnknown TileSchema = iota
	SchemaOpenMapTiles
	SchemaShortbread
)

var openMapTilesIDs = []string{
	"aerodrome_label", "aeroway", "boundary", "building", "housenumber",
	"landcover", "landuse", "mountain_peak", "park", "place", "poi",
	"transportation", "transportation_name", "water", "water_name", "waterway",
}

var shortbreadIDs = []string{
	"addresses", "aerialways", "boundaries", "boundary_labels", "bridges",
	"buildings", "dam_lines", "dam_polygons", "ferries", "land", "ocean",
	"pier_lines", "pier_polygons", "place_labels", "pois", "public_transport",
	"sites", "street_labels_points", "street_labels", "street_polygons",
	"streets_polygons_labels", "streets", "water_lines_labels", "water_lines",
	"water_polygons_labels", "water_polygons",
}

// GetTileSchema identifies vl as one of the known schemas by checking for
// each schema's signature layer ids.
func (vl VectorLayers) GetTileSchema() TileSchema {
	if vl.ContainsIDs(openMapTilesIDs...) {
		return SchemaOpenMapTiles
	}
	if vl.ContainsIDs(shortbreadIDs...) {
		return SchemaShortbread
	}
	return SchemaUnknown
}

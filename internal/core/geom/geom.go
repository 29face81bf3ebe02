// Package geom defines the minimal geometry values used to build catalog spatial filters.
package geom

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type Coordinate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

type Kind string

const (
	KindPoint        Kind = "Point"
	KindLineString   Kind = "LineString"
	KindPolygon      Kind = "Polygon"
	KindMultiPolygon Kind = "MultiPolygon"
)

// Geometry is a tagged union over the shapes the catalog accepts in a geoJson filter.
// Polygons keep their outer ring only and multipolygons keep the outer ring of their
// first polygon; the catalog filter format has no room for holes.
// The zero value has no kind and is rejected by MarshalJSON.
type Geometry struct {
	kind  Kind
	point Coordinate
	path  []Coordinate
	rings [][]Coordinate
}

func NewPoint(c Coordinate) Geometry {
	return Geometry{kind: KindPoint, point: c}
}

func NewLineString(cs []Coordinate) Geometry {
	return Geometry{kind: KindLineString, path: clone(cs)}
}

// NewPolygon keeps rings[0] (the outer ring).
func NewPolygon(rings [][]Coordinate) (Geometry, error) {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return Geometry{}, errors.New("polygon has no outer ring")
	}
	return Geometry{kind: KindPolygon, path: clone(rings[0])}, nil
}

// NewMultiPolygon keeps the outer ring of polys[0].
func NewMultiPolygon(polys [][][]Coordinate) (Geometry, error) {
	if len(polys) == 0 || len(polys[0]) == 0 || len(polys[0][0]) == 0 {
		return Geometry{}, errors.New("multipolygon has no outer ring")
	}
	return Geometry{kind: KindMultiPolygon, rings: [][]Coordinate{clone(polys[0][0])}}, nil
}

func (g Geometry) Kind() Kind   { return g.kind }
func (g Geometry) IsZero() bool { return g.kind == "" }

// Point returns the coordinate of a Point geometry.
func (g Geometry) Point() (Coordinate, bool) {
	return g.point, g.kind == KindPoint
}

// Path returns the vertices of a LineString or the outer ring of a Polygon.
func (g Geometry) Path() []Coordinate {
	return clone(g.path)
}

// Rings returns the retained rings of an areal geometry.
func (g Geometry) Rings() [][]Coordinate {
	switch g.kind {
	case KindPolygon:
		return [][]Coordinate{clone(g.path)}
	case KindMultiPolygon:
		out := make([][]Coordinate, len(g.rings))
		for i, r := range g.rings {
			out[i] = clone(r)
		}
		return out
	default:
		return nil
	}
}

func (g Geometry) coordinates() any {
	switch g.kind {
	case KindPoint:
		return g.point
	case KindLineString, KindPolygon:
		return g.path
	case KindMultiPolygon:
		return g.rings
	default:
		return nil
	}
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return nil, errors.New("marshal empty geometry")
	}
	return json.Marshal(struct {
		Type        Kind `json:"type"`
		Coordinates any  `json:"coordinates"`
	}{g.kind, g.coordinates()})
}

// ParseGeoJSON reads a GeoJSON geometry or Feature with [lon,lat] positions.
func ParseGeoJSON(raw []byte) (Geometry, error) {
	var hdr struct {
		Type        string          `json:"type"`
		Geometry    json.RawMessage `json:"geometry"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return Geometry{}, fmt.Errorf("parse geojson: %w", err)
	}
	if hdr.Type == "Feature" {
		if len(hdr.Geometry) == 0 || string(hdr.Geometry) == "null" {
			return Geometry{}, errors.New("feature has no geometry")
		}
		return ParseGeoJSON(hdr.Geometry)
	}

	switch Kind(hdr.Type) {
	case KindPoint:
		var p []float64
		if err := json.Unmarshal(hdr.Coordinates, &p); err != nil {
			return Geometry{}, fmt.Errorf("parse point coords: %w", err)
		}
		c, ok := toCoordinate(p)
		if !ok {
			return Geometry{}, errors.New("point needs two values")
		}
		return NewPoint(c), nil
	case KindLineString:
		var ps [][]float64
		if err := json.Unmarshal(hdr.Coordinates, &ps); err != nil {
			return Geometry{}, fmt.Errorf("parse linestring coords: %w", err)
		}
		return NewLineString(toPath(ps)), nil
	case KindPolygon:
		var rs [][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &rs); err != nil {
			return Geometry{}, fmt.Errorf("parse polygon coords: %w", err)
		}
		rings := make([][]Coordinate, len(rs))
		for i, r := range rs {
			rings[i] = toPath(r)
		}
		return NewPolygon(rings)
	case KindMultiPolygon:
		var mp [][][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &mp); err != nil {
			return Geometry{}, fmt.Errorf("parse multipolygon coords: %w", err)
		}
		polys := make([][][]Coordinate, len(mp))
		for i, p := range mp {
			polys[i] = make([][]Coordinate, len(p))
			for j, r := range p {
				polys[i][j] = toPath(r)
			}
		}
		return NewMultiPolygon(polys)
	default:
		return Geometry{}, fmt.Errorf("geometry type '%s' not supported", hdr.Type)
	}
}

func toCoordinate(xy []float64) (Coordinate, bool) {
	if len(xy) < 2 {
		return Coordinate{}, false
	}
	return Coordinate{Longitude: xy[0], Latitude: xy[1]}, true
}

// positions with fewer than two values are skipped
func toPath(ps [][]float64) []Coordinate {
	out := make([]Coordinate, 0, len(ps))
	for _, p := range ps {
		if c, ok := toCoordinate(p); ok {
			out = append(out, c)
		}
	}
	return out
}

func clone(cs []Coordinate) []Coordinate {
	if cs == nil {
		return nil
	}
	out := make([]Coordinate, len(cs))
	copy(out, cs)
	return out
}

type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// BBoxFromSlice reads [xmin, ymin, xmax, ymax].
func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("bbox needs 4 values, got %d", len(v))
	}
	return BBox{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]}, nil
}

func (b BBox) LowerLeft() Coordinate  { return Coordinate{Longitude: b.MinX, Latitude: b.MinY} }
func (b BBox) UpperRight() Coordinate { return Coordinate{Longitude: b.MaxX, Latitude: b.MaxY} }

func (b BBox) Slice() []float64 { return []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} }

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// BoundsOf computes the box around decoded GeoJSON coordinates of any nesting depth.
func BoundsOf(coords any) (BBox, bool) {
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	found := false
	var walk func(v any)
	walk = func(v any) {
		a, ok := v.([]any)
		if !ok || len(a) == 0 {
			return
		}
		if x, ok := a[0].(float64); ok {
			if len(a) < 2 {
				return
			}
			y, ok := a[1].(float64)
			if !ok {
				return
			}
			b.MinX, b.MaxX = math.Min(b.MinX, x), math.Max(b.MaxX, x)
			b.MinY, b.MaxY = math.Min(b.MinY, y), math.Max(b.MaxY, y)
			found = true
			return
		}
		for _, e := range a {
			walk(e)
		}
	}
	walk(coords)
	if !found {
		return BBox{}, false
	}
	return b, true
}

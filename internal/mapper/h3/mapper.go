package h3mapper

import (
	"errors"
	"fmt"
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellsForBBox(bb geom.BBox, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	// rectangular loop in degrees
	outer := h3.GeoLoop{
		{Lat: bb.MinY, Lng: bb.MinX},
		{Lat: bb.MinY, Lng: bb.MaxX},
		{Lat: bb.MaxY, Lng: bb.MaxX},
		{Lat: bb.MaxY, Lng: bb.MinX},
	}
	return polyfill(outer, res)
}

// CellsForGeometry covers a footprint. Areal shapes are polyfilled on their
// retained outer ring; when a shape is smaller than one cell the cells of its
// vertices are returned instead. Points map to their single cell.
func (m *Mapper) CellsForGeometry(g geom.Geometry, res int) ([]string, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}

	switch g.Kind() {
	case geom.KindPoint:
		c, _ := g.Point()
		return vertexCells([]geom.Coordinate{c}, res)

	case geom.KindLineString:
		path := g.Path()
		if len(path) == 0 {
			return nil, errors.New("empty linestring")
		}
		return vertexCells(path, res)

	case geom.KindPolygon, geom.KindMultiPolygon:
		seen := make(map[string]struct{})
		var out []string
		for i, ring := range g.Rings() {
			loop := toLoop(ring)
			if len(loop) < 3 {
				return nil, fmt.Errorf("ring %d has < 3 distinct vertices", i)
			}
			cells, err := polyfill(loop, res)
			if err != nil {
				return nil, err
			}
			if len(cells) == 0 {
				if cells, err = vertexCells(ring, res); err != nil {
					return nil, err
				}
			}
			for _, c := range cells {
				if _, ok := seen[c]; !ok {
					seen[c] = struct{}{}
					out = append(out, c)
				}
			}
		}
		sort.Strings(out)
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported geometry kind %q", g.Kind())
	}
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// toLoop converts a ring to an h3.GeoLoop and drops a duplicated closing vertex.
func toLoop(ring []geom.Coordinate) h3.GeoLoop {
	loop := make(h3.GeoLoop, 0, len(ring))
	for _, c := range ring {
		loop = append(loop, h3.LatLng{Lat: c.Latitude, Lng: c.Longitude})
	}
	if len(loop) >= 2 {
		last := loop[len(loop)-1]
		first := loop[0]
		if last.Lat == first.Lat && last.Lng == first.Lng {
			loop = loop[:len(loop)-1]
		}
	}
	return loop
}

func vertexCells(cs []geom.Coordinate, res int) ([]string, error) {
	seen := make(map[string]struct{}, len(cs))
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		cell, err := h3.LatLngToCell(h3.LatLng{Lat: c.Latitude, Lng: c.Longitude}, res)
		if err != nil {
			return nil, fmt.Errorf("h3 cell for (%f,%f): %w", c.Longitude, c.Latitude, err)
		}
		s := cell.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// polyfill computes unique cells and returns them sorted for determinism.
func polyfill(outer h3.GeoLoop, res int) ([]string, error) {
	indexes, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: outer}, res)
	if err != nil {
		return nil, fmt.Errorf("h3 polyfill: %w", err)
	}

	out := make([]string, 0, len(indexes))
	seen := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		s := idx.String()
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Package mapper converts scene footprints into H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/scene-catalog/internal/core/geom"
)

type Interface interface {
	CellsForBBox(bb geom.BBox, res int) ([]string, error)
	CellsForGeometry(g geom.Geometry, res int) ([]string, error)
}

// Package mesh turns binary masks into closed triangle meshes and writes
// them as STL.
//
// A mesh here is a flat triangle soup: every [Triangle] carries its own three
// vertices and nothing is indexed or shared. That is exactly what STL stores,
// so no conversion is needed on export.
//
// # Coordinates
//
// A mask with height h maps onto the XY plane so that lattice point (i, j),
// the corner between columns i-1/i and rows j-1/j, lands on
// (i·scale, (h-j)·scale). Row 0 of the image is therefore the high-Y side of
// the model. Z grows upward and the base sits on Z=0.
//
// # Winding
//
// Triangles follow the right-hand rule: the normal computed from (b-a)×(c-a)
// points out of the solid.
package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Vertex is a point in physical units.
type Vertex = r3.Vec

// Triangle is three vertices in counter-clockwise order seen from outside.
type Triangle [3]Vertex

// Normal returns the unit outward normal implied by the winding order.
// Degenerate triangles return the zero vector.
func (t Triangle) Normal() r3.Vec {
	n := r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))
	l := r3.Norm(n)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

// Area returns the triangle's surface area.
func (t Triangle) Area() float64 {
	return r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))) / 2
}

// Slab is the closed solid obtained by extruding one mask between two
// elevations.
type Slab struct {
	Triangles []Triangle
	Cells     int     // solid mask cells, each contributing two cap triangles per side
	Walls     int     // boundary edges, each contributing one wall quad
	ZBottom   float64 // elevation of the bottom cap
	ZTop      float64 // elevation of the top cap
	Scale     float64 // physical units per cell
}

// Solid is the final stamp: base triangles followed by relief triangles.
type Solid struct {
	Triangles []Triangle
}

// Assemble stacks the base and relief slabs into one solid. The slabs are
// concatenated as-is; no union, repair or validation is performed.
func Assemble(base, relief *Slab) *Solid {
	tris := make([]Triangle, 0, len(base.Triangles)+len(relief.Triangles))
	tris = append(tris, base.Triangles...)
	tris = append(tris, relief.Triangles...)
	return &Solid{Triangles: tris}
}

// Len returns the number of triangles.
func (s *Solid) Len() int { return len(s.Triangles) }

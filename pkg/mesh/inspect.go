package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Report summarizes the geometry of a triangle soup.
type Report struct {
	Triangles int
	Min, Max  r3.Vec
	Area      float64

	// Volume is the signed enclosed volume. It is positive for a closed
	// mesh with outward winding.
	Volume float64

	// OpenEdges counts undirected edges whose two directions are not used
	// equally often. A closed, consistently wound mesh has none.
	OpenEdges int

	// NonManifoldEdges counts undirected edges shared by more than two
	// triangles. Coplanar contact between stacked slabs and corner-touching
	// cells both produce them.
	NonManifoldEdges int

	Degenerate int
}

// Watertight reports whether every edge is matched by its reverse.
func (r Report) Watertight() bool { return r.Triangles > 0 && r.OpenEdges == 0 }

// Size returns the bounding box extent.
func (r Report) Size() r3.Vec { return r3.Sub(r.Max, r.Min) }

type edge struct{ a, b r3.Vec }

// Inspect computes a [Report] for tris.
func Inspect(tris []Triangle) Report {
	r := Report{Triangles: len(tris)}
	if len(tris) == 0 {
		return r
	}

	inf := math.Inf(1)
	r.Min = r3.Vec{X: inf, Y: inf, Z: inf}
	r.Max = r3.Vec{X: -inf, Y: -inf, Z: -inf}

	directed := make(map[edge]int, 3*len(tris))
	for _, t := range tris {
		for _, v := range t {
			r.Min = r3.Vec{X: math.Min(r.Min.X, v.X), Y: math.Min(r.Min.Y, v.Y), Z: math.Min(r.Min.Z, v.Z)}
			r.Max = r3.Vec{X: math.Max(r.Max.X, v.X), Y: math.Max(r.Max.Y, v.Y), Z: math.Max(r.Max.Z, v.Z)}
		}
		a := t.Area()
		if a == 0 {
			r.Degenerate++
		}
		r.Area += a
		r.Volume += r3.Dot(t[0], r3.Cross(t[1], t[2])) / 6
		for k := 0; k < 3; k++ {
			directed[edge{t[k], t[(k+1)%3]}]++
		}
	}

	for e, n := range directed {
		rev := directed[edge{e.b, e.a}]
		// Visit each undirected edge once.
		if rev > 0 && less(e.b, e.a) {
			continue
		}
		if n != rev {
			r.OpenEdges++
		}
		if n+rev > 2 {
			r.NonManifoldEdges++
		}
	}
	return r
}

// Inspect computes a [Report] for the solid.
func (s *Solid) Inspect() Report { return Inspect(s.Triangles) }

func less(p, q r3.Vec) bool {
	if p.X != q.X {
		return p.X < q.X
	}
	if p.Y != q.Y {
		return p.Y < q.Y
	}
	return p.Z < q.Z
}

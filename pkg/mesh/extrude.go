package mesh

import (
	"image"
	"runtime"
	"sync"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mask"
)

// chunkSize is the number of cells one worker emits per batch.
const chunkSize = 8192

// Extrude builds the closed slab for m between zBottom and zTop.
//
// Every solid cell gets two top-cap and two bottom-cap triangles. Every
// solid/empty edge gets one vertical wall quad spanning the full height.
// Holes in the mask therefore become through-holes with inward-facing walls.
// The result has exactly 4·m.Count() + 2·m.BoundaryEdges() triangles, ordered
// top cap, bottom cap, then the up, down, left and right wall families.
//
// The slab is a closed 2-manifold unless two solid cells touch only at a
// corner, where four triangles share one vertical edge.
func Extrude(m *mask.Mask, zBottom, zTop, scale float64) (*Slab, error) {
	if !(zTop > zBottom) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "top elevation %g must exceed bottom elevation %g", zTop, zBottom)
	}
	if !(scale > 0) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scale must be positive, got %g", scale)
	}

	// The empty ring guarantees every original cell has four defined neighbors.
	padded := m.Pad(1)
	solid := padded.Cells()
	if len(solid) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyMask, "mask has no solid cells")
	}

	l := lattice{h: m.Height(), scale: scale}
	families := []family{
		{cells: solid, emit: l.topCap(zTop)},
		{cells: solid, emit: l.bottomCap(zBottom)},
	}
	walls := 0
	for _, d := range mask.Directions {
		edge := padded.Boundary(d).Cells()
		walls += len(edge)
		families = append(families, family{cells: edge, emit: l.wall(d, zBottom, zTop)})
	}

	total := 0
	for _, f := range families {
		total += 2 * len(f.cells)
	}
	tris := make([]Triangle, total)

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	off := 0
	for _, f := range families {
		for start := 0; start < len(f.cells); start += chunkSize {
			end := min(start+chunkSize, len(f.cells))
			cells, dst, emit := f.cells[start:end], tris[off+2*start:off+2*end], f.emit
			wg.Go(func() {
				sem <- struct{}{}
				defer func() { <-sem }()
				for i, c := range cells {
					emit(dst[2*i:2*i+2], c)
				}
			})
		}
		off += 2 * len(f.cells)
	}
	wg.Wait()

	return &Slab{
		Triangles: tris,
		Cells:     len(solid),
		Walls:     walls,
		ZBottom:   zBottom,
		ZTop:      zTop,
		Scale:     scale,
	}, nil
}

// family is one batch of cells that each emit two triangles.
type family struct {
	cells []image.Point
	emit  func(dst []Triangle, cell image.Point)
}

// lattice maps padded-grid coordinates to physical vertices.
type lattice struct {
	h     int
	scale float64
}

// at returns the vertex for lattice point (i, j) of the padded grid.
// The padding offset is removed so the unpadded mask starts at the origin.
func (l lattice) at(i, j int, z float64) Vertex {
	return Vertex{
		X: float64(i-1) * l.scale,
		Y: float64(l.h-(j-1)) * l.scale,
		Z: z,
	}
}

// corners returns the cell's lattice corners: top-left, top-right,
// bottom-right, bottom-left in image orientation.
func (l lattice) corners(c image.Point, z float64) (tl, tr, br, bl Vertex) {
	return l.at(c.X, c.Y, z), l.at(c.X+1, c.Y, z), l.at(c.X+1, c.Y+1, z), l.at(c.X, c.Y+1, z)
}

func (l lattice) topCap(z float64) func([]Triangle, image.Point) {
	return func(dst []Triangle, c image.Point) {
		tl, tr, br, bl := l.corners(c, z)
		dst[0] = Triangle{bl, br, tr}
		dst[1] = Triangle{bl, tr, tl}
	}
}

func (l lattice) bottomCap(z float64) func([]Triangle, image.Point) {
	return func(dst []Triangle, c image.Point) {
		tl, tr, br, bl := l.corners(c, z)
		dst[0] = Triangle{bl, tr, br}
		dst[1] = Triangle{bl, tl, tr}
	}
}

// wall emits the quad on the side of a cell facing direction d.
//
// One rule covers all four directions. The outward physical normal is
// n = (d.DX, -d.DY) because image rows grow toward -Y. The wall's bottom edge
// runs a→b with b-a equal to n rotated by +90°, so (b-a)×ẑ = n and the
// triangles (a₀, b₀, b₁), (a₀, b₁, a₁) face outward. In doubled lattice
// coordinates the edge midpoint is (2x+1+DX, 2y+1+DY) and the half-edge
// tangent is (DY, -DX).
func (l lattice) wall(d mask.Direction, zBottom, zTop float64) func([]Triangle, image.Point) {
	return func(dst []Triangle, c image.Point) {
		mx, my := 2*c.X+1+d.DX, 2*c.Y+1+d.DY
		tx, ty := d.DY, -d.DX
		ai, aj := (mx-tx)/2, (my-ty)/2
		bi, bj := (mx+tx)/2, (my+ty)/2

		a0, b0 := l.at(ai, aj, zBottom), l.at(bi, bj, zBottom)
		a1, b1 := l.at(ai, aj, zTop), l.at(bi, bj, zTop)
		dst[0] = Triangle{a0, b0, b1}
		dst[1] = Triangle{a0, b1, a1}
	}
}

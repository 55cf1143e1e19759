// Package mask provides the binary grid shared by every pipeline stage.
//
// A [Mask] is a rectangular grid of solid (foreground) and empty (background)
// cells stored in row-major order. Row 0 is the top row of the source image.
//
// Operations never modify their receiver: shifting, morphology, mirroring and
// resizing all return a freshly allocated mask. This lets each stage hand its
// output to the next one without copying or locking.
//
// # Batch Operations
//
// Boundary detection is expressed as whole-grid algebra rather than per-cell
// neighbor checks:
//
//	up := m.AndNot(m.Neighbor(0, -1)) // solid cells whose upper neighbor is empty
//	walls := m.BoundaryEdges()       // sum over all four directions
package mask

import (
	"fmt"
	"image"
	"strings"
)

// Mask is a binary grid of Width×Height cells.
type Mask struct {
	w, h  int
	cells []bool
}

// New returns an empty mask with the given dimensions.
// Negative dimensions are treated as zero.
func New(w, h int) *Mask {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mask{w: w, h: h, cells: make([]bool, w*h)}
}

// Parse builds a mask from rows of text where '#' marks a solid cell and any
// other rune an empty one. All rows must have the same length.
//
//	m := mask.Parse(
//	    "###",
//	    "#.#",
//	    "###",
//	)
func Parse(rows ...string) *Mask {
	h := len(rows)
	w := 0
	if h > 0 {
		w = len(rows[0])
	}
	m := New(w, h)
	for y, row := range rows {
		if len(row) != w {
			panic(fmt.Sprintf("mask.Parse: row %d has length %d, want %d", y, len(row), w))
		}
		for x := 0; x < w; x++ {
			m.cells[y*w+x] = row[x] == '#'
		}
	}
	return m
}

// Width returns the number of columns.
func (m *Mask) Width() int { return m.w }

// Height returns the number of rows.
func (m *Mask) Height() int { return m.h }

// Bounds returns the mask dimensions as an image.Rectangle.
func (m *Mask) Bounds() image.Rectangle { return image.Rect(0, 0, m.w, m.h) }

// Empty reports whether the mask has no solid cells.
func (m *Mask) Empty() bool {
	for _, c := range m.cells {
		if c {
			return false
		}
	}
	return true
}

// At reports whether the cell at (x, y) is solid.
// Coordinates outside the mask are empty.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.w || y < 0 || y >= m.h {
		return false
	}
	return m.cells[y*m.w+x]
}

// Set marks the cell at (x, y). It is meant for producers that are still
// building a mask; once a mask is handed to another stage it must not change.
// Coordinates outside the mask are ignored.
func (m *Mask) Set(x, y int, solid bool) {
	if x < 0 || x >= m.w || y < 0 || y >= m.h {
		return
	}
	m.cells[y*m.w+x] = solid
}

// Count returns the number of solid cells.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Cells returns the coordinates of every solid cell in row-major order.
func (m *Mask) Cells() []image.Point {
	pts := make([]image.Point, 0, m.Count())
	for i, c := range m.cells {
		if c {
			pts = append(pts, image.Pt(i%m.w, i/m.w))
		}
	}
	return pts
}

// Clone returns a deep copy of m.
func (m *Mask) Clone() *Mask {
	out := New(m.w, m.h)
	copy(out.cells, m.cells)
	return out
}

// Equal reports whether m and o have the same dimensions and cells.
func (m *Mask) Equal(o *Mask) bool {
	if m.w != o.w || m.h != o.h {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

// String renders the mask in the format accepted by [Parse].
func (m *Mask) String() string {
	var b strings.Builder
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if m.cells[y*m.w+x] {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		if y < m.h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

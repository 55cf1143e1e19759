package mask

// Direction is a unit step between grid cells. DY grows downward, matching
// image row order.
type Direction struct {
	DX, DY int
}

// The four axis-aligned neighbor directions.
var (
	Up    = Direction{0, -1}
	Down  = Direction{0, 1}
	Left  = Direction{-1, 0}
	Right = Direction{1, 0}
)

// Directions lists the four neighbor directions in the order walls are emitted.
var Directions = [4]Direction{Up, Down, Left, Right}

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "unknown"
}

// Neighbor returns the mask seen through a shift: cell (x, y) of the result
// holds m(x+dx, y+dy). Cells whose neighbor falls outside m are empty.
func (m *Mask) Neighbor(dx, dy int) *Mask {
	out := New(m.w, m.h)
	for y := 0; y < m.h; y++ {
		sy := y + dy
		if sy < 0 || sy >= m.h {
			continue
		}
		for x := 0; x < m.w; x++ {
			sx := x + dx
			if sx < 0 || sx >= m.w {
				continue
			}
			out.cells[y*m.w+x] = m.cells[sy*m.w+sx]
		}
	}
	return out
}

// AndNot returns the cells solid in m and empty in o.
// Both masks must have the same dimensions.
func (m *Mask) AndNot(o *Mask) *Mask {
	m.mustMatch(o)
	out := New(m.w, m.h)
	for i := range m.cells {
		out.cells[i] = m.cells[i] && !o.cells[i]
	}
	return out
}

// Or returns the union of m and o.
// Both masks must have the same dimensions.
func (m *Mask) Or(o *Mask) *Mask {
	m.mustMatch(o)
	out := New(m.w, m.h)
	for i := range m.cells {
		out.cells[i] = m.cells[i] || o.cells[i]
	}
	return out
}

// Contains reports whether every solid cell of o is also solid in m.
func (m *Mask) Contains(o *Mask) bool {
	m.mustMatch(o)
	for i := range m.cells {
		if o.cells[i] && !m.cells[i] {
			return false
		}
	}
	return true
}

// Boundary returns the solid cells whose neighbor in direction d is empty.
func (m *Mask) Boundary(d Direction) *Mask {
	return m.AndNot(m.Neighbor(d.DX, d.DY))
}

// BoundaryEdges counts the solid/empty cell pairs over all four directions.
// Cells on the border of m count their outside neighbors as empty.
func (m *Mask) BoundaryEdges() int {
	n := 0
	for _, d := range Directions {
		n += m.Boundary(d).Count()
	}
	return n
}

// Pad returns m surrounded by n empty rings.
func (m *Mask) Pad(n int) *Mask {
	if n <= 0 {
		return m.Clone()
	}
	out := New(m.w+2*n, m.h+2*n)
	for y := 0; y < m.h; y++ {
		copy(out.cells[(y+n)*out.w+n:(y+n)*out.w+n+m.w], m.cells[y*m.w:(y+1)*m.w])
	}
	return out
}

// FlipH returns m mirrored left to right.
func (m *Mask) FlipH() *Mask {
	out := New(m.w, m.h)
	for y := 0; y < m.h; y++ {
		row := y * m.w
		for x := 0; x < m.w; x++ {
			out.cells[row+m.w-1-x] = m.cells[row+x]
		}
	}
	return out
}

func (m *Mask) mustMatch(o *Mask) {
	if m.w != o.w || m.h != o.h {
		panic("mask: dimension mismatch")
	}
}

package mask

// Morphology uses a k×k square structuring element B anchored at (k/2, k/2),
// so B spans offsets [-k/2, k-1-k/2] on each axis. Erosion keeps a cell when
// every cell of B placed on it is solid; dilation is the Minkowski sum with B
// and therefore reads the reflected window. With that pairing Close always
// contains its input and Open is always contained in it, for odd and even k.
// Cells outside the grid never contribute to a dilation and never cause an
// erosion.

// Dilate returns m grown by a k×k square element.
// A size of 1 or less returns a copy of m.
func (m *Mask) Dilate(k int) *Mask {
	return m.morph(k, false)
}

// Erode returns m shrunk by a k×k square element.
// A size of 1 or less returns a copy of m.
func (m *Mask) Erode(k int) *Mask {
	return m.morph(k, true)
}

// Open erodes then dilates, removing solid features smaller than the element.
func (m *Mask) Open(k int) *Mask {
	return m.Erode(k).Dilate(k)
}

// Close dilates then erodes, filling gaps and holes smaller than the element.
func (m *Mask) Close(k int) *Mask {
	return m.Dilate(k).Erode(k)
}

// morph applies the square element separably: a row pass then a column pass,
// each answering "any solid" (dilate) or "all solid" (erode) over a clipped
// window with prefix sums.
func (m *Mask) morph(k int, erode bool) *Mask {
	if k <= 1 || m.Empty() {
		return m.Clone()
	}
	lo, hi := -(k / 2), k-1-k/2
	if !erode {
		lo, hi = -hi, -lo
	}

	n := m.w
	if m.h > n {
		n = m.h
	}
	prefix := make([]int, n+1)

	tmp := New(m.w, m.h)
	for y := 0; y < m.h; y++ {
		row := y * m.w
		for x := 0; x < m.w; x++ {
			prefix[x+1] = prefix[x] + b2i(m.cells[row+x])
		}
		for x := 0; x < m.w; x++ {
			a, b := clampWindow(x+lo, x+hi, m.w)
			tmp.cells[row+x] = decide(prefix[b+1]-prefix[a], b-a+1, erode)
		}
	}

	out := New(m.w, m.h)
	for x := 0; x < m.w; x++ {
		for y := 0; y < m.h; y++ {
			prefix[y+1] = prefix[y] + b2i(tmp.cells[y*m.w+x])
		}
		for y := 0; y < m.h; y++ {
			a, b := clampWindow(y+lo, y+hi, m.h)
			out.cells[y*m.w+x] = decide(prefix[b+1]-prefix[a], b-a+1, erode)
		}
	}
	return out
}

func clampWindow(a, b, n int) (int, int) {
	if a < 0 {
		a = 0
	}
	if b > n-1 {
		b = n - 1
	}
	return a, b
}

func decide(solid, size int, erode bool) bool {
	if erode {
		return solid == size
	}
	return solid > 0
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

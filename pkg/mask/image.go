package mask

import (
	"image"

	"golang.org/x/image/draw"
)

// Threshold is the midpoint used to re-binarize interpolated masks.
const Threshold = 127

// FromGray builds a mask from a grayscale raster: pixels strictly brighter
// than threshold become solid.
func FromGray(g *image.Gray, threshold uint8) *Mask {
	b := g.Bounds()
	m := New(b.Dx(), b.Dy())
	for y := 0; y < m.h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+m.w]
		for x, v := range row {
			m.cells[y*m.w+x] = v > threshold
		}
	}
	return m
}

// ToGray renders the mask as a grayscale raster with solid cells at 255.
func (m *Mask) ToGray() *image.Gray {
	g := image.NewGray(m.Bounds())
	for i, c := range m.cells {
		if c {
			g.Pix[i] = 255
		}
	}
	return g
}

// Resize scales m to w×h with a bilinear filter and re-binarizes the result
// at [Threshold], restoring hard edges lost to interpolation.
func (m *Mask) Resize(w, h int) *Mask {
	if w == m.w && h == m.h {
		return m.Clone()
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), m.ToGray(), m.Bounds(), draw.Src, nil)
	return FromGray(dst, Threshold)
}

package preprocess

import (
	"image"
	"math"
)

// CLAHE applies contrast-limited adaptive histogram equalization.
//
// The image is mirrored at its right and bottom edges up to a multiple of
// the tile grid, so every tile covers the same area. Each tile's histogram
// is clipped at clipLimit times the mean bin height, the clipped excess is
// spread evenly over all bins, and the resulting CDF becomes that tile's
// lookup table. Every pixel is mapped through the four nearest tile tables
// and blended bilinearly by its distance to the tile centers.
func CLAHE(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	src = Gray(src)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	tx, ty := min(tiles, w), min(tiles, h)
	tw, th := (w+tx-1)/tx, (h+ty-1)/ty
	padded := padReflect(src, tw*tx, th*ty)

	luts := make([][256]uint8, tx*ty)
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			luts[j*tx+i] = tileLUT(padded, image.Rect(i*tw, j*th, (i+1)*tw, (j+1)*th), clipLimit)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))

	// Horizontal interpolation terms are shared by every row.
	xi0, xi1 := make([]int, w), make([]int, w)
	xa := make([]float64, w)
	for x := 0; x < w; x++ {
		xi0[x], xi1[x], xa[x] = neighbors(float64(x)/float64(tw)-0.5, tx)
	}

	for y := 0; y < h; y++ {
		y0, y1, ya := neighbors(float64(y)/float64(th)-0.5, ty)
		top, bottom := luts[y0*tx:], luts[y1*tx:]
		row := src.Pix[y*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			v := row[x]
			a := float64(top[xi0[x]][v])*(1-xa[x]) + float64(top[xi1[x]][v])*xa[x]
			b := float64(bottom[xi0[x]][v])*(1-xa[x]) + float64(bottom[xi1[x]][v])*xa[x]
			out[x] = clamp8(a*(1-ya) + b*ya)
		}
	}
	return dst
}

// padReflect extends src to pw×ph by mirroring across the right and bottom
// edges. src is returned unchanged when it already has that size.
func padReflect(src *image.Gray, pw, ph int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if pw == w && ph == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, pw, ph))
	for y := 0; y < ph; y++ {
		row := src.Pix[reflect101(y, h)*src.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < pw; x++ {
			out[x] = row[reflect101(x, w)]
		}
	}
	return dst
}

// neighbors returns the two tile indices around fractional tile coordinate f
// and the weight of the second one, clamped at the borders.
func neighbors(f float64, n int) (int, int, float64) {
	i0 := int(math.Floor(f))
	a := f - float64(i0)
	i1 := i0 + 1
	if i0 < 0 {
		i0 = 0
	}
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1, a
}

func tileLUT(src *image.Gray, r image.Rectangle, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for _, v := range src.Pix[y*src.Stride+r.Min.X : y*src.Stride+r.Max.X] {
			hist[v]++
		}
	}
	area := r.Dx() * r.Dy()

	limit := max(int(clipLimit*float64(area)/256), 1)
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	batch := excess / 256
	residual := excess - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	var lut [256]uint8
	scale := 255 / float64(area)
	sum := 0
	for i, c := range hist {
		sum += c
		lut[i] = clamp8(float64(sum) * scale)
	}
	return lut
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

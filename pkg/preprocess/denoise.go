package preprocess

import (
	"context"
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// bandRows is the number of output rows one denoise worker owns.
const bandRows = 64

// maxExponent bounds dist/h² beyond which a patch weight is treated as zero.
const maxExponent = 12

// Denoise applies non-local means filtering.
//
// Each output pixel is a weighted mean of the pixels in a search×search
// window around it. A candidate's weight is exp(-d/h²), where d is the mean
// squared difference between the template×template patches centered on the
// two pixels. Patch distances come from one summed-area table per search
// offset, so the cost does not depend on the template size. Work is split
// into row bands processed in parallel. Borders are mirrored without
// repeating the edge pixel.
func Denoise(ctx context.Context, src *image.Gray, h float64, template, search int) (*image.Gray, error) {
	src = Gray(src)
	w, ht := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, ht))
	if h <= 0 || search < 1 {
		copy(dst.Pix, src.Pix)
		return dst, nil
	}

	nl := nlm{
		w:     w,
		h:     ht,
		tr:    template / 2,
		sr:    search / 2,
		invH2: 1 / (h * h),
	}
	nl.pad(src)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y0 := 0; y0 < ht; y0 += bandRows {
		y1 := min(y0+bandRows, ht)
		g.Go(func() error {
			return nl.band(ctx, dst, y0, y1)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

type nlm struct {
	w, h  int
	tr    int // template radius
	sr    int // search radius
	invH2 float64

	// padded is the source mirrored by tr+sr on every side.
	padded []int32
	r, pw  int
}

func (n *nlm) pad(src *image.Gray) {
	n.r = n.tr + n.sr
	n.pw = n.w + 2*n.r
	n.padded = make([]int32, n.pw*(n.h+2*n.r))
	for y := -n.r; y < n.h+n.r; y++ {
		row := src.Pix[reflect101(y, n.h)*src.Stride:]
		out := n.padded[(y+n.r)*n.pw:]
		for x := -n.r; x < n.w+n.r; x++ {
			out[x+n.r] = int32(row[reflect101(x, n.w)])
		}
	}
}

// px returns the source pixel at (x, y), which may lie up to tr+sr outside
// the image.
func (n *nlm) px(x, y int) int32 {
	return n.padded[(y+n.r)*n.pw+x+n.r]
}

// band denoises rows [y0, y1) into dst.
func (n *nlm) band(ctx context.Context, dst *image.Gray, y0, y1 int) error {
	rows := y1 - y0
	// The summed-area table spans the band plus a template radius on every side.
	ew, eh := n.w+2*n.tr, rows+2*n.tr
	sat := make([]int64, (ew+1)*(eh+1))
	num := make([]float64, rows*n.w)
	den := make([]float64, rows*n.w)
	area := float64((2*n.tr + 1) * (2*n.tr + 1))

	for dy := -n.sr; dy <= n.sr; dy++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for dx := -n.sr; dx <= n.sr; dx++ {
			for j := 0; j < eh; j++ {
				y := y0 - n.tr + j
				var run int64
				for i := 0; i < ew; i++ {
					x := i - n.tr
					d := n.px(x, y) - n.px(x+dx, y+dy)
					run += int64(d * d)
					sat[(j+1)*(ew+1)+i+1] = sat[j*(ew+1)+i+1] + run
				}
			}

			for y := 0; y < rows; y++ {
				top, bot := y*(ew+1), (y+2*n.tr+1)*(ew+1)
				for x := 0; x < n.w; x++ {
					right := x + 2*n.tr + 1
					s := sat[bot+right] - sat[bot+x] - sat[top+right] + sat[top+x]
					e := float64(s) / area * n.invH2
					if e > maxExponent {
						continue
					}
					wt := math.Exp(-e)
					k := y*n.w + x
					num[k] += wt * float64(n.px(x+dx, y0+y+dy))
					den[k] += wt
				}
			}
		}
	}

	for y := 0; y < rows; y++ {
		out := dst.Pix[(y0+y)*dst.Stride:]
		for x := 0; x < n.w; x++ {
			k := y*n.w + x
			out[x] = clamp8(num[k] / den[k])
		}
	}
	return nil
}

// reflect101 mirrors i into [0, n) without repeating the edge sample.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

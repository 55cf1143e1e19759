package preprocess

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/stampforge/pkg/mask"
)

// Blur applies a Gaussian blur with the given sigma.
func Blur(src *image.Gray, sigma float64) *image.Gray {
	if sigma <= 0 {
		return Gray(src)
	}
	return fromNRGBA(imaging.Blur(src, sigma))
}

// blockSigma is the Gaussian sigma OpenCV derives for a block×block kernel.
func blockSigma(block int) float64 {
	return 0.3*(float64(block-1)*0.5-1) + 0.8
}

// AdaptiveThreshold marks dark pixels as foreground.
//
// A pixel is foreground when it is at least offset levels darker than the
// Gaussian-weighted mean of its block×block neighborhood. Uniform regions,
// whether black or white, are background.
func AdaptiveThreshold(src *image.Gray, block, offset int) *mask.Mask {
	src = Gray(src)
	mean := Blur(src, blockSigma(block))

	w, h := src.Rect.Dx(), src.Rect.Dy()
	m := mask.New(w, h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		mrow := mean.Pix[y*mean.Stride:]
		for x := 0; x < w; x++ {
			if int(row[x]) <= int(mrow[x])-offset {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

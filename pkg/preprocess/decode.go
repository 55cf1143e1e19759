package preprocess

import (
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	// Formats beyond the PNG, JPEG, GIF, BMP and TIFF decoders imaging registers.
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/stampforge/pkg/errors"
)

// Decode decodes an image from r, honoring EXIF orientation.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	return checkArea(img)
}

func checkArea(img image.Image) (image.Image, error) {
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image has zero area (%dx%d)", b.Dx(), b.Dy())
	}
	return img, nil
}

// Gray converts img to 8-bit luminance. Transparent regions are composited
// over white first so that a transparent logo background reads as paper
// rather than ink.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy())
	if g, ok := img.(*image.Gray); ok && g.Rect == r {
		return g
	}

	flat := image.NewRGBA(r)
	draw.Draw(flat, r, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, r, img, b.Min, draw.Over)

	g := image.NewGray(r)
	draw.Draw(g, r, flat, image.Point{}, draw.Src)
	return g
}

// fromNRGBA extracts the red channel of a grayscale NRGBA produced by imaging.
func fromNRGBA(src *image.NRGBA) *image.Gray {
	r := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		dst := g.Pix[y*g.Stride:]
		for x := 0; x < r.Dx(); x++ {
			dst[x] = row[4*x]
		}
	}
	return g
}

// Package sample renders synthetic logos for trying the converter without a
// source image at hand.
//
// Shapes are drawn black on white with anti-aliasing, the way a scanned or
// exported logo usually looks.
package sample

import (
	"bytes"
	"image"
	"io"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/fsutil"
)

// Shape names a synthetic logo.
type Shape string

const (
	ShapeCircle Shape = "circle" // filled disc
	ShapeRing   Shape = "ring"   // annulus, exercises hole handling
	ShapeBadge  Shape = "badge"  // rounded square with a round window
)

// Shapes lists every available shape.
var Shapes = []Shape{ShapeCircle, ShapeRing, ShapeBadge}

// MinSize is the smallest canvas Render accepts.
const MinSize = 16

// Render draws shape centered on a size×size canvas.
func Render(shape Shape, size int) (image.Image, error) {
	if size < MinSize {
		return nil, errors.New(errors.ErrCodeInvalidInput, "sample size must be at least %d, got %d", MinSize, size)
	}
	if !slices.Contains(Shapes, shape) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown sample shape %q", shape)
	}

	dc := gg.NewContext(size, size)
	defer dc.Close()
	dc.ClearWithColor(gg.White)
	dc.SetRGB(0, 0, 0)

	s := float64(size)
	c := s / 2
	switch shape {
	case ShapeCircle:
		dc.DrawCircle(c, c, 0.3*s)
	case ShapeRing:
		dc.SetFillRule(gg.FillRuleEvenOdd)
		dc.DrawCircle(c, c, 0.35*s)
		dc.DrawCircle(c, c, 0.2*s)
	case ShapeBadge:
		dc.SetFillRule(gg.FillRuleEvenOdd)
		dc.DrawRoundedRectangle(0.15*s, 0.15*s, 0.7*s, 0.7*s, 0.12*s)
		dc.DrawCircle(c, c, 0.12*s)
	}
	if err := dc.Fill(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", shape)
	}
	if err := dc.FlushGPU(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", shape)
	}
	return dc.Image(), nil
}

// WritePNG renders shape and encodes it as PNG.
func WritePNG(w io.Writer, shape Shape, size int) error {
	img, err := Render(shape, size)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, imaging.PNG)
}

// Save renders shape into a PNG file at path.
func Save(path string, shape Shape, size int) error {
	var buf bytes.Buffer
	if err := WritePNG(&buf, shape, size); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "save %s", path)
	}
	return nil
}

// Package preprocess turns a raster logo into a clean binary foreground mask.
//
// The steps, in order:
//
//  1. Grayscale conversion and an area-averaging downscale to the working
//     resolution. Images are never upscaled.
//  2. CLAHE to even out lighting and contrast across the image.
//  3. Non-local means denoising followed by a light Gaussian blur.
//  4. Adaptive Gaussian thresholding with inverted polarity, so dark ink on
//     light paper becomes foreground.
//  5. Morphological opening then closing to drop speckles and seal pinholes.
//
// Every intermediate is kept in [Stages] so callers can dump them for
// diagnostics.
package preprocess

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/stampforge/pkg/config"
	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/mask"
)

// Stages holds every intermediate of a preprocessing run.
type Stages struct {
	Gray      *image.Gray // luminance at working resolution
	Equalized *image.Gray // after CLAHE
	Denoised  *image.Gray // after non-local means
	Blurred   *image.Gray // after the Gaussian blur
	Binary    *mask.Mask  // adaptive threshold output
	Mask      *mask.Mask  // final foreground after open and close

	// Downscaled reports whether the input exceeded the working resolution.
	Downscaled bool
}

// Backend is one implementation of the preprocessing steps.
type Backend func(ctx context.Context, img image.Image, cfg config.Preprocess) (*Stages, error)

// Backends lists the compiled-in implementations by name. The pure Go
// backend is always present; building with the gocv tag adds "opencv".
var Backends = map[string]Backend{
	"native": RunContext,
}

// DefaultBackend names the backend used when none is configured.
const DefaultBackend = "native"

// Lookup returns the named backend, or UNSUPPORTED when it was not compiled in.
func Lookup(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	b, ok := Backends[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "preprocess backend %q is not available in this build", name)
	}
	return b, nil
}

// Run preprocesses img with cfg.
func Run(img image.Image, cfg config.Preprocess) (*Stages, error) {
	return RunContext(context.Background(), img, cfg)
}

// RunContext is [Run] with cancellation. The denoise step, by far the most
// expensive, stops early when ctx is done. An EMPTY_MASK failure still
// returns the stages computed so far.
func RunContext(ctx context.Context, img image.Image, cfg config.Preprocess) (*Stages, error) {
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidImage, "image has zero area")
	}

	s := &Stages{}
	s.Gray, s.Downscaled = Downscale(Gray(img), cfg.WorkingResolution)
	s.Equalized = CLAHE(s.Gray, cfg.CLAHEClipLimit, cfg.CLAHETiles)

	denoised, err := Denoise(ctx, s.Equalized, cfg.DenoiseStrength, cfg.DenoiseTemplate, cfg.DenoiseSearch)
	if err != nil {
		return nil, err
	}
	s.Denoised = denoised
	s.Blurred = Blur(s.Denoised, cfg.BlurSigma)

	s.Binary = AdaptiveThreshold(s.Blurred, cfg.ThresholdBlock, cfg.ThresholdOffset)
	s.Mask = s.Binary.Open(cfg.MorphKernel).Close(cfg.MorphKernel)

	if s.Mask.Empty() {
		return s, errors.New(errors.ErrCodeEmptyMask, "no foreground survived thresholding")
	}
	return s, nil
}

// Downscale shrinks g with a box filter so that its longer side is at most
// limit, preserving the aspect ratio. Smaller images are returned as-is.
func Downscale(g *image.Gray, limit int) (*image.Gray, bool) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	longest := max(w, h)
	if limit <= 0 || longest <= limit {
		return g, false
	}
	f := float64(limit) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*f)))
	nh := max(1, int(math.Round(float64(h)*f)))
	return fromNRGBA(imaging.Resize(g, nw, nh, imaging.Box)), true
}
